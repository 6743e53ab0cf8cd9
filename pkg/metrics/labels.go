package metrics

// labelValue keeps empty label values out of the series set.
func labelValue(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
