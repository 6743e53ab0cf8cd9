package enums

import "slices"

// AgingBucket classifies how far past due an outstanding payment is.
type AgingBucket string

const (
	AgingBucketCurrent    AgingBucket = "CURRENT"
	AgingBucketDays31To60 AgingBucket = "DAYS_31_60"
	AgingBucketDays61To90 AgingBucket = "DAYS_61_90"
	AgingBucketOver90     AgingBucket = "OVER_90"
)

var validAgingBuckets = []AgingBucket{
	AgingBucketCurrent,
	AgingBucketDays31To60,
	AgingBucketDays61To90,
	AgingBucketOver90,
}

// AgingBuckets returns the buckets from least to most overdue.
func AgingBuckets() []AgingBucket {
	return slices.Clone(validAgingBuckets)
}

// IsValid reports whether the value is a known AgingBucket.
func (b AgingBucket) IsValid() bool {
	return slices.Contains(validAgingBuckets, b)
}

// ParseAgingBucket converts raw input into an AgingBucket.
func ParseAgingBucket(value string) (AgingBucket, error) {
	return parse(value, validAgingBuckets, "aging bucket")
}
