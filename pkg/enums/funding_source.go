package enums

import "slices"

// FundingSource maps to the funding_source enum in Postgres.
type FundingSource string

const (
	FundingSourceCentralGovernment  FundingSource = "CENTRAL_GOVERNMENT"
	FundingSourceRegionalGovernment FundingSource = "REGIONAL_GOVERNMENT"
	FundingSourceOther              FundingSource = "OTHER"
)

var validFundingSources = []FundingSource{
	FundingSourceCentralGovernment,
	FundingSourceRegionalGovernment,
	FundingSourceOther,
}

// String implements fmt.Stringer.
func (f FundingSource) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FundingSource.
func (f FundingSource) IsValid() bool {
	return slices.Contains(validFundingSources, f)
}

// ParseFundingSource converts raw input into a FundingSource.
func ParseFundingSource(value string) (FundingSource, error) {
	return parse(value, validFundingSources, "funding source")
}
