package enums

import "slices"

// TransactionCategory classifies an expenditure against an allocation.
type TransactionCategory string

const (
	TransactionCategoryFood        TransactionCategory = "FOOD"
	TransactionCategoryOperational TransactionCategory = "OPERATIONAL"
	TransactionCategoryTransport   TransactionCategory = "TRANSPORT"
	TransactionCategoryUtility     TransactionCategory = "UTILITY"
	TransactionCategoryStaff       TransactionCategory = "STAFF"
	TransactionCategoryOther       TransactionCategory = "OTHER"
)

var validTransactionCategories = []TransactionCategory{
	TransactionCategoryFood,
	TransactionCategoryOperational,
	TransactionCategoryTransport,
	TransactionCategoryUtility,
	TransactionCategoryStaff,
	TransactionCategoryOther,
}

// TransactionCategories returns every category in display order.
func TransactionCategories() []TransactionCategory {
	return slices.Clone(validTransactionCategories)
}

// String implements fmt.Stringer.
func (c TransactionCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known TransactionCategory.
func (c TransactionCategory) IsValid() bool {
	return slices.Contains(validTransactionCategories, c)
}

// ParseTransactionCategory converts raw input into a TransactionCategory.
func ParseTransactionCategory(value string) (TransactionCategory, error) {
	return parse(value, validTransactionCategories, "transaction category")
}
