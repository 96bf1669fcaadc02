package statement

import (
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared/valueobject"
)

// IncomeItem is one booking row on an owner statement. GrossIncome is
// caller-supplied and expected to equal GrossRevenue - HostFee - PlatformFee
// when imported from a platform export, but only the statement-level
// aggregate is enforced; individual rows are taken as given.
type IncomeItem struct {
	CheckIn      string
	CheckOut     string
	Days         int
	Platform     string
	Guest        string
	GrossRevenue valueobject.Money
	HostFee      valueobject.Money
	PlatformFee  valueobject.Money
	GrossIncome  valueobject.Money
}

// ExpenseItem is one expense row on an owner statement
type ExpenseItem struct {
	Date        string
	Description string
	Vendor      string
	Amount      valueobject.Money
}

// AdjustmentItem is one adjustment row. The amount is signed and is added
// to, not subtracted from, the grand total.
type AdjustmentItem struct {
	CheckIn     string
	CheckOut    string
	Description string
	Amount      valueobject.Money
}
