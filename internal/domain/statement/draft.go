package statement

import (
	"github.com/google/uuid"
)

// Draft is an in-memory candidate statement under review before batch
// creation. Drafts are matched, merged with invoice expenses, and edited on
// the client, then submitted together; nothing is persisted until the batch
// import commits them.
type Draft struct {
	PropertyID   uuid.UUID
	PropertyName string
	Notes        string
	Incomes      []IncomeItem
	Expenses     []ExpenseItem
	Adjustments  []AdjustmentItem
}

// Totals computes the draft's would-be summary fields
func (d Draft) Totals() Totals {
	return Aggregate(d.Incomes, d.Expenses, d.Adjustments)
}
