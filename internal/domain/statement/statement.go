// Package statement implements owner statement reconciliation: monthly
// per-property financial summaries whose totals always equal the sum of
// their underlying income, expense, and adjustment line items.
package statement

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared/valueobject"
)

// Totals are the four summary fields of a statement. They are always
// derived server-side; client-supplied totals are only ever compared
// against a recomputation, never trusted.
type Totals struct {
	TotalIncome      valueobject.Money `json:"total_income"`
	TotalExpenses    valueobject.Money `json:"total_expenses"`
	TotalAdjustments valueobject.Money `json:"total_adjustments"`
	GrandTotal       valueobject.Money `json:"grand_total"`
}

// Aggregate computes statement totals from line items. Every running sum is
// re-rounded to two decimals after each addition so float drift from
// client-sourced row values cannot accumulate, and the grand total is
// income - expenses + adjustments, rounded once more.
func Aggregate(incomes []IncomeItem, expenses []ExpenseItem, adjustments []AdjustmentItem) Totals {
	income := valueobject.Zero()
	for _, it := range incomes {
		income = income.AddRounded(it.GrossIncome)
	}

	expense := valueobject.Zero()
	for _, it := range expenses {
		expense = expense.AddRounded(it.Amount)
	}

	adjustment := valueobject.Zero()
	for _, it := range adjustments {
		adjustment = adjustment.AddRounded(it.Amount)
	}

	return Totals{
		TotalIncome:      income,
		TotalExpenses:    expense,
		TotalAdjustments: adjustment,
		GrandTotal:       income.Sub(expense).Add(adjustment).Round2(),
	}
}

// IsClose reports whether every field of the two totals is within the
// monetary tolerance
func (t Totals) IsClose(other Totals) bool {
	return t.TotalIncome.IsClose(other.TotalIncome) &&
		t.TotalExpenses.IsClose(other.TotalExpenses) &&
		t.TotalAdjustments.IsClose(other.TotalAdjustments) &&
		t.GrandTotal.IsClose(other.GrandTotal)
}

type totalsCheck struct {
	field    string
	computed valueobject.Money
	claimed  valueobject.Money
}

func (t Totals) compare(claimed Totals) []totalsCheck {
	return []totalsCheck{
		{"totalIncome", t.TotalIncome, claimed.TotalIncome},
		{"totalExpenses", t.TotalExpenses, claimed.TotalExpenses},
		{"totalAdjustments", t.TotalAdjustments, claimed.TotalAdjustments},
		{"grandTotal", t.GrandTotal, claimed.GrandTotal},
	}
}

// FirstMismatch returns the name of the first summary field where the
// claimed totals diverge from t beyond the monetary tolerance
func (t Totals) FirstMismatch(claimed Totals) (string, bool) {
	for _, c := range t.compare(claimed) {
		if !c.computed.IsClose(c.claimed) {
			return c.field, true
		}
	}
	return "", false
}

// ValidateAgainst compares recomputed totals t with claimed client totals
// and returns a consistency error naming the first mismatching field with
// both values. The server is the source of truth for aggregates; a mismatch
// means the client's mirrored state has diverged and must not be persisted.
func (t Totals) ValidateAgainst(claimed Totals) error {
	for _, c := range t.compare(claimed) {
		if !c.computed.IsClose(c.claimed) {
			return shared.NewConsistencyError(
				"%s mismatch: client sent %s but items sum to %s",
				c.field, c.claimed.String(), c.computed.String(),
			)
		}
	}
	return nil
}

// OwnerStatement is one property's financial reconciliation for one
// calendar month. It owns its line items: items are created and destroyed
// only through the statement, and a tombstoned statement takes its items
// out of every live view with it.
type OwnerStatement struct {
	shared.OrgAggregateRoot
	PropertyID     uuid.UUID
	StatementMonth time.Time
	Notes          string

	TotalIncome      valueobject.Money
	TotalExpenses    valueobject.Money
	TotalAdjustments valueobject.Money
	GrandTotal       valueobject.Money

	DeletedAt *time.Time

	Incomes     []IncomeItem
	Expenses    []ExpenseItem
	Adjustments []AdjustmentItem
}

// NewOwnerStatement creates a statement with its full item set and
// server-computed totals
func NewOwnerStatement(orgID, propertyID uuid.UUID, month time.Time, notes string,
	incomes []IncomeItem, expenses []ExpenseItem, adjustments []AdjustmentItem) (*OwnerStatement, error) {

	if propertyID == uuid.Nil {
		return nil, shared.NewValidationError("property id is required")
	}
	if month.IsZero() {
		return nil, shared.NewValidationError("statement month is required")
	}

	s := &OwnerStatement{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		PropertyID:       propertyID,
		StatementMonth:   MonthOf(month),
		Notes:            notes,
		Incomes:          incomes,
		Expenses:         expenses,
		Adjustments:      adjustments,
	}
	s.Recompute()
	return s, nil
}

// Recompute recalculates the four summary fields from the current items
func (s *OwnerStatement) Recompute() {
	t := Aggregate(s.Incomes, s.Expenses, s.Adjustments)
	s.TotalIncome = t.TotalIncome
	s.TotalExpenses = t.TotalExpenses
	s.TotalAdjustments = t.TotalAdjustments
	s.GrandTotal = t.GrandTotal
}

// Totals returns the current summary fields
func (s *OwnerStatement) Totals() Totals {
	return Totals{
		TotalIncome:      s.TotalIncome,
		TotalExpenses:    s.TotalExpenses,
		TotalAdjustments: s.TotalAdjustments,
		GrandTotal:       s.GrandTotal,
	}
}

// ReplaceItems swaps the entire item set and recomputes totals. Updates are
// full replacement, not a diff: the persisted rows are deleted and
// recreated from this set.
func (s *OwnerStatement) ReplaceItems(incomes []IncomeItem, expenses []ExpenseItem, adjustments []AdjustmentItem) {
	s.Incomes = incomes
	s.Expenses = expenses
	s.Adjustments = adjustments
	s.Recompute()
	s.Touch()
}

// AppendExpenses adds expense rows and recomputes totals
func (s *OwnerStatement) AppendExpenses(rows []ExpenseItem) {
	s.Expenses = append(s.Expenses, rows...)
	s.Recompute()
	s.Touch()
}

// IsLive reports whether the statement has not been tombstoned
func (s *OwnerStatement) IsLive() bool {
	return s.DeletedAt == nil
}

// Tombstone soft-deletes the statement. Deleting an already tombstoned
// statement is an error, not a no-op: a second delete means the caller is
// operating on stale state and should refetch.
func (s *OwnerStatement) Tombstone(at time.Time) error {
	if s.DeletedAt != nil {
		return shared.NewStateError("statement is already deleted")
	}
	s.DeletedAt = &at
	s.Touch()
	return nil
}

// MonthOf truncates a date to the first of its month in UTC, the canonical
// form for statement months
func MonthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParseMonth parses a statement month from "2006-01" or "2006-01-02" form
// and normalizes it to the first of the month
func ParseMonth(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return time.Time{}, shared.NewValidationError("invalid statement month %q: expected YYYY-MM", s)
}

// FormatMonth renders a statement month in the "2006-01" wire form
func FormatMonth(t time.Time) string {
	return t.Format("2006-01")
}

// midMonthDay is the fallback day-of-month assigned to expense rows whose
// source document carried no usable date.
const midMonthDay = 15

// FallbackExpenseDate picks a date for an expense row that arrived without
// one: the median of the other valid dates extracted in the same call, or
// the 15th of the statement month when no valid dates exist at all.
// Invoices often omit per-line dates, so this is a heuristic, not an error.
func FallbackExpenseDate(validDates []time.Time, month time.Time) time.Time {
	if len(validDates) == 0 {
		m := MonthOf(month)
		return time.Date(m.Year(), m.Month(), midMonthDay, 0, 0, 0, 0, time.UTC)
	}
	sorted := make([]time.Time, len(validDates))
	copy(sorted, validDates)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Before(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted[len(sorted)/2]
}

// ItemDateLayout is the wire format for item-level date strings
const ItemDateLayout = "2006-01-02"

// ParseItemDate parses an item-level date string, rejecting anything that
// is not an exact calendar date
func ParseItemDate(s string) (time.Time, error) {
	t, err := time.Parse(ItemDateLayout, s)
	if err != nil {
		return time.Time{}, shared.NewValidationError("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// String identifies the statement for logs
func (s *OwnerStatement) String() string {
	return fmt.Sprintf("statement %s (property %s, %s)", s.ID, s.PropertyID, FormatMonth(s.StatementMonth))
}
