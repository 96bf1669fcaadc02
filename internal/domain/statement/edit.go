package statement

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared/valueobject"
)

// Section identifies which item collection of a statement an operation
// addresses
type Section string

const (
	SectionIncomes     Section = "incomes"
	SectionExpenses    Section = "expenses"
	SectionAdjustments Section = "adjustments"
)

// ParseSection validates a wire-level section name
func ParseSection(s string) (Section, error) {
	switch Section(strings.ToLower(strings.TrimSpace(s))) {
	case SectionIncomes:
		return SectionIncomes, nil
	case SectionExpenses:
		return SectionExpenses, nil
	case SectionAdjustments:
		return SectionAdjustments, nil
	default:
		return "", shared.NewValidationError("unknown section %q: expected incomes, expenses or adjustments", s)
	}
}

// IncomeField enumerates the editable fields of an income item
type IncomeField string

const (
	IncomeCheckIn      IncomeField = "check_in"
	IncomeCheckOut     IncomeField = "check_out"
	IncomeDays         IncomeField = "days"
	IncomePlatform     IncomeField = "platform"
	IncomeGuest        IncomeField = "guest"
	IncomeGrossRevenue IncomeField = "gross_revenue"
	IncomeHostFee      IncomeField = "host_fee"
	IncomePlatformFee  IncomeField = "platform_fee"
	IncomeGrossIncome  IncomeField = "gross_income"
)

// ExpenseField enumerates the editable fields of an expense item
type ExpenseField string

const (
	ExpenseDate        ExpenseField = "date"
	ExpenseDescription ExpenseField = "description"
	ExpenseVendor      ExpenseField = "vendor"
	ExpenseAmount      ExpenseField = "amount"
)

// AdjustmentField enumerates the editable fields of an adjustment item
type AdjustmentField string

const (
	AdjustmentCheckIn     AdjustmentField = "check_in"
	AdjustmentCheckOut    AdjustmentField = "check_out"
	AdjustmentDescription AdjustmentField = "description"
	AdjustmentAmount      AdjustmentField = "amount"
)

// fieldKind is the acceptance rule for a field's value
type fieldKind int

const (
	kindInvalid fieldKind = iota
	kindString
	kindInteger
	kindCurrency
)

func (f IncomeField) kind() fieldKind {
	switch f {
	case IncomeCheckIn, IncomeCheckOut, IncomePlatform, IncomeGuest:
		return kindString
	case IncomeDays:
		return kindInteger
	case IncomeGrossRevenue, IncomeHostFee, IncomePlatformFee, IncomeGrossIncome:
		return kindCurrency
	default:
		return kindInvalid
	}
}

func (f ExpenseField) kind() fieldKind {
	switch f {
	case ExpenseDate, ExpenseDescription, ExpenseVendor:
		return kindString
	case ExpenseAmount:
		return kindCurrency
	default:
		return kindInvalid
	}
}

func (f AdjustmentField) kind() fieldKind {
	switch f {
	case AdjustmentCheckIn, AdjustmentCheckOut, AdjustmentDescription:
		return kindString
	case AdjustmentAmount:
		return kindCurrency
	default:
		return kindInvalid
	}
}

// ItemEdit is a validated single-field change to one line item. Exactly one
// of the three section variants is populated, so an edit addressing a field
// that does not exist on its section cannot be constructed: the invalid
// combination is rejected at parse time, before anything touches the
// statement.
type ItemEdit struct {
	income     *incomeEdit
	expense    *expenseEdit
	adjustment *adjustmentEdit
}

type incomeEdit struct {
	field  IncomeField
	str    string
	days   int
	amount valueobject.Money
}

type expenseEdit struct {
	field  ExpenseField
	str    string
	amount valueobject.Money
}

type adjustmentEdit struct {
	field  AdjustmentField
	str    string
	amount valueobject.Money
}

// Section returns which item collection the edit addresses
func (e ItemEdit) Section() Section {
	switch {
	case e.income != nil:
		return SectionIncomes
	case e.expense != nil:
		return SectionExpenses
	default:
		return SectionAdjustments
	}
}

// ParseItemEdit builds a typed edit from wire-level inputs. The (section,
// field) pair selects the variant; the value must match the field's kind:
// strings for text fields, a non-negative integer for days, a number for
// currency fields. Anything else is a validation error.
func ParseItemEdit(section, field string, value any) (ItemEdit, error) {
	sec, err := ParseSection(section)
	if err != nil {
		return ItemEdit{}, err
	}
	field = strings.ToLower(strings.TrimSpace(field))

	switch sec {
	case SectionIncomes:
		f := IncomeField(field)
		switch f.kind() {
		case kindString:
			s, err := stringValue(field, value)
			if err != nil {
				return ItemEdit{}, err
			}
			return ItemEdit{income: &incomeEdit{field: f, str: s}}, nil
		case kindInteger:
			n, err := integerValue(field, value)
			if err != nil {
				return ItemEdit{}, err
			}
			return ItemEdit{income: &incomeEdit{field: f, days: n}}, nil
		case kindCurrency:
			m, err := currencyValue(field, value)
			if err != nil {
				return ItemEdit{}, err
			}
			return ItemEdit{income: &incomeEdit{field: f, amount: m}}, nil
		}
	case SectionExpenses:
		f := ExpenseField(field)
		switch f.kind() {
		case kindString:
			s, err := stringValue(field, value)
			if err != nil {
				return ItemEdit{}, err
			}
			return ItemEdit{expense: &expenseEdit{field: f, str: s}}, nil
		case kindCurrency:
			m, err := currencyValue(field, value)
			if err != nil {
				return ItemEdit{}, err
			}
			return ItemEdit{expense: &expenseEdit{field: f, amount: m}}, nil
		}
	case SectionAdjustments:
		f := AdjustmentField(field)
		switch f.kind() {
		case kindString:
			s, err := stringValue(field, value)
			if err != nil {
				return ItemEdit{}, err
			}
			return ItemEdit{adjustment: &adjustmentEdit{field: f, str: s}}, nil
		case kindCurrency:
			m, err := currencyValue(field, value)
			if err != nil {
				return ItemEdit{}, err
			}
			return ItemEdit{adjustment: &adjustmentEdit{field: f, amount: m}}, nil
		}
	}
	return ItemEdit{}, shared.NewValidationError("unknown field %q for section %q", field, section)
}

func stringValue(field string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", shared.NewValidationError("field %q expects a string, got %T", field, value)
	}
	return s, nil
}

func integerValue(field string, value any) (int, error) {
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, shared.NewValidationError("field %q expects a whole number, got %v", field, v)
		}
		if v < 0 {
			return 0, shared.NewValidationError("field %q cannot be negative", field)
		}
		return int(v), nil
	case int:
		if v < 0 {
			return 0, shared.NewValidationError("field %q cannot be negative", field)
		}
		return v, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil || n < 0 {
			return 0, shared.NewValidationError("field %q expects a non-negative whole number, got %v", field, v)
		}
		return int(n), nil
	default:
		return 0, shared.NewValidationError("field %q expects a whole number, got %T", field, value)
	}
}

func currencyValue(field string, value any) (valueobject.Money, error) {
	switch v := value.(type) {
	case float64:
		return valueobject.NewMoneyFromFloat(v), nil
	case int:
		return valueobject.NewMoney(decimal.NewFromInt(int64(v))), nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return valueobject.Money{}, shared.NewValidationError("field %q expects a number, got %v", field, v)
		}
		return valueobject.NewMoney(d), nil
	default:
		return valueobject.Money{}, shared.NewValidationError("field %q expects a number, got %T", field, value)
	}
}

// EditItem applies a typed single-field edit to the item at index within the
// edit's section, then recomputes totals. Callers persist the result in the
// same transaction that re-read the items so no reader ever observes a
// statement whose summary disagrees with its rows.
func (s *OwnerStatement) EditItem(edit ItemEdit, index int) error {
	switch {
	case edit.income != nil:
		if index < 0 || index >= len(s.Incomes) {
			return shared.NewValidationError("income index %d out of range (statement has %d income rows)", index, len(s.Incomes))
		}
		it := &s.Incomes[index]
		e := edit.income
		switch e.field {
		case IncomeCheckIn:
			it.CheckIn = e.str
		case IncomeCheckOut:
			it.CheckOut = e.str
		case IncomePlatform:
			it.Platform = e.str
		case IncomeGuest:
			it.Guest = e.str
		case IncomeDays:
			it.Days = e.days
		case IncomeGrossRevenue:
			it.GrossRevenue = e.amount
		case IncomeHostFee:
			it.HostFee = e.amount
		case IncomePlatformFee:
			it.PlatformFee = e.amount
		case IncomeGrossIncome:
			it.GrossIncome = e.amount
		}
	case edit.expense != nil:
		if index < 0 || index >= len(s.Expenses) {
			return shared.NewValidationError("expense index %d out of range (statement has %d expense rows)", index, len(s.Expenses))
		}
		it := &s.Expenses[index]
		e := edit.expense
		switch e.field {
		case ExpenseDate:
			it.Date = e.str
		case ExpenseDescription:
			it.Description = e.str
		case ExpenseVendor:
			it.Vendor = e.str
		case ExpenseAmount:
			it.Amount = e.amount
		}
	case edit.adjustment != nil:
		if index < 0 || index >= len(s.Adjustments) {
			return shared.NewValidationError("adjustment index %d out of range (statement has %d adjustment rows)", index, len(s.Adjustments))
		}
		it := &s.Adjustments[index]
		e := edit.adjustment
		switch e.field {
		case AdjustmentCheckIn:
			it.CheckIn = e.str
		case AdjustmentCheckOut:
			it.CheckOut = e.str
		case AdjustmentDescription:
			it.Description = e.str
		case AdjustmentAmount:
			it.Amount = e.amount
		}
	default:
		return shared.NewValidationError("empty item edit")
	}

	s.Recompute()
	s.Touch()
	return nil
}

// AddIncome appends an income row and recomputes
func (s *OwnerStatement) AddIncome(it IncomeItem) {
	s.Incomes = append(s.Incomes, it)
	s.Recompute()
	s.Touch()
}

// AddExpense appends an expense row and recomputes
func (s *OwnerStatement) AddExpense(it ExpenseItem) {
	s.Expenses = append(s.Expenses, it)
	s.Recompute()
	s.Touch()
}

// AddAdjustment appends an adjustment row and recomputes
func (s *OwnerStatement) AddAdjustment(it AdjustmentItem) {
	s.Adjustments = append(s.Adjustments, it)
	s.Recompute()
	s.Touch()
}

// RemoveItem deletes the row at index from the given section and recomputes
func (s *OwnerStatement) RemoveItem(section Section, index int) error {
	switch section {
	case SectionIncomes:
		if index < 0 || index >= len(s.Incomes) {
			return shared.NewValidationError("income index %d out of range (statement has %d income rows)", index, len(s.Incomes))
		}
		s.Incomes = append(s.Incomes[:index], s.Incomes[index+1:]...)
	case SectionExpenses:
		if index < 0 || index >= len(s.Expenses) {
			return shared.NewValidationError("expense index %d out of range (statement has %d expense rows)", index, len(s.Expenses))
		}
		s.Expenses = append(s.Expenses[:index], s.Expenses[index+1:]...)
	case SectionAdjustments:
		if index < 0 || index >= len(s.Adjustments) {
			return shared.NewValidationError("adjustment index %d out of range (statement has %d adjustment rows)", index, len(s.Adjustments))
		}
		s.Adjustments = append(s.Adjustments[:index], s.Adjustments[index+1:]...)
	default:
		return shared.NewValidationError("unknown section %q", section)
	}

	s.Recompute()
	s.Touch()
	return nil
}
