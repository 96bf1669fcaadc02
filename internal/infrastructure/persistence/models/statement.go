package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared/valueobject"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/statement"
)

// OwnerStatementModel is the persistence model for the OwnerStatement
// aggregate root. The summary columns are denormalized copies of the item
// sums; every write path recomputes them from the items inside the same
// transaction that writes the rows.
type OwnerStatementModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	OrgID          uuid.UUID `gorm:"type:uuid;not null;index:idx_statements_org_property_month,priority:1;index:idx_statements_org_month,priority:1"`
	PropertyID     uuid.UUID `gorm:"type:uuid;not null;index:idx_statements_org_property_month,priority:2"`
	StatementMonth time.Time `gorm:"type:date;not null;index:idx_statements_org_property_month,priority:3;index:idx_statements_org_month,priority:2"`
	Notes          string    `gorm:"type:text"`

	TotalIncome      valueobject.Money `gorm:"type:decimal(18,2);not null"`
	TotalExpenses    valueobject.Money `gorm:"type:decimal(18,2);not null"`
	TotalAdjustments valueobject.Money `gorm:"type:decimal(18,2);not null"`
	GrandTotal       valueobject.Money `gorm:"type:decimal(18,2);not null"`

	CreatedBy *uuid.UUID `gorm:"type:uuid"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid"`
	DeletedAt *time.Time `gorm:"index"`
	CreatedAt time.Time  `gorm:"not null"`
	UpdatedAt time.Time  `gorm:"not null"`

	Incomes     []IncomeItemModel     `gorm:"foreignKey:StatementID;references:ID"`
	Expenses    []ExpenseItemModel    `gorm:"foreignKey:StatementID;references:ID"`
	Adjustments []AdjustmentItemModel `gorm:"foreignKey:StatementID;references:ID"`
}

// TableName returns the table name for GORM
func (OwnerStatementModel) TableName() string {
	return "owner_statements"
}

// IncomeItemModel is one booking row of a statement. Item rows are immutable
// and identified only by position within their statement; edits rewrite the
// full row set.
type IncomeItemModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primary_key"`
	StatementID  uuid.UUID         `gorm:"type:uuid;not null;index"`
	Position     int               `gorm:"not null"`
	CheckIn      string            `gorm:"type:varchar(20)"`
	CheckOut     string            `gorm:"type:varchar(20)"`
	Days         int               `gorm:"not null;default:0"`
	Platform     string            `gorm:"type:varchar(100)"`
	Guest        string            `gorm:"type:varchar(200)"`
	GrossRevenue valueobject.Money `gorm:"type:decimal(18,2);not null"`
	HostFee      valueobject.Money `gorm:"type:decimal(18,2);not null"`
	PlatformFee  valueobject.Money `gorm:"type:decimal(18,2);not null"`
	GrossIncome  valueobject.Money `gorm:"type:decimal(18,2);not null"`
	CreatedAt    time.Time         `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IncomeItemModel) TableName() string {
	return "statement_income_items"
}

// ExpenseItemModel is one expense row of a statement
type ExpenseItemModel struct {
	ID          uuid.UUID         `gorm:"type:uuid;primary_key"`
	StatementID uuid.UUID         `gorm:"type:uuid;not null;index"`
	Position    int               `gorm:"not null"`
	Date        string            `gorm:"type:varchar(20)"`
	Description string            `gorm:"type:text"`
	Vendor      string            `gorm:"type:varchar(200);index"`
	Amount      valueobject.Money `gorm:"type:decimal(18,2);not null"`
	CreatedAt   time.Time         `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ExpenseItemModel) TableName() string {
	return "statement_expense_items"
}

// AdjustmentItemModel is one signed adjustment row of a statement
type AdjustmentItemModel struct {
	ID          uuid.UUID         `gorm:"type:uuid;primary_key"`
	StatementID uuid.UUID         `gorm:"type:uuid;not null;index"`
	Position    int               `gorm:"not null"`
	CheckIn     string            `gorm:"type:varchar(20)"`
	CheckOut    string            `gorm:"type:varchar(20)"`
	Description string            `gorm:"type:text"`
	Amount      valueobject.Money `gorm:"type:decimal(18,2);not null"`
	CreatedAt   time.Time         `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AdjustmentItemModel) TableName() string {
	return "statement_adjustment_items"
}

// ToDomain converts the persistence model to a domain OwnerStatement
// aggregate. Item order follows the stored positions.
func (m *OwnerStatementModel) ToDomain() *statement.OwnerStatement {
	s := &statement.OwnerStatement{
		PropertyID:       m.PropertyID,
		StatementMonth:   statement.MonthOf(m.StatementMonth),
		Notes:            m.Notes,
		TotalIncome:      m.TotalIncome,
		TotalExpenses:    m.TotalExpenses,
		TotalAdjustments: m.TotalAdjustments,
		GrandTotal:       m.GrandTotal,
		DeletedAt:        m.DeletedAt,
		Incomes:          make([]statement.IncomeItem, len(m.Incomes)),
		Expenses:         make([]statement.ExpenseItem, len(m.Expenses)),
		Adjustments:      make([]statement.AdjustmentItem, len(m.Adjustments)),
	}
	s.ID = m.ID
	s.OrgID = m.OrgID
	s.CreatedBy = m.CreatedBy
	s.UpdatedBy = m.UpdatedBy
	s.CreatedAt = m.CreatedAt
	s.UpdatedAt = m.UpdatedAt

	for i, row := range m.Incomes {
		s.Incomes[i] = statement.IncomeItem{
			CheckIn:      row.CheckIn,
			CheckOut:     row.CheckOut,
			Days:         row.Days,
			Platform:     row.Platform,
			Guest:        row.Guest,
			GrossRevenue: row.GrossRevenue,
			HostFee:      row.HostFee,
			PlatformFee:  row.PlatformFee,
			GrossIncome:  row.GrossIncome,
		}
	}
	for i, row := range m.Expenses {
		s.Expenses[i] = statement.ExpenseItem{
			Date:        row.Date,
			Description: row.Description,
			Vendor:      row.Vendor,
			Amount:      row.Amount,
		}
	}
	for i, row := range m.Adjustments {
		s.Adjustments[i] = statement.AdjustmentItem{
			CheckIn:     row.CheckIn,
			CheckOut:    row.CheckOut,
			Description: row.Description,
			Amount:      row.Amount,
		}
	}
	return s
}

// FromDomain populates the statement columns from a domain OwnerStatement.
// Item rows are built separately because they are always rewritten wholesale.
func (m *OwnerStatementModel) FromDomain(s *statement.OwnerStatement) {
	m.ID = s.ID
	m.OrgID = s.OrgID
	m.CreatedBy = s.CreatedBy
	m.UpdatedBy = s.UpdatedBy
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
	m.PropertyID = s.PropertyID
	m.StatementMonth = s.StatementMonth
	m.Notes = s.Notes
	m.TotalIncome = s.TotalIncome
	m.TotalExpenses = s.TotalExpenses
	m.TotalAdjustments = s.TotalAdjustments
	m.GrandTotal = s.GrandTotal
	m.DeletedAt = s.DeletedAt
}

// OwnerStatementModelFromDomain creates a new persistence model from a domain
// OwnerStatement, without item rows.
func OwnerStatementModelFromDomain(s *statement.OwnerStatement) *OwnerStatementModel {
	m := &OwnerStatementModel{}
	m.FromDomain(s)
	return m
}

// IncomeRowsFromDomain builds positioned income item rows for a statement
func IncomeRowsFromDomain(statementID uuid.UUID, items []statement.IncomeItem) []IncomeItemModel {
	rows := make([]IncomeItemModel, len(items))
	for i, it := range items {
		rows[i] = IncomeItemModel{
			ID:           uuid.New(),
			StatementID:  statementID,
			Position:     i,
			CheckIn:      it.CheckIn,
			CheckOut:     it.CheckOut,
			Days:         it.Days,
			Platform:     it.Platform,
			Guest:        it.Guest,
			GrossRevenue: it.GrossRevenue,
			HostFee:      it.HostFee,
			PlatformFee:  it.PlatformFee,
			GrossIncome:  it.GrossIncome,
		}
	}
	return rows
}

// ExpenseRowsFromDomain builds positioned expense item rows for a statement
func ExpenseRowsFromDomain(statementID uuid.UUID, items []statement.ExpenseItem) []ExpenseItemModel {
	rows := make([]ExpenseItemModel, len(items))
	for i, it := range items {
		rows[i] = ExpenseItemModel{
			ID:          uuid.New(),
			StatementID: statementID,
			Position:    i,
			Date:        it.Date,
			Description: it.Description,
			Vendor:      it.Vendor,
			Amount:      it.Amount,
		}
	}
	return rows
}

// AdjustmentRowsFromDomain builds positioned adjustment item rows for a statement
func AdjustmentRowsFromDomain(statementID uuid.UUID, items []statement.AdjustmentItem) []AdjustmentItemModel {
	rows := make([]AdjustmentItemModel, len(items))
	for i, it := range items {
		rows[i] = AdjustmentItemModel{
			ID:          uuid.New(),
			StatementID: statementID,
			Position:    i,
			CheckIn:     it.CheckIn,
			CheckOut:    it.CheckOut,
			Description: it.Description,
			Amount:      it.Amount,
		}
	}
	return rows
}
