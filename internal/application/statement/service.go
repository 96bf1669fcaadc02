// Package statement contains the application services for owner statement
// reconciliation: CRUD with server-validated totals, single-item edits with
// in-transaction recomputation, monthly batch import, and vendor expense
// merging from spreadsheets and extracted invoices.
package statement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/property"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared/valueobject"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/statement"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/telemetry"
)

// Service provides owner statement operations
type Service struct {
	statements statement.Repository
	properties property.Repository
	metrics    *telemetry.StatementMetrics
}

// NewService creates a new statement Service
func NewService(statements statement.Repository, properties property.Repository) *Service {
	return &Service{
		statements: statements,
		properties: properties,
	}
}

// SetStatementMetrics sets the business metrics collector
func (s *Service) SetStatementMetrics(sm *telemetry.StatementMetrics) {
	s.metrics = sm
}

// recordMismatch notes a rejected client total when metrics are wired
func (s *Service) recordMismatch(ctx context.Context, orgID uuid.UUID, computed, claimed statement.Totals) {
	if s.metrics == nil {
		return
	}
	if field, ok := computed.FirstMismatch(claimed); ok {
		s.metrics.RecordReconcileMismatch(ctx, orgID, field)
	}
}

// ===================== Item payloads =====================

// IncomeItemInput is one income row as submitted by the dashboard
type IncomeItemInput struct {
	CheckIn      string  `json:"check_in"`
	CheckOut     string  `json:"check_out"`
	Days         int     `json:"days" binding:"min=0"`
	Platform     string  `json:"platform"`
	Guest        string  `json:"guest"`
	GrossRevenue float64 `json:"gross_revenue"`
	HostFee      float64 `json:"host_fee"`
	PlatformFee  float64 `json:"platform_fee"`
	GrossIncome  float64 `json:"gross_income"`
}

// ExpenseItemInput is one expense row as submitted by the dashboard
type ExpenseItemInput struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Vendor      string  `json:"vendor"`
	Amount      float64 `json:"amount"`
}

// AdjustmentItemInput is one adjustment row as submitted by the dashboard
type AdjustmentItemInput struct {
	CheckIn     string  `json:"check_in,omitempty"`
	CheckOut    string  `json:"check_out,omitempty"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// TotalsInput carries the client's view of the summary fields. It is only
// ever validated against a server-side recomputation, never written as-is.
type TotalsInput struct {
	TotalIncome      float64 `json:"total_income"`
	TotalExpenses    float64 `json:"total_expenses"`
	TotalAdjustments float64 `json:"total_adjustments"`
	GrandTotal       float64 `json:"grand_total"`
}

func (in TotalsInput) toDomain() statement.Totals {
	return statement.Totals{
		TotalIncome:      valueobject.NewMoneyFromFloat(in.TotalIncome),
		TotalExpenses:    valueobject.NewMoneyFromFloat(in.TotalExpenses),
		TotalAdjustments: valueobject.NewMoneyFromFloat(in.TotalAdjustments),
		GrandTotal:       valueobject.NewMoneyFromFloat(in.GrandTotal),
	}
}

func toDomainIncomes(inputs []IncomeItemInput) []statement.IncomeItem {
	items := make([]statement.IncomeItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, statement.IncomeItem{
			CheckIn:      in.CheckIn,
			CheckOut:     in.CheckOut,
			Days:         in.Days,
			Platform:     in.Platform,
			Guest:        in.Guest,
			GrossRevenue: valueobject.NewMoneyFromFloat(in.GrossRevenue),
			HostFee:      valueobject.NewMoneyFromFloat(in.HostFee),
			PlatformFee:  valueobject.NewMoneyFromFloat(in.PlatformFee),
			GrossIncome:  valueobject.NewMoneyFromFloat(in.GrossIncome),
		})
	}
	return items
}

func toDomainExpenses(inputs []ExpenseItemInput) []statement.ExpenseItem {
	items := make([]statement.ExpenseItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, statement.ExpenseItem{
			Date:        in.Date,
			Description: in.Description,
			Vendor:      in.Vendor,
			Amount:      valueobject.NewMoneyFromFloat(in.Amount),
		})
	}
	return items
}

func toDomainAdjustments(inputs []AdjustmentItemInput) []statement.AdjustmentItem {
	items := make([]statement.AdjustmentItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, statement.AdjustmentItem{
			CheckIn:     in.CheckIn,
			CheckOut:    in.CheckOut,
			Description: in.Description,
			Amount:      valueobject.NewMoneyFromFloat(in.Amount),
		})
	}
	return items
}

// ===================== Responses =====================

// IncomeItemView is one income row in API responses
type IncomeItemView struct {
	CheckIn      string            `json:"check_in"`
	CheckOut     string            `json:"check_out"`
	Days         int               `json:"days"`
	Platform     string            `json:"platform"`
	Guest        string            `json:"guest"`
	GrossRevenue valueobject.Money `json:"gross_revenue"`
	HostFee      valueobject.Money `json:"host_fee"`
	PlatformFee  valueobject.Money `json:"platform_fee"`
	GrossIncome  valueobject.Money `json:"gross_income"`
}

// ExpenseItemView is one expense row in API responses
type ExpenseItemView struct {
	Date        string            `json:"date"`
	Description string            `json:"description"`
	Vendor      string            `json:"vendor"`
	Amount      valueobject.Money `json:"amount"`
}

// AdjustmentItemView is one adjustment row in API responses
type AdjustmentItemView struct {
	CheckIn     string            `json:"check_in,omitempty"`
	CheckOut    string            `json:"check_out,omitempty"`
	Description string            `json:"description"`
	Amount      valueobject.Money `json:"amount"`
}

// StatementResponse is a full statement with items
type StatementResponse struct {
	ID               uuid.UUID            `json:"id"`
	PropertyID       uuid.UUID            `json:"property_id"`
	PropertyName     string               `json:"property_name,omitempty"`
	StatementMonth   string               `json:"statement_month"`
	Notes            string               `json:"notes,omitempty"`
	TotalIncome      valueobject.Money    `json:"total_income"`
	TotalExpenses    valueobject.Money    `json:"total_expenses"`
	TotalAdjustments valueobject.Money    `json:"total_adjustments"`
	GrandTotal       valueobject.Money    `json:"grand_total"`
	Incomes          []IncomeItemView     `json:"incomes"`
	Expenses         []ExpenseItemView    `json:"expenses"`
	Adjustments      []AdjustmentItemView `json:"adjustments"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// SummaryResponse is the list-view projection of a statement
type SummaryResponse struct {
	ID               uuid.UUID         `json:"id"`
	PropertyID       uuid.UUID         `json:"property_id"`
	PropertyName     string            `json:"property_name"`
	StatementMonth   string            `json:"statement_month"`
	Notes            string            `json:"notes,omitempty"`
	TotalIncome      valueobject.Money `json:"total_income"`
	TotalExpenses    valueobject.Money `json:"total_expenses"`
	TotalAdjustments valueobject.Money `json:"total_adjustments"`
	GrandTotal       valueobject.Money `json:"grand_total"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func toStatementResponse(s *statement.OwnerStatement, propertyName string) *StatementResponse {
	resp := &StatementResponse{
		ID:               s.ID,
		PropertyID:       s.PropertyID,
		PropertyName:     propertyName,
		StatementMonth:   statement.FormatMonth(s.StatementMonth),
		Notes:            s.Notes,
		TotalIncome:      s.TotalIncome,
		TotalExpenses:    s.TotalExpenses,
		TotalAdjustments: s.TotalAdjustments,
		GrandTotal:       s.GrandTotal,
		Incomes:          make([]IncomeItemView, 0, len(s.Incomes)),
		Expenses:         make([]ExpenseItemView, 0, len(s.Expenses)),
		Adjustments:      make([]AdjustmentItemView, 0, len(s.Adjustments)),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	for _, it := range s.Incomes {
		resp.Incomes = append(resp.Incomes, IncomeItemView{
			CheckIn:      it.CheckIn,
			CheckOut:     it.CheckOut,
			Days:         it.Days,
			Platform:     it.Platform,
			Guest:        it.Guest,
			GrossRevenue: it.GrossRevenue,
			HostFee:      it.HostFee,
			PlatformFee:  it.PlatformFee,
			GrossIncome:  it.GrossIncome,
		})
	}
	for _, it := range s.Expenses {
		resp.Expenses = append(resp.Expenses, ExpenseItemView{
			Date:        it.Date,
			Description: it.Description,
			Vendor:      it.Vendor,
			Amount:      it.Amount,
		})
	}
	for _, it := range s.Adjustments {
		resp.Adjustments = append(resp.Adjustments, AdjustmentItemView{
			CheckIn:     it.CheckIn,
			CheckOut:    it.CheckOut,
			Description: it.Description,
			Amount:      it.Amount,
		})
	}
	return resp
}

func toSummaryResponse(s statement.Summary) SummaryResponse {
	return SummaryResponse{
		ID:               s.ID,
		PropertyID:       s.PropertyID,
		PropertyName:     s.PropertyName,
		StatementMonth:   statement.FormatMonth(s.StatementMonth),
		Notes:            s.Notes,
		TotalIncome:      s.TotalIncome,
		TotalExpenses:    s.TotalExpenses,
		TotalAdjustments: s.TotalAdjustments,
		GrandTotal:       s.GrandTotal,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// propertyName resolves a property's display name, falling back to empty
// when the directory entry has gone away
func (s *Service) propertyName(ctx context.Context, orgID, propertyID uuid.UUID) string {
	p, err := s.properties.FindByIDForOrg(ctx, orgID, propertyID)
	if err != nil {
		return ""
	}
	return p.Name
}

// ===================== Queries =====================

// ListQuery narrows the statement listing
type ListQuery struct {
	PropertyID string `form:"property_id"`
	Month      string `form:"month"`
	SortBy     string `form:"sort_by"`
	SortDir    string `form:"sort_dir"`
}

// List returns live statement summaries for the organization, optionally
// narrowed by property and month
func (s *Service) List(ctx context.Context, orgID uuid.UUID, q ListQuery) ([]SummaryResponse, error) {
	query := statement.SummaryQuery{
		SortBy:  q.SortBy,
		SortDir: q.SortDir,
	}

	if q.PropertyID != "" {
		id, err := uuid.Parse(q.PropertyID)
		if err != nil {
			return nil, shared.NewValidationError("invalid property id %q", q.PropertyID)
		}
		query.PropertyID = &id
	}
	if q.Month != "" {
		month, err := statement.ParseMonth(q.Month)
		if err != nil {
			return nil, err
		}
		query.Month = &month
	}

	summaries, err := s.statements.FindSummariesForOrg(ctx, orgID, query)
	if err != nil {
		return nil, err
	}

	out := make([]SummaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, toSummaryResponse(sum))
	}
	return out, nil
}

// Get returns a full statement with items
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*StatementResponse, error) {
	stmt, err := s.statements.FindByIDForOrg(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return toStatementResponse(stmt, s.propertyName(ctx, orgID, stmt.PropertyID)), nil
}

// ===================== Create / Update / Delete =====================

// CreateStatementRequest creates one statement with its full item set
type CreateStatementRequest struct {
	PropertyID  uuid.UUID             `json:"property_id" binding:"required"`
	Month       string                `json:"statement_month" binding:"required,statement_month"`
	Notes       string                `json:"notes"`
	Incomes     []IncomeItemInput     `json:"incomes" binding:"required"`
	Expenses    []ExpenseItemInput    `json:"expenses"`
	Adjustments []AdjustmentItemInput `json:"adjustments"`
	Totals      TotalsInput           `json:"totals" binding:"required"`
}

// Create validates the client's totals against a server recomputation,
// verifies property ownership, and writes the statement with all items in
// one transaction
func (s *Service) Create(ctx context.Context, orgID, userID uuid.UUID, req CreateStatementRequest) (*StatementResponse, error) {
	month, err := statement.ParseMonth(req.Month)
	if err != nil {
		return nil, err
	}

	prop, err := s.properties.FindByIDForOrg(ctx, orgID, req.PropertyID)
	if err != nil {
		if de, ok := err.(*shared.DomainError); ok && de.Code == shared.ErrNotFound.Code {
			return nil, shared.NewValidationError("property %s does not belong to this organization", req.PropertyID)
		}
		return nil, err
	}

	// At most one live statement per property and month. The partial unique
	// index backstops the race where two creates pass this check together.
	existing, err := s.statements.FindSummariesForOrg(ctx, orgID, statement.SummaryQuery{
		PropertyID: &req.PropertyID,
		Month:      &month,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, shared.NewDomainError(shared.ErrAlreadyExists.Code,
			fmt.Sprintf("property %s already has a statement for %s", prop.Name, statement.FormatMonth(month)))
	}

	incomes := toDomainIncomes(req.Incomes)
	expenses := toDomainExpenses(req.Expenses)
	adjustments := toDomainAdjustments(req.Adjustments)

	claimed := req.Totals.toDomain()
	computed := statement.Aggregate(incomes, expenses, adjustments)
	if err := computed.ValidateAgainst(claimed); err != nil {
		s.recordMismatch(ctx, orgID, computed, claimed)
		return nil, err
	}

	stmt, err := statement.NewOwnerStatement(orgID, req.PropertyID, month, req.Notes, incomes, expenses, adjustments)
	if err != nil {
		return nil, err
	}
	stmt.CreatedBy = &userID

	if err := s.statements.Create(ctx, stmt); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordStatementCreated(ctx, orgID, telemetry.StatementSourceManual)
	}
	return toStatementResponse(stmt, prop.Name), nil
}

// UpdateStatementRequest replaces a statement's items and notes in full
type UpdateStatementRequest struct {
	Notes       string                `json:"notes"`
	Incomes     []IncomeItemInput     `json:"incomes" binding:"required"`
	Expenses    []ExpenseItemInput    `json:"expenses"`
	Adjustments []AdjustmentItemInput `json:"adjustments"`
	Totals      TotalsInput           `json:"totals" binding:"required"`
}

// Update validates totals, then atomically deletes all existing items and
// recreates the supplied set. Full replacement, not a diff.
func (s *Service) Update(ctx context.Context, orgID, userID, id uuid.UUID, req UpdateStatementRequest) (*StatementResponse, error) {
	stmt, err := s.statements.FindByIDForOrg(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	incomes := toDomainIncomes(req.Incomes)
	expenses := toDomainExpenses(req.Expenses)
	adjustments := toDomainAdjustments(req.Adjustments)

	claimed := req.Totals.toDomain()
	computed := statement.Aggregate(incomes, expenses, adjustments)
	if err := computed.ValidateAgainst(claimed); err != nil {
		s.recordMismatch(ctx, orgID, computed, claimed)
		return nil, err
	}

	stmt.ReplaceItems(incomes, expenses, adjustments)
	stmt.Notes = req.Notes
	stmt.SetUpdatedBy(userID)

	if err := s.statements.Update(ctx, stmt); err != nil {
		return nil, err
	}
	return toStatementResponse(stmt, s.propertyName(ctx, orgID, stmt.PropertyID)), nil
}

// Delete soft-deletes a statement. Deleting an already deleted statement is
// rejected so a stale client learns its view is out of date.
func (s *Service) Delete(ctx context.Context, orgID, userID, id uuid.UUID) error {
	stmt, err := s.statements.FindAnyByIDForOrg(ctx, orgID, id)
	if err != nil {
		return err
	}

	if err := stmt.Tombstone(time.Now()); err != nil {
		return err
	}
	stmt.SetUpdatedBy(userID)

	return s.statements.Tombstone(ctx, stmt)
}

// ===================== Single-item operations =====================

// EditItemFieldRequest changes one field of one line item
type EditItemFieldRequest struct {
	Section string `json:"section" binding:"required"`
	Index   int    `json:"index" binding:"min=0"`
	Field   string `json:"field" binding:"required"`
	Value   any    `json:"value"`
}

// EditItemField applies a typed single-field edit. The edit is validated
// against the field type table before anything runs; the item write, the
// sibling re-read, and the summary recomputation share one transaction.
func (s *Service) EditItemField(ctx context.Context, orgID, userID, id uuid.UUID, req EditItemFieldRequest) (*StatementResponse, error) {
	edit, err := statement.ParseItemEdit(req.Section, req.Field, req.Value)
	if err != nil {
		return nil, err
	}

	stmt, err := s.statements.Mutate(ctx, orgID, id, func(st *statement.OwnerStatement) error {
		if err := st.EditItem(edit, req.Index); err != nil {
			return err
		}
		st.SetUpdatedBy(userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toStatementResponse(stmt, s.propertyName(ctx, orgID, stmt.PropertyID)), nil
}

// AddItemRequest appends one row to a statement section. Exactly one of the
// three payloads must be set, and it must match the section.
type AddItemRequest struct {
	Section    string               `json:"section" binding:"required"`
	Income     *IncomeItemInput     `json:"income,omitempty"`
	Expense    *ExpenseItemInput    `json:"expense,omitempty"`
	Adjustment *AdjustmentItemInput `json:"adjustment,omitempty"`
}

// AddItem appends a single row and recomputes totals in the same transaction
func (s *Service) AddItem(ctx context.Context, orgID, userID, id uuid.UUID, req AddItemRequest) (*StatementResponse, error) {
	section, err := statement.ParseSection(req.Section)
	if err != nil {
		return nil, err
	}

	var apply func(*statement.OwnerStatement)
	switch section {
	case statement.SectionIncomes:
		if req.Income == nil {
			return nil, shared.NewValidationError("section %q requires an income payload", section)
		}
		item := toDomainIncomes([]IncomeItemInput{*req.Income})[0]
		apply = func(st *statement.OwnerStatement) { st.AddIncome(item) }
	case statement.SectionExpenses:
		if req.Expense == nil {
			return nil, shared.NewValidationError("section %q requires an expense payload", section)
		}
		item := toDomainExpenses([]ExpenseItemInput{*req.Expense})[0]
		apply = func(st *statement.OwnerStatement) { st.AddExpense(item) }
	case statement.SectionAdjustments:
		if req.Adjustment == nil {
			return nil, shared.NewValidationError("section %q requires an adjustment payload", section)
		}
		item := toDomainAdjustments([]AdjustmentItemInput{*req.Adjustment})[0]
		apply = func(st *statement.OwnerStatement) { st.AddAdjustment(item) }
	}

	stmt, err := s.statements.Mutate(ctx, orgID, id, func(st *statement.OwnerStatement) error {
		apply(st)
		st.SetUpdatedBy(userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toStatementResponse(stmt, s.propertyName(ctx, orgID, stmt.PropertyID)), nil
}

// RemoveItemRequest deletes one row from a statement section
type RemoveItemRequest struct {
	Section string `json:"section" binding:"required"`
	Index   int    `json:"index" binding:"min=0"`
}

// RemoveItem deletes a single row and recomputes totals in the same
// transaction
func (s *Service) RemoveItem(ctx context.Context, orgID, userID, id uuid.UUID, req RemoveItemRequest) (*StatementResponse, error) {
	section, err := statement.ParseSection(req.Section)
	if err != nil {
		return nil, err
	}

	stmt, err := s.statements.Mutate(ctx, orgID, id, func(st *statement.OwnerStatement) error {
		if err := st.RemoveItem(section, req.Index); err != nil {
			return err
		}
		st.SetUpdatedBy(userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toStatementResponse(stmt, s.propertyName(ctx, orgID, stmt.PropertyID)), nil
}
