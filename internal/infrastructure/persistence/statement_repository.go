package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared/valueobject"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/statement"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/persistence/models"
)

// itemBatchSize bounds a single INSERT when writing item rows
const itemBatchSize = 100

// GormStatementRepository implements statement.Repository using GORM.
// Item rows are always rewritten wholesale inside the transaction that
// updates the summary columns, so totals and rows can never diverge.
type GormStatementRepository struct {
	db *gorm.DB
}

// NewGormStatementRepository creates a new GormStatementRepository
func NewGormStatementRepository(db *gorm.DB) *GormStatementRepository {
	return &GormStatementRepository{db: db}
}

// preloadItems loads the three item collections in stored position order
func preloadItems(db *gorm.DB) *gorm.DB {
	byPosition := func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}
	return db.
		Preload("Incomes", byPosition).
		Preload("Expenses", byPosition).
		Preload("Adjustments", byPosition)
}

// FindByIDForOrg finds a live statement with all items
func (r *GormStatementRepository) FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*statement.OwnerStatement, error) {
	var model models.OwnerStatementModel
	if err := preloadItems(r.db.WithContext(ctx)).
		Where("org_id = ? AND id = ? AND deleted_at IS NULL", orgID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAnyByIDForOrg finds a statement regardless of tombstone state
func (r *GormStatementRepository) FindAnyByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*statement.OwnerStatement, error) {
	var model models.OwnerStatementModel
	if err := preloadItems(r.db.WithContext(ctx)).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// summaryRow is the scan target for the list projection
type summaryRow struct {
	ID               uuid.UUID
	PropertyID       uuid.UUID
	PropertyName     string
	StatementMonth   time.Time
	Notes            string
	TotalIncome      valueobject.Money
	TotalExpenses    valueobject.Money
	TotalAdjustments valueobject.Money
	GrandTotal       valueobject.Money
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FindSummariesForOrg lists live statement summaries with the property name
// joined in, newest month first
func (r *GormStatementRepository) FindSummariesForOrg(ctx context.Context, orgID uuid.UUID, q statement.SummaryQuery) ([]statement.Summary, error) {
	query := r.db.WithContext(ctx).
		Table("owner_statements").
		Select(`owner_statements.id, owner_statements.property_id, properties.name AS property_name,
			owner_statements.statement_month, owner_statements.notes,
			owner_statements.total_income, owner_statements.total_expenses,
			owner_statements.total_adjustments, owner_statements.grand_total,
			owner_statements.created_at, owner_statements.updated_at`).
		Joins("JOIN properties ON properties.id = owner_statements.property_id").
		Where("owner_statements.org_id = ? AND owner_statements.deleted_at IS NULL", orgID)

	if q.PropertyID != nil {
		query = query.Where("owner_statements.property_id = ?", *q.PropertyID)
	}
	if q.Month != nil {
		query = query.Where("owner_statements.statement_month = ?", statement.MonthOf(*q.Month))
	}

	orderBy := ValidateSortField(q.SortBy, StatementSortFields, "statement_month")
	orderDir := ValidateSortOrder(q.SortDir)
	if q.SortBy == "" && q.SortDir == "" {
		// Newest month first unless the caller asks for something else.
		orderDir = "DESC"
	}

	var rows []summaryRow
	if err := query.
		Order("owner_statements." + orderBy + " " + orderDir + ", properties.name ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	summaries := make([]statement.Summary, len(rows))
	for i, row := range rows {
		summaries[i] = statement.Summary{
			ID:               row.ID,
			PropertyID:       row.PropertyID,
			PropertyName:     row.PropertyName,
			StatementMonth:   statement.MonthOf(row.StatementMonth),
			Notes:            row.Notes,
			TotalIncome:      row.TotalIncome,
			TotalExpenses:    row.TotalExpenses,
			TotalAdjustments: row.TotalAdjustments,
			GrandTotal:       row.GrandTotal,
			CreatedAt:        row.CreatedAt,
			UpdatedAt:        row.UpdatedAt,
		}
	}
	return summaries, nil
}

// FindLiveByMonthForOrg finds all live statements for a month with items
func (r *GormStatementRepository) FindLiveByMonthForOrg(ctx context.Context, orgID uuid.UUID, month time.Time) ([]*statement.OwnerStatement, error) {
	var statementModels []models.OwnerStatementModel
	if err := preloadItems(r.db.WithContext(ctx)).
		Where("org_id = ? AND statement_month = ? AND deleted_at IS NULL", orgID, statement.MonthOf(month)).
		Order("created_at ASC").
		Find(&statementModels).Error; err != nil {
		return nil, err
	}

	statements := make([]*statement.OwnerStatement, len(statementModels))
	for i := range statementModels {
		statements[i] = statementModels[i].ToDomain()
	}
	return statements, nil
}

// Create persists a new statement and its items in one transaction
func (r *GormStatementRepository) Create(ctx context.Context, s *statement.OwnerStatement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.OwnerStatementModelFromDomain(s)
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		return insertItemRows(tx, s)
	})
}

// CreateBatch persists a chunk of statements and all their items in one
// transaction. A failure rolls back only this chunk.
func (r *GormStatementRepository) CreateBatch(ctx context.Context, statements []*statement.OwnerStatement) error {
	if len(statements) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		statementModels := make([]*models.OwnerStatementModel, len(statements))
		for i, s := range statements {
			statementModels[i] = models.OwnerStatementModelFromDomain(s)
		}
		if err := tx.Omit(clause.Associations).CreateInBatches(statementModels, itemBatchSize).Error; err != nil {
			return err
		}
		for _, s := range statements {
			if err := insertItemRows(tx, s); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update rewrites a statement: summary columns updated, all item rows
// deleted and recreated from the aggregate, one transaction
func (r *GormStatementRepository) Update(ctx context.Context, s *statement.OwnerStatement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return rewriteStatement(tx, s)
	})
}

// Mutate loads the live statement inside a transaction, applies fn, and
// persists the result before committing
func (r *GormStatementRepository) Mutate(ctx context.Context, orgID, id uuid.UUID, fn func(*statement.OwnerStatement) error) (*statement.OwnerStatement, error) {
	var mutated *statement.OwnerStatement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.OwnerStatementModel
		if err := preloadItems(tx).
			Where("org_id = ? AND id = ? AND deleted_at IS NULL", orgID, id).
			First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		s := model.ToDomain()
		if err := fn(s); err != nil {
			return err
		}
		if err := rewriteStatement(tx, s); err != nil {
			return err
		}
		mutated = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mutated, nil
}

// MutateMany applies fn to several live statements in one transaction.
// Any missing id fails the whole call.
func (r *GormStatementRepository) MutateMany(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID, fn func(*statement.OwnerStatement) error) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var statementModels []models.OwnerStatementModel
		if err := preloadItems(tx).
			Where("org_id = ? AND id IN ? AND deleted_at IS NULL", orgID, ids).
			Find(&statementModels).Error; err != nil {
			return err
		}
		if len(statementModels) != len(ids) {
			return shared.ErrNotFound
		}

		for i := range statementModels {
			s := statementModels[i].ToDomain()
			if err := fn(s); err != nil {
				return err
			}
			if err := rewriteStatement(tx, s); err != nil {
				return err
			}
		}
		return nil
	})
}

// Tombstone persists a soft delete applied on the aggregate
func (r *GormStatementRepository) Tombstone(ctx context.Context, s *statement.OwnerStatement) error {
	result := r.db.WithContext(ctx).
		Model(&models.OwnerStatementModel{}).
		Where("org_id = ? AND id = ? AND deleted_at IS NULL", s.OrgID, s.ID).
		Updates(map[string]any{
			"deleted_at": s.DeletedAt,
			"updated_by": s.UpdatedBy,
			"updated_at": s.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// TombstoneAllForMonth soft-deletes every live statement of the month and
// returns how many were affected
func (r *GormStatementRepository) TombstoneAllForMonth(ctx context.Context, orgID uuid.UUID, month time.Time, deletedBy *uuid.UUID) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.OwnerStatementModel{}).
		Where("org_id = ? AND statement_month = ? AND deleted_at IS NULL", orgID, statement.MonthOf(month)).
		Updates(map[string]any{
			"deleted_at": now,
			"updated_by": deletedBy,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// FindVendorCollisionsForMonth returns the property names of live statements
// in the month that already carry an expense with the given vendor and
// description, sorted by name
func (r *GormStatementRepository) FindVendorCollisionsForMonth(ctx context.Context, orgID uuid.UUID, month time.Time, vendor, description string) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).
		Table("statement_expense_items").
		Joins("JOIN owner_statements ON owner_statements.id = statement_expense_items.statement_id").
		Joins("JOIN properties ON properties.id = owner_statements.property_id").
		Where("owner_statements.org_id = ? AND owner_statements.statement_month = ? AND owner_statements.deleted_at IS NULL",
			orgID, statement.MonthOf(month)).
		Where("statement_expense_items.vendor = ? AND statement_expense_items.description = ?", vendor, description).
		Distinct().
		Order("properties.name ASC").
		Pluck("properties.name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// rewriteStatement updates the summary columns and replaces every item row
// of the statement inside the caller's transaction
func rewriteStatement(tx *gorm.DB, s *statement.OwnerStatement) error {
	model := models.OwnerStatementModelFromDomain(s)
	if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
		return err
	}
	if err := deleteItemRows(tx, s.ID); err != nil {
		return err
	}
	return insertItemRows(tx, s)
}

// deleteItemRows removes all item rows belonging to a statement
func deleteItemRows(tx *gorm.DB, statementID uuid.UUID) error {
	if err := tx.Where("statement_id = ?", statementID).Delete(&models.IncomeItemModel{}).Error; err != nil {
		return err
	}
	if err := tx.Where("statement_id = ?", statementID).Delete(&models.ExpenseItemModel{}).Error; err != nil {
		return err
	}
	return tx.Where("statement_id = ?", statementID).Delete(&models.AdjustmentItemModel{}).Error
}

// insertItemRows writes the statement's current items as positioned rows
func insertItemRows(tx *gorm.DB, s *statement.OwnerStatement) error {
	if rows := models.IncomeRowsFromDomain(s.ID, s.Incomes); len(rows) > 0 {
		if err := tx.CreateInBatches(rows, itemBatchSize).Error; err != nil {
			return err
		}
	}
	if rows := models.ExpenseRowsFromDomain(s.ID, s.Expenses); len(rows) > 0 {
		if err := tx.CreateInBatches(rows, itemBatchSize).Error; err != nil {
			return err
		}
	}
	if rows := models.AdjustmentRowsFromDomain(s.ID, s.Adjustments); len(rows) > 0 {
		if err := tx.CreateInBatches(rows, itemBatchSize).Error; err != nil {
			return err
		}
	}
	return nil
}

// Ensure GormStatementRepository implements statement.Repository
var _ statement.Repository = (*GormStatementRepository)(nil)
