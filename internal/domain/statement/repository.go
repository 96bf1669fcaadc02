package statement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared/valueobject"
)

// Summary is the list-view projection of a statement: summary fields
// without line items, with the property name joined in for display.
type Summary struct {
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

// SummaryQuery narrows a summary listing. SortBy and SortDir are
// request-supplied and must be whitelist-validated before reaching SQL;
// both empty means newest month first.
type SummaryQuery struct {
	PropertyID *uuid.UUID
	Month      *time.Time
	SortBy     string
	SortDir    string
}

// Repository defines the persistence operations for owner statements.
// Implementations must keep every mutation that changes items and summary
// fields inside a single transaction; the per-transaction wall-clock budget
// of the platform is why batch writes arrive pre-chunked rather than as one
// call.
type Repository interface {
	// FindByIDForOrg retrieves a live statement with all items.
	// Returns NOT_FOUND for missing or tombstoned statements.
	FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*OwnerStatement, error)

	// FindAnyByIDForOrg retrieves a statement regardless of tombstone state,
	// so delete can distinguish "missing" from "already deleted"
	FindAnyByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*OwnerStatement, error)

	// FindSummariesForOrg lists live statement summaries, optionally
	// narrowed by property and month
	FindSummariesForOrg(ctx context.Context, orgID uuid.UUID, q SummaryQuery) ([]Summary, error)

	// FindLiveByMonthForOrg retrieves all live statements for a month with
	// their items
	FindLiveByMonthForOrg(ctx context.Context, orgID uuid.UUID, month time.Time) ([]*OwnerStatement, error)

	// Create persists a new statement and its items in one transaction
	Create(ctx context.Context, s *OwnerStatement) error

	// CreateBatch persists a chunk of statements in one transaction. Callers
	// size chunks to stay within the transaction time budget; a failed chunk
	// rolls back only itself.
	CreateBatch(ctx context.Context, statements []*OwnerStatement) error

	// Update rewrites a statement: summary fields and notes updated, all
	// item rows deleted and recreated from the aggregate, one transaction
	Update(ctx context.Context, s *OwnerStatement) error

	// Mutate loads the live statement inside a transaction, applies fn to
	// it, and persists the resulting items and summary fields before
	// committing. This is the single-item edit path: the re-read, the
	// mutation, and the summary write share one transaction.
	Mutate(ctx context.Context, orgID, id uuid.UUID, fn func(*OwnerStatement) error) (*OwnerStatement, error)

	// MutateMany is Mutate over several statements in one transaction.
	// Callers chunk the id list; each call is its own commit.
	MutateMany(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID, fn func(*OwnerStatement) error) error

	// Tombstone persists a soft delete applied on the aggregate
	Tombstone(ctx context.Context, s *OwnerStatement) error

	// TombstoneAllForMonth soft-deletes every live statement of the month
	// and returns how many were affected. Used by replace-mode batch import.
	TombstoneAllForMonth(ctx context.Context, orgID uuid.UUID, month time.Time, deletedBy *uuid.UUID) (int64, error)

	// FindVendorCollisionsForMonth returns the property names of live
	// statements in the month that already carry an expense with the given
	// vendor and description. A non-empty result blocks invoice application.
	FindVendorCollisionsForMonth(ctx context.Context, orgID uuid.UUID, month time.Time, vendor, description string) ([]string, error)
}
