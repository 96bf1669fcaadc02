package property

import (
	"context"

	"github.com/google/uuid"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
)

// Repository defines the persistence operations for properties
type Repository interface {
	// FindByIDForOrg retrieves a property scoped to an organization
	FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*Property, error)

	// FindByIDsForOrg retrieves the subset of the given ids that exist in the
	// organization. Callers compare lengths to detect foreign or unknown ids.
	FindByIDsForOrg(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]*Property, error)

	// FindAllForOrg lists properties for an organization. activeOnly limits
	// the result to active listings.
	FindAllForOrg(ctx context.Context, orgID uuid.UUID, activeOnly bool, filter shared.Filter) ([]*Property, error)

	// CountForOrg counts properties for an organization
	CountForOrg(ctx context.Context, orgID uuid.UUID, activeOnly bool) (int64, error)

	// ExistsByNameForOrg reports whether an active property with the exact
	// name already exists in the organization
	ExistsByNameForOrg(ctx context.Context, orgID uuid.UUID, name string) (bool, error)

	// Save inserts or updates a property
	Save(ctx context.Context, p *Property) error
}
