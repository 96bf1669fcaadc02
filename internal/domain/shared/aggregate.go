package shared

import (
	"github.com/google/uuid"
)

// OrgAggregateRoot provides common fields for organization-scoped aggregates.
//
// Writes are last-committed-transaction-wins: there is no version counter, so
// every mutation must recompute derived fields inside its own transaction
// rather than trusting previously read state.
type OrgAggregateRoot struct {
	BaseEntity
	OrgID     uuid.UUID
	CreatedBy *uuid.UUID
	UpdatedBy *uuid.UUID
}

// NewOrgAggregateRoot creates a new organization-scoped aggregate root
func NewOrgAggregateRoot(orgID uuid.UUID) OrgAggregateRoot {
	return OrgAggregateRoot{
		BaseEntity: NewBaseEntity(),
		OrgID:      orgID,
	}
}

// NewOrgAggregateRootWithCreator creates a new organization-scoped aggregate
// root recording the creating user for audit
func NewOrgAggregateRootWithCreator(orgID, createdBy uuid.UUID) OrgAggregateRoot {
	return OrgAggregateRoot{
		BaseEntity: NewBaseEntity(),
		OrgID:      orgID,
		CreatedBy:  &createdBy,
	}
}

// SetUpdatedBy records the user performing the current mutation and bumps
// the update timestamp
func (a *OrgAggregateRoot) SetUpdatedBy(userID uuid.UUID) {
	a.UpdatedBy = &userID
	a.Touch()
}

// BelongsTo reports whether the aggregate is owned by the given organization
func (a *OrgAggregateRoot) BelongsTo(orgID uuid.UUID) bool {
	return a.OrgID == orgID
}
