package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// OrgAggregateModel provides common persistence fields for organization-scoped
// aggregate roots. There is no version column: writes are
// last-committed-transaction-wins, and every mutation recomputes derived
// fields inside its own transaction.
type OrgAggregateModel struct {
	BaseModel
	OrgID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid"`
}

// FromDomainOrgAggregateRoot populates OrgAggregateModel from domain OrgAggregateRoot
func (m *OrgAggregateModel) FromDomainOrgAggregateRoot(a shared.OrgAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.OrgID = a.OrgID
	m.CreatedBy = a.CreatedBy
	m.UpdatedBy = a.UpdatedBy
}

// PopulateOrgAggregateRoot populates a domain OrgAggregateRoot from persistence model
func (m *OrgAggregateModel) PopulateOrgAggregateRoot(a *shared.OrgAggregateRoot) {
	a.Rehydrate(m.ID, m.CreatedAt, m.UpdatedAt)
	a.OrgID = m.OrgID
	a.CreatedBy = m.CreatedBy
	a.UpdatedBy = m.UpdatedBy
}
