package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/property"
)

// PropertyModel is the persistence model for the Property aggregate root.
// Name uniqueness among active properties is enforced at the service level,
// not by a database constraint: deactivated properties keep their names so
// historical statements stay resolvable.
type PropertyModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key"`
	OrgID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_properties_org_name,priority:1"`
	Name      string     `gorm:"type:varchar(200);not null;index:idx_properties_org_name,priority:2"`
	Address   string     `gorm:"type:varchar(500)"`
	Active    bool       `gorm:"not null;default:true;index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time  `gorm:"not null"`
	UpdatedAt time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PropertyModel) TableName() string {
	return "properties"
}

// ToDomain converts the persistence model to a domain Property entity.
func (m *PropertyModel) ToDomain() *property.Property {
	p := &property.Property{
		Name:    m.Name,
		Address: m.Address,
		Active:  m.Active,
	}
	p.ID = m.ID
	p.OrgID = m.OrgID
	p.CreatedBy = m.CreatedBy
	p.UpdatedBy = m.UpdatedBy
	p.CreatedAt = m.CreatedAt
	p.UpdatedAt = m.UpdatedAt
	return p
}

// FromDomain populates the persistence model from a domain Property entity.
func (m *PropertyModel) FromDomain(p *property.Property) {
	m.ID = p.ID
	m.OrgID = p.OrgID
	m.CreatedBy = p.CreatedBy
	m.UpdatedBy = p.UpdatedBy
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
	m.Name = p.Name
	m.Address = p.Address
	m.Active = p.Active
}

// PropertyModelFromDomain creates a new persistence model from a domain Property.
func PropertyModelFromDomain(p *property.Property) *PropertyModel {
	m := &PropertyModel{}
	m.FromDomain(p)
	return m
}
