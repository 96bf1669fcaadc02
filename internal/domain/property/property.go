// Package property holds the canonical property directory that statement
// imports resolve free-text names against.
package property

import (
	"strings"

	"github.com/google/uuid"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
)

// Property is a canonical property record. The id is the stable identity;
// the display name may be edited over time (listings get renamed, suffixed
// with "(OLD)"/"(NEW)" during transitions, and cleaned up later).
type Property struct {
	shared.OrgAggregateRoot
	Name    string
	Address string
	Active  bool
}

// NewProperty creates a property in the given organization
func NewProperty(orgID uuid.UUID, name, address string) (*Property, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("property name cannot be empty")
	}
	return &Property{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(orgID),
		Name:             name,
		Address:          address,
		Active:           true,
	}, nil
}

// Rename changes the display name. The id, and therefore every statement
// referencing it, is unaffected.
func (p *Property) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("property name cannot be empty")
	}
	p.Name = name
	p.Touch()
	return nil
}

// Deactivate removes the property from active listings without destroying
// the historical statements that reference it
func (p *Property) Deactivate() error {
	if !p.Active {
		return shared.NewStateError("property %q is already inactive", p.Name)
	}
	p.Active = false
	p.Touch()
	return nil
}

// Activate returns the property to active listings
func (p *Property) Activate() {
	p.Active = true
	p.Touch()
}
