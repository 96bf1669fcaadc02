// Package property contains the application service for the property
// directory that owner statements are matched against.
package property

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/property"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
)

// Service provides property directory operations
type Service struct {
	properties property.Repository
}

// NewService creates a new property Service
func NewService(properties property.Repository) *Service {
	return &Service{properties: properties}
}

// PropertyResponse is a property in API responses
type PropertyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toPropertyResponse(p *property.Property) PropertyResponse {
	return PropertyResponse{
		ID:        p.ID,
		Name:      p.Name,
		Address:   p.Address,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ListQuery narrows the property listing
type ListQuery struct {
	ActiveOnly bool   `form:"active_only"`
	Search     string `form:"search"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	SortBy     string `form:"sort_by"`
	SortDir    string `form:"sort_dir"`
}

// List returns a page of the organization's properties
func (s *Service) List(ctx context.Context, orgID uuid.UUID, q ListQuery) (*shared.Paginated[PropertyResponse], error) {
	filter := shared.DefaultFilter()
	filter.OrderBy = "name"
	filter.OrderDir = "asc"
	filter.Search = q.Search
	if q.SortBy != "" {
		filter.OrderBy = q.SortBy
	}
	if q.SortDir != "" {
		filter.OrderDir = q.SortDir
	}
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = q.PageSize
	}

	props, err := s.properties.FindAllForOrg(ctx, orgID, q.ActiveOnly, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.properties.CountForOrg(ctx, orgID, q.ActiveOnly)
	if err != nil {
		return nil, err
	}

	items := make([]PropertyResponse, 0, len(props))
	for _, p := range props {
		items = append(items, toPropertyResponse(p))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.Limit())
	return &page, nil
}

// Get returns one property
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*PropertyResponse, error) {
	p, err := s.properties.FindByIDForOrg(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	resp := toPropertyResponse(p)
	return &resp, nil
}

// CreatePropertyRequest creates a property
type CreatePropertyRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
}

// Create adds a property to the organization's directory. Names must be
// unique among active properties so statement matching stays unambiguous.
func (s *Service) Create(ctx context.Context, orgID, userID uuid.UUID, req CreatePropertyRequest) (*PropertyResponse, error) {
	exists, err := s.properties.ExistsByNameForOrg(ctx, orgID, req.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError(shared.ErrAlreadyExists.Code, "a property with this name already exists")
	}

	p, err := property.NewProperty(orgID, req.Name, req.Address)
	if err != nil {
		return nil, err
	}
	p.CreatedBy = &userID

	if err := s.properties.Save(ctx, p); err != nil {
		return nil, err
	}
	resp := toPropertyResponse(p)
	return &resp, nil
}

// UpdatePropertyRequest updates a property. Nil fields are left unchanged.
type UpdatePropertyRequest struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Active  *bool   `json:"active"`
}

// Deactivate retires a property from the directory. Statements already
// written against it are untouched.
func (s *Service) Deactivate(ctx context.Context, orgID, userID, id uuid.UUID) error {
	p, err := s.properties.FindByIDForOrg(ctx, orgID, id)
	if err != nil {
		return err
	}
	if err := p.Deactivate(); err != nil {
		return err
	}
	p.SetUpdatedBy(userID)
	return s.properties.Save(ctx, p)
}

// Update applies a partial update to a property
func (s *Service) Update(ctx context.Context, orgID, userID, id uuid.UUID, req UpdatePropertyRequest) (*PropertyResponse, error) {
	p, err := s.properties.FindByIDForOrg(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != p.Name {
		exists, err := s.properties.ExistsByNameForOrg(ctx, orgID, *req.Name)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.NewDomainError(shared.ErrAlreadyExists.Code, "a property with this name already exists")
		}
		if err := p.Rename(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
	if req.Active != nil && *req.Active != p.Active {
		if *req.Active {
			p.Activate()
		} else if err := p.Deactivate(); err != nil {
			return nil, err
		}
	}
	p.SetUpdatedBy(userID)

	if err := s.properties.Save(ctx, p); err != nil {
		return nil, err
	}
	resp := toPropertyResponse(p)
	return &resp, nil
}
