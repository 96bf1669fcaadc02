package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/property"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/persistence/models"
)

// GormPropertyRepository implements property.Repository using GORM
type GormPropertyRepository struct {
	db *gorm.DB
}

// NewGormPropertyRepository creates a new GormPropertyRepository
func NewGormPropertyRepository(db *gorm.DB) *GormPropertyRepository {
	return &GormPropertyRepository{db: db}
}

// FindByIDForOrg finds a property by ID within an organization
func (r *GormPropertyRepository) FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*property.Property, error) {
	var model models.PropertyModel
	if err := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDsForOrg finds the subset of the given ids that exist in the
// organization. Callers compare lengths to detect unknown ids.
func (r *GormPropertyRepository) FindByIDsForOrg(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]*property.Property, error) {
	if len(ids) == 0 {
		return []*property.Property{}, nil
	}

	var propertyModels []models.PropertyModel
	if err := r.db.WithContext(ctx).
		Where("org_id = ? AND id IN ?", orgID, ids).
		Find(&propertyModels).Error; err != nil {
		return nil, err
	}

	properties := make([]*property.Property, len(propertyModels))
	for i := range propertyModels {
		properties[i] = propertyModels[i].ToDomain()
	}
	return properties, nil
}

// FindAllForOrg finds all properties for an organization
func (r *GormPropertyRepository) FindAllForOrg(ctx context.Context, orgID uuid.UUID, activeOnly bool, filter shared.Filter) ([]*property.Property, error) {
	var propertyModels []models.PropertyModel
	query := r.db.WithContext(ctx).Model(&models.PropertyModel{}).Where("org_id = ?", orgID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	query = r.applyFilter(query, filter)

	if err := query.Find(&propertyModels).Error; err != nil {
		return nil, err
	}

	properties := make([]*property.Property, len(propertyModels))
	for i := range propertyModels {
		properties[i] = propertyModels[i].ToDomain()
	}
	return properties, nil
}

// CountForOrg counts properties for an organization
func (r *GormPropertyRepository) CountForOrg(ctx context.Context, orgID uuid.UUID, activeOnly bool) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.PropertyModel{}).Where("org_id = ?", orgID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsByNameForOrg checks whether an active property with the exact name
// exists in the organization
func (r *GormPropertyRepository) ExistsByNameForOrg(ctx context.Context, orgID uuid.UUID, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PropertyModel{}).
		Where("org_id = ? AND name = ? AND active = ?", orgID, name, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a property
func (r *GormPropertyRepository) Save(ctx context.Context, p *property.Property) error {
	model := models.PropertyModelFromDomain(p)
	return r.db.WithContext(ctx).Save(model).Error
}

// applyFilter applies filter options to the query. Sort inputs come
// straight from the request, so they pass through the whitelist before
// being interpolated into ORDER BY.
func (r *GormPropertyRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR address LIKE ?", searchPattern, searchPattern)
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, PropertySortFields, "name")
	orderDir := ValidateSortOrder(filter.OrderDir)
	return query.Order(orderBy + " " + orderDir)
}

// Ensure GormPropertyRepository implements property.Repository
var _ property.Repository = (*GormPropertyRepository)(nil)
