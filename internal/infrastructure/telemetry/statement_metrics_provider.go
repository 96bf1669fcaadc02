// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStatementVolumeProvider implements StatementVolumeProvider using GORM.
// It queries the owner_statements table directly for aggregated counts.
type GormStatementVolumeProvider struct {
	db *gorm.DB
}

// NewGormStatementVolumeProvider creates a new GormStatementVolumeProvider.
func NewGormStatementVolumeProvider(db *gorm.DB) *GormStatementVolumeProvider {
	return &GormStatementVolumeProvider{db: db}
}

// LiveStatementCount returns the number of non-deleted statements for an org.
func (p *GormStatementVolumeProvider) LiveStatementCount(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("owner_statements").
		Where("org_id = ? AND deleted_at IS NULL", orgID).
		Count(&count).Error

	return count, err
}

// GormOrgProvider implements OrgProvider using GORM.
// Organizations live in the dashboard application, not in this service, so
// the active set is derived from orgs that own at least one live statement.
type GormOrgProvider struct {
	db *gorm.DB
}

// NewGormOrgProvider creates a new GormOrgProvider.
func NewGormOrgProvider(db *gorm.DB) *GormOrgProvider {
	return &GormOrgProvider{db: db}
}

// ActiveOrgIDs returns the org IDs with at least one live statement.
func (p *GormOrgProvider) ActiveOrgIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("owner_statements").
		Where("deleted_at IS NULL").
		Distinct().
		Pluck("org_id", &ids).Error

	return ids, err
}
