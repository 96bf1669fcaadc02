package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is implemented by every identified domain object.
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity carries the identity and lifecycle timestamps entities embed.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity mints a fresh identity with both timestamps set to now.
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

func (e *BaseEntity) GetID() uuid.UUID { return e.ID }

func (e *BaseEntity) GetCreatedAt() time.Time { return e.CreatedAt }

func (e *BaseEntity) GetUpdatedAt() time.Time { return e.UpdatedAt }

// Touch bumps the update timestamp.
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}

// Rehydrate restores persisted identity and timestamps onto the entity.
func (e *BaseEntity) Rehydrate(id uuid.UUID, createdAt, updatedAt time.Time) {
	e.ID = id
	e.CreatedAt = createdAt
	e.UpdatedAt = updatedAt
}

var _ Entity = (*BaseEntity)(nil)
