package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/shared"
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

// ProjectAggregateModel carries the columns shared by project-scoped aggregate roots
type ProjectAggregateModel struct {
	BaseModel
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index"`
	Version   int       `gorm:"not null;default:1"`
}

// FromDomainProjectAggregateRoot populates the model from a domain ProjectAggregateRoot
func (m *ProjectAggregateModel) FromDomainProjectAggregateRoot(a shared.ProjectAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.ProjectID = a.ProjectID
	m.Version = a.Version
}

// ToDomainProjectAggregateRoot builds the domain root; domain events are never persisted
func (m *ProjectAggregateModel) ToDomainProjectAggregateRoot() shared.ProjectAggregateRoot {
	return shared.ProjectAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.ToDomain(),
			Version:    m.Version,
		},
		ProjectID: m.ProjectID,
	}
}
