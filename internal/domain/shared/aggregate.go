package shared

import (
	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot provides common fields for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version      int
	domainEvents []DomainEvent
}

// GetVersion returns the aggregate version
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}

// ProjectAggregateRoot scopes an aggregate to the project that owns it.
// The project is the caller's ownership boundary: lookups outside it behave as not found.
type ProjectAggregateRoot struct {
	BaseAggregateRoot
	ProjectID uuid.UUID
}

// NewProjectAggregateRoot creates a new project-scoped aggregate root
func NewProjectAggregateRoot(projectID uuid.UUID) ProjectAggregateRoot {
	return ProjectAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		ProjectID:         projectID,
	}
}

// NewProjectAggregateRootWithID creates a project-scoped aggregate root with a preassigned ID
func NewProjectAggregateRootWithID(projectID, id uuid.UUID) ProjectAggregateRoot {
	return ProjectAggregateRoot{
		BaseAggregateRoot: BaseAggregateRoot{
			BaseEntity: NewBaseEntityWithID(id),
			Version:    1,
		},
		ProjectID: projectID,
	}
}

// BelongsTo reports whether the aggregate is owned by the given project
func (p *ProjectAggregateRoot) BelongsTo(projectID uuid.UUID) bool {
	return p.ProjectID == projectID
}
