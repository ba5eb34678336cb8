// Package entity provides core domain entities.
package entity

import (
	"context"
	"time"

	"condo/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// BaseEntity contains common fields for mutable records (units, renters, charges).
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBaseEntity creates a new BaseEntity with generated ID and timestamps.
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp.
// Version is advanced by the repository on a successful optimistic update.
func (b *BaseEntity) Touch() {
	b.UpdatedAt = time.Now().UTC()
}

// SetVersion updates the version number (used by repository after sync).
func (b *BaseEntity) SetVersion(v int) {
	b.Version = v
}

// IsNew reports whether the entity has never been persisted.
func (b *BaseEntity) IsNew() bool {
	return b.Version <= 1 && b.CreatedAt.Equal(b.UpdatedAt)
}

// Record is the base for append-only rows (ledger entries, history intervals).
// Records are never updated after insert, so they carry no version.
type Record struct {
	ID        id.ID     `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewRecord creates a new Record with generated ID.
func NewRecord() Record {
	return Record{
		ID:        id.New(),
		CreatedAt: time.Now().UTC(),
	}
}
