// Package id provides identifiers of units, accounts, charges and ledger rows.
package id

import (
	"github.com/google/uuid"
)

// ID is a UUID. Values from New are UUIDv7, so rows sort by creation time.
type ID = uuid.UUID

// New generates a time-ordered ID.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts a string to ID.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// ParseOptional parses s, treating the empty string as absent.
func ParseOptional(s string) (*ID, error) {
	if s == "" {
		return nil, nil
	}
	v, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Nil returns the zero ID.
func Nil() ID {
	return uuid.Nil
}

// Matches reports whether the optional reference p points at v.
func Matches(p *ID, v ID) bool {
	return p != nil && *p == v
}

// IsNil reports whether v is the zero ID.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
