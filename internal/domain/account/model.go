// Package account holds login identities of admins, managers and residents.
package account

import (
	"context"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/core/types"
)

// Role is the access level of an account.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleMiddleAdmin Role = "middle_admin"
	RoleResident    Role = "resident"
)

// IsStaff reports whether the role administers buildings.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleMiddleAdmin
}

var mobileRE = regexp.MustCompile(`^09\d{9}$`)

// User represents a login identity; residents log in with their mobile.
type User struct {
	ID           id.ID     `db:"id" json:"id"`
	Mobile       string    `db:"mobile" json:"mobile"`
	FullName     string    `db:"full_name" json:"fullName"`
	NationalCode string    `db:"national_code" json:"nationalCode,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
	Version      int       `db:"version" json:"version"`
}

// NewResident creates an active resident account.
func NewResident(mobile, fullName string) *User {
	now := time.Now().UTC()
	return &User{
		ID:        id.New(),
		Mobile:    NormalizeMobile(mobile),
		FullName:  strings.TrimSpace(fullName),
		Role:      RoleResident,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// SetVersion updates the version number (used by repository after sync).
func (u *User) SetVersion(v int) {
	u.Version = v
}

// Validate validates user data.
func (u *User) Validate(ctx context.Context) error {
	if !IsValidMobile(u.Mobile) {
		return apperror.NewFieldValidation("mobile", "mobile must look like 09xxxxxxxxx")
	}
	return nil
}

// SetPassword replaces the password hash. An empty password keeps the old one.
func (u *User) SetPassword(password string) error {
	if password == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares a plain password with the stored hash.
func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// NormalizeMobile maps Persian digits to ASCII and country prefixes to 0.
func NormalizeMobile(s string) string {
	s = types.NormalizeDigits(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)
	switch {
	case strings.HasPrefix(s, "+98"):
		s = "0" + s[3:]
	case strings.HasPrefix(s, "0098"):
		s = "0" + s[4:]
	case strings.HasPrefix(s, "98") && len(s) == 12:
		s = "0" + s[2:]
	case strings.HasPrefix(s, "9") && len(s) == 10:
		s = "0" + s
	}
	return s
}

// IsValidMobile reports whether s is a normalized Iranian mobile number.
func IsValidMobile(s string) bool {
	return mobileRE.MatchString(NormalizeMobile(s))
}

// Repository defines account storage operations.
type Repository interface {
	Create(ctx context.Context, user *User) error

	GetByID(ctx context.Context, userID id.ID) (*User, error)

	// GetByMobile returns NotFound when no account uses the mobile.
	GetByMobile(ctx context.Context, mobile string) (*User, error)

	// Update writes the account with optimistic locking on Version.
	Update(ctx context.Context, user *User) error
}
