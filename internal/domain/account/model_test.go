package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMobile(t *testing.T) {
	cases := map[string]string{
		"09121234567":    "09121234567",
		"+989121234567":  "09121234567",
		"00989121234567": "09121234567",
		"989121234567":   "09121234567",
		"9121234567":     "09121234567",
		"۰۹۱۲۱۲۳۴۵۶۷":    "09121234567",
		"0912 123-4567":  "09121234567",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeMobile(in), in)
	}
}

func TestIsValidMobile(t *testing.T) {
	assert.True(t, IsValidMobile("09121234567"))
	assert.True(t, IsValidMobile("+989121234567"))
	assert.False(t, IsValidMobile("0912123"))
	assert.False(t, IsValidMobile("02121234567"))
}

func TestUserPassword(t *testing.T) {
	u := NewResident("09121234567", " Ali ")
	assert.Equal(t, "Ali", u.FullName)
	assert.False(t, u.CheckPassword("secret"))

	require.NoError(t, u.SetPassword("secret"))
	assert.True(t, u.CheckPassword("secret"))
	assert.False(t, u.CheckPassword("other"))

	hash := u.PasswordHash
	require.NoError(t, u.SetPassword(""))
	assert.Equal(t, hash, u.PasswordHash)
}

func TestUserValidate(t *testing.T) {
	u := NewResident("123", "x")
	assert.Error(t, u.Validate(context.Background()))

	u.Mobile = "09121234567"
	assert.NoError(t, u.Validate(context.Background()))
}

func TestRoleIsStaff(t *testing.T) {
	assert.True(t, RoleAdmin.IsStaff())
	assert.True(t, RoleMiddleAdmin.IsStaff())
	assert.False(t, RoleResident.IsStaff())
}
