package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "recall-backend/pkg/errors"
)

func TestNew_Defaults(t *testing.T) {
	u, err := New("user123", "alice@example.com", ProviderGoogle)
	require.NoError(t, err)

	assert.Equal(t, "user123", u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, ProviderGoogle, u.AuthProvider)
	assert.True(t, u.NotificationsEnabled)
	assert.Zero(t, u.TotalMemories)
	assert.False(t, u.IsPremium)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("", "alice@example.com", ProviderEmail)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = New("user123", "", ProviderEmail)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestParseAuthProvider(t *testing.T) {
	assert.Equal(t, ProviderGoogle, ParseAuthProvider("google"))
	assert.Equal(t, ProviderApple, ParseAuthProvider("apple"))
	assert.Equal(t, ProviderEmail, ParseAuthProvider("email"))
	assert.Equal(t, ProviderEmail, ParseAuthProvider("facebook"), "unknown providers read as email")
	assert.Equal(t, ProviderEmail, ParseAuthProvider(""))
}

func TestUser_DisplayName(t *testing.T) {
	u := User{FullName: "Alice Smith", Email: "alice@example.com"}
	assert.Equal(t, "Alice Smith", u.DisplayName())

	u.FullName = ""
	assert.Equal(t, "alice", u.DisplayName(), "falls back to the email local part")

	u.Email = "not-an-email"
	assert.Equal(t, "User", u.DisplayName())
}

func TestUser_Initials(t *testing.T) {
	assert.Equal(t, "AS", (&User{FullName: "Alice Smith"}).Initials())
	assert.Equal(t, "AW", (&User{FullName: "Alice van der Wal"}).Initials(), "first and last word only")
	assert.Equal(t, "A", (&User{FullName: "Alice"}).Initials())
	assert.Empty(t, (&User{}).Initials())
}
