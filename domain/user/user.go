package user

import (
	"strings"
	"time"

	pkgerrors "recall-backend/pkg/errors"
)

// AuthProvider identifies which identity provider signed the user up.
type AuthProvider string

const (
	ProviderEmail  AuthProvider = "email"
	ProviderGoogle AuthProvider = "google"
	ProviderApple  AuthProvider = "apple"
)

// ParseAuthProvider converts a wire value into an AuthProvider, defaulting
// to email for unknown values the way older documents are read.
func ParseAuthProvider(s string) AuthProvider {
	switch AuthProvider(s) {
	case ProviderEmail, ProviderGoogle, ProviderApple:
		return AuthProvider(s)
	}
	return ProviderEmail
}

// User is the profile record stored per account. TotalMemories is the
// denormalized record counter the memory gateway increments and decrements.
type User struct {
	ID                   string
	Email                string
	FullName             string
	ProfileImageURL      string
	AuthProvider         AuthProvider
	CreatedAt            time.Time
	UpdatedAt            time.Time
	TotalMemories        int
	NotificationsEnabled bool
	IsPremium            bool
}

// New creates a profile with defaults for a freshly signed-up user.
func New(id, email string, provider AuthProvider) (*User, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("user id cannot be empty")
	}
	if email == "" {
		return nil, pkgerrors.NewValidationError("email cannot be empty")
	}
	now := time.Now()
	return &User{
		ID:                   id,
		Email:                email,
		AuthProvider:         provider,
		CreatedAt:            now,
		UpdatedAt:            now,
		NotificationsEnabled: true,
	}, nil
}

// DisplayName returns the full name, falling back to the email local part.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return "User"
}

// Initials returns up to two uppercase initials derived from the full name.
func (u *User) Initials() string {
	parts := strings.Fields(u.FullName)
	if len(parts) == 0 {
		return ""
	}
	initials := string([]rune(parts[0])[0])
	if len(parts) > 1 {
		initials += string([]rune(parts[len(parts)-1])[0])
	}
	return strings.ToUpper(initials)
}
