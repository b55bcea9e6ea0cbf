// Package ports defines the interfaces the application layer depends on.
// Implementations live in infrastructure.
package ports

import (
	"context"

	"recall-backend/domain/memory"
	"recall-backend/domain/user"
)

// Subscription is the handle returned by MemoryRepository.Subscribe.
// Cancel stops further deliveries and releases listener resources; cancelling
// an already-cancelled handle is a no-op.
type Subscription interface {
	Cancel()
}

// SessionProvider resolves the signed-in owner for the current call, or
// reports that there is none.
type SessionProvider interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// MemoryRepository is the remote data gateway: it translates record-level
// operations into store operations against the per-user document.
type MemoryRepository interface {
	// Create validates the record, assigns identifier and timestamps, appends
	// it to the owner's document and increments the owner's total-memories
	// counter. The owner comes from the caller's authenticated session.
	Create(ctx context.Context, m memory.Memory) (*memory.Memory, error)

	// Fetch returns all records for the owner, newest first. An owner with no
	// records yields an empty slice, not an error.
	Fetch(ctx context.Context, userID string) ([]memory.Memory, error)

	// FetchOne returns the record with the given id from the signed-in
	// owner's document.
	FetchOne(ctx context.Context, id string) (*memory.Memory, error)

	// Update replaces the record at its position within the owner's document
	// and refreshes its update timestamp. The record must already carry an
	// identifier.
	Update(ctx context.Context, m memory.Memory) error

	// Delete removes the record and decrements the total-memories counter.
	Delete(ctx context.Context, id, userID string) error

	// ToggleCompletion flips the completion flag and refreshes the update
	// timestamp.
	ToggleCompletion(ctx context.Context, id string) error

	// Search matches query case-insensitively against title, description,
	// tags and the related annotations, newest first.
	Search(ctx context.Context, userID, query string) ([]memory.Memory, error)

	// Filter returns records matching all supplied predicates, newest first.
	Filter(ctx context.Context, userID string, priority *memory.Priority, completed *bool) ([]memory.Memory, error)

	// Subscribe delivers the full current sorted record set on every change
	// to the owner's document, including changes made by this process. On a
	// read error the callback receives an empty slice.
	Subscribe(ctx context.Context, userID string, onChange func([]memory.Memory)) (Subscription, error)

	// MigrateLegacyIfPresent moves records from the deprecated
	// one-item-per-record layout into the per-user document, then deletes the
	// legacy items best-effort. A no-op when no legacy data exists.
	MigrateLegacyIfPresent(ctx context.Context, userID string) error
}

// UserRepository stores user profiles, including the denormalized
// total-memories counter the memory gateway maintains.
type UserRepository interface {
	Get(ctx context.Context, id string) (*user.User, error)
	Save(ctx context.Context, u *user.User) error

	// UpdateProfile applies the supplied (non-nil) profile fields and
	// refreshes the update timestamp.
	UpdateProfile(ctx context.Context, id string, fullName, profileImageURL *string) error

	SetNotificationsEnabled(ctx context.Context, id string, enabled bool) error

	// AdjustMemoryCount atomically adds delta to the profile's
	// total-memories counter.
	AdjustMemoryCount(ctx context.Context, id string, delta int) error
}
