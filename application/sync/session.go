// Package sync owns the in-memory authoritative record list for a signed-in
// user and keeps it consistent with the remote document through the
// gateway's subscription channel.
package sync

import (
	"context"
	"strings"
	"sync"

	"recall-backend/application/ports"
	"recall-backend/domain/memory"
	pkgerrors "recall-backend/pkg/errors"

	"go.uber.org/zap"
)

// Session is the synchronization state for one signed-in user.
//
// Mutation intents never update the local list directly: the subscription
// push that follows each successful write is the sole source of reflected
// state. Every push replaces the entire list.
type Session struct {
	repo     ports.MemoryRepository
	sessions ports.SessionProvider
	logger   *zap.Logger

	mu             sync.Mutex
	memories       []memory.Memory
	loading        bool
	errorMessage   string
	searchText     string
	priorityFilter *memory.Priority
	completedOnly  bool

	started  bool
	sub      ports.Subscription
	onUpdate func([]memory.Memory)
}

// NewSession creates a session. Both collaborators are injected; the session
// holds no global state.
func NewSession(repo ports.MemoryRepository, sessions ports.SessionProvider, logger *zap.Logger) *Session {
	return &Session{
		repo:     repo,
		sessions: sessions,
		logger:   logger,
		memories: []memory.Memory{},
	}
}

// SetOnUpdate registers a callback invoked with the new full list after each
// subscription push has been applied. Must be called before Start.
func (s *Session) SetOnUpdate(fn func([]memory.Memory)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// Start kicks off a best-effort legacy migration and opens exactly one
// subscription for the signed-in owner. Calling Start twice is an error.
func (s *Session) Start(ctx context.Context) error {
	userID, ok := s.sessions.CurrentUserID(ctx)
	if !ok {
		return pkgerrors.NewUnauthorizedError("")
	}

	// Claim the session before releasing the lock so a concurrent Start
	// cannot open a second subscription.
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return pkgerrors.NewValidationError("session already started")
	}
	s.started = true
	s.mu.Unlock()

	// Fire-and-forget: migration must never block normal use.
	go func() {
		if err := s.repo.MigrateLegacyIfPresent(context.Background(), userID); err != nil {
			s.logger.Warn("legacy migration failed",
				zap.String("userID", userID),
				zap.Error(err),
			)
		}
	}()

	sub, err := s.repo.Subscribe(ctx, userID, s.applyPush)
	if err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if !s.started {
		// Closed while the subscription was being opened.
		s.mu.Unlock()
		sub.Cancel()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// Close cancels the subscription. Safe to call more than once, and before
// Start.
func (s *Session) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.started = false
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

// applyPush replaces the entire local list with the pushed record set.
func (s *Session) applyPush(memories []memory.Memory) {
	s.mu.Lock()
	s.memories = memories
	fn := s.onUpdate
	s.mu.Unlock()

	if fn != nil {
		fn(memories)
	}
}

// Memories returns a copy of the current record list.
func (s *Session) Memories() []memory.Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]memory.Memory, len(s.memories))
	copy(out, s.memories)
	return out
}

// IsLoading reports whether a mutation intent is in flight.
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// ErrorMessage returns the last mutation error, or "".
func (s *Session) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorMessage
}

// SetSearchText sets the search filter applied by FilteredMemories.
func (s *Session) SetSearchText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchText = text
}

// SetPriorityFilter sets the priority filter; nil clears it.
func (s *Session) SetPriorityFilter(p *memory.Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priorityFilter = p
}

// SetCompletedOnly restricts FilteredMemories to completed records.
func (s *Session) SetCompletedOnly(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completedOnly = v
}

// ClearFilters resets search text, priority filter and the completed-only
// flag.
func (s *Session) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchText = ""
	s.priorityFilter = nil
	s.completedOnly = false
}

// FilteredMemories derives the visible list: search text first, then the
// priority filter, then completed-only. The underlying list is never
// mutated.
func (s *Session) FilteredMemories() []memory.Memory {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]memory.Memory, 0, len(s.memories))
	for _, m := range s.memories {
		if s.searchText != "" && !matchesSearch(&m, s.searchText) {
			continue
		}
		if s.priorityFilter != nil && m.Priority != *s.priorityFilter {
			continue
		}
		if s.completedOnly && !m.IsCompleted {
			continue
		}
		out = append(out, m)
	}
	return out
}

// matchesSearch is the view-side search: title, description and tags only.
// The gateway's Search additionally covers the related annotations.
func matchesSearch(m *memory.Memory, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(m.Title), q) {
		return true
	}
	if m.Description != "" && strings.Contains(strings.ToLower(m.Description), q) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// beginMutation flips the loading flag on and clears the previous error.
func (s *Session) beginMutation() {
	s.mu.Lock()
	s.loading = true
	s.errorMessage = ""
	s.mu.Unlock()
}

// endMutation releases the loading flag on every path and records the error,
// if any.
func (s *Session) endMutation(err error) {
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.errorMessage = err.Error()
	}
	s.mu.Unlock()
}

// CreateMemory persists a new record. The local list is not optimistically
// updated.
func (s *Session) CreateMemory(ctx context.Context, m memory.Memory) error {
	s.beginMutation()
	_, err := s.repo.Create(ctx, m)
	s.endMutation(err)
	return err
}

// UpdateMemory persists changes to an existing record.
func (s *Session) UpdateMemory(ctx context.Context, m memory.Memory) error {
	s.beginMutation()
	err := s.repo.Update(ctx, m)
	s.endMutation(err)
	return err
}

// DeleteMemory removes a record belonging to the signed-in owner.
func (s *Session) DeleteMemory(ctx context.Context, id string) error {
	userID, ok := s.sessions.CurrentUserID(ctx)
	if !ok {
		err := pkgerrors.NewUnauthorizedError("")
		s.mu.Lock()
		s.errorMessage = err.Error()
		s.mu.Unlock()
		return err
	}

	s.beginMutation()
	err := s.repo.Delete(ctx, id, userID)
	s.endMutation(err)
	return err
}

// ToggleCompletion flips a record's completion flag.
func (s *Session) ToggleCompletion(ctx context.Context, id string) error {
	s.beginMutation()
	err := s.repo.ToggleCompletion(ctx, id)
	s.endMutation(err)
	return err
}
