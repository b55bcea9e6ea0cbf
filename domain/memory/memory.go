package memory

import (
	"sort"
	"strings"
	"time"

	pkgerrors "recall-backend/pkg/errors"
)

// Priority is the ordered urgency level of a memory.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// Priorities lists all levels in ascending order of urgency.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

// ParsePriority converts a wire value into a Priority.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return Priority(s), true
	}
	return "", false
}

// Color returns the display color associated with the priority.
func (p Priority) Color() string {
	switch p {
	case PriorityLow:
		return "#4CAF50"
	case PriorityMedium:
		return "#2196F3"
	case PriorityHigh:
		return "#FF9800"
	case PriorityUrgent:
		return "#F44336"
	}
	return ""
}

// Source records how a memory was created. Immutable after creation.
type Source string

const (
	SourceManual Source = "manual"
	// SourceAssistant marks records created through the voice assistant.
	// The wire value is "siri" for compatibility with existing documents.
	SourceAssistant Source = "siri"
)

// ParseSource converts a wire value into a Source.
func ParseSource(s string) (Source, bool) {
	switch Source(s) {
	case SourceManual, SourceAssistant:
		return Source(s), true
	}
	return "", false
}

// Memory is a single remembered item belonging to one user.
//
// ID is assigned by the store on creation and is empty before first
// persistence. UserID never changes after creation.
type Memory struct {
	ID             string
	UserID         string
	Title          string
	Description    string
	Priority       Priority
	DateToRemember *time.Time
	RelatedPerson  string
	RelatedTo      string
	Tags           []string
	IsCompleted    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Source         Source
}

// New creates a memory with defaults: Medium priority, empty tags, manual
// source, both timestamps set to now.
func New(userID, title string) (*Memory, error) {
	m := &Memory{
		UserID:   userID,
		Title:    title,
		Priority: PriorityMedium,
		Tags:     []string{},
		Source:   SourceManual,
	}
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the invariants every memory must satisfy before it is
// accepted by a create or update operation.
func (m *Memory) Validate() error {
	if m.UserID == "" {
		return pkgerrors.NewValidationError("userID cannot be empty")
	}
	if strings.TrimSpace(m.Title) == "" {
		return pkgerrors.NewValidationError("title cannot be empty")
	}
	if _, ok := ParsePriority(string(m.Priority)); !ok {
		return pkgerrors.NewValidationError("unknown priority: " + string(m.Priority))
	}
	if _, ok := ParseSource(string(m.Source)); !ok {
		return pkgerrors.NewValidationError("unknown source: " + string(m.Source))
	}
	return nil
}

// MatchesQuery reports whether the memory matches a case-insensitive
// substring search over title, description, tags and related annotations.
func (m *Memory) MatchesQuery(query string) bool {
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
	if m.RelatedPerson != "" && strings.Contains(strings.ToLower(m.RelatedPerson), q) {
		return true
	}
	if m.RelatedTo != "" && strings.Contains(strings.ToLower(m.RelatedTo), q) {
		return true
	}
	return false
}

// SortNewestFirst orders memories by creation time, descending. The sort is
// stable so records sharing a creation time keep their relative order across
// repeated calls against an unchanged document.
func SortNewestFirst(memories []Memory) {
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})
}
