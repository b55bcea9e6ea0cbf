// Package assistant turns spoken phrases from the voice-assistant
// integration into memory records.
package assistant

import (
	"strings"
	"time"

	"recall-backend/domain/memory"
	pkgerrors "recall-backend/pkg/errors"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// IntentKind selects which assistant shortcut produced the phrase.
type IntentKind string

const (
	// IntentRemember is the plain "remember X" shortcut.
	IntentRemember IntentKind = "remember"
	// IntentRememberUrgent creates the record with Urgent priority.
	IntentRememberUrgent IntentKind = "remember_urgent"
	// IntentRememberPerson attaches a related person to the record.
	IntentRememberPerson IntentKind = "remember_person"
)

// ParseIntentKind converts a wire value into an IntentKind, defaulting to
// the plain shortcut.
func ParseIntentKind(s string) IntentKind {
	switch IntentKind(s) {
	case IntentRemember, IntentRememberUrgent, IntentRememberPerson:
		return IntentKind(s)
	}
	return IntentRemember
}

// Parser builds memory records from natural-language phrases. It extracts an
// optional date expression ("pay rent on friday") into the record's
// date-to-remember field.
type Parser struct {
	when *when.Parser
}

// NewParser creates a phrase parser with the English and common rules.
func NewParser() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{when: w}
}

// ParseMemory converts a phrase into an unpersisted record. The owner is
// resolved later by the gateway from the caller's session. The reference
// time anchors relative date expressions.
func (p *Parser) ParseMemory(phrase string, kind IntentKind, person string, ref time.Time) (*memory.Memory, error) {
	title := strings.TrimSpace(phrase)
	if title == "" {
		return nil, pkgerrors.NewValidationError("phrase cannot be empty")
	}

	m := &memory.Memory{
		Title:    title,
		Priority: memory.PriorityMedium,
		Tags:     []string{},
		Source:   memory.SourceAssistant,
	}

	if result, err := p.when.Parse(title, ref); err == nil && result != nil {
		m.DateToRemember = &result.Time
		// Drop the date expression from the title when something is left.
		remainder := strings.TrimSpace(strings.Replace(title, result.Text, "", 1))
		remainder = strings.TrimRight(remainder, " ,.")
		if remainder != "" {
			m.Title = remainder
		}
	}

	switch kind {
	case IntentRememberUrgent:
		m.Priority = memory.PriorityUrgent
	case IntentRememberPerson:
		person = strings.TrimSpace(person)
		if person == "" {
			return nil, pkgerrors.NewValidationError("person cannot be empty")
		}
		m.RelatedPerson = person
	}

	return m, nil
}
