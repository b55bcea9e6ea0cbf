package dynamodb

import (
	"strings"
	"time"

	"recall-backend/domain/memory"
	"recall-backend/domain/user"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// Single-table key layout.
const (
	skDocument = "MEMORYDOC"
	skProfile  = "PROFILE"

	entityDocument = "MEMORY_DOCUMENT"
	entityProfile  = "USER_PROFILE"
	entityLegacy   = "LEGACY_MEMORY"

	legacyPrefix = "LEGACYMEM#"
)

func userPK(userID string) string {
	return "USER#" + userID
}

func legacyKey(memoryID string) string {
	return legacyPrefix + memoryID
}

const timeFormat = time.RFC3339Nano

// memoryItem is the transport shape of one memory record. The identifier is
// carried in-record inside the document's array; everything else is required
// except description, date_to_remember and the related annotations.
type memoryItem struct {
	ID             string   `dynamodbav:"id,omitempty"`
	UserID         string   `dynamodbav:"user_id"`
	Title          string   `dynamodbav:"title"`
	Description    string   `dynamodbav:"description,omitempty"`
	Priority       string   `dynamodbav:"priority"`
	DateToRemember string   `dynamodbav:"date_to_remember,omitempty"`
	RelatedPerson  string   `dynamodbav:"related_person,omitempty"`
	RelatedTo      string   `dynamodbav:"related_to,omitempty"`
	Tags           []string `dynamodbav:"tags"`
	IsCompleted    *bool    `dynamodbav:"is_completed"`
	CreatedAt      string   `dynamodbav:"created_at"`
	UpdatedAt      string   `dynamodbav:"updated_at"`
	Source         string   `dynamodbav:"source"`
}

func newMemoryItem(m memory.Memory) memoryItem {
	item := memoryItem{
		ID:          m.ID,
		UserID:      m.UserID,
		Title:       m.Title,
		Description: m.Description,
		Priority:    string(m.Priority),
		Tags:        m.Tags,
		IsCompleted: &m.IsCompleted,
		CreatedAt:   m.CreatedAt.Format(timeFormat),
		UpdatedAt:   m.UpdatedAt.Format(timeFormat),
		Source:      string(m.Source),
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	if m.DateToRemember != nil {
		item.DateToRemember = m.DateToRemember.Format(timeFormat)
	}
	item.RelatedPerson = m.RelatedPerson
	item.RelatedTo = m.RelatedTo
	return item
}

// toDomain converts the wire shape back into a record. It returns false when
// a required field is absent or malformed; callers skip such records rather
// than fail the whole document.
func (it memoryItem) toDomain() (*memory.Memory, bool) {
	if it.UserID == "" || it.Title == "" || it.IsCompleted == nil || it.Tags == nil {
		return nil, false
	}
	priority, ok := memory.ParsePriority(it.Priority)
	if !ok {
		return nil, false
	}
	source, ok := memory.ParseSource(it.Source)
	if !ok {
		return nil, false
	}
	createdAt, err := time.Parse(timeFormat, it.CreatedAt)
	if err != nil {
		return nil, false
	}
	updatedAt, err := time.Parse(timeFormat, it.UpdatedAt)
	if err != nil {
		return nil, false
	}

	m := &memory.Memory{
		ID:            it.ID,
		UserID:        it.UserID,
		Title:         it.Title,
		Description:   it.Description,
		Priority:      priority,
		RelatedPerson: it.RelatedPerson,
		RelatedTo:     it.RelatedTo,
		Tags:          it.Tags,
		IsCompleted:   *it.IsCompleted,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
		Source:        source,
	}
	if it.DateToRemember != "" {
		dtr, err := time.Parse(timeFormat, it.DateToRemember)
		if err != nil {
			return nil, false
		}
		m.DateToRemember = &dtr
	}
	return m, true
}

func marshalMemory(m memory.Memory) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(newMemoryItem(m))
}

func unmarshalMemory(raw map[string]types.AttributeValue) (*memory.Memory, bool) {
	var item memoryItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, false
	}
	return item.toDomain()
}

// documentItem is the per-user document envelope as written to the store.
type documentItem struct {
	PK          string       `dynamodbav:"PK"`
	SK          string       `dynamodbav:"SK"`
	EntityType  string       `dynamodbav:"EntityType"`
	UID         string       `dynamodbav:"uid"`
	Memories    []memoryItem `dynamodbav:"memories"`
	LastUpdated string       `dynamodbav:"last_updated"`
}

func newDocumentItem(doc *memory.Document) *documentItem {
	item := &documentItem{
		PK:          userPK(doc.UID),
		SK:          skDocument,
		EntityType:  entityDocument,
		UID:         doc.UID,
		Memories:    make([]memoryItem, 0, len(doc.Memories)),
		LastUpdated: doc.LastUpdated.Format(timeFormat),
	}
	for _, m := range doc.Memories {
		item.Memories = append(item.Memories, newMemoryItem(m))
	}
	return item
}

// unmarshalDocument decodes a stored document envelope. The memories list is
// walked element by element so that one malformed record is skipped without
// losing the rest of the document.
func unmarshalDocument(raw map[string]types.AttributeValue) (*memory.Document, error) {
	var envelope struct {
		UID         string `dynamodbav:"uid"`
		LastUpdated string `dynamodbav:"last_updated"`
	}
	if err := attributevalue.UnmarshalMap(raw, &envelope); err != nil {
		return nil, err
	}

	doc := &memory.Document{
		UID:      envelope.UID,
		Memories: []memory.Memory{},
	}
	if lastUpdated, err := time.Parse(timeFormat, envelope.LastUpdated); err == nil {
		doc.LastUpdated = lastUpdated
	} else {
		doc.LastUpdated = time.Now()
	}

	list, ok := raw["memories"].(*types.AttributeValueMemberL)
	if !ok {
		return doc, nil
	}
	for _, el := range list.Value {
		entry, ok := el.(*types.AttributeValueMemberM)
		if !ok {
			continue
		}
		m, ok := unmarshalMemory(entry.Value)
		if !ok {
			continue
		}
		if m.ID == "" {
			// Records written before identifiers moved in-document.
			m.ID = uuid.NewString()
		}
		doc.Memories = append(doc.Memories, *m)
	}
	return doc, nil
}

// legacyItem is the deprecated one-item-per-record layout. GSI1 keys allow
// querying all of a user's legacy records during migration.
type legacyItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	EntityType string `dynamodbav:"EntityType"`
	memoryItem
}

func (it legacyItem) toDomain() (*memory.Memory, bool) {
	m, ok := it.memoryItem.toDomain()
	if !ok {
		return nil, false
	}
	if m.ID == "" {
		m.ID = strings.TrimPrefix(it.PK, legacyPrefix)
	}
	return m, true
}

// userItem is the stored shape of a user profile.
type userItem struct {
	PK                   string `dynamodbav:"PK"`
	SK                   string `dynamodbav:"SK"`
	EntityType           string `dynamodbav:"EntityType"`
	Email                string `dynamodbav:"email"`
	FullName             string `dynamodbav:"full_name"`
	ProfileImageURL      string `dynamodbav:"profile_image_url,omitempty"`
	AuthProvider         string `dynamodbav:"auth_provider"`
	CreatedAt            string `dynamodbav:"created_at"`
	UpdatedAt            string `dynamodbav:"updated_at"`
	TotalMemories        int    `dynamodbav:"total_memories"`
	NotificationsEnabled bool   `dynamodbav:"notifications_enabled"`
	IsPremium            bool   `dynamodbav:"is_premium"`
}

func newUserItem(u *user.User) userItem {
	return userItem{
		PK:                   userPK(u.ID),
		SK:                   skProfile,
		EntityType:           entityProfile,
		Email:                u.Email,
		FullName:             u.FullName,
		ProfileImageURL:      u.ProfileImageURL,
		AuthProvider:         string(u.AuthProvider),
		CreatedAt:            u.CreatedAt.Format(timeFormat),
		UpdatedAt:            u.UpdatedAt.Format(timeFormat),
		TotalMemories:        u.TotalMemories,
		NotificationsEnabled: u.NotificationsEnabled,
		IsPremium:            u.IsPremium,
	}
}

func (it userItem) toDomain() *user.User {
	u := &user.User{
		ID:                   strings.TrimPrefix(it.PK, "USER#"),
		Email:                it.Email,
		FullName:             it.FullName,
		ProfileImageURL:      it.ProfileImageURL,
		AuthProvider:         user.ParseAuthProvider(it.AuthProvider),
		TotalMemories:        it.TotalMemories,
		NotificationsEnabled: it.NotificationsEnabled,
		IsPremium:            it.IsPremium,
	}
	if createdAt, err := time.Parse(timeFormat, it.CreatedAt); err == nil {
		u.CreatedAt = createdAt
	}
	if updatedAt, err := time.Parse(timeFormat, it.UpdatedAt); err == nil {
		u.UpdatedAt = updatedAt
	}
	return u
}
