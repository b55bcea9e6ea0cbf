package dynamodb

import (
	"context"
	"sync"
	"time"

	"recall-backend/application/ports"
	"recall-backend/domain/memory"
	pkgerrors "recall-backend/pkg/errors"
	"recall-backend/pkg/notify"
	"recall-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Limits exposes the runtime-tunable caps consulted on writes.
type Limits interface {
	MaxMemoriesPerUser() int
}

// MemoryRepository implements ports.MemoryRepository against DynamoDB.
//
// Every mutation is a whole-document read-modify-write: the owner's current
// document is loaded, changed in memory and written back in full. Two
// concurrent mutations on the same document therefore race and the last
// write observed by the store wins. Correctness here deliberately matches
// the existing clients rather than adding a version token.
type MemoryRepository struct {
	client    API
	tableName string
	indexName string
	sessions  ports.SessionProvider
	users     ports.UserRepository
	notifier  *notify.Notifier
	limits    Limits
	logger    *zap.Logger
	metrics   *observability.Collector
}

// NewMemoryRepository creates the memory gateway. limits and metrics may be
// nil.
func NewMemoryRepository(
	client API,
	tableName string,
	indexName string,
	sessions ports.SessionProvider,
	users ports.UserRepository,
	notifier *notify.Notifier,
	limits Limits,
	logger *zap.Logger,
	metrics *observability.Collector,
) *MemoryRepository {
	return &MemoryRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		sessions:  sessions,
		users:     users,
		notifier:  notifier,
		limits:    limits,
		logger:    logger,
		metrics:   metrics,
	}
}

var _ ports.MemoryRepository = (*MemoryRepository)(nil)

// getDocument loads the owner's document, creating an empty one lazily on
// first access.
func (r *MemoryRepository) getDocument(ctx context.Context, userID string) (*memory.Document, error) {
	start := time.Now()
	out, err := r.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK": &types.AttributeValueMemberS{Value: skDocument},
		},
	})
	r.metrics.ObserveDB("get_document", start, err)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to load memory document", err)
	}

	if out.Item == nil {
		doc := memory.NewDocument(userID)
		if err := r.saveDocument(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	doc, err := unmarshalDocument(out.Item)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to decode memory document", err)
	}
	return doc, nil
}

// saveDocument writes the whole document back and wakes subscribers.
func (r *MemoryRepository) saveDocument(ctx context.Context, doc *memory.Document) error {
	doc.LastUpdated = time.Now()

	av, err := attributevalue.MarshalMap(newDocumentItem(doc))
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to encode memory document", err)
	}

	start := time.Now()
	_, err = r.client.PutItem(ctx, &awsdynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	r.metrics.ObserveDB("put_document", start, err)
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to save memory document", err)
	}

	r.notifier.Notify(doc.UID)
	return nil
}

// Create appends a record to the signed-in owner's document and increments
// the owner's total-memories counter.
func (r *MemoryRepository) Create(ctx context.Context, m memory.Memory) (*memory.Memory, error) {
	userID, ok := r.sessions.CurrentUserID(ctx)
	if !ok {
		return nil, pkgerrors.NewUnauthorizedError("")
	}
	m.UserID = userID

	// Reject invalid records before touching the store.
	if err := m.Validate(); err != nil {
		return nil, err
	}

	doc, err := r.getDocument(ctx, userID)
	if err != nil {
		return nil, err
	}
	if r.limits != nil {
		if max := r.limits.MaxMemoriesPerUser(); max > 0 && len(doc.Memories) >= max {
			return nil, pkgerrors.NewValidationError("memory limit reached for this account")
		}
	}

	now := time.Now()
	m.ID = uuid.NewString()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Tags == nil {
		m.Tags = []string{}
	}

	doc.Memories = append(doc.Memories, m)
	if err := r.saveDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := r.users.AdjustMemoryCount(ctx, userID, 1); err != nil {
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.MemoriesCreated.Inc()
	}
	r.logger.Debug("memory created",
		zap.String("memoryID", m.ID),
		zap.String("userID", userID),
	)
	return &m, nil
}

// Fetch returns all of the owner's records, newest first.
func (r *MemoryRepository) Fetch(ctx context.Context, userID string) ([]memory.Memory, error) {
	doc, err := r.getDocument(ctx, userID)
	if err != nil {
		return nil, err
	}
	return doc.Sorted(), nil
}

// FetchOne returns one record from the signed-in owner's document.
func (r *MemoryRepository) FetchOne(ctx context.Context, id string) (*memory.Memory, error) {
	userID, ok := r.sessions.CurrentUserID(ctx)
	if !ok {
		return nil, pkgerrors.NewUnauthorizedError("")
	}

	doc, err := r.getDocument(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := doc.Find(id)
	if idx < 0 {
		return nil, pkgerrors.NewNotFoundError("memory")
	}
	m := doc.Memories[idx]
	return &m, nil
}

// Update replaces the record at its position within the owner's document.
func (r *MemoryRepository) Update(ctx context.Context, m memory.Memory) error {
	userID, ok := r.sessions.CurrentUserID(ctx)
	if !ok {
		return pkgerrors.NewUnauthorizedError("")
	}
	if m.ID == "" {
		return pkgerrors.NewValidationError("memory id is required for update")
	}

	doc, err := r.getDocument(ctx, userID)
	if err != nil {
		return err
	}
	idx := doc.Find(m.ID)
	if idx < 0 {
		return pkgerrors.NewNotFoundError("memory")
	}

	// The owner reference never changes after creation.
	m.UserID = doc.Memories[idx].UserID
	m.UpdatedAt = time.Now()
	if m.Tags == nil {
		m.Tags = []string{}
	}
	doc.Memories[idx] = m

	return r.saveDocument(ctx, doc)
}

// Delete removes the record and decrements the total-memories counter.
func (r *MemoryRepository) Delete(ctx context.Context, id, userID string) error {
	doc, err := r.getDocument(ctx, userID)
	if err != nil {
		return err
	}
	idx := doc.Find(id)
	if idx < 0 {
		return pkgerrors.NewNotFoundError("memory")
	}
	doc.Memories = append(doc.Memories[:idx], doc.Memories[idx+1:]...)

	if err := r.saveDocument(ctx, doc); err != nil {
		return err
	}
	if err := r.users.AdjustMemoryCount(ctx, userID, -1); err != nil {
		return err
	}

	if r.metrics != nil {
		r.metrics.MemoriesDeleted.Inc()
	}
	return nil
}

// ToggleCompletion flips the completion flag of one record.
func (r *MemoryRepository) ToggleCompletion(ctx context.Context, id string) error {
	userID, ok := r.sessions.CurrentUserID(ctx)
	if !ok {
		return pkgerrors.NewUnauthorizedError("")
	}

	doc, err := r.getDocument(ctx, userID)
	if err != nil {
		return err
	}
	idx := doc.Find(id)
	if idx < 0 {
		return pkgerrors.NewNotFoundError("memory")
	}

	doc.Memories[idx].IsCompleted = !doc.Memories[idx].IsCompleted
	doc.Memories[idx].UpdatedAt = time.Now()

	return r.saveDocument(ctx, doc)
}

// Search matches query case-insensitively against title, description, tags
// and the related annotations.
func (r *MemoryRepository) Search(ctx context.Context, userID, query string) ([]memory.Memory, error) {
	doc, err := r.getDocument(ctx, userID)
	if err != nil {
		return nil, err
	}

	matches := make([]memory.Memory, 0)
	for _, m := range doc.Memories {
		if m.MatchesQuery(query) {
			matches = append(matches, m)
		}
	}
	memory.SortNewestFirst(matches)
	return matches, nil
}

// Filter returns records matching all supplied predicates, newest first.
func (r *MemoryRepository) Filter(ctx context.Context, userID string, priority *memory.Priority, completed *bool) ([]memory.Memory, error) {
	doc, err := r.getDocument(ctx, userID)
	if err != nil {
		return nil, err
	}

	matches := make([]memory.Memory, 0)
	for _, m := range doc.Memories {
		if priority != nil && m.Priority != *priority {
			continue
		}
		if completed != nil && m.IsCompleted != *completed {
			continue
		}
		matches = append(matches, m)
	}
	memory.SortNewestFirst(matches)
	return matches, nil
}

// subscription is the cancellation handle returned by Subscribe.
type subscription struct {
	once        sync.Once
	stop        chan struct{}
	unsubscribe func()
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		close(s.stop)
		s.unsubscribe()
	})
}

// Subscribe delivers the full current sorted record set on every change to
// the owner's document, starting with an immediate snapshot. A read failure
// is delivered as an empty set; the subscription stays alive.
func (r *MemoryRepository) Subscribe(ctx context.Context, userID string, onChange func([]memory.Memory)) (ports.Subscription, error) {
	events, unsubscribe := r.notifier.Subscribe(userID)
	sub := &subscription{stop: make(chan struct{}), unsubscribe: unsubscribe}

	if r.metrics != nil {
		r.metrics.ActiveSubscriptions.Inc()
	}

	go func() {
		defer func() {
			if r.metrics != nil {
				r.metrics.ActiveSubscriptions.Dec()
			}
		}()

		deliver := func() {
			// The subscription outlives the request that opened it, so
			// reads run on a detached context.
			doc, err := r.getDocument(context.Background(), userID)
			if err != nil {
				r.logger.Warn("subscription read failed, delivering empty set",
					zap.String("userID", userID),
					zap.Error(err),
				)
				onChange([]memory.Memory{})
				return
			}
			if r.metrics != nil {
				r.metrics.PushesDelivered.Inc()
			}
			onChange(doc.Sorted())
		}

		deliver()
		for {
			select {
			case <-sub.stop:
				return
			case <-ctx.Done():
				sub.Cancel()
				return
			case <-events:
				deliver()
			}
		}
	}()

	return sub, nil
}

// MigrateLegacyIfPresent moves records from the deprecated one-item-per-record
// layout into the per-user document and deletes the legacy items. Individual
// deletion failures are logged, not surfaced: the migrated document is already
// authoritative at that point.
func (r *MemoryRepository) MigrateLegacyIfPresent(ctx context.Context, userID string) error {
	legacy, err := r.fetchLegacy(ctx, userID)
	if err != nil {
		return err
	}
	if len(legacy) == 0 {
		return nil
	}

	r.logger.Info("migrating legacy memories",
		zap.String("userID", userID),
		zap.Int("count", len(legacy)),
	)

	doc := memory.NewDocument(userID)
	for i := range legacy {
		if legacy[i].ID == "" {
			legacy[i].ID = uuid.NewString()
		}
		doc.Memories = append(doc.Memories, legacy[i])
	}
	if err := r.saveDocument(ctx, doc); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, m := range legacy {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			start := time.Now()
			_, err := r.client.DeleteItem(ctx, &awsdynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: legacyKey(id)},
					"SK": &types.AttributeValueMemberS{Value: legacyKey(id)},
				},
			})
			r.metrics.ObserveDB("delete_legacy", start, err)
			if err != nil {
				r.logger.Warn("failed to delete legacy memory item",
					zap.String("memoryID", id),
					zap.Error(err),
				)
			}
		}(m.ID)
	}
	wg.Wait()

	if r.metrics != nil {
		r.metrics.MemoriesMigrated.Add(float64(len(legacy)))
	}
	return nil
}

// fetchLegacy queries the GSI for the user's legacy record items.
func (r *MemoryRepository) fetchLegacy(ctx context.Context, userID string) ([]memory.Memory, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(userPK(userID))).
		And(expression.Key("GSI1SK").BeginsWith(legacyPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build legacy query", err)
	}

	start := time.Now()
	out, err := r.client.Query(ctx, &awsdynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	r.metrics.ObserveDB("query_legacy", start, err)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to query legacy memories", err)
	}

	memories := make([]memory.Memory, 0, len(out.Items))
	for _, raw := range out.Items {
		var item legacyItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("skipping undecodable legacy item", zap.Error(err))
			continue
		}
		m, ok := item.toDomain()
		if !ok {
			r.logger.Warn("skipping malformed legacy item", zap.String("pk", item.PK))
			continue
		}
		memories = append(memories, *m)
	}
	memory.SortNewestFirst(memories)
	return memories, nil
}
