package dynamodb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recall-backend/domain/memory"
	"recall-backend/domain/user"
	pkgerrors "recall-backend/pkg/errors"
	"recall-backend/pkg/notify"
)

type staticSessions struct {
	userID string
}

func (s staticSessions) CurrentUserID(ctx context.Context) (string, bool) {
	return s.userID, s.userID != ""
}

// fakeUsers tracks the denormalized counter without a profile item.
type fakeUsers struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{counts: make(map[string]int)}
}

func (f *fakeUsers) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[id]
}

func (f *fakeUsers) Get(ctx context.Context, id string) (*user.User, error) {
	return nil, pkgerrors.NewNotFoundError("user")
}

func (f *fakeUsers) Save(ctx context.Context, u *user.User) error { return nil }

func (f *fakeUsers) UpdateProfile(ctx context.Context, id string, fullName, profileImageURL *string) error {
	return nil
}

func (f *fakeUsers) SetNotificationsEnabled(ctx context.Context, id string, enabled bool) error {
	return nil
}

func (f *fakeUsers) AdjustMemoryCount(ctx context.Context, id string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[id] += delta
	return nil
}

type staticLimits int

func (l staticLimits) MaxMemoriesPerUser() int { return int(l) }

type repoFixture struct {
	repo     *MemoryRepository
	client   *fakeDynamo
	users    *fakeUsers
	notifier *notify.Notifier
}

func newRepoFixture(userID string, limits Limits) *repoFixture {
	client := newFakeDynamo()
	users := newFakeUsers()
	notifier := notify.NewNotifier()
	repo := NewMemoryRepository(client, "recall-test", "UserIndex",
		staticSessions{userID: userID}, users, notifier, limits, zap.NewNop(), nil)
	return &repoFixture{repo: repo, client: client, users: users, notifier: notifier}
}

func TestMemoryRepository_Create(t *testing.T) {
	fx := newRepoFixture("user123", nil)
	ctx := context.Background()

	created, err := fx.repo.Create(ctx, memory.Memory{
		Title:    "buy milk",
		Priority: memory.PriorityLow,
		Source:   memory.SourceManual,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "user123", created.UserID, "owner comes from the session")
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.Equal(t, 1, fx.users.count("user123"))

	fetched, err := fx.repo.Fetch(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, created.ID, fetched[0].ID)
}

func TestMemoryRepository_Create_Unauthorized(t *testing.T) {
	fx := newRepoFixture("", nil)

	_, err := fx.repo.Create(context.Background(), memory.Memory{
		Title:    "buy milk",
		Priority: memory.PriorityLow,
		Source:   memory.SourceManual,
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsUnauthorized(err))
}

func TestMemoryRepository_Create_InvalidRejectedBeforeWrite(t *testing.T) {
	fx := newRepoFixture("user123", nil)

	_, err := fx.repo.Create(context.Background(), memory.Memory{
		Title:    "   ",
		Priority: memory.PriorityLow,
		Source:   memory.SourceManual,
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Zero(t, fx.client.putCount(), "the store must not be touched")
	assert.Zero(t, fx.users.count("user123"))
}

func TestMemoryRepository_Create_LimitReached(t *testing.T) {
	fx := newRepoFixture("user123", staticLimits(1))
	ctx := context.Background()

	_, err := fx.repo.Create(ctx, memory.Memory{
		Title: "first", Priority: memory.PriorityLow, Source: memory.SourceManual,
	})
	require.NoError(t, err)

	_, err = fx.repo.Create(ctx, memory.Memory{
		Title: "second", Priority: memory.PriorityLow, Source: memory.SourceManual,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, 1, fx.users.count("user123"))
}

func TestMemoryRepository_CreateToggleDeleteLifecycle(t *testing.T) {
	fx := newRepoFixture("u1", nil)
	ctx := context.Background()

	created, err := fx.repo.Create(ctx, memory.Memory{
		Title: "Buy milk", Priority: memory.PriorityMedium, Source: memory.SourceManual,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.IsCompleted)
	assert.Equal(t, 1, fx.users.count("u1"))

	require.NoError(t, fx.repo.ToggleCompletion(ctx, created.ID))
	toggled, err := fx.repo.FetchOne(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsCompleted)

	require.NoError(t, fx.repo.Delete(ctx, created.ID, "u1"))
	remaining, err := fx.repo.Fetch(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Zero(t, fx.users.count("u1"))
}

func TestMemoryRepository_Fetch_EmptyAccount(t *testing.T) {
	fx := newRepoFixture("user123", nil)

	memories, err := fx.repo.Fetch(context.Background(), "user123")

	require.NoError(t, err)
	assert.NotNil(t, memories)
	assert.Empty(t, memories)
}

func TestMemoryRepository_Fetch_NewestFirst(t *testing.T) {
	fx := newRepoFixture("user123", nil)
	ctx := context.Background()

	first, err := fx.repo.Create(ctx, memory.Memory{
		Title: "first", Priority: memory.PriorityLow, Source: memory.SourceManual,
	})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := fx.repo.Create(ctx, memory.Memory{
		Title: "second", Priority: memory.PriorityLow, Source: memory.SourceManual,
	})
	require.NoError(t, err)

	fetched, err := fx.repo.Fetch(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, second.ID, fetched[0].ID)
	assert.Equal(t, first.ID, fetched[1].ID)
}

func TestMemoryRepository_FetchOne(t *testing.T) {
	fx := newRepoFixture("user123", nil)
	ctx := context.Background()

	created, err := fx.repo.Create(ctx, memory.Memory{
		Title: "buy milk", Priority: memory.PriorityLow, Source: memory.SourceManual,
	})
	require.NoError(t, err)

	got, err := fx.repo.FetchOne(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "buy milk", got.Title)

	_, err = fx.repo.FetchOne(ctx, "missing")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestMemoryRepository_Update(t *testing.T) {
	fx := newRepoFixture("user123", nil)
	ctx := context.Background()

	created, err := fx.repo.Create(ctx, memory.Memory{
		Title: "buy milk", Priority: memory.PriorityLow, Source: memory.SourceManual,
	})
	require.NoError(t, err)

	changed := *created
	changed.Title = "buy oat milk"
	changed.Priority = memory.PriorityHigh
	changed.UserID = "intruder"
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, fx.repo.Update(ctx, changed))

	got, err := fx.repo.FetchOne(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "buy oat milk", got.Title)
	assert.Equal(t, memory.PriorityHigh, got.Priority)
	assert.Equal(t, "user123", got.UserID, "the owner reference never changes")
	assert.True(t, got.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, got.CreatedAt.Equal(created.CreatedAt))
}

func TestMemoryRepository_Update_MissingID(t *testing.T) {
	fx := newRepoFixture("user123", nil)

	err := fx.repo.Update(context.Background(), memory.Memory{
		Title: "no id", Priority: memory.PriorityLow, Source: memory.SourceManual,
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestMemoryRepository_Update_NotFound(t *testing.T) {
	fx := newRepoFixture("user123", nil)

	err := fx.repo.Update(context.Background(), memory.Memory{
		ID: "missing", Title: "ghost", Priority: memory.PriorityLow, Source: memory.SourceManual,
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestMemoryRepository_Delete(t *testing.T) {
	fx := newRepoFixture("user123", nil)
	ctx := context.Background()

	created, err := fx.repo.Create(ctx, memory.Memory{
		Title: "buy milk", Priority: memory.PriorityLow, Source: memory.SourceManual,
	})
	require.NoError(t, err)
	require.Equal(t, 1, fx.users.count("user123"))

	require.NoError(t, fx.repo.Delete(ctx, created.ID, "user123"))

	assert.Zero(t, fx.users.count("user123"), "create then delete nets to zero")
	memories, err := fx.repo.Fetch(ctx, "user123")
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestMemoryRepository_Delete_NotFound(t *testing.T) {
	fx := newRepoFixture("user123", nil)

	err := fx.repo.Delete(context.Background(), "missing", "user123")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Zero(t, fx.users.count("user123"), "the counter is untouched")
}

func TestMemoryRepository_ToggleCompletion(t *testing.T) {
	fx := newRepoFixture("user123", nil)
	ctx := context.Background()

	created, err := fx.repo.Create(ctx, memory.Memory{
		Title: "buy milk", Priority: memory.PriorityLow, Source: memory.SourceManual,
	})
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, fx.repo.ToggleCompletion(ctx, created.ID))
	afterFirst, err := fx.repo.FetchOne(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, afterFirst.IsCompleted)
	assert.True(t, afterFirst.UpdatedAt.After(created.UpdatedAt))

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, fx.repo.ToggleCompletion(ctx, created.ID))
	afterSecond, err := fx.repo.FetchOne(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, afterSecond.IsCompleted, "toggling twice restores the flag")
	assert.True(t, afterSecond.UpdatedAt.After(afterFirst.UpdatedAt),
		"each toggle still refreshes the update timestamp")
}

func TestMemoryRepository_Search(t *testing.T) {
	fx := newRepoFixture("user123", nil)
	ctx := context.Background()

	_, err := fx.repo.Create(ctx, memory.Memory{
		Title: "pay rent", Priority: memory.PriorityLow, Source: memory.SourceManual,
	})
	require.NoError(t, err)
	_, err = fx.repo.Create(ctx, memory.Memory{
		Title: "anniversary", RelatedPerson: "Alice",
		Priority: memory.PriorityLow, Source: memory.SourceManual,
	})
	require.NoError(t, err)

	matches, err := fx.repo.Search(ctx, "user123", "RENT")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "pay rent", matches[0].Title)

	// The gateway search also covers the related annotations.
	matches, err = fx.repo.Search(ctx, "user123", "alice")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "anniversary", matches[0].Title)
}

func TestMemoryRepository_Filter(t *testing.T) {
	fx := newRepoFixture("user123", nil)
	ctx := context.Background()

	high, err := fx.repo.Create(ctx, memory.Memory{
		Title: "urgent thing", Priority: memory.PriorityHigh, Source: memory.SourceManual,
	})
	require.NoError(t, err)
	low, err := fx.repo.Create(ctx, memory.Memory{
		Title: "casual thing", Priority: memory.PriorityLow, Source: memory.SourceManual,
	})
	require.NoError(t, err)
	require.NoError(t, fx.repo.ToggleCompletion(ctx, low.ID))

	priority := memory.PriorityHigh
	matches, err := fx.repo.Filter(ctx, "user123", &priority, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, high.ID, matches[0].ID)

	completed := true
	matches, err = fx.repo.Filter(ctx, "user123", nil, &completed)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, low.ID, matches[0].ID)

	matches, err = fx.repo.Filter(ctx, "user123", &priority, &completed)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func waitForPush(t *testing.T, pushes <-chan []memory.Memory, match func([]memory.Memory) bool) []memory.Memory {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-pushes:
			if match(got) {
				return got
			}
		case <-deadline:
			t.Fatal("timed out waiting for a matching push")
			return nil
		}
	}
}

func TestMemoryRepository_Subscribe_DeliversSnapshotAndChanges(t *testing.T) {
	fx := newRepoFixture("user123", nil)
	ctx := context.Background()

	pushes := make(chan []memory.Memory, 16)
	sub, err := fx.repo.Subscribe(ctx, "user123", func(memories []memory.Memory) {
		pushes <- memories
	})
	require.NoError(t, err)
	defer sub.Cancel()

	waitForPush(t, pushes, func(m []memory.Memory) bool { return len(m) == 0 })

	created, err := fx.repo.Create(ctx, memory.Memory{
		Title: "buy milk", Priority: memory.PriorityLow, Source: memory.SourceManual,
	})
	require.NoError(t, err)

	got := waitForPush(t, pushes, func(m []memory.Memory) bool { return len(m) == 1 })
	assert.Equal(t, created.ID, got[0].ID)
}

func TestMemoryRepository_Subscribe_CancelReleasesListener(t *testing.T) {
	fx := newRepoFixture("user123", nil)

	sub, err := fx.repo.Subscribe(context.Background(), "user123", func([]memory.Memory) {})
	require.NoError(t, err)
	require.Equal(t, 1, fx.notifier.Subscribers("user123"))

	sub.Cancel()
	sub.Cancel()

	assert.Zero(t, fx.notifier.Subscribers("user123"))
}

func TestMemoryRepository_Subscribe_ReadFailureDeliversEmptySet(t *testing.T) {
	fx := newRepoFixture("user123", nil)
	fx.client.failGet = true

	pushes := make(chan []memory.Memory, 16)
	sub, err := fx.repo.Subscribe(context.Background(), "user123", func(memories []memory.Memory) {
		pushes <- memories
	})
	require.NoError(t, err)
	defer sub.Cancel()

	got := waitForPush(t, pushes, func([]memory.Memory) bool { return true })
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func seedLegacy(t *testing.T, fx *repoFixture, m memory.Memory, keyID string) {
	t.Helper()
	item := legacyItem{
		PK:         legacyKey(keyID),
		SK:         legacyKey(keyID),
		GSI1PK:     userPK(m.UserID),
		GSI1SK:     legacyKey(keyID),
		EntityType: entityLegacy,
		memoryItem: newMemoryItem(m),
	}
	raw, err := attributevalue.MarshalMap(item)
	require.NoError(t, err)
	fx.client.seed(raw)
}

func TestMemoryRepository_MigrateLegacyIfPresent(t *testing.T) {
	fx := newRepoFixture("user123", nil)
	ctx := context.Background()

	older := memory.Memory{
		ID: "legacy-1", UserID: "user123", Title: "old one",
		Priority: memory.PriorityLow, Source: memory.SourceManual,
		Tags:      []string{},
		CreatedAt: time.Now().Add(-2 * time.Hour), UpdatedAt: time.Now().Add(-2 * time.Hour),
	}
	newer := memory.Memory{
		UserID: "user123", Title: "new one",
		Priority: memory.PriorityHigh, Source: memory.SourceManual,
		Tags:      []string{},
		CreatedAt: time.Now().Add(-time.Hour), UpdatedAt: time.Now().Add(-time.Hour),
	}
	seedLegacy(t, fx, older, "legacy-1")
	seedLegacy(t, fx, newer, "legacy-2")

	require.NoError(t, fx.repo.MigrateLegacyIfPresent(ctx, "user123"))

	fetched, err := fx.repo.Fetch(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, "new one", fetched[0].Title)
	assert.Equal(t, "legacy-1", fetched[1].ID, "existing identifiers are preserved")
	assert.Equal(t, "legacy-2", fetched[0].ID, "the key-derived identifier is adopted")

	assert.False(t, fx.client.has(legacyKey("legacy-1"), legacyKey("legacy-1")))
	assert.False(t, fx.client.has(legacyKey("legacy-2"), legacyKey("legacy-2")))
}

func TestMemoryRepository_MigrateLegacyIfPresent_NoLegacyData(t *testing.T) {
	fx := newRepoFixture("user123", nil)

	require.NoError(t, fx.repo.MigrateLegacyIfPresent(context.Background(), "user123"))

	assert.Zero(t, fx.client.putCount(), "nothing is written when there is nothing to move")
}

func TestMemoryRepository_MigrateLegacyIfPresent_DeleteFailureIsTolerated(t *testing.T) {
	fx := newRepoFixture("user123", nil)
	fx.client.failDelete = true
	ctx := context.Background()

	m := memory.Memory{
		ID: "legacy-1", UserID: "user123", Title: "old one",
		Priority: memory.PriorityLow, Source: memory.SourceManual,
		Tags:      []string{},
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	seedLegacy(t, fx, m, "legacy-1")

	// The migrated document is authoritative even when legacy cleanup fails.
	require.NoError(t, fx.repo.MigrateLegacyIfPresent(ctx, "user123"))

	fetched, err := fx.repo.Fetch(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, "legacy-1", fetched[0].ID)
}
