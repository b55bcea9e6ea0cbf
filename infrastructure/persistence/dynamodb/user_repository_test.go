package dynamodb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recall-backend/domain/user"
	pkgerrors "recall-backend/pkg/errors"
)

func TestUserRepository_SaveAndGet(t *testing.T) {
	client := newFakeDynamo()
	repo := NewUserRepository(client, "recall-test", zap.NewNop())
	ctx := context.Background()

	u, err := user.New("user123", "alice@example.com", user.ProviderGoogle)
	require.NoError(t, err)
	u.FullName = "Alice Smith"
	require.NoError(t, repo.Save(ctx, u))

	got, err := repo.Get(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, "user123", got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "Alice Smith", got.FullName)
	assert.Equal(t, user.ProviderGoogle, got.AuthProvider)
	assert.True(t, got.NotificationsEnabled)
}

func TestUserRepository_Get_NotFound(t *testing.T) {
	repo := NewUserRepository(newFakeDynamo(), "recall-test", zap.NewNop())

	_, err := repo.Get(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestUserRepository_AdjustMemoryCount_BuildsAddExpression(t *testing.T) {
	client := newFakeDynamo()
	repo := NewUserRepository(client, "recall-test", zap.NewNop())

	require.NoError(t, repo.AdjustMemoryCount(context.Background(), "user123", 1))

	require.Len(t, client.updates, 1)
	upd := client.updates[0]
	assert.Contains(t, *upd.UpdateExpression, "ADD", "the counter change must be atomic")
	assert.Contains(t, upd.ExpressionAttributeNames, "#0")
	assert.Equal(t, "total_memories", upd.ExpressionAttributeNames["#0"])
}

func TestUserRepository_UpdateProfile_OnlySuppliedFields(t *testing.T) {
	client := newFakeDynamo()
	repo := NewUserRepository(client, "recall-test", zap.NewNop())

	name := "Alice Smith"
	require.NoError(t, repo.UpdateProfile(context.Background(), "user123", &name, nil))

	require.Len(t, client.updates, 1)
	names := client.updates[0].ExpressionAttributeNames
	values := make([]string, 0, len(names))
	for _, n := range names {
		values = append(values, n)
	}
	assert.Contains(t, values, "updated_at")
	assert.Contains(t, values, "full_name")
	assert.NotContains(t, values, "profile_image_url")
}
