package dynamodb

import (
	"context"
	"time"

	"recall-backend/application/ports"
	"recall-backend/domain/user"
	pkgerrors "recall-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// UserRepository implements ports.UserRepository against DynamoDB.
type UserRepository struct {
	client    API
	tableName string
	logger    *zap.Logger
}

// NewUserRepository creates the profile repository.
func NewUserRepository(client API, tableName string, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

var _ ports.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) profileKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(id)},
		"SK": &types.AttributeValueMemberS{Value: skProfile},
	}
}

// Get loads a user profile.
func (r *UserRepository) Get(ctx context.Context, id string) (*user.User, error) {
	out, err := r.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       r.profileKey(id),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to load user profile", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("user")
	}

	var item userItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to decode user profile", err)
	}
	return item.toDomain(), nil
}

// Save writes a user profile in full.
func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	av, err := attributevalue.MarshalMap(newUserItem(u))
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to encode user profile", err)
	}
	_, err = r.client.PutItem(ctx, &awsdynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to save user profile", err)
	}
	return nil
}

// UpdateProfile applies the supplied profile fields and refreshes updated_at.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, fullName, profileImageURL *string) error {
	upd := expression.Set(expression.Name("updated_at"), expression.Value(time.Now().Format(timeFormat)))
	if fullName != nil {
		upd = upd.Set(expression.Name("full_name"), expression.Value(*fullName))
	}
	if profileImageURL != nil {
		upd = upd.Set(expression.Name("profile_image_url"), expression.Value(*profileImageURL))
	}
	return r.update(ctx, id, upd)
}

// SetNotificationsEnabled flips the notification preference.
func (r *UserRepository) SetNotificationsEnabled(ctx context.Context, id string, enabled bool) error {
	upd := expression.
		Set(expression.Name("notifications_enabled"), expression.Value(enabled)).
		Set(expression.Name("updated_at"), expression.Value(time.Now().Format(timeFormat)))
	return r.update(ctx, id, upd)
}

// AdjustMemoryCount atomically adds delta to the denormalized record counter
// on the profile item.
func (r *UserRepository) AdjustMemoryCount(ctx context.Context, id string, delta int) error {
	upd := expression.Add(expression.Name("total_memories"), expression.Value(delta))
	if err := r.update(ctx, id, upd); err != nil {
		return err
	}
	r.logger.Debug("adjusted memory counter",
		zap.String("userID", id),
		zap.Int("delta", delta),
	)
	return nil
}

func (r *UserRepository) update(ctx context.Context, id string, upd expression.UpdateBuilder) error {
	expr, err := expression.NewBuilder().WithUpdate(upd).Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build profile update", err)
	}

	_, err = r.client.UpdateItem(ctx, &awsdynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       r.profileKey(id),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to update user profile", err)
	}
	return nil
}
