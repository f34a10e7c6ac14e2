package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-rental-auth/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
// Email uniqueness is held by a claim item in a second table keyed by email,
// written in the same transaction as the user.
type UserRepo struct {
	client      API
	tableName   string
	emailsTable string
}

func NewUserRepo(client API, tableName, emailsTable string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, emailsTable: emailsTable}
}

// Create inserts the user and claims its email atomically.
// Returns ErrConflict when the email is already claimed.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	claim := map[string]types.AttributeValue{
		fieldEmail:  &types.AttributeValueMemberS{Value: u.Email},
		fieldUserID: &types.AttributeValueMemberS{Value: u.UserID},
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.emailsTable),
				Item:                claim,
				ConditionExpression: aws.String("attribute_not_exists(email)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
		},
	})
	if err != nil {
		if isTransactionConflict(err) {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		return unavailable("create user", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, unavailable("get user", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

// GetByEmail resolves the email claim, then loads the user. Both reads are strongly consistent.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.emailsTable),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, unavailable("get email claim", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	uid, ok := out.Item[fieldUserID].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("email claim %q has no user_id", email)
	}
	return r.Get(ctx, uid.Value)
}

// MarkVerified flips is_verified from false to true.
// Returns ErrAlreadyVerified when the flag is already set, so concurrent verifications succeed once.
func (r *UserRepo) MarkVerified(ctx context.Context, userID string) error {
	now, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldUserID, userID),
		UpdateExpression:    aws.String("SET #v = :t, #u = :now"),
		ConditionExpression: aws.String("attribute_exists(#id) AND #v = :f"),
		ExpressionAttributeNames: map[string]string{
			"#v":  fieldIsVerified,
			"#u":  fieldUpdatedAt,
			"#id": fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberBOOL{Value: true},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
			":now": now,
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("user %s: %w", userID, domain.ErrAlreadyVerified)
		}
		return unavailable("mark verified", err)
	}
	return nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := r.Update(ctx, userID, map[string]interface{}{fieldPasswordHash: passwordHash})
	return err
}

// Update applies a partial update to an existing user and returns the stored result.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) (*domain.User, error) {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Names["#id"] = fieldUserID
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil, unavailable("update user", err)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Attributes, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

func isTransactionConflict(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
