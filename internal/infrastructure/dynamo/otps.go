package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-rental-auth/internal/domain"
)

const (
	attemptsSuffix = "attempts"
	batchWriteMax  = 25
	batchRetries   = 3
)

// OTPRepo manages one-time codes.
// PK: user_id, SK: "<purpose>#<code>"; the failed-attempt counter lives at "<purpose>#attempts".
// expires_at is the table TTL attribute, so DynamoDB removes stale items on its own.
type OTPRepo struct {
	client    API
	tableName string
}

func NewOTPRepo(client API, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

func codeKey(purpose domain.Purpose, code string) string {
	return string(purpose) + "#" + code
}

func attemptsKey(purpose domain.Purpose) string {
	return string(purpose) + "#" + attemptsSuffix
}

func (r *OTPRepo) Put(ctx context.Context, rec *domain.OtpRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	item[fieldSortKey] = &types.AttributeValueMemberS{Value: codeKey(rec.Purpose, rec.Code)}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return unavailable("put otp", err)
	}
	return nil
}

// Find returns the record matching user, purpose and code exactly.
func (r *OTPRepo) Find(ctx context.Context, userID string, purpose domain.Purpose, code string) (*domain.OtpRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            compositeKey(fieldUserID, userID, fieldSortKey, codeKey(purpose, code)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, unavailable("get otp", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	var rec domain.OtpRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal otp: %w", err)
	}
	return &rec, nil
}

// Consume deletes one code on the condition that it still exists, so concurrent
// callers holding the same code cannot both consume it.
func (r *OTPRepo) Consume(ctx context.Context, userID string, purpose domain.Purpose, code string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      compositeKey(fieldUserID, userID, fieldSortKey, codeKey(purpose, code)),
		ConditionExpression:      aws.String("attribute_exists(#sk)"),
		ExpressionAttributeNames: map[string]string{"#sk": fieldSortKey},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("otp already consumed: %w", domain.ErrNotFound)
	}
	if err != nil {
		return unavailable("consume otp", err)
	}
	return nil
}

// DeleteByPurpose removes every code and the attempt counter for the user and purpose.
func (r *OTPRepo) DeleteByPurpose(ctx context.Context, userID string, purpose domain.Purpose) error {
	var keys []map[string]types.AttributeValue
	var start map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("#pk = :uid AND begins_with(#sk, :prefix)"),
			ExpressionAttributeNames: map[string]string{
				"#pk": fieldUserID,
				"#sk": fieldSortKey,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid":    &types.AttributeValueMemberS{Value: userID},
				":prefix": &types.AttributeValueMemberS{Value: string(purpose) + "#"},
			},
			ProjectionExpression: aws.String("#pk, #sk"),
			ConsistentRead:       aws.Bool(true),
			ExclusiveStartKey:    start,
		})
		if err != nil {
			return unavailable("query otps", err)
		}
		keys = append(keys, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}

	for i := 0; i < len(keys); i += batchWriteMax {
		end := min(i+batchWriteMax, len(keys))
		reqs := make([]types.WriteRequest, 0, end-i)
		for _, k := range keys[i:end] {
			reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}
		if err := r.batchDelete(ctx, reqs); err != nil {
			return err
		}
	}
	return nil
}

func (r *OTPRepo) batchDelete(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{r.tableName: reqs}
	for attempt := 0; attempt < batchRetries && len(pending[r.tableName]) > 0; attempt++ {
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return unavailable("delete otps", err)
		}
		pending = out.UnprocessedItems
	}
	if n := len(pending[r.tableName]); n > 0 {
		return fmt.Errorf("delete otps: %d items unprocessed: %w", n, domain.ErrUnavailable)
	}
	return nil
}

// IncrementAttempts counts one attempt and returns the new total. The counter
// expires ttl after the first attempt in the window. A counter whose expires_at has
// passed restarts at one, since TTL deletion lags behind expires_at.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, userID string, purpose domain.Purpose, now time.Time, ttl time.Duration) (int, error) {
	key := compositeKey(fieldUserID, userID, fieldSortKey, attemptsKey(purpose))
	names := map[string]string{"#a": fieldAttempts, "#e": fieldExpiresAt}
	values := map[string]types.AttributeValue{
		":one": &types.AttributeValueMemberN{Value: "1"},
		":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		":exp": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttl).Unix(), 10)},
	}

	for attempt := 0; attempt < 2; attempt++ {
		out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(r.tableName),
			Key:                       key,
			UpdateExpression:          aws.String("ADD #a :one SET #e = if_not_exists(#e, :exp)"),
			ConditionExpression:       aws.String("attribute_not_exists(#e) OR #e > :now"),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ReturnValues:              types.ReturnValueAllNew,
		})
		if err == nil {
			return parseAttempts(out.Attributes), nil
		}
		if !isConditionFailed(err) {
			return 0, unavailable("increment otp attempts", err)
		}

		// Stale counter: restart it. Only one concurrent caller wins the reset,
		// the others go round again and add to the fresh counter.
		out, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(r.tableName),
			Key:                       key,
			UpdateExpression:          aws.String("SET #a = :one, #e = :exp"),
			ConditionExpression:       aws.String("#e <= :now"),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ReturnValues:              types.ReturnValueAllNew,
		})
		if err == nil {
			return parseAttempts(out.Attributes), nil
		}
		if !isConditionFailed(err) {
			return 0, unavailable("reset otp attempts", err)
		}
	}
	return 0, fmt.Errorf("increment otp attempts: counter contended: %w", domain.ErrUnavailable)
}

func parseAttempts(item map[string]types.AttributeValue) int {
	v, ok := item[fieldAttempts].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(v.Value)
	return n
}
