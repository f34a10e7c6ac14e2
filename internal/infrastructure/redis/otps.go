package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/go-rental-auth/internal/domain"
)

const (
	keyPrefix   = "otp:"
	attemptsKey = "attempts"
	scanCount   = 100
)

// OTPRepo stores one-time codes as JSON values that Redis purges at the record's ExpiresAt.
// Layout: otp:<user>:<purpose>:<code> and otp:<user>:<purpose>:attempts.
type OTPRepo struct {
	client *goredis.Client
}

func NewOTPRepo(client *goredis.Client) *OTPRepo {
	return &OTPRepo{client: client}
}

func purposePrefix(userID string, purpose domain.Purpose) string {
	return keyPrefix + userID + ":" + string(purpose) + ":"
}

func codeKey(userID string, purpose domain.Purpose, code string) string {
	return purposePrefix(userID, purpose) + code
}

func counterKey(userID string, purpose domain.Purpose) string {
	return purposePrefix(userID, purpose) + attemptsKey
}

func unavailable(op string, err error) error {
	return fmt.Errorf("redis %s: %w: %w", op, domain.ErrUnavailable, err)
}

// Put saves the record until its ExpiresAt. The TTL is measured from IssuedAt so it
// does not depend on the local clock agreeing with the issuer's.
func (r *OTPRepo) Put(ctx context.Context, rec *domain.OtpRecord) error {
	ttl := time.Unix(rec.ExpiresAt, 0).Sub(rec.IssuedAt)
	if ttl <= 0 {
		return fmt.Errorf("otp for %s already expired", rec.UserID)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}

	if err := r.client.Set(ctx, codeKey(rec.UserID, rec.Purpose, rec.Code), data, ttl).Err(); err != nil {
		return unavailable("set otp", err)
	}
	return nil
}

func (r *OTPRepo) Find(ctx context.Context, userID string, purpose domain.Purpose, code string) (*domain.OtpRecord, error) {
	data, err := r.client.Get(ctx, codeKey(userID, purpose, code)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
		}
		return nil, unavailable("get otp", err)
	}

	var rec domain.OtpRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal otp: %w", err)
	}
	return &rec, nil
}

// Consume deletes one code. Only the caller whose DEL removed the key gets nil,
// so a code is consumed at most once.
func (r *OTPRepo) Consume(ctx context.Context, userID string, purpose domain.Purpose, code string) error {
	n, err := r.client.Del(ctx, codeKey(userID, purpose, code)).Result()
	if err != nil {
		return unavailable("del otp", err)
	}
	if n == 0 {
		return fmt.Errorf("otp already consumed: %w", domain.ErrNotFound)
	}
	return nil
}

// DeleteByPurpose removes every code and the attempt counter for the user and purpose.
func (r *OTPRepo) DeleteByPurpose(ctx context.Context, userID string, purpose domain.Purpose) error {
	iter := r.client.Scan(ctx, 0, purposePrefix(userID, purpose)+"*", scanCount).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return unavailable("scan otps", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable("del otps", err)
	}
	return nil
}

// IncrementAttempts counts one attempt and returns the new total. The counter
// expires ttl after the first attempt in the window; Redis owns that clock, so now is unused.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, userID string, purpose domain.Purpose, _ time.Time, ttl time.Duration) (int, error) {
	key := counterKey(userID, purpose)
	var incr *goredis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, unavailable("incr otp attempts", err)
	}
	return int(incr.Val()), nil
}
