package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-rental-auth/internal/domain"
	redisinfra "github.com/go-rental-auth/internal/infrastructure/redis"
)

func newRedisEnv(t *testing.T) (*env, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	e := &env{}
	e.build(t, redisinfra.NewOTPRepo(client))
	return e, mr
}

func TestRedis_VerifyEmail_ExpiredCodeIsReportedAsExpired(t *testing.T) {
	e, mr := newRedisEnv(t)
	ctx := context.Background()
	_, err := e.svc.Signup(ctx, signupReq())
	require.NoError(t, err)

	mr.FastForward(11 * time.Minute)
	e.clock.Advance(11 * time.Minute)

	err = e.svc.VerifyEmail(ctx, "a@x.com", e.lastCode())
	assert.True(t, errors.Is(err, domain.ErrExpiredOTP), err)
	assert.False(t, errors.Is(err, domain.ErrInvalidOTP))
}

func TestRedis_ResetPassword_ExpiredCodeIsReportedAsExpired(t *testing.T) {
	e, mr := newRedisEnv(t)
	ctx := context.Background()
	e.verifiedUser(t)
	require.NoError(t, e.svc.ForgotPassword(ctx, "a@x.com"))

	mr.FastForward(14 * time.Minute)
	e.clock.Advance(14 * time.Minute)

	err := e.svc.ResetPassword(ctx, "a@x.com", e.lastCode(), "N3wPassw0rd!")
	assert.True(t, errors.Is(err, domain.ErrExpiredOTP), err)
}

func TestRedis_VerifyEmail_ConcurrentWrongGuessesStopAtLimit(t *testing.T) {
	e, _ := newRedisEnv(t)
	ctx := context.Background()
	_, err := e.svc.Signup(ctx, signupReq())
	require.NoError(t, err)

	const guesses = 50
	var wg sync.WaitGroup
	errs := make([]error, guesses)
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.svc.VerifyEmail(ctx, "a@x.com", "000000")
		}(i)
	}
	wg.Wait()

	invalid, locked := 0, 0
	for _, err := range errs {
		switch {
		case errors.Is(err, domain.ErrInvalidOTP):
			invalid++
		case errors.Is(err, domain.ErrTooManyAttempts):
			locked++
		}
	}
	assert.Equal(t, 5, invalid)
	assert.Equal(t, guesses-5, locked)
}

func TestRedis_ScenarioSignupVerifyLogin(t *testing.T) {
	e, _ := newRedisEnv(t)
	ctx := context.Background()
	_, err := e.svc.Signup(ctx, signupReq())
	require.NoError(t, err)

	require.NoError(t, e.svc.VerifyEmail(ctx, "a@x.com", e.lastCode()))
	res, err := e.svc.Login(ctx, "a@x.com", "Passw0rd@")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}
