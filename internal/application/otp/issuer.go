package otp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rental-auth/internal/domain"
	"github.com/go-rental-auth/internal/pkg/metrics"
)

// Repo persists one-time codes and their failed-attempt counters.
type Repo interface {
	Put(ctx context.Context, rec *domain.OtpRecord) error
	Find(ctx context.Context, userID string, purpose domain.Purpose, code string) (*domain.OtpRecord, error)
	// Consume deletes a single code and reports ErrNotFound if it was already gone.
	Consume(ctx context.Context, userID string, purpose domain.Purpose, code string) error
	DeleteByPurpose(ctx context.Context, userID string, purpose domain.Purpose) error
	// IncrementAttempts atomically counts one attempt in a window of ttl starting at now.
	IncrementAttempts(ctx context.Context, userID string, purpose domain.Purpose, now time.Time, ttl time.Duration) (int, error)
}

// Notifier delivers a message to an email address.
type Notifier interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type IssuerDeps struct {
	Repo          Repo
	Notifier      Notifier
	Policy        Policy
	NotifyTimeout time.Duration
	Logger        *slog.Logger
	// Clock and NewCode default to time.Now and the crypto/rand generator.
	Clock   func() time.Time
	NewCode func() (string, error)
}

// Issuer creates codes, stores them and hands them to the Notifier.
type Issuer struct {
	repo          Repo
	notifier      Notifier
	policy        Policy
	notifyTimeout time.Duration
	log           *slog.Logger
	now           func() time.Time
	newCode       func() (string, error)
}

func NewIssuer(d IssuerDeps) *Issuer {
	i := &Issuer{
		repo:          d.Repo,
		notifier:      d.Notifier,
		policy:        d.Policy,
		notifyTimeout: d.NotifyTimeout,
		log:           d.Logger,
		now:           d.Clock,
		newCode:       d.NewCode,
	}
	if i.log == nil {
		i.log = slog.Default()
	}
	if i.now == nil {
		i.now = time.Now
	}
	if i.newCode == nil {
		i.newCode = NewCode
	}
	return i
}

func (i *Issuer) Policy() Policy { return i.policy }

// Issue persists a fresh code for the user and purpose, then attempts delivery.
// Only persistence errors are returned; the code stays valid when delivery fails.
func (i *Issuer) Issue(ctx context.Context, u *domain.User, purpose domain.Purpose) (*domain.OtpRecord, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("unknown otp purpose %q: %w", purpose, domain.ErrValidation)
	}
	code, err := i.newCode()
	if err != nil {
		return nil, err
	}
	issuedAt := i.now().UTC()
	rec := &domain.OtpRecord{
		UserID:    u.UserID,
		Purpose:   purpose,
		Code:      code,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(i.policy.Window + domain.ExpiredRetention).Unix(),
	}
	if err := i.repo.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}
	metrics.OTPIssued.WithLabelValues(string(purpose)).Inc()

	i.deliver(ctx, u, rec)
	return rec, nil
}

// deliver runs on a context that survives request cancellation but is bounded by notifyTimeout.
func (i *Issuer) deliver(ctx context.Context, u *domain.User, rec *domain.OtpRecord) {
	sendCtx := context.WithoutCancel(ctx)
	if i.notifyTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(sendCtx, i.notifyTimeout)
		defer cancel()
	}

	msg := render(rec.Purpose, u.Name, rec.Code, i.policy.Window)
	if err := i.notifier.SendEmail(sendCtx, u.Email, msg.Subject, msg.Body); err != nil {
		metrics.OTPDeliveryFailures.WithLabelValues(string(rec.Purpose)).Inc()
		i.log.Warn("otp delivery failed", "user_id", u.UserID, "purpose", rec.Purpose, "err", err)
		return
	}
	i.log.Info("otp sent", "user_id", u.UserID, "purpose", rec.Purpose)
}
