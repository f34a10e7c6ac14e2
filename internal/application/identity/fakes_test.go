package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rental-auth/internal/domain"
)

// memUsers is an in-memory credential store with the same conditional semantics as the DynamoDB repo.
type memUsers struct {
	mu      sync.Mutex
	byID    map[string]domain.User
	byEmail map[string]string
	failGet error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]domain.User{}, byEmail: map[string]string{}}
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	m.byID[u.UserID] = *u
	m.byEmail[u.Email] = u.UserID
	return nil
}

func (m *memUsers) Get(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	u, ok := m.byID[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	uid, ok := m.byEmail[email]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return m.Get(ctx, uid)
}

func (m *memUsers) MarkVerified(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok || u.IsVerified {
		return fmt.Errorf("user %s: %w", userID, domain.ErrAlreadyVerified)
	}
	u.IsVerified = true
	m.byID[userID] = u
	return nil
}

func (m *memUsers) UpdatePassword(ctx context.Context, userID, hash string) error {
	_, err := m.Update(ctx, userID, map[string]interface{}{"password_hash": hash})
	return err
}

func (m *memUsers) Update(_ context.Context, userID string, updates map[string]interface{}) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	for k, v := range updates {
		switch k {
		case "name":
			u.Name = v.(string)
		case "license_number":
			u.LicenseNumber = v.(string)
		case "license_file":
			f := v.(string)
			u.LicenseFile = &f
		case "is_license_verified":
			u.IsLicenseVerified = v.(bool)
		case "password_hash":
			u.PasswordHash = v.(string)
		default:
			return nil, fmt.Errorf("unexpected field %q", k)
		}
	}
	m.byID[userID] = u
	return &u, nil
}

func (m *memUsers) setLicenseVerified(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID[userID]
	u.IsLicenseVerified = true
	m.byID[userID] = u
}

// memOTPs is an in-memory OTP store. Records outlive their window here,
// so expiry checks in the service are exercised directly.
type memOTPs struct {
	mu          sync.Mutex
	codes       map[string]domain.OtpRecord
	attempts    map[string]counter
	failFind    error
	failDel     error
	failConsume error
	// onFind runs after a successful lookup, outside the lock.
	onFind func()
}

type counter struct {
	n   int
	exp time.Time
}

func newMemOTPs() *memOTPs {
	return &memOTPs{codes: map[string]domain.OtpRecord{}, attempts: map[string]counter{}}
}

func otpKey(userID string, purpose domain.Purpose, code string) string {
	return userID + "|" + string(purpose) + "|" + code
}

func (m *memOTPs) Put(_ context.Context, rec *domain.OtpRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[otpKey(rec.UserID, rec.Purpose, rec.Code)] = *rec
	return nil
}

func (m *memOTPs) Find(_ context.Context, userID string, purpose domain.Purpose, code string) (*domain.OtpRecord, error) {
	m.mu.Lock()
	if m.failFind != nil {
		m.mu.Unlock()
		return nil, m.failFind
	}
	rec, ok := m.codes[otpKey(userID, purpose, code)]
	hook := m.onFind
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	if hook != nil {
		hook()
	}
	return &rec, nil
}

func (m *memOTPs) Consume(_ context.Context, userID string, purpose domain.Purpose, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failConsume != nil {
		return m.failConsume
	}
	k := otpKey(userID, purpose, code)
	if _, ok := m.codes[k]; !ok {
		return fmt.Errorf("otp already consumed: %w", domain.ErrNotFound)
	}
	delete(m.codes, k)
	return nil
}

func (m *memOTPs) DeleteByPurpose(_ context.Context, userID string, purpose domain.Purpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDel != nil {
		return m.failDel
	}
	for k, rec := range m.codes {
		if rec.UserID == userID && rec.Purpose == purpose {
			delete(m.codes, k)
		}
	}
	delete(m.attempts, userID+"|"+string(purpose))
	return nil
}

func (m *memOTPs) IncrementAttempts(_ context.Context, userID string, purpose domain.Purpose, now time.Time, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := userID + "|" + string(purpose)
	c, ok := m.attempts[k]
	if !ok || !c.exp.After(now) {
		c = counter{exp: now.Add(ttl)}
	}
	c.n++
	m.attempts[k] = c
	return c.n, nil
}

func (m *memOTPs) count(userID string, purpose domain.Purpose) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.codes {
		if rec.UserID == userID && rec.Purpose == purpose {
			n++
		}
	}
	return n
}

// inbox records delivered codes per recipient and purpose-specific subject.
type inbox struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

type sentMail struct {
	to, subject, body string
}

func (b *inbox) SendEmail(_ context.Context, to, subject, body string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMail{to: to, subject: subject, body: body})
	return b.err
}

type discarded struct {
	mu   sync.Mutex
	keys []string
}

func (d *discarded) Discard(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = append(d.keys, key)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
