package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-rental-auth/internal/application/otp"
	"github.com/go-rental-auth/internal/domain"
	"github.com/go-rental-auth/internal/pkg/id"
	"github.com/go-rental-auth/internal/pkg/metrics"
	"github.com/go-rental-auth/internal/pkg/validate"
)

// UserStore is the credential store the service needs.
type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	MarkVerified(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) (*domain.User, error)
}

// OTPIssuer creates and dispatches one-time codes.
type OTPIssuer interface {
	Issue(ctx context.Context, u *domain.User, purpose domain.Purpose) (*domain.OtpRecord, error)
}

// TokenSigner mints session tokens.
type TokenSigner interface {
	Sign(userID, email string) (token string, issuedAt, expiresAt time.Time, err error)
}

// LicenseFiles removes license documents that never got attached to a user.
type LicenseFiles interface {
	Discard(ctx context.Context, key string)
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

type Service interface {
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, error)
	VerifyEmail(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error)
}

// ServiceDeps groups the collaborators of the identity service.
type ServiceDeps struct {
	UserRepo     UserStore
	OTPRepo      otp.Repo
	Issuer       OTPIssuer
	Tokens       TokenSigner
	Licenses     LicenseFiles
	Policy       otp.Policy
	MaxAttempts  int
	BcryptCost   int
	StoreTimeout time.Duration
	Logger       *slog.Logger
	Clock        func() time.Time
}

type service struct {
	users        UserStore
	otps         otp.Repo
	issuer       OTPIssuer
	tokens       TokenSigner
	licenses     LicenseFiles
	policy       otp.Policy
	maxAttempts  int
	bcryptCost   int
	storeTimeout time.Duration
	log          *slog.Logger
	now          func() time.Time
}

func NewService(d ServiceDeps) Service {
	s := &service{
		users:        d.UserRepo,
		otps:         d.OTPRepo,
		issuer:       d.Issuer,
		tokens:       d.Tokens,
		licenses:     d.Licenses,
		policy:       d.Policy,
		maxAttempts:  d.MaxAttempts,
		bcryptCost:   d.BcryptCost,
		storeTimeout: d.StoreTimeout,
		log:          d.Logger,
		now:          d.Clock,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	return s
}

// bound caps the store work of one operation. Notifier dispatch sets its own deadline.
func (s *service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func invalid(err error) error {
	return fmt.Errorf("%s: %w", err.Error(), domain.ErrValidation)
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	req.Name = strings.TrimSpace(req.Name)
	req.Email = domain.NormalizeEmail(req.Email)
	req.LicenseNumber = strings.TrimSpace(req.LicenseNumber)
	if strings.TrimSpace(req.Password) == "" {
		req.Password = ""
	}
	if err := validate.Struct(req); err != nil {
		s.discardLicense(ctx, req.LicenseFile)
		return nil, invalid(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:        id.New(),
		Name:          req.Name,
		Email:         req.Email,
		PasswordHash:  string(hash),
		LicenseNumber: req.LicenseNumber,
		LicenseFile:   req.LicenseFile,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		s.discardLicense(ctx, req.LicenseFile)
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", "user_id", u.UserID)

	// The account exists even when the code could not be stored; resend-verification recovers it.
	if _, err := s.issuer.Issue(ctx, u, domain.PurposeEmailVerification); err != nil {
		return nil, fmt.Errorf("issue verification code: %w", err)
	}
	return u, nil
}

func (s *service) VerifyEmail(ctx context.Context, email, code string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := validate.Struct(domain.VerifyEmailRequest{Email: domain.NormalizeEmail(email), OTP: code}); err != nil {
		return invalid(err)
	}
	u, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	if u.IsVerified {
		return fmt.Errorf("user %s: %w", u.UserID, domain.ErrAlreadyVerified)
	}
	purpose := domain.PurposeEmailVerification
	if err := s.checkCode(ctx, u, purpose, code); err != nil {
		return err
	}
	if err := s.users.MarkVerified(ctx, u.UserID); err != nil {
		if errors.Is(err, domain.ErrAlreadyVerified) {
			metrics.OTPVerifications.WithLabelValues(string(purpose), metrics.ResultLostRace).Inc()
		}
		return fmt.Errorf("mark verified: %w", err)
	}
	metrics.OTPVerifications.WithLabelValues(string(purpose), metrics.ResultOK).Inc()
	s.consume(ctx, u.UserID, purpose)
	s.log.Info("email verified", "user_id", u.UserID)
	return nil
}

func (s *service) ResendVerification(ctx context.Context, email string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	u, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	if u.IsVerified {
		return fmt.Errorf("user %s: %w", u.UserID, domain.ErrAlreadyVerified)
	}
	if _, err := s.issuer.Issue(ctx, u, domain.PurposeEmailVerification); err != nil {
		return fmt.Errorf("issue verification code: %w", err)
	}
	return nil
}

func (s *service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	u, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if !u.IsVerified {
		return nil, fmt.Errorf("verify your email before logging in: %w", domain.ErrUnverified)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}
	token, _, expiresAt, err := s.tokens.Sign(u.UserID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

func (s *service) ForgotPassword(ctx context.Context, email string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	u, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	if _, err := s.issuer.Issue(ctx, u, domain.PurposePasswordReset); err != nil {
		return fmt.Errorf("issue reset code: %w", err)
	}
	return nil
}

func (s *service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	req := domain.ResetPasswordRequest{Email: domain.NormalizeEmail(email), OTP: code, NewPassword: newPassword}
	if err := validate.Struct(req); err != nil {
		return invalid(err)
	}
	u, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}
	purpose := domain.PurposePasswordReset
	if err := s.checkCode(ctx, u, purpose, code); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	// The conditional delete lets exactly one request holding the code through.
	if err := s.otps.Consume(ctx, u.UserID, purpose, code); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.OTPVerifications.WithLabelValues(string(purpose), metrics.ResultLostRace).Inc()
			return fmt.Errorf("code already used: %w", domain.ErrInvalidOTP)
		}
		return fmt.Errorf("consume reset code: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, u.UserID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	metrics.OTPVerifications.WithLabelValues(string(purpose), metrics.ResultOK).Inc()
	s.consume(ctx, u.UserID, purpose)
	s.log.Info("password reset", "user_id", u.UserID)
	return nil
}

func (s *service) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.users.Get(ctx, userID)
}

// UpdateProfile changes name, license number and license document. A new document
// clears the license verification flag and replaces the previous object.
func (s *service) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			s.discardLicense(ctx, req.LicenseFile)
			return nil, fmt.Errorf("name must not be empty: %w", domain.ErrValidation)
		}
		updates["name"] = name
	}
	if req.LicenseNumber != nil {
		ln := strings.TrimSpace(*req.LicenseNumber)
		if ln == "" {
			s.discardLicense(ctx, req.LicenseFile)
			return nil, fmt.Errorf("license number must not be empty: %w", domain.ErrValidation)
		}
		updates["license_number"] = ln
	}

	var previous *string
	if req.LicenseFile != nil {
		current, err := s.users.Get(ctx, userID)
		if err != nil {
			s.discardLicense(ctx, req.LicenseFile)
			return nil, err
		}
		previous = current.LicenseFile
		updates["license_file"] = *req.LicenseFile
		updates["is_license_verified"] = false
	}
	if len(updates) == 0 {
		return s.users.Get(ctx, userID)
	}

	u, err := s.users.Update(ctx, userID, updates)
	if err != nil {
		s.discardLicense(ctx, req.LicenseFile)
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if previous != nil && req.LicenseFile != nil && *previous != *req.LicenseFile {
		s.discardLicense(ctx, previous)
	}
	return u, nil
}

func (s *service) lookup(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrValidation)
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// checkCode accepts a code only if the purpose is not locked out, the exact
// {user, purpose, code} record exists and its window has not passed.
// Every attempt is counted before the code is looked at, so concurrent guesses
// cannot get past the limit; a successful flow clears the counter with the codes.
func (s *service) checkCode(ctx context.Context, u *domain.User, purpose domain.Purpose, code string) error {
	result := func(r string) { metrics.OTPVerifications.WithLabelValues(string(purpose), r).Inc() }

	if s.maxAttempts > 0 {
		n, err := s.otps.IncrementAttempts(ctx, u.UserID, purpose, s.now(), s.policy.Window)
		if err != nil {
			result(metrics.ResultStoreFailure)
			return fmt.Errorf("count otp attempt: %w", err)
		}
		if n > s.maxAttempts {
			result(metrics.ResultLocked)
			return fmt.Errorf("too many wrong codes, try again later: %w", domain.ErrTooManyAttempts)
		}
	}

	rec, err := s.otps.Find(ctx, u.UserID, purpose, code)
	if errors.Is(err, domain.ErrNotFound) {
		result(metrics.ResultInvalid)
		return fmt.Errorf("code does not match: %w", domain.ErrInvalidOTP)
	}
	if err != nil {
		result(metrics.ResultStoreFailure)
		return fmt.Errorf("find otp: %w", err)
	}
	if s.policy.Expired(rec, s.now()) {
		result(metrics.ResultExpired)
		if purpose == domain.PurposeEmailVerification {
			return fmt.Errorf("code expired, request a new one via resend-verification: %w", domain.ErrExpiredOTP)
		}
		return fmt.Errorf("code expired, request a new one via forgot-password: %w", domain.ErrExpiredOTP)
	}
	return nil
}

// consume drops every outstanding code and the attempt counter once the flow is committed.
// A failure only leaves codes the user was already sent, so it is logged and not returned.
func (s *service) consume(ctx context.Context, userID string, purpose domain.Purpose) {
	if err := s.otps.DeleteByPurpose(ctx, userID, purpose); err != nil {
		s.log.Warn("could not delete used otps", "user_id", userID, "purpose", purpose, "err", err)
	}
}

func (s *service) discardLicense(ctx context.Context, key *string) {
	if key == nil || s.licenses == nil {
		return
	}
	s.licenses.Discard(context.WithoutCancel(ctx), *key)
}
