package handler

import (
	"context"
	"io"

	"github.com/go-rental-auth/internal/application/identity"
	"github.com/go-rental-auth/internal/domain"
	"github.com/stretchr/testify/mock"
)

type mockIdentity struct{ mock.Mock }

func (m *mockIdentity) Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockIdentity) VerifyEmail(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

func (m *mockIdentity) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockIdentity) Login(ctx context.Context, email, password string) (*identity.LoginResult, error) {
	args := m.Called(ctx, email, password)
	res, _ := args.Get(0).(*identity.LoginResult)
	return res, args.Error(1)
}

func (m *mockIdentity) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockIdentity) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	return m.Called(ctx, email, code, newPassword).Error(0)
}

func (m *mockIdentity) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockIdentity) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	args := m.Called(ctx, userID, req)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

type mockIntake struct{ mock.Mock }

func (m *mockIntake) Accept(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(filename, string(body))
	return args.String(0), args.Error(1)
}
