package domain

import (
	"strings"
	"time"
)

type User struct {
	UserID            string    `json:"id" dynamodbav:"user_id"`
	Name              string    `json:"name" dynamodbav:"name"`
	Email             string    `json:"email" dynamodbav:"email"`
	PasswordHash      string    `json:"-" dynamodbav:"password_hash"`
	LicenseNumber     string    `json:"license_number" dynamodbav:"license_number"`
	LicenseFile       *string   `json:"license_file" dynamodbav:"license_file"`
	IsVerified        bool      `json:"is_verified" dynamodbav:"is_verified"`
	IsLicenseVerified bool      `json:"is_license_verified" dynamodbav:"is_license_verified"`
	CreatedAt         time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt         time.Time `json:"updated" dynamodbav:"updated_at"`
}

// PublicUser is the only shape a user is ever serialized in.
type PublicUser struct {
	UserID            string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	LicenseNumber     string    `json:"license_number"`
	LicenseFile       *string   `json:"license_file"`
	IsVerified        bool      `json:"is_verified"`
	IsLicenseVerified bool      `json:"is_license_verified"`
	CreatedAt         time.Time `json:"created"`
	UpdatedAt         time.Time `json:"updated"`
}

func (u *User) ToPublic() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		UserID:            u.UserID,
		Name:              u.Name,
		Email:             u.Email,
		LicenseNumber:     u.LicenseNumber,
		LicenseFile:       u.LicenseFile,
		IsVerified:        u.IsVerified,
		IsLicenseVerified: u.IsLicenseVerified,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

// NormalizeEmail lower-cases and trims an address; emails are compared case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type SignupRequest struct {
	Name          string  `json:"name" validate:"required"`
	Email         string  `json:"email" validate:"required,email"`
	Password      string  `json:"password" validate:"required,password"`
	LicenseNumber string  `json:"licenseNumber" validate:"required"`
	LicenseFile   *string `json:"-"` // object key set by the upload collaborator
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric,len=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,numeric,len=6"`
	NewPassword string `json:"newPassword" validate:"required,password"`
}

type UpdateProfileRequest struct {
	Name          *string `json:"name"`
	LicenseNumber *string `json:"licenseNumber"`
	LicenseFile   *string `json:"-"`
}
