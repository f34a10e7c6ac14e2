package domain

import "time"

// Purpose scopes an OTP to the flow it was issued for.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

func (p Purpose) Valid() bool {
	return p == PurposeEmailVerification || p == PurposePasswordReset
}

// ExpiredRetention is how long a store keeps a code after its validity window,
// so a late attempt still finds the record and is reported as expired.
const ExpiredRetention = 15 * time.Minute

// OtpRecord is a one-time code bound to a user and purpose.
// ExpiresAt is the Unix time after which the store may purge the record. It lies
// ExpiredRetention past the validity window; validity is decided from IssuedAt.
type OtpRecord struct {
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Purpose   Purpose   `json:"purpose" dynamodbav:"purpose"`
	Code      string    `json:"code" dynamodbav:"code"`
	IssuedAt  time.Time `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"`
}
