package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/go-rental-auth/internal/domain"
)

// codeSpace is the number of distinct 6-digit codes.
var codeSpace = big.NewInt(1_000_000)

// Policy is the single validity window shared by every purpose.
type Policy struct {
	Window time.Duration
}

// Expired reports whether issuedAt + window lies strictly before now.
func (p Policy) Expired(rec *domain.OtpRecord, now time.Time) bool {
	return rec.IssuedAt.Add(p.Window).Before(now)
}

// NewCode draws a uniform 6-digit code from crypto/rand.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
