package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expiry is the fixed lifetime of a session token.
const Expiry = 2 * time.Hour

// Claims holds the JWT payload fields.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 JWTs.
type Provider struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewProvider(secret string) (*Provider, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &Provider{secret: []byte(secret), expiry: Expiry, now: time.Now}, nil
}

// WithClock replaces the time source used for iat, exp and validation.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

// Sign issues a token for the user and returns it with its issue and expiry times.
func (p *Provider) Sign(userID, email string) (string, time.Time, time.Time, error) {
	issuedAt := p.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(p.expiry)
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, issuedAt, expiresAt, nil
}

// Verify returns the claims of a valid token. Any failure yields an error and no claims.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
