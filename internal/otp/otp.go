// Package otp holds short-lived one-time-code tickets for unconfirmed
// identity claims: new registrations and password-reset requests.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// DefaultTTL is how long an issued code stays valid.
const DefaultTTL = 5 * time.Minute

var (
	// ErrNoTicket means no live ticket exists for the email.
	ErrNoTicket = errors.New("no OTP request found for this email")
	// ErrExpired means the ticket existed but its code has expired.
	ErrExpired = errors.New("OTP expired")
	// ErrCodeMismatch means the supplied code does not match. The ticket
	// is retained so the user may retry before expiry.
	ErrCodeMismatch = errors.New("invalid OTP")
)

// Payload is the data parked on a ticket until the code is verified.
// Password is plaintext and only ever held transiently in the store.
type Payload struct {
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
}

// Store is a time-boundable holding area keyed by normalized email.
// At most one live ticket exists per email; Issue overwrites any prior
// ticket. A successful Verify consumes the ticket (single use).
type Store interface {
	Issue(ctx context.Context, email string, payload Payload) (code string, err error)
	Verify(ctx context.Context, email, code string) (Payload, error)
	Evict(ctx context.Context, email string) error
}

// GenerateCode returns a uniformly random 6-digit code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
