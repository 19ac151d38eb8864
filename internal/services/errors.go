package services

import "errors"

// Sentinel errors surfaced by the service layer. Handlers map these to
// HTTP statuses; the OTP ticket errors live in the otp package.
var (
	ErrDuplicateAccount   = errors.New("an account with this email already exists")
	ErrUserNotFound       = errors.New("no user found")
	ErrInvalidCredentials = errors.New("email or password incorrect")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrEmailDelivery      = errors.New("failed to send OTP")
	ErrRecommenderDown    = errors.New("recommendation service unavailable")
)
