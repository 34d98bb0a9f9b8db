// Package service implements the token lifecycle and association
// business rules on top of the repository layer. All failures are
// surfaced as typed errors so handlers can map them to stable HTTP
// status codes without inspecting message text.
package service

import (
	"errors"
	"fmt"
)

// ErrTokenNotFound is returned when a token value or id does not
// resolve to an active token. A deactivated token is reported the
// same way as a missing one.
var ErrTokenNotFound = errors.New("token not found or inactive")

// ErrTokenExpired is returned when a token exists and is active but
// its expiry has passed.
var ErrTokenExpired = errors.New("token has expired")

// ErrGenerationExhausted is returned when every generation attempt
// collided with an existing token value.
var ErrGenerationExhausted = errors.New("failed to generate unique token after multiple attempts")

// ErrInvalidUsername is returned when a username does not match the
// 1-15 character letters/digits/underscore format after normalization.
var ErrInvalidUsername = errors.New("invalid username format")

// ErrAssociationNotFound is returned when no active association
// exists for a (token, username) pair.
var ErrAssociationNotFound = errors.New("association not found")

// QuotaError reports that a token has reached its association cap.
// It carries the observed count and the limit so handlers can
// include both in the response payload.
type QuotaError struct {
	Count int
	Limit int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("association quota exceeded (%d/%d)", e.Count, e.Limit)
}
