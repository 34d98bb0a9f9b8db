// Package repository defines error types that are reused across
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios. For example, ErrTokenValueExists indicates that a
// generated token value collided with an existing row, while
// ErrAssociationExists signals that a (token, username) pair is
// already active.
package repository

import "errors"

// ErrTokenValueExists is returned when an insert into the tokens
// table violates the unique index on `value`. The token service
// retries generation a bounded number of times on this error.
var ErrTokenValueExists = errors.New("token value already exists")

// ErrAssociationExists is returned when the (token_value,
// external_username) pair already has an active row. The unique
// index on the pair is the authoritative check; the service-level
// duplicate lookup is only an advisory fast path.
var ErrAssociationExists = errors.New("association already exists")
