package model

import "time"

// Token represents a row in the `tokens` table. The opaque token
// value doubles as the credential and the user identifier: there is
// no separate user record. The json tags are omitted because these
// structs are used by the repository layer; handlers define their
// own response types.
//
// Fields:
//  ID        – primary key identifier.
//  Value     – 24-character hex token string, unique across all rows
//              (active and inactive alike).
//  Purpose   – optional free-text label describing why the token was
//              issued. Nil when not supplied.
//  IsActive  – false once the token has been deactivated.
//  ExpiresAt – optional expiry. A token past this instant is treated
//              as expired even while IsActive is still true.
//  CreatedAt – timestamp of creation.
type Token struct {
	ID        uint64     // tokens.id
	Value     string     // tokens.value
	Purpose   *string    // tokens.purpose (nullable)
	IsActive  bool       // tokens.is_active
	ExpiresAt *time.Time // tokens.expires_at (nullable)
	CreatedAt time.Time  // tokens.created_at
}

// Usable reports whether the token may authorize an operation at the
// given instant: it must be active and either carry no expiry or one
// that is still in the future.
func (t Token) Usable(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	return t.ExpiresAt == nil || t.ExpiresAt.After(now)
}
