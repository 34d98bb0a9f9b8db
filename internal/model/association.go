package model

import "time"

// Association links one access token to one external social-media
// username. It maps a row in the `associations` table. The token is
// referenced by value, not by id, and the reference is weak: an
// association never keeps its token alive.
//
// A compound unique index covers (token_value, external_username)
// across all rows. Removal flips IsActive to false; adding the same
// pair again reactivates the existing row instead of inserting a
// second one, so the unique index is never violated by a re-add.
//
// Fields:
//  ID               – primary key identifier.
//  TokenValue       – value of the owning token.
//  ExternalUsername – normalized username (no leading @, 1-15 chars
//                     of letters, digits and underscores).
//  IsActive         – false once the association has been removed.
//  CreatedAt        – timestamp of creation; refreshed when a removed
//                     pair is re-added.
type Association struct {
	ID               uint64    // associations.id
	TokenValue       string    // associations.token_value
	ExternalUsername string    // associations.external_username
	IsActive         bool      // associations.is_active
	CreatedAt        time.Time // associations.created_at
}
