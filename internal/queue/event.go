// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into an audit trail.
package queue

// Event kinds published on the token.events queue.
const (
	EventTokenGenerated     = "token.generated"
	EventTokenDeactivated   = "token.deactivated"
	EventAssociationAdded   = "association.added"
	EventAssociationRemoved = "association.removed"
)

// TokenEvent is published for every token and association lifecycle
// change. It carries enough information for downstream consumers to
// log or trigger analytics without querying the primary database.
// The token value is the sole credential, so only a short prefix of
// it ever leaves the service.
type TokenEvent struct {
	ID          string `json:"id"`   // uuid, unique per event
	Kind        string `json:"kind"` // one of the Event* constants
	TokenID     uint64 `json:"token_id,omitempty"`
	TokenPrefix string `json:"token_prefix,omitempty"` // first 6 chars of the value
	Username    string `json:"username,omitempty"`     // set on association events
	OccurredAt  string `json:"occurred_at"`            // RFC3339 UTC
}
