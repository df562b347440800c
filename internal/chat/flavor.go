package chat

import "github.com/swapmeet-dev/swapmeet/internal/models"

// Policy describes how a chat flavor behaves. Both flavors share one engine;
// the two knobs below are the only places they diverge.
//
// The history divergence is deliberate product behavior, not drift: trade
// chat shows the full thread to both parties regardless of when they open
// it, while meetup chat scopes visibility to the member's current session
// (messages sent after their most recent entry).
type Policy struct {
	// SessionScoped limits history to messages sent after the requesting
	// member's LastEnteredAt.
	SessionScoped bool

	// PairCardinality means the room is created with exactly two
	// memberships and never accepts more.
	PairCardinality bool
}

var policies = map[models.Flavor]Policy{
	models.FlavorTrade:  {SessionScoped: false, PairCardinality: true},
	models.FlavorMeetup: {SessionScoped: true, PairCardinality: false},
}

// PolicyFor returns the behavior policy for a flavor.
func PolicyFor(f models.Flavor) Policy {
	return policies[f]
}

// Topic is the live-delivery channel identifier for a room.
func Topic(f models.Flavor, roomID string) string {
	return "chat/" + string(f) + "/" + roomID
}
