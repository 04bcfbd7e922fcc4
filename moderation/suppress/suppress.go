// Self-action suppression markers.
//
// When the orchestrator performs an action (eg, a ban), the platform gateway
// later echoes the same state change back as an observed event. A marker
// registered here just before the action lets the event-ingestion path tell
// bot-initiated changes apart from manual ones, so an action never produces
// a duplicate audit case.
//
// Includes an interface and implementations using redis and in-process memory.
package suppress

import (
	"context"
	"time"
)

type EventKind string

const (
	EventBan    = EventKind("ban")
	EventUnban  = EventKind("unban")
	EventKick   = EventKind("kick")
	EventMute   = EventKind("mute")
	EventUnmute = EventKind("unmute")
)

// How long an unconsumed marker stays valid. Tuned to gateway event delivery
// latency; anything still around after this is stale and must not hide a
// genuinely manual action.
const DefaultWindow = 15 * time.Second

type Registry interface {
	// Mark registers a single-use marker for the key. A marker already
	// present for the same key is left in place (first write wins).
	Mark(ctx context.Context, kind EventKind, communityID, userID string) error
	// Consume atomically checks for and removes a matching unexpired marker,
	// returning whether one was found. At most one Consume call can return
	// true per Mark.
	Consume(ctx context.Context, kind EventKind, communityID, userID string) (bool, error)
}

func markerKey(kind EventKind, communityID, userID string) string {
	return string(kind) + "/" + communityID + "/" + userID
}
