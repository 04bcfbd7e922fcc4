// Scheduled reversal of temporary moderation actions.
//
// A temporary ban or mute records a pending reversal with an expiry. A
// background loop sweeps the store on a coarse interval and fires the
// reversal action through the orchestrator, so the reversal itself produces
// a normal case and suppression marker. Records survive restarts; firing and
// cancellation both claim a record atomically at the store, so no record can
// fire twice or fire after cancellation.
package reversal

import (
	"context"
	"time"
)

type Kind int

const (
	// reversal actions, not the original actions: a temp-ban pends an unban
	KindUnban  = Kind(1)
	KindUnmute = Kind(2)
)

func (k Kind) String() string {
	switch k {
	case KindUnban:
		return "unban"
	case KindUnmute:
		return "unmute"
	default:
		return "<unknown>"
	}
}

type Reversal struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	CommunityID  string `gorm:"uniqueIndex:idx_reversal_pending"`
	TargetUserID string `gorm:"uniqueIndex:idx_reversal_pending"`
	Kind         Kind   `gorm:"uniqueIndex:idx_reversal_pending"`

	ExpiresAt time.Time `gorm:"index"`
}

type Store interface {
	// Upsert inserts a pending reversal, or replaces the expiry of an
	// existing one for the same (community, target, kind). Last write wins;
	// at most one pending record per logical action.
	Upsert(ctx context.Context, rev *Reversal) error
	// Remove deletes a pending record if present, reporting whether it did.
	// The returned bool is the claim: only a caller that got true may treat
	// the record as its own.
	Remove(ctx context.Context, communityID, targetUserID string, kind Kind) (bool, error)
	Find(ctx context.Context, communityID, targetUserID string, kind Kind) (*Reversal, error)
	// TakeExpired atomically removes and returns every record whose expiry
	// has elapsed. A record is returned by exactly one TakeExpired call.
	TakeExpired(ctx context.Context, now time.Time) ([]Reversal, error)
	// ListPending returns all pending records, for startup reporting.
	ListPending(ctx context.Context) ([]Reversal, error)
}
