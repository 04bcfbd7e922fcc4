// Append-only audit ledger of moderation cases.
//
// Every real-world moderation action produces exactly one case. Cases are
// numbered sequentially per community, starting at 1, with no gaps and no
// reuse; once created a case is immutable apart from the hidden flag and
// reason amendments.
package cases

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("case not found")

type Kind int

const (
	KindBan     = Kind(1)
	KindUnban   = Kind(2)
	KindNote    = Kind(3)
	KindWarn    = Kind(4)
	KindKick    = Kind(5)
	KindMute    = Kind(6)
	KindUnmute  = Kind(7)
	KindSoftban = Kind(9)
)

func (k Kind) String() string {
	switch k {
	case KindBan:
		return "ban"
	case KindUnban:
		return "unban"
	case KindNote:
		return "note"
	case KindWarn:
		return "warn"
	case KindKick:
		return "kick"
	case KindMute:
		return "mute"
	case KindUnmute:
		return "unmute"
	case KindSoftban:
		return "softban"
	default:
		return "<unknown>"
	}
}

// Ordered list of opaque references (attachment URLs, note lines), stored as
// a JSON column.
type StringList []string

func (l *StringList) Scan(v interface{}) error {
	if v == nil {
		*l = nil
		return nil
	}
	var b []byte
	switch tv := v.(type) {
	case []byte:
		b = tv
	case string:
		b = []byte(tv)
	default:
		return fmt.Errorf("unexpected type for string list column: %T", v)
	}
	if len(b) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(b, l)
}

func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l StringList) GormDataType() string {
	return "text"
}

type ModerationCase struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	CommunityID string `gorm:"uniqueIndex:idx_case_number;index:idx_case_target"`
	CaseNumber  int64  `gorm:"uniqueIndex:idx_case_number"`

	TargetUserID string `gorm:"index:idx_case_target"`
	ModeratorID  string
	// Set when a moderator acted on behalf of another identity.
	ActingAsID string

	Kind        Kind
	Reason      string
	Attachments StringList
	// Extra audit detail attached at creation, eg a failed-notification note.
	NoteDetails StringList

	Hidden bool
}

type CreateParams struct {
	CommunityID  string
	TargetUserID string
	ModeratorID  string
	ActingAsID   string
	Kind         Kind
	Reason       string
	Attachments  []string
	NoteDetails  []string
}

type Store interface {
	// CreateCase atomically assigns the community's next case number and
	// persists the record, returning it with the number filled in. Two
	// concurrent creations in one community never observe the same number,
	// and no number is skipped on success.
	CreateCase(ctx context.Context, params CreateParams) (*ModerationCase, error)
	FindByCaseNumber(ctx context.Context, communityID string, number int64) (*ModerationCase, error)
	// SetHidden toggles visibility. Idempotent.
	SetHidden(ctx context.Context, caseID uint, hidden bool) error
	AmendReason(ctx context.Context, caseID uint, reason string) error
	CountByKindForUser(ctx context.Context, communityID, userID string, kind Kind) (int64, error)
	ListByUser(ctx context.Context, communityID, userID string, includeHidden bool) ([]ModerationCase, error)
}
