package cases

import (
	"context"
	"sync"
	"time"
)

// In-process store for tests and small single-node deployments. A single
// mutex serializes number assignment; it is held only for map/slice updates,
// never across I/O.
type MemStore struct {
	mu       sync.Mutex
	nextID   uint
	counters map[string]int64
	byID     map[uint]*ModerationCase
	records  map[string][]*ModerationCase
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		counters: make(map[string]int64),
		byID:     make(map[uint]*ModerationCase),
		records:  make(map[string][]*ModerationCase),
	}
}

func (s *MemStore) CreateCase(ctx context.Context, params CreateParams) (*ModerationCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[params.CommunityID]++
	s.nextID++
	mc := &ModerationCase{
		ID:           s.nextID,
		CreatedAt:    time.Now().UTC(),
		CommunityID:  params.CommunityID,
		CaseNumber:   s.counters[params.CommunityID],
		TargetUserID: params.TargetUserID,
		ModeratorID:  params.ModeratorID,
		ActingAsID:   params.ActingAsID,
		Kind:         params.Kind,
		Reason:       params.Reason,
		Attachments:  params.Attachments,
		NoteDetails:  params.NoteDetails,
	}
	s.byID[mc.ID] = mc
	s.records[params.CommunityID] = append(s.records[params.CommunityID], mc)

	createdCount.WithLabelValues(mc.Kind.String()).Inc()
	out := *mc
	return &out, nil
}

func (s *MemStore) FindByCaseNumber(ctx context.Context, communityID string, number int64) (*ModerationCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mc := range s.records[communityID] {
		if mc.CaseNumber == number {
			out := *mc
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) SetHidden(ctx context.Context, caseID uint, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mc, ok := s.byID[caseID]
	if !ok {
		return ErrNotFound
	}
	mc.Hidden = hidden
	return nil
}

func (s *MemStore) AmendReason(ctx context.Context, caseID uint, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mc, ok := s.byID[caseID]
	if !ok {
		return ErrNotFound
	}
	mc.Reason = reason
	return nil
}

func (s *MemStore) CountByKindForUser(ctx context.Context, communityID, userID string, kind Kind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, mc := range s.records[communityID] {
		if mc.TargetUserID == userID && mc.Kind == kind {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) ListByUser(ctx context.Context, communityID, userID string, includeHidden bool) ([]ModerationCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ModerationCase
	for _, mc := range s.records[communityID] {
		if mc.TargetUserID != userID {
			continue
		}
		if mc.Hidden && !includeHidden {
			continue
		}
		out = append(out, *mc)
	}
	return out, nil
}
