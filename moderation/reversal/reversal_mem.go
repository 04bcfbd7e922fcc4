package reversal

import (
	"context"
	"sync"
	"time"
)

type MemStore struct {
	mu      sync.Mutex
	nextID  uint
	records map[string]*Reversal
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]*Reversal),
	}
}

func recordKey(communityID, targetUserID string, kind Kind) string {
	return communityID + "/" + targetUserID + "/" + kind.String()
}

func (s *MemStore) Upsert(ctx context.Context, rev *Reversal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(rev.CommunityID, rev.TargetUserID, rev.Kind)
	if existing, ok := s.records[key]; ok {
		existing.ExpiresAt = rev.ExpiresAt
		rev.ID = existing.ID
		return nil
	}
	s.nextID++
	rev.ID = s.nextID
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now().UTC()
	}
	cp := *rev
	s.records[key] = &cp
	return nil
}

func (s *MemStore) Remove(ctx context.Context, communityID, targetUserID string, kind Kind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey(communityID, targetUserID, kind)
	_, ok := s.records[key]
	delete(s.records, key)
	return ok, nil
}

func (s *MemStore) Find(ctx context.Context, communityID, targetUserID string, kind Kind) (*Reversal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rev, ok := s.records[recordKey(communityID, targetUserID, kind)]
	if !ok {
		return nil, nil
	}
	cp := *rev
	return &cp, nil
}

func (s *MemStore) TakeExpired(ctx context.Context, now time.Time) ([]Reversal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var taken []Reversal
	for key, rev := range s.records {
		if !rev.ExpiresAt.After(now) {
			taken = append(taken, *rev)
			delete(s.records, key)
		}
	}
	return taken, nil
}

func (s *MemStore) ListPending(ctx context.Context) ([]Reversal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Reversal, 0, len(s.records))
	for _, rev := range s.records {
		out = append(out, *rev)
	}
	return out, nil
}
