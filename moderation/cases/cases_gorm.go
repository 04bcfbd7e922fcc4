package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tracks the highest case number handed out per community. Rows are locked
// for update inside the creation transaction, which serializes number
// assignment within a community without any process-level locking.
type caseCounter struct {
	CommunityID    string `gorm:"primarykey"`
	LastCaseNumber int64
}

func (caseCounter) TableName() string {
	return "case_counters"
}

type GormStore struct {
	db *gorm.DB
	// read cache for number lookups; invalidated on hide/amend
	cache *lru.Cache[string, *ModerationCase]
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&ModerationCase{}, &caseCounter{}); err != nil {
		return nil, fmt.Errorf("migrating case tables: %w", err)
	}
	cache, err := lru.New[string, *ModerationCase](10_000)
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db, cache: cache}, nil
}

func cacheKey(communityID string, number int64) string {
	return fmt.Sprintf("%s/%d", communityID, number)
}

func (s *GormStore) CreateCase(ctx context.Context, params CreateParams) (*ModerationCase, error) {
	mc := ModerationCase{
		CreatedAt:    time.Now().UTC(),
		CommunityID:  params.CommunityID,
		TargetUserID: params.TargetUserID,
		ModeratorID:  params.ModeratorID,
		ActingAsID:   params.ActingAsID,
		Kind:         params.Kind,
		Reason:       params.Reason,
		Attachments:  params.Attachments,
		NoteDetails:  params.NoteDetails,
	}

	// assign the next number and insert the case in the same transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ctr := caseCounter{CommunityID: params.CommunityID}
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("community_id = ?", params.CommunityID).
			First(&ctr).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// two first-ever creations can race to seed the counter; the
			// loser's insert is a no-op and the locked re-read picks up
			// the winner's row
			seed := caseCounter{CommunityID: params.CommunityID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
				return fmt.Errorf("initializing case counter: %w", err)
			}
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("community_id = ?", params.CommunityID).
				First(&ctr).Error; err != nil {
				return fmt.Errorf("loading case counter: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("loading case counter: %w", err)
		}
		ctr.LastCaseNumber++
		if err := tx.Save(&ctr).Error; err != nil {
			return fmt.Errorf("advancing case counter: %w", err)
		}
		mc.CaseNumber = ctr.LastCaseNumber
		if err := tx.Create(&mc).Error; err != nil {
			return fmt.Errorf("inserting case: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	createdCount.WithLabelValues(mc.Kind.String()).Inc()
	s.cache.Add(cacheKey(mc.CommunityID, mc.CaseNumber), &mc)
	return &mc, nil
}

func (s *GormStore) FindByCaseNumber(ctx context.Context, communityID string, number int64) (*ModerationCase, error) {
	if mc, ok := s.cache.Get(cacheKey(communityID, number)); ok {
		return mc, nil
	}
	var mc ModerationCase
	err := s.db.WithContext(ctx).
		Where("community_id = ? AND case_number = ?", communityID, number).
		First(&mc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	s.cache.Add(cacheKey(communityID, number), &mc)
	return &mc, nil
}

func (s *GormStore) SetHidden(ctx context.Context, caseID uint, hidden bool) error {
	return s.update(ctx, caseID, map[string]interface{}{"hidden": hidden})
}

func (s *GormStore) AmendReason(ctx context.Context, caseID uint, reason string) error {
	return s.update(ctx, caseID, map[string]interface{}{"reason": reason})
}

func (s *GormStore) update(ctx context.Context, caseID uint, fields map[string]interface{}) error {
	var mc ModerationCase
	err := s.db.WithContext(ctx).First(&mc, caseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&mc).Updates(fields).Error; err != nil {
		return err
	}
	s.cache.Remove(cacheKey(mc.CommunityID, mc.CaseNumber))
	return nil
}

func (s *GormStore) CountByKindForUser(ctx context.Context, communityID, userID string, kind Kind) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&ModerationCase{}).
		Where("community_id = ? AND target_user_id = ? AND kind = ?", communityID, userID, kind).
		Count(&count).Error
	return count, err
}

func (s *GormStore) ListByUser(ctx context.Context, communityID, userID string, includeHidden bool) ([]ModerationCase, error) {
	q := s.db.WithContext(ctx).
		Where("community_id = ? AND target_user_id = ?", communityID, userID).
		Order("case_number asc")
	if !includeHidden {
		q = q.Where("hidden = ?", false)
	}
	var out []ModerationCase
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
