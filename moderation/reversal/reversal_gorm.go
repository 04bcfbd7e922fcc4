package reversal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Reversal{}); err != nil {
		return nil, fmt.Errorf("migrating reversal table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Upsert(ctx context.Context, rev *Reversal) error {
	rev.ID = 0
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "community_id"}, {Name: "target_user_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
	}).Create(rev).Error
}

func (s *GormStore) Remove(ctx context.Context, communityID, targetUserID string, kind Kind) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("community_id = ? AND target_user_id = ? AND kind = ?", communityID, targetUserID, kind).
		Delete(&Reversal{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) Find(ctx context.Context, communityID, targetUserID string, kind Kind) (*Reversal, error) {
	var rev Reversal
	err := s.db.WithContext(ctx).
		Where("community_id = ? AND target_user_id = ? AND kind = ?", communityID, targetUserID, kind).
		First(&rev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (s *GormStore) TakeExpired(ctx context.Context, now time.Time) ([]Reversal, error) {
	var taken []Reversal
	// select and delete in one transaction so each record is claimed once
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("expires_at <= ?", now).
			Find(&taken).Error; err != nil {
			return err
		}
		if len(taken) == 0 {
			return nil
		}
		ids := make([]uint, len(taken))
		for i, rev := range taken {
			ids[i] = rev.ID
		}
		return tx.Delete(&Reversal{}, ids).Error
	})
	if err != nil {
		return nil, err
	}
	return taken, nil
}

func (s *GormStore) ListPending(ctx context.Context) ([]Reversal, error) {
	var out []Reversal
	if err := s.db.WithContext(ctx).Order("expires_at asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
