package database

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/rsx129921/FortinetExternalFeeds/internal/domain"
)

const maxHistoryPage = 500

// HistoryStore persists refresh attempts. It never stores feed contents.
type HistoryStore struct {
	db *gorm.DB
}

func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) RecordRefresh(ctx context.Context, entry domain.FeedRefresh) error {
	if s == nil || s.db == nil {
		return errors.New("database: history store not configured")
	}
	entry.ID = 0
	return s.db.WithContext(ctx).Create(&entry).Error
}

// RecentRefreshes returns up to limit attempts, newest first.
func (s *HistoryStore) RecentRefreshes(ctx context.Context, limit int) ([]domain.FeedRefresh, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("database: history store not configured")
	}
	if limit <= 0 || limit > maxHistoryPage {
		limit = maxHistoryPage
	}

	var rows []domain.FeedRefresh
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LastSuccess returns the most recent successful attempt.
func (s *HistoryStore) LastSuccess(ctx context.Context) (*domain.FeedRefresh, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("database: history store not configured")
	}

	var row domain.FeedRefresh
	err := s.db.WithContext(ctx).
		Where("success = ?", true).
		Order("started_at DESC").
		Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
