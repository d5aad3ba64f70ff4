package store

import (
	"context"
	"time"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// CreateTwitterToken stores a newly linked Twitter account. Previous tokens are kept, the newest one wins
func (s *Store) CreateTwitterToken(ctx context.Context, t *TwitterToken) error {
	if t.ID == "" {
		t.ID = shortuuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	result := s.db.WithContext(ctx).Create(t)
	if result.Error != nil {
		s.logger.Error("Unable to create twitter token in database",
			zap.Error(result.Error),
		)
		return &WriteError{
			Entity: "twitter_token",
			ID:     t.ID,
			Err:    result.Error,
		}
	}
	return nil
}

// LatestTwitterToken returns the most recently created token of the user, or nil if no account is linked
func (s *Store) LatestTwitterToken(ctx context.Context, userID string) (*TwitterToken, error) {
	var t TwitterToken
	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(1).
		Find(&t)
	if result.Error != nil {
		s.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get latest twitter token")
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &t, nil
}
