// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file keeps the submission replays behind
// Idempotency-Key.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-wishwall-backend/internal/domain"
)

// LookupReplay returns the wish id recorded for (scope, key) if the record is
// still live at now, or ErrNotFound.
func (s *Store) LookupReplay(ctx context.Context, scope, key string, now time.Time) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrNotFound
	}
	var rec domain.SubmissionReplay
	err := s.DB.WithContext(ctx).
		Where("scope = ? AND key = ? AND expires_at > ?", scope, key, now.UTC()).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return rec.WishID, nil
}

// SaveReplay records that (scope, key) produced wishID, valid for ttl from
// the store clock. A second record for the same pair fails with ErrDuplicate.
func (s *Store) SaveReplay(ctx context.Context, scope, key, wishID string, ttl time.Duration) error {
	now := s.clock.Now().UTC()
	rec := &domain.SubmissionReplay{
		Scope:     scope,
		Key:       key,
		WishID:    wishID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.DB.WithContext(ctx).Create(rec).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// PurgeReplays deletes the records that expired by the store clock and
// reports how many went.
func (s *Store) PurgeReplays(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("expires_at <= ?", s.clock.Now().UTC()).
		Delete(&domain.SubmissionReplay{})
	return res.RowsAffected, res.Error
}
