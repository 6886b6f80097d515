// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-wishwall-backend/internal/domain"
)

// WishStats returns the number of wishes and the newest timestamp among them.
// Wishes are immutable, so the pair changes exactly when the list does. With
// no rows, latest is nil.
func WishStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	if err = db.WithContext(ctx).Model(&domain.Wish{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Order+Limit instead of MAX(), which SQLite returns as TEXT.
	var row struct {
		Timestamp time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Wish{}).
		Select("timestamp").Order("timestamp DESC").Limit(1).
		Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.Timestamp, nil
}

// WishStats is WishStats over the store's handle.
func (s *Store) WishStats(ctx context.Context) (int64, *time.Time, error) {
	return WishStats(ctx, s.DB)
}
