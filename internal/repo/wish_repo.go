// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Wish
// model (the messages_public collection).
//
// All functions accept a *gorm.DB handle and follow the "thin repository"
// approach: no business rules, only persistence and query composition.
// Raw gorm errors are propagated; translating them is the caller's job.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-wishwall-backend/internal/domain"
)

// InsertWish persists a fully populated wish row.
func InsertWish(ctx context.Context, db *gorm.DB, w *domain.Wish) error {
	return db.WithContext(ctx).Create(w).Error
}

// NewWish builds the row for InsertWish.
func NewWish(id, author, email, message string, ts time.Time) *domain.Wish {
	return &domain.Wish{
		ID:        id,
		Author:    author,
		Email:     email,
		Message:   message,
		Timestamp: ts,
	}
}

// GetWish loads a wish by id. A missing row is ErrNotFound.
func GetWish(ctx context.Context, db *gorm.DB, id string) (*domain.Wish, error) {
	var w domain.Wish
	if err := db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// FindWishesByEmail returns every wish whose stored (normalized) email equals
// email exactly.
func FindWishesByEmail(ctx context.Context, db *gorm.DB, email string) ([]domain.Wish, error) {
	var out []domain.Wish
	err := db.WithContext(ctx).Where("email = ?", email).Find(&out).Error
	return out, err
}

// ListWishes returns wishes ordered by timestamp in the given direction.
// Ties are broken by id in the same direction so that flipping the order
// yields the exact reverse sequence. A limit <= 0 returns everything.
func ListWishes(ctx context.Context, db *gorm.DB, order domain.SortOrder, limit int) ([]domain.Wish, error) {
	dir := order.SQL()
	out := []domain.Wish{}
	q := db.WithContext(ctx).Order("timestamp " + dir).Order("id " + dir)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountWishes uses a raw COUNT so a missing table surfaces as an error.
func CountWishes(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM " + domain.CollectionWishes).Scan(&total).Error
	return total, err
}
