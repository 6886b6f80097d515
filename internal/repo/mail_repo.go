// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the MailJob
// model (the mail_queue collection).
//
// Jobs are written once by the submission flow and consumed by the mail
// dispatcher, which deletes a job only after it has been delivered.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-wishwall-backend/internal/domain"
)

// CreateMailJob inserts a queued email with a random UUID.
func CreateMailJob(ctx context.Context, db *gorm.DB, recipient, subject, html string, now time.Time) (*domain.MailJob, error) {
	j := &domain.MailJob{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Subject:   subject,
		HTML:      html,
		CreatedAt: now.UTC(),
	}
	if err := db.WithContext(ctx).Create(j).Error; err != nil {
		return nil, err
	}
	return j, nil
}

// ListMailJobs returns up to limit queued jobs, oldest first.
func ListMailJobs(ctx context.Context, db *gorm.DB, limit int) ([]domain.MailJob, error) {
	var out []domain.MailJob
	q := db.WithContext(ctx).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// DeleteMailJob removes a delivered job. Deleting a missing job returns
// ErrNotFound so the dispatcher can tell a lost race from a real failure.
func DeleteMailJob(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.MailJob{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
