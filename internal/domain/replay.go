package domain

import "time"

// SubmissionReplay remembers which wish a keyed submission produced. A retry
// carrying the same Idempotency-Key from the same form is answered with that
// wish instead of failing the duplicate-email check.
type SubmissionReplay struct {
	Scope     string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Key       string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	WishID    string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (SubmissionReplay) TableName() string { return "submission_replays" }
