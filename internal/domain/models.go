// Package domain defines the persistence models for the wish wall: guest
// wishes shown on the live feed and the thank-you mail jobs queued for the
// delivery worker. These types are mapped with GORM and shared by the
// repository, service, and HTTP layers.
package domain

import "time"

// Collection names. They double as table names so the logical store layout
// stays recognisable in the database.
const (
	CollectionWishes    = "messages_public"
	CollectionMailQueue = "mail_queue"
)

// Wish is a guest's message on the wall. Wishes are immutable once created.
//
// Fields:
//   - ID: assigned by the store on creation (UUID, char(36)).
//   - Author: display name, trimmed. Stored in the "name" column.
//   - Email: trimmed and lower-cased; used for dedup and the thank-you mail,
//     never rendered (excluded from JSON).
//   - Message: trimmed free text, newlines preserved.
//   - Timestamp: assigned by the store at write time; the feed sort key.
type Wish struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Author    string    `json:"author"    gorm:"column:name;type:varchar(255);not null"`
	Email     string    `json:"-"         gorm:"type:varchar(320);not null;index:idx_wish_email"`
	Message   string    `json:"message"   gorm:"type:text;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index:idx_wish_timestamp"`
}

// TableName returns the database table name for Wish.
func (Wish) TableName() string { return CollectionWishes }

// MailJob is a queued thank-you email. It is written once after a wish is
// stored and deleted by the delivery worker after a successful send.
type MailJob struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Recipient string    `json:"to"         gorm:"type:varchar(320);not null"`
	Subject   string    `json:"subject"    gorm:"type:varchar(255);not null"`
	HTML      string    `json:"html"       gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
}

// TableName returns the database table name for MailJob.
func (MailJob) TableName() string { return CollectionMailQueue }
