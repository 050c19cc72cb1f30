package store

import (
	"context"
	"errors"
	"time"

	"github.com/DanielTwine/smartshare/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = errors.New("share record not found")
	// ErrDuplicateID is returned by Create on an id collision. The caller is
	// expected to regenerate the token and retry.
	ErrDuplicateID = errors.New("share record id already exists")
)

// ConsumeResult is the outcome of a download-quota consume attempt.
type ConsumeResult int

const (
	ConsumeGranted ConsumeResult = iota
	ConsumeExhausted
	ConsumeNotFound
)

// RecordUpdate describes a partial policy update. Nil fields are left
// untouched; a record's id, storage key, counters and timestamps are never
// updatable through this path.
type RecordUpdate struct {
	Active       *bool
	PasswordHash *string
	MaxDownloads *int64
	ExpiresAt    *time.Time
}

// ShareStore is the durable metadata store for share records. All mutations
// to a single record are sequenced; different records are fully independent.
type ShareStore interface {
	Create(ctx context.Context, file *models.File) error
	Get(ctx context.Context, id string) (*models.File, error)
	// ListByOwner returns the owner's records in insertion order.
	ListByOwner(ctx context.Context, owner string) ([]models.File, error)
	// Update applies a partial policy change atomically and returns the
	// updated record.
	Update(ctx context.Context, id string, upd RecordUpdate) (*models.File, error)
	// TryConsume atomically claims one download slot: it increments the
	// counter only while the quota is not exhausted. Records without a quota
	// still count downloads but are never refused.
	TryConsume(ctx context.Context, id string) (ConsumeResult, error)
	// Delete removes a record. Deleting a missing id is not an error, so
	// concurrent double-deletes are harmless.
	Delete(ctx context.Context, id string) error
	// ListExpiredBefore returns records whose expiry passed before cutoff,
	// for the janitor sweep.
	ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.File, error)
}
