package models

import (
	"time"
)

// File is a share record: one uploaded file plus the access policy that
// governs its share link. The ID doubles as the public link token, so it is
// generated from crypto/rand rather than a sequence.
type File struct {
	ID                string     `bson:"_id" json:"id"`
	Filename          string     `bson:"filename" json:"filename"`
	StorageKey        string     `bson:"storage_key" json:"-"`
	ContentType       string     `bson:"content_type" json:"content_type"`
	SizeBytes         int64      `bson:"size_bytes" json:"size_bytes"`
	Owner             string     `bson:"owner" json:"owner"`
	PasswordHash      *string    `bson:"password_hash,omitempty" json:"-"`
	PasswordProtected bool       `bson:"password_protected" json:"password_protected"`
	ExpiresAt         *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	MaxDownloads      *int64     `bson:"max_downloads,omitempty" json:"max_downloads,omitempty"`
	DownloadCount     int64      `bson:"download_count" json:"download_count"`
	Active            bool       `bson:"active" json:"active"`
	ShareURL          string     `bson:"share_url" json:"share_url"`
	CreatedAt         time.Time  `bson:"created_at" json:"created_at"`
}

// Expired reports whether the share's expiry has passed at the given instant.
// A share with no expiry never expires.
func (f *File) Expired(now time.Time) bool {
	return f.ExpiresAt != nil && !now.Before(*f.ExpiresAt)
}

// QuotaExhausted reports whether the download limit has been reached.
// A share with no limit is never exhausted.
func (f *File) QuotaExhausted() bool {
	return f.MaxDownloads != nil && f.DownloadCount >= *f.MaxDownloads
}
