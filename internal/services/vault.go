package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/DanielTwine/smartshare/internal/logger"
	"github.com/DanielTwine/smartshare/internal/models"
	"github.com/DanielTwine/smartshare/internal/storage"
	"github.com/DanielTwine/smartshare/internal/store"
	"github.com/DanielTwine/smartshare/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const tokenBytes = 16

// createAttempts bounds the retry loop on the astronomically unlikely share
// id collision.
const createAttempts = 3

// Vault is the file-sharing service: it ingests uploads, gates every access
// to a share, consumes download quota and manages share lifecycle.
type Vault struct {
	store   store.ShareStore
	blobs   storage.BlobStorage
	baseURL string
}

func NewVault(st store.ShareStore, blobs storage.BlobStorage, baseURL string) *Vault {
	return &Vault{store: st, blobs: blobs, baseURL: baseURL}
}

// UploadOptions carries the optional access policy for a new share.
type UploadOptions struct {
	Password     string
	ExpiresAt    *time.Time
	MaxDownloads *int64
}

// Upload validates the input, writes the bytes to blob storage and creates
// the share record. Bytes are written before metadata so a crash can never
// leave a record pointing at absent bytes; an orphan blob is prunable offline.
func (v *Vault) Upload(ctx context.Context, data []byte, filename, contentType, owner string, opts UploadOptions) (*models.File, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	if opts.MaxDownloads != nil && *opts.MaxDownloads <= 0 {
		return nil, fmt.Errorf("%w: max_downloads must be positive", ErrInvalidInput)
	}
	if opts.ExpiresAt != nil && !opts.ExpiresAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: expires_at is in the past", ErrInvalidInput)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("%s_%s", uuid.New().String(), filename)
	if err := v.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, storageErr("upload", err)
	}

	file := &models.File{
		Filename:      filename,
		StorageKey:    key,
		ContentType:   contentType,
		SizeBytes:     int64(len(data)),
		Owner:         owner,
		DownloadCount: 0,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	if opts.Password != "" {
		hash, err := utils.HashPassword(opts.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash share password: %w", err)
		}
		file.PasswordHash = &hash
		file.PasswordProtected = true
	}
	if opts.ExpiresAt != nil {
		at := opts.ExpiresAt.UTC()
		file.ExpiresAt = &at
	}
	if opts.MaxDownloads != nil {
		limit := *opts.MaxDownloads
		file.MaxDownloads = &limit
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		id, err := utils.GenerateSecureToken(tokenBytes)
		if err != nil {
			return nil, err
		}
		file.ID = id
		file.ShareURL = fmt.Sprintf("%s/files/%s", v.baseURL, id)

		err = v.store.Create(ctx, file)
		if err == nil {
			logger.Info("share created",
				zap.String("share_id", file.ID),
				zap.String("owner", owner),
				zap.Int64("size_bytes", file.SizeBytes))
			return file, nil
		}
		if errors.Is(err, store.ErrDuplicateID) {
			logger.Warn("share id collision, regenerating", zap.String("share_id", id))
			continue
		}
		// Metadata creation failed after the blob write: remove the blob so
		// no orphan bytes survive a clean failure.
		if cleanupErr := v.blobs.Delete(ctx, key); cleanupErr != nil {
			logger.Error("failed to remove blob after create failure",
				zap.String("storage_key", key), zap.Error(cleanupErr))
		}
		return nil, storageErr("create share record", err)
	}
	// Every generated id collided: clean up the blob like any other failed
	// create so no orphan bytes survive.
	if cleanupErr := v.blobs.Delete(ctx, key); cleanupErr != nil {
		logger.Error("failed to remove blob after create failure",
			zap.String("storage_key", key), zap.Error(cleanupErr))
	}
	return nil, storageErr("create share record", store.ErrDuplicateID)
}

// Metadata evaluates a metadata read. The quota gate is skipped so the share
// page can still show "limit reached" for an exhausted share.
func (v *Vault) Metadata(ctx context.Context, id, password string) (*models.File, error) {
	file, err := v.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.authorize(file, password, false); err != nil {
		return nil, err
	}
	return file, nil
}

// Download evaluates a download request and, if authorized, claims one quota
// slot and opens the byte stream. A granted slot is never refunded, even if
// the transfer aborts mid-stream: counting authorized attempts (rather than
// fully delivered bytes) is a deliberate policy so interrupted transfers
// cannot bypass the quota.
func (v *Vault) Download(ctx context.Context, id, password string) (*models.File, io.ReadCloser, error) {
	file, err := v.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := v.authorize(file, password, true); err != nil {
		return nil, nil, err
	}

	res, err := v.store.TryConsume(ctx, id)
	if err != nil {
		return nil, nil, storageErr("consume download slot", err)
	}
	switch res {
	case store.ConsumeNotFound:
		return nil, nil, ErrNotFound
	case store.ConsumeExhausted:
		return nil, nil, ErrExhausted
	}
	file.DownloadCount++

	reader, err := v.blobs.Get(ctx, file.StorageKey)
	if err != nil {
		// The slot stays consumed. A record whose bytes are missing (crash
		// mid-destroy) surfaces as a storage failure, never as stale content.
		logger.Error("blob fetch failed after grant",
			zap.String("share_id", id), zap.Error(err))
		return nil, nil, storageErr("fetch file content", err)
	}

	logger.Info("download granted",
		zap.String("share_id", id),
		zap.Int64("download_count", file.DownloadCount))
	return file, reader, nil
}

// List returns the owner's shares in insertion order.
func (v *Vault) List(ctx context.Context, owner string) ([]models.File, error) {
	files, err := v.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, storageErr("list shares", err)
	}
	return files, nil
}

// PolicyUpdate is a partial change to a share's access policy. Nil fields are
// left untouched.
type PolicyUpdate struct {
	Active       *bool
	Password     *string
	MaxDownloads *int64
	ExpiresAt    *time.Time
}

// UpdatePolicy applies a policy change on behalf of owner. Only the recorded
// owner may change a share.
func (v *Vault) UpdatePolicy(ctx context.Context, id, owner string, upd PolicyUpdate) (*models.File, error) {
	if upd.MaxDownloads != nil && *upd.MaxDownloads <= 0 {
		return nil, fmt.Errorf("%w: max_downloads must be positive", ErrInvalidInput)
	}
	if upd.ExpiresAt != nil && !upd.ExpiresAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: expires_at is in the past", ErrInvalidInput)
	}

	file, err := v.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if file.Owner != owner {
		return nil, ErrForbidden
	}

	change := store.RecordUpdate{
		Active:       upd.Active,
		MaxDownloads: upd.MaxDownloads,
		ExpiresAt:    upd.ExpiresAt,
	}
	if upd.Password != nil && *upd.Password != "" {
		hash, err := utils.HashPassword(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash share password: %w", err)
		}
		change.PasswordHash = &hash
	}

	updated, err := v.store.Update(ctx, id, change)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("update share record", err)
	}

	if upd.Active != nil {
		logger.Info("share active flag changed",
			zap.String("share_id", id), zap.Bool("active", *upd.Active))
	}
	return updated, nil
}

// SetActive flips the share's active flag: false revokes the link, true
// re-enables it. Revocation keeps the bytes; only Destroy removes them.
func (v *Vault) SetActive(ctx context.Context, id, owner string, active bool) (*models.File, error) {
	return v.UpdatePolicy(ctx, id, owner, PolicyUpdate{Active: &active})
}

// Destroy permanently deletes the share: blob first, then record. A crash in
// between leaves at worst a dangling record whose downloads fail, never a
// record serving stale bytes. Destroying an already-destroyed share returns
// ErrNotFound.
func (v *Vault) Destroy(ctx context.Context, id, owner string) error {
	file, err := v.get(ctx, id)
	if err != nil {
		return err
	}
	if file.Owner != owner {
		return ErrForbidden
	}

	if err := v.blobs.Delete(ctx, file.StorageKey); err != nil {
		return storageErr("delete file content", err)
	}
	if err := v.store.Delete(ctx, id); err != nil {
		return storageErr("delete share record", err)
	}

	logger.Info("share destroyed",
		zap.String("share_id", id), zap.String("owner", owner))
	return nil
}

func (v *Vault) get(ctx context.Context, id string) (*models.File, error) {
	file, err := v.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("load share record", err)
	}
	return file, nil
}

// authorize applies the access checks in fixed order, each short-circuiting:
// missing/revoked, expired, (downloads only) exhausted, then password. A
// revoked share answers exactly like a missing one.
func (v *Vault) authorize(file *models.File, password string, download bool) error {
	if !file.Active {
		return ErrNotFound
	}
	if file.Expired(time.Now()) {
		return ErrGone
	}
	if download && file.QuotaExhausted() {
		return ErrExhausted
	}
	if file.PasswordHash != nil {
		if password == "" {
			return ErrPasswordRequired
		}
		if !utils.VerifyPassword(password, *file.PasswordHash) {
			logger.Warn("share password rejected", zap.String("share_id", file.ID))
			return ErrPasswordInvalid
		}
	}
	return nil
}
