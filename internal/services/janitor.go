package services

import (
	"context"
	"time"

	"github.com/DanielTwine/smartshare/internal/logger"
	"github.com/DanielTwine/smartshare/internal/storage"
	"github.com/DanielTwine/smartshare/internal/store"
	"go.uber.org/zap"
)

// Janitor periodically removes shares that expired longer than the retention
// window ago, deleting blob then record. Expiry enforcement itself is lazy on
// the request path; this sweep only reclaims space and is safe to re-run.
type Janitor struct {
	store     store.ShareStore
	blobs     storage.BlobStorage
	interval  time.Duration
	retention time.Duration
	done      chan struct{}
}

func NewJanitor(st store.ShareStore, blobs storage.BlobStorage, interval, retention time.Duration) *Janitor {
	return &Janitor{
		store:     st,
		blobs:     blobs,
		interval:  interval,
		retention: retention,
		done:      make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine. It stops when ctx is
// cancelled.
func (j *Janitor) Start(ctx context.Context) {
	logger.Info("janitor started",
		zap.Duration("interval", j.interval),
		zap.Duration("retention", j.retention))

	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.Sweep(ctx)

		for {
			select {
			case <-ticker.C:
				j.Sweep(ctx)
			case <-ctx.Done():
				logger.Info("janitor stopping")
				close(j.done)
				return
			}
		}
	}()
}

// Wait blocks until the janitor has fully stopped.
func (j *Janitor) Wait() {
	<-j.done
}

// Sweep deletes every share whose expiry passed more than the retention
// window ago. Each share is handled independently so one failure does not
// abort the cycle.
func (j *Janitor) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.retention)
	expired, err := j.store.ListExpiredBefore(ctx, cutoff)
	if err != nil {
		logger.Error("janitor: failed to list expired shares", zap.Error(err))
		return
	}
	if len(expired) == 0 {
		return
	}

	var cleaned, failed int
	for _, file := range expired {
		if err := j.blobs.Delete(ctx, file.StorageKey); err != nil {
			logger.Error("janitor: failed to delete blob",
				zap.String("share_id", file.ID), zap.Error(err))
			failed++
			continue
		}
		if err := j.store.Delete(ctx, file.ID); err != nil {
			logger.Error("janitor: failed to delete record",
				zap.String("share_id", file.ID), zap.Error(err))
			failed++
			continue
		}
		cleaned++
	}

	logger.Info("janitor sweep complete",
		zap.Int("cleaned", cleaned),
		zap.Int("failed", failed))
}
