package store

import (
	"context"
	"sync"
	"time"

	"github.com/DanielTwine/smartshare/internal/models"
)

// MemoryStore is an in-process ShareStore used by the test suite and by local
// development without MongoDB. Map membership is guarded by a store-wide
// RWMutex; each record carries its own mutex so mutations of different
// records never serialize against each other.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	order   []string
}

type memoryRecord struct {
	mu   sync.Mutex
	file models.File
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord)}
}

func (s *MemoryStore) Create(_ context.Context, file *models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[file.ID]; exists {
		return ErrDuplicateID
	}
	s.records[file.ID] = &memoryRecord{file: *file}
	s.order = append(s.order, file.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.File, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	snapshot := rec.file
	return &snapshot, nil
}

func (s *MemoryStore) ListByOwner(_ context.Context, owner string) ([]models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := []models.File{}
	for _, id := range s.order {
		rec := s.records[id]
		rec.mu.Lock()
		if rec.file.Owner == owner {
			files = append(files, rec.file)
		}
		rec.mu.Unlock()
	}
	return files, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, upd RecordUpdate) (*models.File, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if upd.Active != nil {
		rec.file.Active = *upd.Active
	}
	if upd.PasswordHash != nil {
		hash := *upd.PasswordHash
		rec.file.PasswordHash = &hash
		rec.file.PasswordProtected = true
	}
	if upd.MaxDownloads != nil {
		limit := *upd.MaxDownloads
		rec.file.MaxDownloads = &limit
	}
	if upd.ExpiresAt != nil {
		at := *upd.ExpiresAt
		rec.file.ExpiresAt = &at
	}
	snapshot := rec.file
	return &snapshot, nil
}

func (s *MemoryStore) TryConsume(_ context.Context, id string) (ConsumeResult, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return ConsumeNotFound, nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.file.QuotaExhausted() {
		return ConsumeExhausted, nil
	}
	rec.file.DownloadCount++
	return ConsumeGranted, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return nil
	}
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) ListExpiredBefore(_ context.Context, cutoff time.Time) ([]models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := []models.File{}
	for _, id := range s.order {
		rec := s.records[id]
		rec.mu.Lock()
		if rec.file.ExpiresAt != nil && rec.file.ExpiresAt.Before(cutoff) {
			files = append(files, rec.file)
		}
		rec.mu.Unlock()
	}
	return files, nil
}
