package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DanielTwine/smartshare/internal/models"
)

func newRecord(id, owner string, maxDownloads *int64) *models.File {
	return &models.File{
		ID:           id,
		Filename:     "report.pdf",
		StorageKey:   "key_" + id,
		ContentType:  "application/pdf",
		SizeBytes:    42,
		Owner:        owner,
		MaxDownloads: maxDownloads,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
}

func int64ptr(n int64) *int64 { return &n }

func TestMemoryStoreCreateGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		if _, err := s.Get(ctx, "nope"); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("create then get", func(t *testing.T) {
		if err := s.Create(ctx, newRecord("a", "alice", nil)); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		got, err := s.Get(ctx, "a")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Owner != "alice" || got.Filename != "report.pdf" {
			t.Errorf("unexpected record: %+v", got)
		}
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		if err := s.Create(ctx, newRecord("a", "bob", nil)); err != ErrDuplicateID {
			t.Fatalf("expected ErrDuplicateID, got %v", err)
		}
	})

	t.Run("get returns a snapshot", func(t *testing.T) {
		got, _ := s.Get(ctx, "a")
		got.Active = false
		again, _ := s.Get(ctx, "a")
		if !again.Active {
			t.Error("mutating a returned record must not affect the store")
		}
	})
}

func TestMemoryStoreTryConsume(t *testing.T) {
	ctx := context.Background()

	t.Run("missing record", func(t *testing.T) {
		s := NewMemoryStore()
		res, err := s.TryConsume(ctx, "nope")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res != ConsumeNotFound {
			t.Errorf("expected ConsumeNotFound, got %v", res)
		}
	})

	t.Run("unlimited records always grant but still count", func(t *testing.T) {
		s := NewMemoryStore()
		if err := s.Create(ctx, newRecord("u", "alice", nil)); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 5; i++ {
			res, err := s.TryConsume(ctx, "u")
			if err != nil {
				t.Fatal(err)
			}
			if res != ConsumeGranted {
				t.Fatalf("attempt %d: expected grant, got %v", i, res)
			}
		}
		got, _ := s.Get(ctx, "u")
		if got.DownloadCount != 5 {
			t.Errorf("expected download count 5, got %d", got.DownloadCount)
		}
	})

	t.Run("exactly K grants under M concurrent requests", func(t *testing.T) {
		const (
			quota    = 3
			requests = 64
		)
		s := NewMemoryStore()
		if err := s.Create(ctx, newRecord("q", "alice", int64ptr(quota))); err != nil {
			t.Fatal(err)
		}

		results := make(chan ConsumeResult, requests)
		var wg sync.WaitGroup
		wg.Add(requests)
		for i := 0; i < requests; i++ {
			go func() {
				defer wg.Done()
				res, err := s.TryConsume(ctx, "q")
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				results <- res
			}()
		}
		wg.Wait()
		close(results)

		var granted, exhausted int
		for res := range results {
			switch res {
			case ConsumeGranted:
				granted++
			case ConsumeExhausted:
				exhausted++
			}
		}
		if granted != quota {
			t.Errorf("expected exactly %d grants, got %d", quota, granted)
		}
		if exhausted != requests-quota {
			t.Errorf("expected %d exhausted, got %d", requests-quota, exhausted)
		}

		got, _ := s.Get(ctx, "q")
		if got.DownloadCount != quota {
			t.Errorf("download count overshot quota: %d", got.DownloadCount)
		}
	})

	t.Run("zero remaining quota rejects immediately", func(t *testing.T) {
		s := NewMemoryStore()
		rec := newRecord("z", "alice", int64ptr(2))
		rec.DownloadCount = 2
		if err := s.Create(ctx, rec); err != nil {
			t.Fatal(err)
		}
		res, err := s.TryConsume(ctx, "z")
		if err != nil {
			t.Fatal(err)
		}
		if res != ConsumeExhausted {
			t.Errorf("expected ConsumeExhausted, got %v", res)
		}
	})
}

func TestMemoryStoreUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Create(ctx, newRecord("a", "alice", nil)); err != nil {
		t.Fatal(err)
	}

	t.Run("missing record", func(t *testing.T) {
		active := false
		if _, err := s.Update(ctx, "nope", RecordUpdate{Active: &active}); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		active := false
		updated, err := s.Update(ctx, "a", RecordUpdate{Active: &active})
		if err != nil {
			t.Fatal(err)
		}
		if updated.Active {
			t.Error("active flag not updated")
		}
		if updated.Filename != "report.pdf" {
			t.Error("unrelated field changed")
		}
	})

	t.Run("setting a password marks the record protected", func(t *testing.T) {
		hash := "$2a$10$fakedigest"
		updated, err := s.Update(ctx, "a", RecordUpdate{PasswordHash: &hash})
		if err != nil {
			t.Fatal(err)
		}
		if !updated.PasswordProtected || updated.PasswordHash == nil {
			t.Error("password digest not applied")
		}
	})
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Create(ctx, newRecord("a", "alice", nil)); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "a"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting a missing id must stay silent so double-deletes are harmless.
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("second delete errored: %v", err)
	}
}

func TestMemoryStoreListByOwner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"one", "two", "three"} {
		if err := s.Create(ctx, newRecord(id, "alice", nil)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Create(ctx, newRecord("other", "bob", nil)); err != nil {
		t.Fatal(err)
	}

	files, err := s.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 records, got %d", len(files))
	}
	for i, want := range []string{"one", "two", "three"} {
		if files[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, files[i].ID)
		}
	}
}

func TestMemoryStoreListExpiredBefore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	past := time.Now().Add(-48 * time.Hour)
	future := time.Now().Add(48 * time.Hour)

	expired := newRecord("old", "alice", nil)
	expired.ExpiresAt = &past
	fresh := newRecord("new", "alice", nil)
	fresh.ExpiresAt = &future
	forever := newRecord("forever", "alice", nil)

	for _, rec := range []*models.File{expired, fresh, forever} {
		if err := s.Create(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	files, err := s.ListExpiredBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].ID != "old" {
		t.Fatalf("expected only the long-expired record, got %+v", files)
	}
}
