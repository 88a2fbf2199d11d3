package content

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryRepository_Create(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	item := NewItem("abc", KindMovie)

	if err := repo.Create(ctx, item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, err := repo.FindByID(ctx, "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID != item.ID {
		t.Errorf("expected ID %s, got %s", item.ID, saved.ID)
	}

	if err := repo.Create(ctx, item); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.FindByID(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepository_FindByID_ReturnsClone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, NewItem("abc", KindMovie))

	first, _ := repo.FindByID(ctx, "abc")
	first.Title = "mutated"

	second, _ := repo.FindByID(ctx, "abc")
	if second.Title == "mutated" {
		t.Error("expected stored item to be unaffected by caller mutation")
	}
}

func TestMemoryRepository_List_NewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	older := NewItem("older", KindMovie)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := NewItem("newer", KindMovie)

	_ = repo.Create(ctx, older)
	_ = repo.Create(ctx, newer)

	items, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "newer" {
		t.Errorf("expected newest first, got %s", items[0].ID)
	}
}

func TestMemoryRepository_Update_KeepsStatus(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	item := NewItem("abc", KindMovie)
	_ = repo.Create(ctx, item)
	_ = repo.SetStatus(ctx, "abc", StatusAvailable, StatusPending)

	edit := item.Clone()
	edit.Title = "New title"
	edit.Status = StatusPending
	if err := repo.Update(ctx, edit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, _ := repo.FindByID(ctx, "abc")
	if saved.Title != "New title" {
		t.Errorf("expected title to be updated, got %s", saved.Title)
	}
	if saved.Status != StatusAvailable {
		t.Errorf("expected status to stay %s, got %s", StatusAvailable, saved.Status)
	}
}

func TestMemoryRepository_Update_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	err := repo.Update(context.Background(), NewItem("missing", KindMovie))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepository_SetStatus(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, NewItem("abc", KindMovie))

	if err := repo.SetStatus(ctx, "abc", StatusAvailable, StatusPending); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.SetStatus(ctx, "abc", StatusAvailable, StatusPending); !errors.Is(err, ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}
	if err := repo.SetStatus(ctx, "missing", StatusAvailable, StatusPending); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepository_SetStatus_ConcurrentSingleWinner(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, NewItem("abc", KindMovie))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if repo.SetStatus(ctx, "abc", StatusAvailable, StatusPending) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, NewItem("abc", KindMovie))

	if err := repo.Delete(ctx, "abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.FindByID(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
