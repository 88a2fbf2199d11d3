package content

import (
	"testing"
)

func TestNewItem(t *testing.T) {
	item := NewItem("abc", KindMovie)

	if item.ID != "abc" {
		t.Errorf("expected ID abc, got %s", item.ID)
	}
	if item.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, item.Status)
	}
	if item.Kind != KindMovie {
		t.Errorf("expected kind %s, got %s", KindMovie, item.Kind)
	}
	if item.CreatedAt.IsZero() || item.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if item.MainKeys == nil || item.Cast == nil || item.Genres == nil {
		t.Error("expected slices to be initialized")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"PENDING to AVAILABLE", StatusPending, StatusAvailable, true},
		{"AVAILABLE to ARCHIVED", StatusAvailable, StatusArchived, true},
		{"ARCHIVED to AVAILABLE", StatusArchived, StatusAvailable, true},
		{"PENDING to ARCHIVED", StatusPending, StatusArchived, false},
		{"AVAILABLE to PENDING", StatusAvailable, StatusPending, false},
		{"ARCHIVED to PENDING", StatusArchived, StatusPending, false},
		{"AVAILABLE to AVAILABLE", StatusAvailable, StatusAvailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatus_IsValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusAvailable, StatusArchived} {
		if !s.IsValid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if Status("DELETED").IsValid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestKind_IsValid(t *testing.T) {
	if !KindMovie.IsValid() || !KindSeries.IsValid() {
		t.Error("expected movie and series to be valid")
	}
	if Kind("documentary").IsValid() {
		t.Error("expected unknown kind to be invalid")
	}
}

func TestItem_Visible(t *testing.T) {
	item := NewItem("abc", KindMovie)
	if item.Visible() {
		t.Error("pending item must not be visible")
	}
	item.Status = StatusAvailable
	if !item.Visible() {
		t.Error("available item must be visible")
	}
	item.Status = StatusArchived
	if item.Visible() {
		t.Error("archived item must not be visible")
	}
}

func TestItem_AssetKeys(t *testing.T) {
	item := NewItem("abc", KindSeries)
	item.PosterKey = "content/abc/poster/p.jpg"
	item.TrailerKey = "content/abc/trailer/t.mp4"
	item.MainKeys = []string{"content/abc/main/e1.mp4", "content/abc/main/e2.mp4"}
	item.Cast = []CastMember{
		{Name: "A", PictureKey: "content/abc/cast-0/a.jpg"},
		{Name: "B"},
	}

	keys := item.AssetKeys()
	want := []string{
		"content/abc/poster/p.jpg",
		"content/abc/trailer/t.mp4",
		"content/abc/main/e1.mp4",
		"content/abc/main/e2.mp4",
		"content/abc/cast-0/a.jpg",
	}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d: %v", len(want), len(keys), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: expected %s, got %s", i, want[i], keys[i])
		}
	}
}

func TestItem_MainKey(t *testing.T) {
	item := NewItem("abc", KindMovie)
	if item.MainKey() != "" {
		t.Error("expected empty main key")
	}
	item.MainKeys = []string{"content/abc/main/film.mp4"}
	if item.MainKey() != "content/abc/main/film.mp4" {
		t.Errorf("unexpected main key %s", item.MainKey())
	}
}

func TestItem_Clone(t *testing.T) {
	item := NewItem("abc", KindMovie)
	item.Genres = []string{"Drama"}
	item.Cast = []CastMember{{Name: "A"}}

	clone := item.Clone()
	clone.Genres[0] = "Comedy"
	clone.Cast[0].Name = "B"

	if item.Genres[0] != "Drama" {
		t.Error("expected original genres to be unchanged")
	}
	if item.Cast[0].Name != "A" {
		t.Error("expected original cast to be unchanged")
	}
}
