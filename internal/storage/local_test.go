package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func randomSuffix() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func setupTestStaging(t *testing.T) *LocalStaging {
	t.Helper()
	dir := filepath.Join(os.TempDir(), "wanzami_staging_test_"+randomSuffix())
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	staging, err := NewLocalStaging(dir)
	if err != nil {
		t.Fatalf("NewLocalStaging() error = %v", err)
	}
	return staging
}

func TestNewLocalStaging(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		dir := filepath.Join(os.TempDir(), "wanzami_test_"+randomSuffix())
		defer func() { _ = os.RemoveAll(dir) }()

		staging, err := NewLocalStaging(dir)
		if err != nil {
			t.Fatalf("NewLocalStaging() error = %v", err)
		}
		if staging.Dir() != dir {
			t.Errorf("Dir() = %v, want %v", staging.Dir(), dir)
		}

		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		staging, err := NewLocalStaging("")
		if err != nil {
			t.Fatalf("NewLocalStaging() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "wanzami-staging")
		if staging.Dir() != expected {
			t.Errorf("Dir() = %v, want %v", staging.Dir(), expected)
		}
	})
}

func TestLocalStaging_StageAndOpen(t *testing.T) {
	staging := setupTestStaging(t)
	ctx := context.Background()

	staged, err := staging.Stage(ctx, "My Movie.mp4", bytes.NewReader([]byte("movie bytes")))
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if !strings.HasPrefix(filepath.Base(staged.Path), "My Movie.mp4_") {
		t.Errorf("unexpected staged file name %q", filepath.Base(staged.Path))
	}
	if staged.Size != int64(len("movie bytes")) {
		t.Errorf("Size = %d, want %d", staged.Size, len("movie bytes"))
	}

	rc, err := staging.Open(ctx, staged.Path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if string(content) != "movie bytes" {
		t.Errorf("got %q, want %q", string(content), "movie bytes")
	}
}

func TestLocalStaging_Stage_StripsDirectories(t *testing.T) {
	staging := setupTestStaging(t)

	staged, err := staging.Stage(context.Background(), "../../etc/poster.jpg", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if filepath.Dir(staged.Path) != staging.Dir() {
		t.Errorf("staged file escaped staging dir: %s", staged.Path)
	}
	if staged.Size != 0 {
		t.Errorf("Size = %d, want 0", staged.Size)
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestLocalStaging_Stage_RemovesPartialFile(t *testing.T) {
	staging := setupTestStaging(t)

	if _, err := staging.Stage(context.Background(), "trailer.mp4", brokenReader{}); err == nil {
		t.Fatal("expected Stage error for a failing reader")
	}

	entries, err := os.ReadDir(staging.Dir())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("partial file left behind: %v", entries)
	}
}

func TestLocalStaging_Open_OutsideDir(t *testing.T) {
	staging := setupTestStaging(t)

	_, err := staging.Open(context.Background(), "/etc/passwd")
	if err == nil {
		t.Error("expected error for path outside staging dir")
	}
}

func TestLocalStaging_CancelledContext(t *testing.T) {
	staging := setupTestStaging(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := staging.Stage(ctx, "x", bytes.NewReader(nil)); err == nil {
		t.Error("expected Stage error on cancelled context")
	}
	if _, err := staging.Open(ctx, filepath.Join(staging.Dir(), "x")); err == nil {
		t.Error("expected Open error on cancelled context")
	}
	if err := staging.Discard(ctx, filepath.Join(staging.Dir(), "x")); err == nil {
		t.Error("expected Discard error on cancelled context")
	}
}

func TestLocalStaging_Discard(t *testing.T) {
	staging := setupTestStaging(t)
	ctx := context.Background()

	a, _ := staging.Stage(ctx, "a", bytes.NewReader([]byte("1")))
	b, _ := staging.Stage(ctx, "b", bytes.NewReader([]byte("2")))

	outside := filepath.Join(t.TempDir(), "keep.txt")
	if err := os.WriteFile(outside, []byte("keep"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	missing := filepath.Join(staging.Dir(), "does-not-exist")
	if err := staging.Discard(ctx, a.Path, b.Path, missing, "", outside); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}

	for _, p := range []string{a.Path, b.Path} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", p)
		}
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("file outside the staging dir was touched: %v", err)
	}
}
