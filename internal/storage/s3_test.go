package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3Store(t *testing.T, endpoint string) *S3Store {
	t.Helper()
	store, err := NewS3Store(S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	require.NoError(t, err)
	return store
}

func TestNewS3Store(t *testing.T) {
	store := newTestS3Store(t, "http://localhost:4566")
	assert.Equal(t, "test-bucket", store.Bucket())
}

func TestNewS3Store_MissingBucket(t *testing.T) {
	_, err := NewS3Store(S3Config{Region: "us-east-1"})
	require.Error(t, err)
}

func TestS3Store_PresignPut(t *testing.T) {
	store := newTestS3Store(t, "http://localhost:4566")

	before := time.Now()
	grant, err := store.PresignPut(context.Background(), "content/abc/poster/poster.jpg", "image/jpeg", 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "content/abc/poster/poster.jpg", grant.Key)
	assert.Equal(t, "image/jpeg", grant.ContentType)
	assert.Contains(t, grant.URL, "http://localhost:4566/test-bucket/content/abc/poster/poster.jpg")
	assert.Contains(t, grant.URL, "X-Amz-Expires=600")
	assert.False(t, grant.ExpiresAt.Before(before.Add(10*time.Minute)))
	assert.False(t, grant.Expired(time.Now()))
	assert.True(t, grant.Expired(grant.ExpiresAt))
}

func TestS3Store_DeleteObjects_MockServer(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		if _, ok := r.URL.Query()["delete"]; !ok {
			t.Errorf("expected delete query, got %s", r.URL.RawQuery)
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><DeleteResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></DeleteResult>`))
	}))
	defer server.Close()

	store := newTestS3Store(t, server.URL)

	err := store.DeleteObjects(context.Background(), []string{"content/a/poster/p.jpg", "", "content/a/main/m.mp4", "content/a/poster/p.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(gotBody, "content/a/poster/p.jpg"))
	assert.Contains(t, gotBody, "content/a/main/m.mp4")
}

func TestS3Store_DeleteObjects_PartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><DeleteResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Error><Key>content/a/main/m.mp4</Key><Code>AccessDenied</Code><Message>Access Denied</Message></Error></DeleteResult>`))
	}))
	defer server.Close()

	store := newTestS3Store(t, server.URL)

	err := store.DeleteObjects(context.Background(), []string{"content/a/main/m.mp4"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPartialDelete))
	assert.Contains(t, err.Error(), "content/a/main/m.mp4")
}

func TestS3Store_DeleteObjects_NoKeys(t *testing.T) {
	store := newTestS3Store(t, "http://localhost:4566")

	err := store.DeleteObjects(context.Background(), []string{"", ""})
	assert.ErrorIs(t, err, ErrNoKeys)
}
