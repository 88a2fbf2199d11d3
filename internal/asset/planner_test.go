package asset

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/wanzami-api/internal/content"
	"github.com/maauso/wanzami-api/internal/storage"
)

// fakeGranter issues grants whose URL is the key.
type fakeGranter struct {
	mu    sync.Mutex
	calls []string
	ttls  []time.Duration
	fail  string
}

func (f *fakeGranter) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (storage.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	f.ttls = append(f.ttls, ttl)
	if f.fail != "" && key == f.fail {
		return storage.Grant{}, errors.New("presign failed")
	}
	return storage.Grant{
		URL:         "https://bucket.example/" + key,
		Key:         key,
		ContentType: contentType,
		ExpiresAt:   time.Now().Add(ttl),
	}, nil
}

type mockGranter struct {
	mock.Mock
}

func (m *mockGranter) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (storage.Grant, error) {
	args := m.Called(ctx, key, contentType, ttl)
	return args.Get(0).(storage.Grant), args.Error(1)
}

func TestPlanner_Plan_Movie(t *testing.T) {
	granter := &fakeGranter{}
	planner := NewPlanner(granter)

	placement, err := planner.Plan(context.Background(), "abc", content.KindMovie, []Declaration{
		{Role: Poster(), FileName: "my poster.jpg", ContentType: "image/jpeg"},
		{Role: Main(), FileName: "The Film.mp4", ContentType: "video/mp4"},
		{Role: CastPicture(1), FileName: "bo.png", ContentType: "image/png"},
	})
	require.NoError(t, err)

	assert.Equal(t, "content/abc/poster/my_poster.jpg", placement.PosterKey())
	assert.Equal(t, []string{"content/abc/main/The_Film.mp4"}, placement.MainKeys())
	assert.Equal(t, "content/abc/cast-1/bo.png", placement.CastKey(1))
	assert.Empty(t, placement.CastKey(0))
	assert.Empty(t, placement.TrailerKey())
	assert.Equal(t, 3, placement.Len())

	grant := placement.Grants[Poster()]
	assert.Equal(t, "image/jpeg", grant.ContentType)
	assert.Equal(t, "content/abc/poster/my_poster.jpg", grant.Key)

	for _, ttl := range granter.ttls {
		assert.Equal(t, DefaultGrantTTL, ttl)
	}
}

func TestPlanner_Plan_SeriesAssignsEpisodeIndexes(t *testing.T) {
	planner := NewPlanner(&fakeGranter{})

	placement, err := planner.Plan(context.Background(), "s1", content.KindSeries, []Declaration{
		{Role: Main(), FileName: "ep-a.mp4"},
		{Role: MainAt(1), FileName: "ep-b.mp4"},
		{Role: Main(), FileName: "ep-c.mp4"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"content/s1/main-0/ep-a.mp4",
		"content/s1/main-1/ep-b.mp4",
		"content/s1/main-2/ep-c.mp4",
	}, placement.MainKeys())

	require.Len(t, placement.Entries, 3)
	assert.Equal(t, MainAt(0), placement.Entries[0].Role)
	assert.Equal(t, MainAt(2), placement.Entries[2].Role)
	assert.Equal(t, 2, placement.Entries[2].Source)
	assert.Equal(t, defaultContentType, placement.Grants[MainAt(0)].ContentType)
}

func TestPlanner_Plan_MainKeysKeepEpisodePositions(t *testing.T) {
	planner := NewPlanner(&fakeGranter{})

	placement, err := planner.Plan(context.Background(), "s1", content.KindSeries, []Declaration{
		{Role: MainAt(2), FileName: "ep-c.mp4"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"", "", "content/s1/main-2/ep-c.mp4"}, placement.MainKeys())
	assert.Equal(t, placement.MainKeys(), placement.Assets().MainKeys)
}

func TestPlanner_Plan_InvalidDeclarations(t *testing.T) {
	tests := []struct {
		name  string
		kind  content.Kind
		decls []Declaration
	}{
		{"duplicate poster", content.KindMovie, []Declaration{
			{Role: Poster(), FileName: "a.jpg"},
			{Role: Poster(), FileName: "b.jpg"},
		}},
		{"two movie mains", content.KindMovie, []Declaration{
			{Role: Main(), FileName: "a.mp4"},
			{Role: Main(), FileName: "b.mp4"},
		}},
		{"indexed movie main", content.KindMovie, []Declaration{
			{Role: MainAt(3), FileName: "a.mp4"},
		}},
		{"duplicate episode", content.KindSeries, []Declaration{
			{Role: MainAt(0), FileName: "a.mp4"},
			{Role: MainAt(0), FileName: "b.mp4"},
		}},
		{"missing role", content.KindMovie, []Declaration{
			{FileName: "a.mp4"},
		}},
		{"missing file name", content.KindMovie, []Declaration{
			{Role: Poster(), FileName: ""},
		}},
		{"unknown kind", content.Kind("podcast"), []Declaration{
			{Role: Poster(), FileName: "a.jpg"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			granter := &fakeGranter{}
			_, err := NewPlanner(granter).Plan(context.Background(), "abc", tt.kind, tt.decls)
			assert.ErrorIs(t, err, ErrInvalidDeclaration)
			assert.Empty(t, granter.calls, "no grant may be requested for an invalid batch")
		})
	}
}

func TestPlanner_Plan_GrantFailureFailsWholeBatch(t *testing.T) {
	granter := &fakeGranter{fail: "content/abc/trailer/t.mp4"}
	planner := NewPlanner(granter)

	placement, err := planner.Plan(context.Background(), "abc", content.KindMovie, []Declaration{
		{Role: Poster(), FileName: "p.jpg"},
		{Role: Trailer(), FileName: "t.mp4"},
		{Role: Main(), FileName: "m.mp4"},
	})
	require.ErrorIs(t, err, ErrGrantUnavailable)
	assert.Nil(t, placement)
	assert.Contains(t, err.Error(), "trailer")
}

func TestPlanner_Plan_CustomTTL(t *testing.T) {
	granter := &mockGranter{}
	planner := NewPlanner(granter, WithGrantTTL(time.Minute), WithConcurrency(1))

	granter.On("PresignPut", mock.Anything, "content/abc/backdrop/b.jpg", "image/jpeg", time.Minute).
		Return(storage.Grant{URL: "u", Key: "content/abc/backdrop/b.jpg"}, nil)

	placement, err := planner.Plan(context.Background(), "abc", content.KindMovie, []Declaration{
		{Role: Backdrop(), FileName: "b.jpg", ContentType: "image/jpeg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "content/abc/backdrop/b.jpg", placement.BackdropKey())
	granter.AssertExpectations(t)
}

func TestPlanner_Plan_Empty(t *testing.T) {
	placement, err := NewPlanner(&fakeGranter{}).Plan(context.Background(), "abc", content.KindMovie, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, placement.Len())
	assert.Empty(t, placement.MainKeys())
}

func TestPlacement_Assets(t *testing.T) {
	placement, err := NewPlanner(&fakeGranter{}).Plan(context.Background(), "abc", content.KindSeries, []Declaration{
		{Role: Poster(), FileName: "p.jpg"},
		{Role: Main(), FileName: "e0.mp4"},
		{Role: Main(), FileName: "e1.mp4"},
		{Role: CastPicture(2), FileName: "c.jpg"},
	})
	require.NoError(t, err)

	assets := placement.Assets()
	assert.Equal(t, "content/abc/poster/p.jpg", assets.PosterKey)
	assert.Equal(t, []string{"content/abc/main-0/e0.mp4", "content/abc/main-1/e1.mp4"}, assets.MainKeys)
	assert.Equal(t, map[int]string{2: "content/abc/cast-2/c.jpg"}, assets.CastKeys)
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"my file.mp4":        "my_file.mp4",
		"a\tb c.jpg":         "a_b_c.jpg",
		"dir/sub/name.png":   "name.png",
		`C:\Users\x\cat.gif`: "cat.gif",
		"plain.txt":          "plain.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFileName(in), in)
	}
}
