package session

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	cookies := []Cookie{
		{Name: "cf_clearance", Value: "abc123", Domain: "revolico.com", Path: "/", SavedAt: time.Now()},
		{Name: "session_id", Value: "xyz", Domain: "revolico.com", Path: "/", SavedAt: time.Now()},
	}

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "revolico.com", cookies))

	loaded, err := store.Load(ctx, "revolico.com")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "cf_clearance", loaded[0].Name)
	assert.Equal(t, "abc123", loaded[0].Value)
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	ctx := context.Background()

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "m.revolico.com", []Cookie{
		{Name: "cf_clearance", Value: "persisted", Domain: "m.revolico.com", Path: "/"},
	}))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	loaded, err := reopened.Load(ctx, "m.revolico.com")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "persisted", loaded[0].Value)
}

func TestFileStoreUnknownDomain(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "cookies.json"))
	require.NoError(t, err)

	loaded, err := store.Load(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileStoreSkipsExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	ctx := context.Background()

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "revolico.com", []Cookie{
		{Name: "stale", Value: "old", Domain: "revolico.com", Path: "/", Expires: time.Now().Add(-time.Hour)},
		{Name: "fresh", Value: "new", Domain: "revolico.com", Path: "/", Expires: time.Now().Add(time.Hour)},
	}))

	loaded, err := store.Load(ctx, "revolico.com")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "fresh", loaded[0].Name)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestHTTPCookieConversion(t *testing.T) {
	in := []*http.Cookie{
		{Name: "cf_clearance", Value: "v", Path: "/", Secure: true, HttpOnly: true},
	}

	converted := FromHTTPCookies(in, "revolico.com")
	require.Len(t, converted, 1)
	assert.Equal(t, "revolico.com", converted[0].Domain)
	assert.Equal(t, "/", converted[0].Path)
	assert.True(t, converted[0].Secure)
	assert.False(t, converted[0].SavedAt.IsZero())

	back := ToHTTPCookies(converted)
	require.Len(t, back, 1)
	assert.Equal(t, "cf_clearance", back[0].Name)
	assert.True(t, back[0].HttpOnly)
}

func TestToHTTPCookiesDropsExpired(t *testing.T) {
	back := ToHTTPCookies([]Cookie{
		{Name: "stale", Expires: time.Now().Add(-time.Minute)},
		{Name: "keep"},
	})
	require.Len(t, back, 1)
	assert.Equal(t, "keep", back[0].Name)
}
