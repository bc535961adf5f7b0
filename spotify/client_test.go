package spotify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `{
  "tracks": {
    "items": [
      {
        "id": "abc",
        "name": "Song One",
        "artists": [{"name": "Artist A"}, {"name": "Artist B"}],
        "album": {"name": "Album", "images": [{"url": "https://img/1.jpg"}]},
        "preview_url": "https://preview/abc.mp3",
        "external_urls": {"spotify": "https://open.spotify.com/track/abc"}
      },
      {"id": "def", "name": "Song Two", "artists": [{"name": "Solo"}], "album": {"name": "Other", "images": []}}
    ]
  }
}`

func newUpstream(t *testing.T, tokenCalls *int32, searchStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		id, secret, ok := r.BasicAuth()
		if !ok || id != "id" || secret != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "track", r.URL.Query().Get("type"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.WriteHeader(searchStatus)
		_, _ = w.Write([]byte(searchBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient("id", "secret", 2*time.Second, nil)
	c.AccountsURL = srv.URL + "/api/token"
	c.APIURL = srv.URL
	return c
}

func TestSearchParsesTracksAndCachesToken(t *testing.T) {
	var tokenCalls int32
	c := newTestClient(newUpstream(t, &tokenCalls, http.StatusOK))

	for i := 0; i < 3; i++ {
		tracks, err := c.Search(context.Background(), "song")
		require.NoError(t, err)
		require.Len(t, tracks, 2)
		assert.Equal(t, "abc", tracks[0].ID)
		assert.Equal(t, "Artist A, Artist B", tracks[0].Artist)
		assert.Equal(t, "https://img/1.jpg", tracks[0].Image)
		assert.Equal(t, "https://open.spotify.com/track/abc", tracks[0].ExternalURL)
		assert.Empty(t, tracks[1].Image)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokenCalls))
}

func TestSearchErrors(t *testing.T) {
	var tokenCalls int32
	srv := newUpstream(t, &tokenCalls, http.StatusInternalServerError)

	_, err := newTestClient(srv).Search(context.Background(), "x")
	require.Error(t, err)

	unconfigured := NewClient("", "", time.Second, nil)
	_, err = unconfigured.Search(context.Background(), "x")
	require.ErrorIs(t, err, ErrNotConfigured)

	badCreds := newTestClient(srv)
	badCreds.ClientSecret = "wrong"
	_, err = badCreds.Search(context.Background(), "x")
	require.Error(t, err)
}

func TestMockTracksNeverEmpty(t *testing.T) {
	for _, q := range []string{"", "zzz-no-match", "dua"} {
		tracks := MockTracks(q)
		assert.NotEmpty(t, tracks, q)
	}
	assert.Equal(t, "Dua Lipa", MockTracks("dua")[0].Artist)
}

func TestMemoryTokenCacheExpires(t *testing.T) {
	now := time.Now()
	c := NewMemoryTokenCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "tok", time.Minute))
	token, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", token)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisTokenCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	c := NewRedisTokenCache(rdb)
	c.key = "spotify:test:" + t.Name()
	ctx := context.Background()
	t.Cleanup(func() { rdb.Del(ctx, c.key) })

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "tok", time.Minute))
	token, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", token)

	require.NoError(t, c.Clear(ctx))
	_, ok, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchRefreshesRejectedToken(t *testing.T) {
	var tokenCalls, searchCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&searchCalls, 1)
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(searchBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := newTestClient(srv)
	ctx := context.Background()
	require.NoError(t, c.Cache.Set(ctx, "revoked", time.Hour))

	tracks, err := c.Search(ctx, "song")
	require.NoError(t, err)
	assert.Len(t, tracks, 2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokenCalls))
	assert.EqualValues(t, 2, atomic.LoadInt32(&searchCalls))

	cached, ok, err := c.Cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", cached)
}

func TestSearchRetriesRejectedTokenOnlyOnce(t *testing.T) {
	var tokenCalls, searchCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&searchCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	_, err := newTestClient(srv).Search(context.Background(), "song")
	require.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&searchCalls))
	assert.EqualValues(t, 2, atomic.LoadInt32(&tokenCalls))
}

func TestMemoryTokenCacheClear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryTokenCache()
	require.NoError(t, c.Set(ctx, "tok", time.Hour))
	require.NoError(t, c.Clear(ctx))
	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
