package seed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"socialhub/config"
	"socialhub/models"
	"socialhub/storage/memory"
)

func adminHash(t *testing.T, store *memory.Store) []byte {
	t.Helper()
	admin, err := store.GetUserByUsername(context.Background(), AdminUsername)
	require.NoError(t, err)
	require.True(t, admin.IsAdmin)
	return []byte(admin.Password)
}

func TestDefaultConfigDoesNotSeed(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.False(t, cfg.Storage.Seed)
	assert.Empty(t, cfg.Storage.SeedAdminPassword)
}

func TestRunGeneratesAdminPassword(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, nil))

	require.NoError(t, Run(ctx, store, log, ""))

	hash := adminHash(t, store)
	assert.Error(t, bcrypt.CompareHashAndPassword(hash, []byte(DemoPassword)))

	var generated string
	scanner := bufio.NewScanner(&logs)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		if pw, ok := line["admin_password"].(string); ok {
			assert.Empty(t, generated, "admin password logged more than once")
			generated = pw
		}
	}
	require.NotEmpty(t, generated)
	assert.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte(generated)))

	demo, err := store.GetUserByUsername(ctx, "alex_dev")
	require.NoError(t, err)
	assert.False(t, demo.IsAdmin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(demo.Password), []byte(DemoPassword)))
}

func TestRunUsesConfiguredAdminPassword(t *testing.T) {
	store := memory.New()
	var logs bytes.Buffer
	require.NoError(t, Run(context.Background(), store, slog.New(slog.NewJSONHandler(&logs, nil)), "s3cret-admin"))

	assert.NoError(t, bcrypt.CompareHashAndPassword(adminHash(t, store), []byte("s3cret-admin")))
	assert.NotContains(t, logs.String(), "s3cret-admin")
}

func TestRunSkipsNonEmptyStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_, err := store.CreateUser(ctx, models.User{Username: "existing", DisplayName: "Existing"})
	require.NoError(t, err)

	require.NoError(t, Run(ctx, store, slog.New(slog.NewTextHandler(io.Discard, nil)), ""))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Users)
	assert.EqualValues(t, 0, stats.Posts)
}

func TestRunAttachesMusicToSeededPost(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, Run(ctx, store, slog.New(slog.NewTextHandler(io.Discard, nil)), "pw"))

	posts, err := store.GetPosts(ctx, 0)
	require.NoError(t, err)
	var tracks []models.Music
	for _, p := range posts {
		if len(p.Music) == 0 {
			continue
		}
		var m models.Music
		require.NoError(t, json.Unmarshal(p.Music, &m))
		tracks = append(tracks, m)
	}
	require.Len(t, tracks, 1)
	assert.Equal(t, "Rick Astley", tracks[0].Artist)
}
