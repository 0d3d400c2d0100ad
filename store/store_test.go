package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriumgames/packsync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func exerciseStore(t *testing.T, s packsync.PackStore) {
	t.Helper()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	got, err := s.StoredPack(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.SetStoredPack(ctx, a, "hd"))
	require.NoError(t, s.SetStoredPack(ctx, b, "vanilla"))

	got, err = s.StoredPack(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "hd", got)

	require.NoError(t, s.SetStoredPack(ctx, a, "vanilla"))
	got, err = s.StoredPack(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "vanilla", got)

	require.NoError(t, s.SetStoredPack(ctx, a, ""))
	got, err = s.StoredPack(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.StoredPack(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "vanilla", got)
}

func TestBadger(t *testing.T) {
	s, err := OpenBadger(t.TempDir(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)

	all, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBadgerReopen(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()

	s, err := OpenBadger(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.SetStoredPack(context.Background(), id, "hd"))
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir, testLogger())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.StoredPack(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "hd", got)
}

func TestBadgerCancelledContext(t *testing.T) {
	s, err := OpenBadger(t.TempDir(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.SetStoredPack(ctx, uuid.New(), "hd"), context.Canceled)
}

func TestYAML(t *testing.T) {
	s, err := OpenYAML(filepath.Join(t.TempDir(), "players.yml"))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestYAMLFileShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.yml")
	id := uuid.MustParse("8667ba71-b85a-4004-af54-457a9734eed7")

	s, err := OpenYAML(path)
	require.NoError(t, err)
	require.NoError(t, s.SetStoredPack(context.Background(), id, "hd"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "players:\n    8667ba71-b85a-4004-af54-457a9734eed7: hd\n", string(data))

	reopened, err := OpenYAML(path)
	require.NoError(t, err)
	got, err := reopened.StoredPack(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "hd", got)
}

func TestYAMLSkipsMalformedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.yml")
	require.NoError(t, os.WriteFile(path, []byte("players:\n  not-a-uuid: hd\n"), 0o644))

	s, err := OpenYAML(path)
	require.NoError(t, err)
	assert.Empty(t, s.players)
}

func TestYAMLInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.yml")
	require.NoError(t, os.WriteFile(path, []byte("players: [\n"), 0o644))

	_, err := OpenYAML(path)
	assert.Error(t, err)
}

func exerciseAppliedStore(t *testing.T, s interface {
	packsync.PackStore
	packsync.AppliedPackStore
}) {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.SetLastApplied(ctx, id, "hd"))
	got, err := s.LastApplied(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hd", got)

	stored, err := s.StoredPack(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, stored, "the last applied pack is not a stored preference")

	require.NoError(t, s.SetLastApplied(ctx, id, ""))
	got, err = s.LastApplied(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLastApplied(t *testing.T) {
	t.Run("badger", func(t *testing.T) {
		s, err := OpenBadger(t.TempDir(), testLogger())
		require.NoError(t, err)
		defer s.Close()
		exerciseAppliedStore(t, s)

		require.NoError(t, s.SetLastApplied(context.Background(), uuid.New(), "vanilla"))
		all, err := s.All(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all, "All lists stored preferences only")
	})
	t.Run("yaml", func(t *testing.T) {
		s, err := OpenYAML(filepath.Join(t.TempDir(), "players.yml"))
		require.NoError(t, err)
		exerciseAppliedStore(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		exerciseAppliedStore(t, packsync.NewMemoryStore())
	})
}

func TestYAMLAppliedSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.yml")
	id := uuid.MustParse("8667ba71-b85a-4004-af54-457a9734eed7")

	s, err := OpenYAML(path)
	require.NoError(t, err)
	require.NoError(t, s.SetLastApplied(context.Background(), id, "hd"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "players: {}\napplied:\n    8667ba71-b85a-4004-af54-457a9734eed7: hd\n", string(data))

	reopened, err := OpenYAML(path)
	require.NoError(t, err)
	got, err := reopened.LastApplied(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "hd", got)
}

func TestYAMLFailedWriteRollsBack(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := OpenYAML(filepath.Join(dir, "players.yml"))
	require.NoError(t, err)

	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	require.NoError(t, s.SetStoredPack(ctx, a, "hd"))

	// A regular file where the directory was makes every later write fail.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, nil, 0o644))

	assert.Error(t, s.SetStoredPack(ctx, a, "vanilla"))
	assert.Error(t, s.SetStoredPack(ctx, b, "joke"))
	assert.Error(t, s.SetStoredPack(ctx, a, ""))

	got, err := s.StoredPack(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "hd", got)
	got, err = s.StoredPack(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, got)
}
