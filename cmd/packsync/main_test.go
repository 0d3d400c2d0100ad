package main

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriumgames/packsync"
	"github.com/oriumgames/packsync/config"
	"github.com/oriumgames/packsync/store"
)

const testConfig = `packs:
  vanilla:
    url: https://packs.example.com/vanilla.zip
  hd:
    url: https://packs.example.com/hd.zip
    format: 34
    restricted: true
    permission: pack.hd
global:
  pack: vanilla
worlds:
  nether:
    pack: vanilla
    secondary: [hd]
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecodeCommand(t *testing.T) {
	data, err := packsync.EncodeMessage(packsync.SyncMessage{
		Op:     packsync.OpPackChange,
		Player: "Steve",
		Pack:   "hd",
		URL:    "https://packs.example.com/hd.zip",
		Hash:   "abc",
	})
	require.NoError(t, err)

	out, err := run(t, "decode", hex.EncodeToString(data))
	require.NoError(t, err)
	assert.Equal(t, "op=packChange player=Steve\npack=hd url=https://packs.example.com/hd.zip hash=abc\n", out)

	_, err = run(t, "decode", "zz")
	assert.ErrorContains(t, err, "invalid hex")
}

func TestCheckCommand(t *testing.T) {
	path := writeConfig(t, testConfig+"  lobby:\n    pack: missing\n")

	out, err := run(t, "--config", path, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "2 packs, 2 assignments")
	assert.Contains(t, out, "  hd  format=34")

	_, err = run(t, "--config", path, "check", "--strict")
	assert.ErrorContains(t, err, "1 configuration problems")
}

func TestResolveCommand(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := run(t, "--config", path, "resolve", "nether", "--protocol", "763", "-p", "pack.hd")
	require.NoError(t, err)
	assert.Contains(t, out, "hd from scope (nether)")
	assert.Contains(t, out, "format=15")
}

func TestHashPacks(t *testing.T) {
	httpmock.Activate(t)
	body := []byte("vanilla pack")
	httpmock.RegisterResponder("GET", "https://packs.example.com/vanilla.zip", httpmock.NewBytesResponder(200, body))
	httpmock.RegisterResponder("GET", "https://packs.example.com/hd.zip", httpmock.NewStringResponder(503, "busy"))

	cfg, err := config.Decode([]byte(testConfig), config.YAML)
	require.NoError(t, err)
	hasher := packsync.NewHasher()
	defer hasher.Close()

	reported := map[string]string{}
	changed, err := hashPacks(context.Background(), cfg, hasher, []string{"Vanilla", "hd", "nope"}, func(name, hash string) {
		reported[name] = hash
	})
	assert.Equal(t, 1, changed)
	assert.ErrorIs(t, err, packsync.ErrUnknownPack)
	assert.ErrorContains(t, err, "pack hd")

	sum := sha1.Sum(body)
	want := hex.EncodeToString(sum[:])
	assert.Equal(t, map[string]string{"vanilla": want}, reported)
	assert.Equal(t, want, cfg.Packs["vanilla"].Hash)

	changed, err = hashPacks(context.Background(), cfg, hasher, []string{"vanilla"}, func(string, string) {})
	require.NoError(t, err)
	assert.Zero(t, changed, "an unchanged hash is not rewritten")
}

func TestPlayersMigrate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "players.yml")
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	require.NoError(t, os.WriteFile(file, []byte("players:\n  "+b.String()+": joke\n  "+a.String()+": hd\n"), 0o644))

	out, err := run(t, "players", "--file", file)
	require.NoError(t, err)
	assert.Equal(t, a.String()+"  hd\n"+b.String()+"  joke\n", out)

	db := filepath.Join(dir, "db")
	_, err = run(t, "players", "migrate", file, db)
	require.NoError(t, err)

	s, err := store.OpenBadger(db, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer s.Close()
	got, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]string{a: "hd", b: "joke"}, got)
}
