package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/oriumgames/packsync"
)

// YAML is a packsync.PackStore kept in a players.yml file of the form
//
//	players:
//	  <uuid>: <pack>
//	applied:
//	  <uuid>: <pack>
//
// The applied section is only written when last applied packs are stored. The file is
// rewritten on every change.
type YAML struct {
	path string

	mu      sync.RWMutex
	players map[string]string
	applied map[string]string
}

var (
	_ packsync.PackStore        = (*YAML)(nil)
	_ packsync.AppliedPackStore = (*YAML)(nil)
)

type playersFile struct {
	Players map[string]string `yaml:"players"`
	Applied map[string]string `yaml:"applied,omitempty"`
}

// OpenYAML loads path. A missing file is an empty store and is created on the first write.
func OpenYAML(path string) (*YAML, error) {
	s := &YAML{path: path, players: make(map[string]string), applied: make(map[string]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}

	var f playersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	copyValid(s.players, f.Players)
	copyValid(s.applied, f.Applied)
	return s, nil
}

// copyValid copies entries keyed by a well-formed UUID.
func copyValid(dst, src map[string]string) {
	for k, v := range src {
		id, err := uuid.Parse(k)
		if err != nil || v == "" {
			continue
		}
		dst[id.String()] = v
	}
}

func (s *YAML) StoredPack(_ context.Context, id uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.players[id.String()], nil
}

func (s *YAML) SetStoredPack(ctx context.Context, id uuid.UUID, pack string) error {
	return s.set(ctx, s.players, id, pack)
}

// LastApplied returns the last pack an assignment gave the player.
func (s *YAML) LastApplied(_ context.Context, id uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied[id.String()], nil
}

func (s *YAML) SetLastApplied(ctx context.Context, id uuid.UUID, pack string) error {
	return s.set(ctx, s.applied, id, pack)
}

// set changes one entry of section and rewrites the file. The entry is restored when
// the write fails.
func (s *YAML) set(ctx context.Context, section map[string]string, id uuid.UUID, pack string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := id.String()
	prev, had := section[k]
	if prev == pack {
		return nil
	}
	setEntry(section, k, pack)
	if err := s.flush(); err != nil {
		if had {
			section[k] = prev
		} else {
			delete(section, k)
		}
		return err
	}
	return nil
}

func setEntry(m map[string]string, k, v string) {
	if v == "" {
		delete(m, k)
		return
	}
	m[k] = v
}

// All returns every stored preference.
func (s *YAML) All(ctx context.Context) (map[uuid.UUID]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID]string, len(s.players))
	for k, v := range s.players {
		out[uuid.MustParse(k)] = v
	}
	return out, nil
}

// flush writes the file through a temporary file in the same directory. Caller must
// hold mu.
func (s *YAML) flush() error {
	data, err := yaml.Marshal(playersFile{Players: s.players, Applied: s.applied})
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".players-*.yml")
	if err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	return nil
}
