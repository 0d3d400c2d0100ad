package packsync

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PackStore durably maps players to the pack they last chose.
// Implementations in the store package persist to badger or a YAML file.
type PackStore interface {
	// StoredPack returns the stored pack name, or an empty string when none is stored.
	StoredPack(ctx context.Context, id uuid.UUID) (string, error)

	// SetStoredPack stores the pack name. An empty name removes the entry.
	SetStoredPack(ctx context.Context, id uuid.UUID, pack string) error
}

// AppliedPackStore is implemented by stores that also remember the last pack an
// assignment gave each player, for store-applied-packs. The slot is separate from the
// stored preference and ranks only above the empty pack.
type AppliedPackStore interface {
	LastApplied(ctx context.Context, id uuid.UUID) (string, error)
	SetLastApplied(ctx context.Context, id uuid.UUID, pack string) error
}

// MemoryStore is a PackStore that keeps entries in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	packs   map[uuid.UUID]string
	applied map[uuid.UUID]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		packs:   make(map[uuid.UUID]string),
		applied: make(map[uuid.UUID]string),
	}
}

func (s *MemoryStore) StoredPack(_ context.Context, id uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.packs[id], nil
}

func (s *MemoryStore) SetStoredPack(_ context.Context, id uuid.UUID, pack string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	setOrDelete(s.packs, id, pack)
	return nil
}

func (s *MemoryStore) LastApplied(_ context.Context, id uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied[id], nil
}

func (s *MemoryStore) SetLastApplied(_ context.Context, id uuid.UUID, pack string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	setOrDelete(s.applied, id, pack)
	return nil
}

func setOrDelete(m map[uuid.UUID]string, id uuid.UUID, pack string) {
	if pack == "" {
		delete(m, id)
		return
	}
	m[id] = pack
}

// Compile-time checks that MemoryStore implements both store interfaces.
var (
	_ PackStore        = (*MemoryStore)(nil)
	_ AppliedPackStore = (*MemoryStore)(nil)
)
