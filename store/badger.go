// Package store persists players' stored packs.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"github.com/oriumgames/packsync"
)

const (
	keyPrefix     = "stored/"
	appliedPrefix = "applied/"
)

// Badger is a packsync.PackStore backed by a badger database.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
}

var (
	_ packsync.PackStore        = (*Badger)(nil)
	_ packsync.AppliedPackStore = (*Badger)(nil)
)

// OpenBadger opens or creates the database in dir. A nil logger uses slog.Default().
func OpenBadger(dir string, logger *slog.Logger) (*Badger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}

	opts := badger.DefaultOptions(dir).WithLogger(newBadgerLogger(logger.WithGroup("badger")))
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &Badger{db: db, logger: logger}, nil
}

// Close closes the database.
func (b *Badger) Close() error {
	if err := b.db.Close(); err != nil {
		b.logger.Error("store: error closing badger", "error", err)
		return err
	}
	return nil
}

func key(prefix string, id uuid.UUID) []byte {
	return []byte(prefix + id.String())
}

func (b *Badger) StoredPack(ctx context.Context, id uuid.UUID) (string, error) {
	return b.get(ctx, keyPrefix, id)
}

func (b *Badger) SetStoredPack(ctx context.Context, id uuid.UUID, pack string) error {
	return b.set(ctx, keyPrefix, id, pack)
}

// LastApplied returns the last pack an assignment gave the player.
func (b *Badger) LastApplied(ctx context.Context, id uuid.UUID) (string, error) {
	return b.get(ctx, appliedPrefix, id)
}

func (b *Badger) SetLastApplied(ctx context.Context, id uuid.UUID, pack string) error {
	return b.set(ctx, appliedPrefix, id, pack)
}

func (b *Badger) get(ctx context.Context, prefix string, id uuid.UUID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(prefix, id))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: read %s%s: %w", prefix, id, err)
	}
	return string(value), nil
}

func (b *Badger) set(ctx context.Context, prefix string, id uuid.UUID, pack string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		if pack == "" {
			return txn.Delete(key(prefix, id))
		}
		return txn.Set(key(prefix, id), []byte(pack))
	})
	if err != nil {
		return fmt.Errorf("store: write %s%s: %w", prefix, id, err)
	}
	return nil
}

// All returns every stored preference.
func (b *Badger) All(ctx context.Context) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id, err := uuid.Parse(string(item.Key()[len(prefix):]))
			if err != nil {
				b.logger.Warn("store: skipping malformed key", "key", string(item.Key()))
				continue
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[id] = string(val)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: iterate: %w", err)
	}
	return out, nil
}
