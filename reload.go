package packsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Reload swaps in cat. With autogeneratehashes set, hashes are regenerated first. When
// resend is true every player with state is resolved again against the new catalog.
func (m *Manager) Reload(cat *Catalog, resend bool) {
	if cat == nil {
		cat = NewCatalog()
	}
	m.catalog.Store(cat)
	m.log.Info("packsync: catalog loaded", "packs", cat.Packs.Len(), "assignments", len(cat.Assignments.Assignments()))

	if cat.Settings.AutoGenerateHashes {
		m.generateOnLoad()
	}
	if resend {
		m.resendAll()
	}
}

// resendAll resolves every player with state in their current scope.
func (m *Manager) resendAll() {
	for _, p := range m.sessions.all() {
		m.ApplyPack(p.ID, m.scope(p.ID))
	}
}

func (m *Manager) generateOnLoad() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := m.GenerateHashes(ctx); err != nil {
		m.log.Warn("packsync: hash generation incomplete", "error", err)
	}
}

// GenerateHashes recomputes the hash of every pack whose url the hasher can read, or only
// of the named packs. Changed packs are swapped into a new catalog, which is then saved
// through OnSave. It returns the number of changed packs.
func (m *Manager) GenerateHashes(ctx context.Context, names ...string) (int, error) {
	cat := m.Catalog()
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}

	var changed []*ResourcePack
	var errs []error
	for _, p := range cat.Packs.Packs() {
		if len(want) > 0 && !want[strings.ToLower(p.Name())] {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		sum, err := m.hasher.Digest(ctx, p.URL())
		if errors.Is(err, errNotReachable) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("pack %s: %w", p.Name(), err))
			continue
		}

		c := p.Clone()
		if c.SetHash(fmt.Sprintf("%x", sum)) {
			m.log.Debug("packsync: pack hash changed", "pack", p.Name(), "hash", c.HashHex())
			changed = append(changed, c)
		}
	}

	if len(changed) > 0 {
		m.UpdatePacks(changed...)
		if err := m.SaveConfigChanges(); err != nil {
			errs = append(errs, err)
		}
	}
	return len(changed), errors.Join(errs...)
}

// UpdatePacks swaps registered packs for the given packs of the same name. Unknown names
// are ignored.
func (m *Manager) UpdatePacks(packs ...*ResourcePack) {
	for {
		old := m.catalog.Load()
		next := &Catalog{
			Packs:       old.Packs.withReplaced(packs),
			Assignments: old.Assignments,
			Settings:    old.Settings,
		}
		if m.catalog.CompareAndSwap(old, next) {
			return
		}
	}
}

// SaveConfigChanges passes the current catalog to the OnSave function.
func (m *Manager) SaveConfigChanges() error {
	if m.onSave == nil {
		return nil
	}
	if err := m.onSave(m.Catalog()); err != nil {
		return fmt.Errorf("packsync: save catalog: %w", err)
	}
	return nil
}
