package packsync

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UseOption configures a UsePack call.
type UseOption func(*useOptions)

type useOptions struct {
	temporary *bool
	duration  *time.Duration
	force     bool
}

// WithDuration makes the override lapse after d. Zero lasts until reset or disconnect.
// It implies Temporary.
func WithDuration(d time.Duration) UseOption {
	return func(o *useOptions) {
		t := true
		o.temporary = &t
		o.duration = &d
	}
}

// Temporary sets an override instead of the stored preference, whatever
// usepack-is-temporary says.
func Temporary() UseOption {
	return func(o *useOptions) {
		t := true
		o.temporary = &t
	}
}

// Permanent writes the stored preference instead of setting an override.
func Permanent() UseOption {
	return func(o *useOptions) {
		t := false
		o.temporary = &t
	}
}

// Force skips the permission check, for console and admin use.
func Force() UseOption {
	return func(o *useOptions) {
		o.force = true
	}
}

// UsePack lets the player pick a pack. By default the choice follows
// usepack-is-temporary and usepack-duration. It returns ErrUnknownPack for names not in
// the registry and ErrNoPermission when the player lacks a restricted pack's permission.
func (m *Manager) UsePack(id uuid.UUID, name string, opts ...UseOption) (Result, error) {
	p, ok := m.host.Player(id)
	if !ok {
		return ResultOffline, ErrPlayerOffline
	}

	var o useOptions
	for _, opt := range opts {
		opt(&o)
	}

	cat := m.Catalog()
	pack, ok := cat.Packs.PackByName(name)
	if !ok {
		if s := cat.Packs.Suggest(name); s != "" {
			return ResultUnchanged, fmt.Errorf("%w: %q (did you mean %q?)", ErrUnknownPack, name, s)
		}
		return ResultUnchanged, fmt.Errorf("%w: %q", ErrUnknownPack, name)
	}
	if !o.force && pack.Restricted() && !m.host.HasPermission(id, pack.Permission()) {
		return ResultDenied, fmt.Errorf("%w: %s", ErrNoPermission, pack.Permission())
	}

	temporary := cat.Settings.UsepackTemporary
	if o.temporary != nil {
		temporary = *o.temporary
	}
	duration := cat.Settings.UsepackDuration
	if o.duration != nil {
		duration = *o.duration
	}

	u, _ := m.sessions.lockOrCreate(p)
	defer u.mu.Unlock()

	if m.role == RoleProxy && u.backendAuthority {
		// An explicit choice on the proxy takes the player back.
		u.backendAuthority = false
		u.foreign = false
	}

	if temporary {
		m.setOverrideLocked(u, pack.Name(), duration)
	} else {
		u.clearOverride()
		m.loadStored(u)
		u.stored = pack.Name()
		m.persistStored(p, u.stored)
	}
	return m.applyLocked(u, m.scope(id)), nil
}

// setOverrideLocked replaces the player's override and arms its expiry. Caller must
// hold u.mu.
func (m *Manager) setOverrideLocked(u *userState, pack string, d time.Duration) {
	u.clearOverride()
	u.override = &Override{Pack: pack}
	if d <= 0 {
		return
	}

	u.override.Expires = m.clock.Now().Add(d)
	gen := u.overrideGen
	id := u.player.ID
	u.overrideTimer = m.scheduler.ScheduleAt(u.override.Expires, func() {
		m.expireOverride(id, gen)
	})
}

// expireOverride removes an override whose timer fired, unless the override was
// replaced or the player left in the meantime.
func (m *Manager) expireOverride(id uuid.UUID, gen uint64) {
	u := m.sessions.lock(id)
	if u == nil {
		return
	}
	defer u.mu.Unlock()

	if u.overrideGen != gen || u.override == nil {
		return
	}
	pack := u.override.Pack
	u.override = nil
	u.overrideTimer = nil
	u.overrideGen++

	m.log.Debug("packsync: override expired", "player", u.player.Name, "pack", pack)
	if m.messenger != nil {
		m.messenger.SendMessage(u.player, MessageOverrideExpired, pack)
	}
	m.applyLocked(u, m.scope(id))
}

// ResetPack clears the player's override, stored preference and last applied pack, then
// resolves the default pack.
func (m *Manager) ResetPack(id uuid.UUID) (Result, error) {
	p, ok := m.host.Player(id)
	if !ok {
		return ResultOffline, ErrPlayerOffline
	}
	u, _ := m.sessions.lockOrCreate(p)
	defer u.mu.Unlock()

	u.clearOverride()
	u.storedLoaded = true
	u.stored = ""
	m.persistStored(p, "")
	u.lastApplied = ""
	m.persistLastApplied(p, "")
	if m.role == RoleProxy {
		u.backendAuthority = false
		u.foreign = false
	}
	return m.applyLocked(u, m.scope(id)), nil
}
