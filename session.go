package packsync

import (
	"sync"

	"github.com/google/uuid"
)

// userState is the mutable state of one connected player.
// Every field below mu is guarded by it.
type userState struct {
	mu sync.Mutex

	player Player

	// closed is set during teardown. A closed state is never mutated again.
	closed bool

	// applied is the pack the client was last told to use, nil for none.
	applied       *ResourcePack
	appliedFormat int

	// override is the active use-pack choice, nil for none.
	override      *Override
	overrideTimer *TaskHandle

	// overrideGen invalidates expiry timers armed for a replaced override.
	overrideGen uint64

	// sendTimer is a delayed send still pending. sendGen invalidates superseded sends.
	sendTimer *TaskHandle
	sendGen   uint64

	stored       string
	storedLoaded bool

	// lastApplied is the last pack an assignment gave the player, kept with
	// store-applied-packs.
	lastApplied string

	// backendAuthority is set on proxies while the backend controls the pack.
	backendAuthority bool

	// foreign marks an applied pack that the other node sent.
	foreign bool

	authenticated bool
}

// cancelTimers cancels the override and delayed send timers. Caller must hold mu.
func (u *userState) cancelTimers() {
	u.clearOverride()
	u.cancelSend()
}

// cancelSend cancels a pending delayed send. Caller must hold mu.
func (u *userState) cancelSend() {
	u.sendTimer.Cancel()
	u.sendTimer = nil
	u.sendGen++
}

// clearOverride drops the override and its timer. Caller must hold mu.
func (u *userState) clearOverride() {
	u.override = nil
	u.overrideTimer.Cancel()
	u.overrideTimer = nil
	u.overrideGen++
}

// UserSessionTable holds per-player state keyed by UUID. Each player's state has its own
// lock, so operations on one player never block another. Sync messages carry names; the
// host maps them to UUIDs.
type UserSessionTable struct {
	byUUID   map[uuid.UUID]*userState
	byUUIDMu sync.RWMutex
}

// NewUserSessionTable creates an empty table.
func NewUserSessionTable() *UserSessionTable {
	return &UserSessionTable{
		byUUID: make(map[uuid.UUID]*userState),
	}
}

func (t *UserSessionTable) get(id uuid.UUID) *userState {
	t.byUUIDMu.RLock()
	defer t.byUUIDMu.RUnlock()
	return t.byUUID[id]
}

// getOrCreate returns the state for p and whether it was created. It is created on the
// first resolution after connect.
func (t *UserSessionTable) getOrCreate(p Player) (*userState, bool) {
	if u := t.get(p.ID); u != nil {
		return u, false
	}

	t.byUUIDMu.Lock()
	u, ok := t.byUUID[p.ID]
	if !ok {
		u = &userState{player: p, appliedFormat: -1}
		t.byUUID[p.ID] = u
	}
	t.byUUIDMu.Unlock()
	return u, !ok
}

// lock returns the locked state for id, or nil when the player has no live state.
func (t *UserSessionTable) lock(id uuid.UUID) *userState {
	u := t.get(id)
	if u == nil {
		return nil
	}
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	return u
}

// lockOrCreate returns the locked state for p, creating it when necessary.
func (t *UserSessionTable) lockOrCreate(p Player) (*userState, bool) {
	for {
		u, created := t.getOrCreate(p)
		u.mu.Lock()
		if !u.closed {
			return u, created
		}
		// Lost a race with teardown; the closed state is already unindexed.
		u.mu.Unlock()
	}
}

// remove tears down the state for id. Timers are cancelled before the state leaves the
// table, so a timer firing afterwards finds nothing to act on.
func (t *UserSessionTable) remove(id uuid.UUID) *userState {
	u := t.get(id)
	if u == nil {
		return nil
	}

	u.mu.Lock()
	u.closed = true
	u.cancelTimers()
	u.mu.Unlock()

	t.byUUIDMu.Lock()
	if t.byUUID[id] == u {
		delete(t.byUUID, id)
	}
	t.byUUIDMu.Unlock()
	return u
}

// all returns a snapshot of the players with live state.
func (t *UserSessionTable) all() []Player {
	t.byUUIDMu.RLock()
	defer t.byUUIDMu.RUnlock()

	result := make([]Player, 0, len(t.byUUID))
	for _, u := range t.byUUID {
		result = append(result, u.player)
	}
	return result
}

// Len returns the number of players with state.
func (t *UserSessionTable) Len() int {
	t.byUUIDMu.RLock()
	defer t.byUUIDMu.RUnlock()
	return len(t.byUUID)
}

// SetPack forces the applied pack without resolving, for example after an out-of-band
// send by another node. The state is created if needed.
func (t *UserSessionTable) SetPack(p Player, pack *ResourcePack, format int) {
	u, _ := t.lockOrCreate(p)
	u.applied = pack
	u.appliedFormat = format
	u.foreign = false
	u.mu.Unlock()
}

// AppliedPack returns the pack the player was last sent, or nil.
func (t *UserSessionTable) AppliedPack(id uuid.UUID) *ResourcePack {
	u := t.lock(id)
	if u == nil {
		return nil
	}
	defer u.mu.Unlock()
	return u.applied
}

// Override returns a copy of the player's override, or nil.
func (t *UserSessionTable) Override(id uuid.UUID) *Override {
	u := t.lock(id)
	if u == nil {
		return nil
	}
	defer u.mu.Unlock()
	if u.override == nil {
		return nil
	}
	o := *u.override
	return &o
}

// BackendAuthority reports whether the backend currently controls the player's pack.
func (t *UserSessionTable) BackendAuthority(id uuid.UUID) bool {
	u := t.lock(id)
	if u == nil {
		return false
	}
	defer u.mu.Unlock()
	return u.backendAuthority
}
