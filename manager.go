package packsync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Result reports what ApplyPack and related entry points did.
type Result int

const (
	// ResultUnchanged means the resolved pack equals the applied pack; nothing was sent.
	ResultUnchanged Result = iota
	// ResultSent means a pack was handed to the transport.
	ResultSent
	// ResultScheduled means a pack was committed and its send delayed.
	ResultScheduled
	// ResultCleared means the client was told to drop its pack.
	ResultCleared
	// ResultDeferred means the backend controls the player's pack.
	ResultDeferred
	// ResultUnauthenticated means resolution waits for authentication.
	ResultUnauthenticated
	// ResultDenied means a listener cancelled the selection.
	ResultDenied
	// ResultUnsupported means the transport cannot reach the client's protocol.
	ResultUnsupported
	// ResultFailed means the transport returned an error.
	ResultFailed
	// ResultOffline means the host does not know the player.
	ResultOffline
)

var resultNames = [...]string{
	"unchanged", "sent", "scheduled", "cleared", "deferred",
	"unauthenticated", "denied", "unsupported", "failed", "offline",
}

func (r Result) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return "unknown"
}

// tickDuration converts assignment send delays to durations.
const tickDuration = 50 * time.Millisecond

// Manager is the central packsync coordinator. It resolves packs for players, keeps
// per-player state, runs override timers and speaks the sync protocol.
// Multiple Manager instances can coexist in the same process.
type Manager struct {
	role      Role
	host      Host
	transport PackTransport
	channel   Channel
	auth      Authenticator
	messenger Messenger
	store     PackStore
	listeners []Listener
	log       *slog.Logger
	clock     Clock

	// catalog is swapped whole on reload and hash regeneration
	catalog atomic.Pointer[Catalog]

	// sessions holds per-player state
	sessions *UserSessionTable

	// scheduler runs override expiry and delayed sends
	scheduler *Scheduler

	hasher       *Hasher
	onSave       func(*Catalog) error
	serverFormat int
	storeTimeout time.Duration
}

// newManager creates a manager from a validated builder.
func newManager(b *Builder) *Manager {
	m := &Manager{
		role:         b.role,
		host:         b.host,
		transport:    b.transport,
		channel:      b.channel,
		auth:         b.auth,
		messenger:    b.messenger,
		store:        b.store,
		listeners:    append([]Listener(nil), b.listeners...),
		log:          b.logger,
		clock:        b.clock,
		hasher:       b.hasher,
		onSave:       b.onSave,
		serverFormat: b.serverFormat,
		storeTimeout: b.storeTimeout,
		sessions:     NewUserSessionTable(),
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.clock == nil {
		m.clock = systemClock{}
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.hasher == nil {
		m.hasher = NewHasher()
	}

	cat := b.catalog
	if cat == nil {
		cat = NewCatalog()
	}
	m.catalog.Store(cat)
	m.scheduler = newScheduler(m.clock, m.log)
	return m
}

// Start starts the scheduler. Init calls it.
func (m *Manager) Start() {
	m.scheduler.Start()
}

// Shutdown stops timers and releases the hasher.
func (m *Manager) Shutdown() {
	m.scheduler.Stop()
	m.hasher.Close()
}

// Role returns the node's role.
func (m *Manager) Role() Role { return m.role }

// Catalog returns the current catalog snapshot.
func (m *Manager) Catalog() *Catalog {
	return m.catalog.Load()
}

// Sessions returns the per-player state table.
func (m *Manager) Sessions() *UserSessionTable {
	return m.sessions
}

// Players returns the players that currently have state.
func (m *Manager) Players() []Player {
	return m.sessions.all()
}

// ApplyPack resolves the pack for the player in scope and sends it when it differs from
// the applied pack. It is the entry point for joins, world switches and reconnects.
func (m *Manager) ApplyPack(id uuid.UUID, scope string) Result {
	p, ok := m.host.Player(id)
	if !ok {
		return ResultOffline
	}
	u, _ := m.sessions.lockOrCreate(p)
	defer u.mu.Unlock()
	return m.applyLocked(u, scope)
}

// SwitchServer releases backend authority and resolves for the new server. Proxies call
// it when a player connects to a different backend.
func (m *Manager) SwitchServer(id uuid.UUID, server string) Result {
	p, ok := m.host.Player(id)
	if !ok {
		return ResultOffline
	}
	u, _ := m.sessions.lockOrCreate(p)
	defer u.mu.Unlock()

	if u.backendAuthority {
		u.backendAuthority = false
		u.foreign = false
		m.log.Debug("packsync: backend authority released by server switch", "player", p.Name, "server", server)
	}
	return m.applyLocked(u, server)
}

// Disconnect tears the player's state down. Pending timers are cancelled before it
// returns.
func (m *Manager) Disconnect(id uuid.UUID) {
	if u := m.sessions.remove(id); u != nil {
		m.log.Debug("packsync: session closed", "player", u.player.Name)
	}
}

// SetPack records pack as applied without resolving or sending.
func (m *Manager) SetPack(id uuid.UUID, pack *ResourcePack) error {
	p, ok := m.host.Player(id)
	if !ok {
		return ErrPlayerOffline
	}
	u, _ := m.sessions.lockOrCreate(p)
	defer u.mu.Unlock()

	u.cancelSend()
	u.applied = pack
	u.appliedFormat = m.effectiveFormat(pack, m.clientFormat(m.protocol(id)))
	u.foreign = false
	return nil
}

// ClearPack drops the player's applied pack and override and tells the client to
// revert.
func (m *Manager) ClearPack(id uuid.UUID) Result {
	u := m.sessions.lock(id)
	if u == nil {
		return ResultOffline
	}
	defer u.mu.Unlock()

	u.clearOverride()
	if u.applied == nil {
		return ResultUnchanged
	}
	return m.clearLocked(u)
}

// PlayerPackFormat returns the highest pack format the player's client supports, or -1
// when the player is offline or the format is unknown.
func (m *Manager) PlayerPackFormat(id uuid.UUID) int {
	if _, ok := m.host.Player(id); !ok {
		return -1
	}
	return m.clientFormat(m.protocol(id))
}

// IsAuthenticated reports whether resolution may run for the player. Without useauth
// every player is authenticated.
func (m *Manager) IsAuthenticated(id uuid.UUID) bool {
	if !m.Catalog().Settings.UseAuth {
		return true
	}
	if m.auth != nil && m.auth.IsAuthenticated(id) {
		return true
	}
	u := m.sessions.lock(id)
	if u == nil {
		return false
	}
	defer u.mu.Unlock()
	return u.authenticated
}

// SetAuthenticated marks the player as logged in and resolves their pack. Backends
// forward the login to the proxy.
func (m *Manager) SetAuthenticated(id uuid.UUID) Result {
	p, ok := m.host.Player(id)
	if !ok {
		return ResultOffline
	}
	u, _ := m.sessions.lockOrCreate(p)
	defer u.mu.Unlock()

	u.authenticated = true
	if m.role == RoleBackend {
		m.notify(p, SyncMessage{Op: OpAuthLogin, Player: p.Name})
	}
	return m.applyLocked(u, m.scope(id))
}

// applyLocked runs resolution for a locked state.
func (m *Manager) applyLocked(u *userState, scope string) Result {
	p := u.player
	cat := m.catalog.Load()

	if m.role == RoleProxy && u.backendAuthority {
		return ResultDeferred
	}
	if cat.Settings.UseAuth && !u.authenticated && (m.auth == nil || !m.auth.IsAuthenticated(p.ID)) {
		return ResultUnauthenticated
	}

	m.loadStored(u)
	protocol := m.protocol(p.ID)
	clientFormat := m.clientFormat(protocol)

	res := cat.Resolve(ResolveInput{
		Player: p,
		Scope:  scope,
		HasPermission: func(perm string) bool {
			return m.host.HasPermission(p.ID, perm)
		},
		ClientFormat: clientFormat,
		Override:     u.override,
		StoredPack:   u.stored,
		LastApplied:  m.lastApplied(u, cat),
		Now:          m.clock.Now(),
	})
	for _, w := range res.Warnings {
		m.log.Warn("packsync: skipped pack rule", "player", p.Name, "scope", scope, "error", w)
	}

	target := res.Pack
	if res.Source == SourceEmpty && u.applied == nil {
		// The client has no server pack to replace.
		target = nil
	}

	status := StatusAccepted
	if target == nil {
		status = StatusNoPack
	}
	ev := &SelectEvent{Player: p, Scope: scope, Pack: target, Source: res.Source, Status: status}
	for _, l := range m.listeners {
		l.HandlePackSelect(ev)
	}
	if ev.Cancelled() {
		m.log.Debug("packsync: selection denied", "player", p.Name, "scope", scope, "pack", packName(target))
		return ResultDenied
	}
	if ev.Pack != target {
		target = ev.Pack
		res.Assignment = nil
		res.Source = SourceNone
	}

	if target.Equal(u.applied) {
		return ResultUnchanged
	}
	if target == nil {
		if u.foreign {
			// The other node's pack is not ours to remove.
			return ResultUnchanged
		}
		return m.clearLocked(u)
	}

	if !m.transport.Supports(protocol) {
		err := &ProtocolIncompatibleError{Protocol: protocol, Feature: "resource pack sending"}
		m.log.Warn("packsync: cannot send pack", "player", p.Name, "pack", target.Name(), "error", err)
		if m.messenger != nil {
			m.messenger.SendMessage(p, MessageUnsupported, target.Name())
		}
		return ResultUnsupported
	}

	d := Delivery{Pack: target, Format: m.effectiveFormat(target, clientFormat), Protocol: protocol}
	u.cancelSend()

	if res.Assignment != nil && res.Assignment.SendDelay() > 0 {
		m.commit(u, d, res.Source)
		gen := u.sendGen
		delay := time.Duration(res.Assignment.SendDelay()) * tickDuration
		u.sendTimer = m.scheduler.Schedule(delay, func() {
			m.fireSend(p.ID, gen)
		})
		return ResultScheduled
	}

	if !m.deliver(u, d) {
		return ResultFailed
	}
	m.commit(u, d, res.Source)
	return ResultSent
}

// commit records d as applied. With store-applied-packs, a pack chosen by a scope or the
// global assignment is remembered as the last applied pack. Overrides and stored choices
// are never remembered. Caller must hold u.mu.
func (m *Manager) commit(u *userState, d Delivery, src Source) {
	u.applied = d.Pack
	u.appliedFormat = d.Format
	u.foreign = false

	if !m.catalog.Load().Settings.StoreAppliedPacks {
		return
	}
	if src != SourceScope && src != SourceGlobal {
		return
	}
	if name := d.Pack.Name(); u.lastApplied != name {
		u.lastApplied = name
		m.persistLastApplied(u.player, name)
	}
}

// lastApplied returns the remembered pack when store-applied-packs is on.
func (m *Manager) lastApplied(u *userState, cat *Catalog) string {
	if !cat.Settings.StoreAppliedPacks {
		return ""
	}
	return u.lastApplied
}

// deliver hands d to the transport, emits the send event and tells the other node.
// Caller must hold u.mu.
func (m *Manager) deliver(u *userState, d Delivery) bool {
	p := u.player
	if err := m.transport.SendPack(p, d); err != nil {
		m.log.Warn("packsync: pack delivery failed", "player", p.Name, "pack", d.Pack.Name(),
			"error", &NetworkUnavailableError{URL: d.Pack.URL(), Err: err})
		return false
	}
	m.log.Debug("packsync: sent pack", "player", p.Name, "pack", d.Pack.Name(), "format", d.Format)

	ev := &SendEvent{Player: p, Pack: d.Pack, Format: d.Format}
	for _, l := range m.listeners {
		l.HandlePackSend(ev)
	}
	if m.role != RoleStandalone {
		m.notify(p, PackChangeMessage(p.Name, d.Pack))
	}
	return true
}

// clearLocked tells the client to drop its pack. Caller must hold u.mu.
func (m *Manager) clearLocked(u *userState) Result {
	p := u.player
	u.cancelSend()

	if err := m.transport.ClearPack(p, m.protocol(p.ID)); err != nil {
		m.log.Warn("packsync: pack clear failed", "player", p.Name, "error", err)
		return ResultFailed
	}
	u.applied = nil
	u.appliedFormat = -1
	u.foreign = false
	m.log.Debug("packsync: cleared pack", "player", p.Name)

	ev := &SendEvent{Player: p, Cleared: true}
	for _, l := range m.listeners {
		l.HandlePackSend(ev)
	}
	if m.role != RoleStandalone {
		m.notify(p, SyncMessage{Op: OpClearPack, Player: p.Name})
	}
	return ResultCleared
}

// fireSend runs a delayed send unless it was superseded.
func (m *Manager) fireSend(id uuid.UUID, gen uint64) {
	u := m.sessions.lock(id)
	if u == nil {
		return
	}
	defer u.mu.Unlock()

	if u.sendGen != gen || u.applied == nil {
		return
	}
	u.sendTimer = nil

	d := Delivery{Pack: u.applied, Format: u.appliedFormat, Protocol: m.protocol(id)}
	if !m.deliver(u, d) {
		// Let the next resolution try again.
		u.applied = nil
		u.appliedFormat = -1
	}
}

func (m *Manager) protocol(id uuid.UUID) int {
	if v, ok := m.host.ProtocolVersion(id); ok {
		return v
	}
	return -1
}

func (m *Manager) scope(id uuid.UUID) string {
	s, _ := m.host.Scope(id)
	return s
}

// clientFormat maps a protocol to a pack format, falling back to the server's format
// when the protocol is unknown.
func (m *Manager) clientFormat(protocol int) int {
	if protocol < 0 {
		return m.serverFormat
	}
	return PackFormat(protocol)
}

func (m *Manager) effectiveFormat(p *ResourcePack, clientFormat int) int {
	if p == nil {
		return -1
	}
	if clientFormat >= 0 && p.Format() > clientFormat {
		return clientFormat
	}
	return p.Format()
}

// loadStored reads the durable stored pack once per session. Caller must hold u.mu.
func (m *Manager) loadStored(u *userState) {
	if u.storedLoaded {
		return
	}
	u.storedLoaded = true

	ctx, cancel := context.WithTimeout(context.Background(), m.storeTimeout)
	defer cancel()
	name, err := m.store.StoredPack(ctx, u.player.ID)
	if err != nil {
		m.log.Warn("packsync: stored pack lookup failed", "player", u.player.Name, "error", err)
	} else {
		u.stored = name
	}

	as, ok := m.store.(AppliedPackStore)
	if !ok || !m.catalog.Load().Settings.StoreAppliedPacks {
		return
	}
	name, err = as.LastApplied(ctx, u.player.ID)
	if err != nil {
		m.log.Warn("packsync: last applied pack lookup failed", "player", u.player.Name, "error", err)
		return
	}
	u.lastApplied = name
}

func (m *Manager) persistStored(p Player, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.storeTimeout)
	defer cancel()
	if err := m.store.SetStoredPack(ctx, p.ID, name); err != nil {
		m.log.Warn("packsync: stored pack write failed", "player", p.Name, "pack", name, "error", err)
	}
}

// persistLastApplied writes the last applied pack when the store keeps one.
func (m *Manager) persistLastApplied(p Player, name string) {
	as, ok := m.store.(AppliedPackStore)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.storeTimeout)
	defer cancel()
	if err := as.SetLastApplied(ctx, p.ID, name); err != nil {
		m.log.Warn("packsync: last applied pack write failed", "player", p.Name, "pack", name, "error", err)
	}
}

func packName(p *ResourcePack) string {
	if p == nil {
		return ""
	}
	return p.Name()
}
