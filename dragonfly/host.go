// Package dragonfly connects packsync to a Dragonfly server.
//
//	perms := dragonfly.NewPermissions()
//	host := dragonfly.NewHost(perms)
//	mngr, err := packsync.NewBuilder().
//	    Host(host).
//	    Transport(transport).
//	    Messenger(host.Messenger(messages)).
//	    Catalog(cat).
//	    Init()
//
//	for p := range srv.Accept() {
//	    p.Handle(host.Join(mngr, p))
//	}
package dragonfly

import (
	"strings"
	"sync"

	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/google/uuid"

	"github.com/oriumgames/packsync"
)

// entry is what the host remembers about a joined player.
type entry struct {
	handle *world.EntityHandle
	name   string
	world  string
}

// Host implements packsync.Host for players joined through Join.
type Host struct {
	perms *Permissions

	mu      sync.RWMutex
	players map[uuid.UUID]*entry
	byName  map[string]uuid.UUID
}

var _ packsync.Host = (*Host)(nil)

// NewHost creates a host checking permissions against perms. A nil perms grants nothing.
func NewHost(perms *Permissions) *Host {
	if perms == nil {
		perms = NewPermissions()
	}
	return &Host{
		perms:   perms,
		players: make(map[uuid.UUID]*entry),
		byName:  make(map[string]uuid.UUID),
	}
}

// Join registers p, resolves its pack for the current world and returns the handler to
// install with p.Handle.
func (h *Host) Join(m *packsync.Manager, p *player.Player) player.Handler {
	worldName := p.Tx().World().Name()
	h.add(p.UUID(), p.Name(), p.H(), worldName)
	m.ApplyPack(p.UUID(), worldName)
	return &Handler{manager: m, host: h}
}

func (h *Host) add(id uuid.UUID, name string, handle *world.EntityHandle, worldName string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.players[id] = &entry{handle: handle, name: name, world: worldName}
	h.byName[strings.ToLower(name)] = id
}

func (h *Host) remove(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.players[id]; ok {
		delete(h.byName, strings.ToLower(e.name))
		delete(h.players, id)
	}
}

func (h *Host) setWorld(id uuid.UUID, worldName string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.players[id]; ok {
		e.world = worldName
	}
}

func (h *Host) entry(id uuid.UUID) (*entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.players[id]
	return e, ok
}

func (h *Host) Player(id uuid.UUID) (packsync.Player, bool) {
	e, ok := h.entry(id)
	if !ok {
		return packsync.Player{}, false
	}
	return packsync.Player{ID: id, Name: e.name}, true
}

func (h *Host) PlayerByName(name string) (packsync.Player, bool) {
	h.mu.RLock()
	id, ok := h.byName[strings.ToLower(name)]
	h.mu.RUnlock()
	if !ok {
		return packsync.Player{}, false
	}
	return h.Player(id)
}

func (h *Host) HasPermission(id uuid.UUID, permission string) bool {
	return h.perms.Has(id, permission)
}

// ProtocolVersion is unknown for Bedrock clients; the manager falls back to the server
// pack format.
func (h *Host) ProtocolVersion(uuid.UUID) (int, bool) {
	return 0, false
}

func (h *Host) Scope(id uuid.UUID) (string, bool) {
	e, ok := h.entry(id)
	if !ok {
		return "", false
	}
	return e.world, true
}

// Exec runs fn in the player's world transaction. It returns false when the player is
// not joined or no longer in a world.
func (h *Host) Exec(id uuid.UUID, fn func(tx *world.Tx, p *player.Player)) bool {
	e, ok := h.entry(id)
	if !ok {
		return false
	}
	return e.handle.ExecWorld(func(tx *world.Tx, ent world.Entity) {
		if p, ok := ent.(*player.Player); ok {
			fn(tx, p)
		}
	})
}
