package dragonfly

import (
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"

	"github.com/oriumgames/packsync"
)

// Handler routes Dragonfly player events to the manager.
type Handler struct {
	player.NopHandler

	manager *packsync.Manager
	host    *Host
}

// Compile-time check that Handler implements player.Handler.
var _ player.Handler = (*Handler)(nil)

// HandleChangeWorld resolves the pack for the world the player entered.
func (h *Handler) HandleChangeWorld(p *player.Player, _, after *world.World) {
	if after == nil {
		return
	}
	h.host.setWorld(p.UUID(), after.Name())
	h.manager.ApplyPack(p.UUID(), after.Name())
}

// HandleQuit drops the player's state.
func (h *Handler) HandleQuit(p *player.Player) {
	h.manager.Disconnect(p.UUID())
	h.host.remove(p.UUID())
}
