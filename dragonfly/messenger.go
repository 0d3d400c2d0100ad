package dragonfly

import (
	"fmt"

	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"

	"github.com/oriumgames/packsync"
)

// DefaultMessages are the message formats used when none are configured.
var DefaultMessages = map[string]string{
	packsync.MessageOverrideExpired: "§7Your pack §f%s§7 has expired.",
	packsync.MessageUnsupported:     "§cYour client cannot load the pack §f%s§c.",
}

// Messenger sends packsync messages as chat messages.
type Messenger struct {
	host    *Host
	formats map[string]string
}

var _ packsync.Messenger = (*Messenger)(nil)

// Messenger returns a packsync.Messenger for players joined through h. Keys missing
// from formats use DefaultMessages.
func (h *Host) Messenger(formats map[string]string) *Messenger {
	return &Messenger{host: h, formats: formats}
}

func (m *Messenger) format(key string, args ...any) string {
	f, ok := m.formats[key]
	if !ok {
		if f, ok = DefaultMessages[key]; !ok {
			return key
		}
	}
	return fmt.Sprintf(f, args...)
}

// SendMessage delivers the message asynchronously in the player's world. The manager
// calls it while holding the player's lock.
func (m *Messenger) SendMessage(p packsync.Player, key string, args ...any) {
	text := m.format(key, args...)
	go m.host.Exec(p.ID, func(_ *world.Tx, pl *player.Player) {
		pl.Message(text)
	})
}
