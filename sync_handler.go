package packsync

import (
	"fmt"
)

// notify sends m to the other node over the player's connection. Caller must hold the
// player's lock.
func (m *Manager) notify(p Player, msg SyncMessage) {
	if m.channel == nil {
		return
	}
	data, err := EncodeMessage(msg)
	if err != nil {
		m.log.Warn("packsync: sync message dropped", "player", p.Name, "op", msg.Op, "error", err)
		return
	}
	if err := m.channel.SendPluginMessage(p, ChannelName, data); err != nil {
		m.log.Warn("packsync: sync message failed", "player", p.Name, "op", msg.Op, "error", err)
	}
}

// HandleMessage processes a plugin message received on ChannelName. Standalone nodes
// ignore sync traffic.
func (m *Manager) HandleMessage(data []byte) error {
	msg, err := DecodeMessage(data)
	if err != nil {
		return err
	}

	switch m.role {
	case RoleProxy:
		return m.handleOnProxy(msg)
	case RoleBackend:
		return m.handleOnBackend(msg)
	default:
		return nil
	}
}

func (m *Manager) syncPlayer(msg SyncMessage) (Player, error) {
	p, ok := m.host.PlayerByName(msg.Player)
	if !ok {
		return Player{}, fmt.Errorf("packsync: %s for %q: %w", msg.Op, msg.Player, ErrPlayerOffline)
	}
	return p, nil
}

// announced returns the registry pack named in a packChange, or an ad hoc pack when the
// sender knows packs this node does not.
func (m *Manager) announced(msg SyncMessage) *ResourcePack {
	if p, ok := m.Catalog().Packs.PackByName(msg.Pack); ok && p.URL() == msg.URL {
		return p
	}
	return NewResourcePack(msg.Pack, msg.URL, msg.Hash, 0, false, "")
}

func (m *Manager) handleOnProxy(msg SyncMessage) error {
	p, err := m.syncPlayer(msg)
	if err != nil {
		return err
	}
	u, _ := m.sessions.lockOrCreate(p)
	defer u.mu.Unlock()

	switch msg.Op {
	case OpPackChange:
		u.cancelSend()
		u.backendAuthority = true
		u.applied = m.announced(msg)
		u.appliedFormat = u.applied.Format()
		u.foreign = true
		m.log.Debug("packsync: backend took pack authority", "player", p.Name, "pack", msg.Pack)
	case OpClearPack:
		u.backendAuthority = false
		u.applied = nil
		u.appliedFormat = -1
		u.foreign = false
		m.log.Debug("packsync: backend released pack authority", "player", p.Name)
		m.applyLocked(u, m.scope(p.ID))
	case OpAuthLogin:
		u.authenticated = true
		m.applyLocked(u, m.scope(p.ID))
	}
	return nil
}

func (m *Manager) handleOnBackend(msg SyncMessage) error {
	p, err := m.syncPlayer(msg)
	if err != nil {
		return err
	}
	u, _ := m.sessions.lockOrCreate(p)
	defer u.mu.Unlock()

	switch msg.Op {
	case OpPackChange:
		u.cancelSend()
		u.applied = m.announced(msg)
		u.appliedFormat = u.applied.Format()
		u.foreign = true
	case OpClearPack:
		if u.foreign {
			u.applied = nil
			u.appliedFormat = -1
			u.foreign = false
		}
	case OpAuthLogin:
		return &ProtocolIncompatibleError{Protocol: -1, Feature: "sync opcode authLogin on a backend"}
	}
	return nil
}
