package dragonfly

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriumgames/packsync"
)

func TestPermissions(t *testing.T) {
	id := uuid.New()
	perms := NewPermissions(PermissionNode{Node: "packsync.pack.*", Allow: true})

	tests := []struct {
		name       string
		setup      func()
		permission string
		want       bool
	}{
		{"default wildcard", func() {}, "packsync.pack.hd", true},
		{"outside wildcard", func() {}, "resourcepacks.admin", false},
		{"player deny beats default", func() { perms.Deny(id, "packsync.pack.hd") }, "packsync.pack.hd", false},
		{"other pack still allowed", func() {}, "packsync.pack.vanilla", true},
		{"regrant", func() { perms.Grant(id, "packsync.pack.hd") }, "packsync.pack.hd", true},
		{"case insensitive", func() {}, "ResourcePacks.Pack.HD", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			assert.Equal(t, tt.want, perms.Has(id, tt.permission))
		})
	}

	perms.Forget(id)
	assert.True(t, perms.Has(id, "packsync.pack.hd"))
}

func TestPermissionsDenyAtSameSpecificity(t *testing.T) {
	nodes := []PermissionNode{
		{Node: "a.*", Allow: true},
		{Node: "a.*", Allow: false},
	}
	allow, found := resolveNodes(nodes, "a.b")
	assert.True(t, found)
	assert.False(t, allow)
}

func TestHostIndex(t *testing.T) {
	h := NewHost(nil)
	id := uuid.New()
	h.add(id, "Steve", nil, "world")

	p, ok := h.PlayerByName("steve")
	require.True(t, ok)
	assert.Equal(t, packsync.Player{ID: id, Name: "Steve"}, p)

	scope, ok := h.Scope(id)
	require.True(t, ok)
	assert.Equal(t, "world", scope)

	h.setWorld(id, "nether")
	scope, _ = h.Scope(id)
	assert.Equal(t, "nether", scope)

	_, ok = h.ProtocolVersion(id)
	assert.False(t, ok)
	assert.False(t, h.HasPermission(id, "packsync.pack.hd"))

	h.remove(id)
	_, ok = h.Player(id)
	assert.False(t, ok)
	_, ok = h.PlayerByName("Steve")
	assert.False(t, ok)
}

func TestMessengerFormat(t *testing.T) {
	m := NewHost(nil).Messenger(map[string]string{
		packsync.MessageOverrideExpired: "expired: %s",
	})
	assert.Equal(t, "expired: joke", m.format(packsync.MessageOverrideExpired, "joke"))
	assert.Contains(t, m.format(packsync.MessageUnsupported, "hd"), "hd")
	assert.Equal(t, "unknown.key", m.format("unknown.key"))
}
