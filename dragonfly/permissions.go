package dragonfly

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PermissionNode grants or denies a permission. A node ending in ".*" covers every
// permission below it; "*" covers everything.
type PermissionNode struct {
	Node  string
	Allow bool
}

// matches reports whether the node covers permission.
func (n PermissionNode) matches(permission string) bool {
	node := strings.ToLower(n.Node)
	if node == "*" || node == permission {
		return true
	}
	if prefix, ok := strings.CutSuffix(node, "*"); ok {
		return strings.HasPrefix(permission, prefix)
	}
	return false
}

// Permissions is an in-memory permission table keyed by player. Dragonfly has no
// permission system of its own.
type Permissions struct {
	mu       sync.RWMutex
	defaults []PermissionNode
	players  map[uuid.UUID][]PermissionNode
}

// NewPermissions creates a table where every player holds defaults.
func NewPermissions(defaults ...PermissionNode) *Permissions {
	return &Permissions{
		defaults: defaults,
		players:  make(map[uuid.UUID][]PermissionNode),
	}
}

// Grant allows permission for the player.
func (p *Permissions) Grant(id uuid.UUID, permission string) {
	p.set(id, PermissionNode{Node: permission, Allow: true})
}

// Deny denies permission for the player, overriding wildcards and defaults.
func (p *Permissions) Deny(id uuid.UUID, permission string) {
	p.set(id, PermissionNode{Node: permission, Allow: false})
}

func (p *Permissions) set(id uuid.UUID, n PermissionNode) {
	p.mu.Lock()
	defer p.mu.Unlock()

	nodes := p.players[id]
	for i := range nodes {
		if strings.EqualFold(nodes[i].Node, n.Node) {
			nodes[i] = n
			return
		}
	}
	p.players[id] = append(nodes, n)
}

// Forget drops the player's nodes.
func (p *Permissions) Forget(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.players, id)
}

// Has reports whether the player holds permission. The most specific matching node
// wins; player nodes beat defaults and deny beats allow at equal specificity.
func (p *Permissions) Has(id uuid.UUID, permission string) bool {
	permission = strings.ToLower(permission)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if allow, ok := resolveNodes(p.players[id], permission); ok {
		return allow
	}
	allow, _ := resolveNodes(p.defaults, permission)
	return allow
}

func resolveNodes(nodes []PermissionNode, permission string) (allow, found bool) {
	best := -1
	for _, n := range nodes {
		if !n.matches(permission) {
			continue
		}
		l := len(n.Node)
		switch {
		case l > best:
			best, allow = l, n.Allow
		case l == best && !n.Allow:
			allow = false
		}
	}
	return allow, best >= 0
}
