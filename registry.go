package packsync

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
)

// PackRegistry owns the catalog of known resource packs and the designated empty pack.
// Names are unique case-insensitively. It is safe for concurrent use.
type PackRegistry struct {
	mu    sync.RWMutex
	packs map[string]*ResourcePack
	order []string
	empty *ResourcePack
}

// NewPackRegistry creates an empty registry.
func NewPackRegistry() *PackRegistry {
	return &PackRegistry{
		packs: make(map[string]*ResourcePack),
	}
}

func registryKey(name string) string {
	return strings.ToLower(name)
}

// AddPack registers a pack. It fails with a *DuplicateNameError when a pack with the same
// case-insensitive name is already registered.
func (r *PackRegistry) AddPack(p *ResourcePack) error {
	if p == nil {
		return fmt.Errorf("packsync: cannot register nil pack")
	}
	key := registryKey(p.name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.packs[key]; ok {
		return &DuplicateNameError{Name: p.name}
	}
	r.packs[key] = p
	r.order = append(r.order, key)
	return nil
}

// PackByName looks a pack up by case-insensitive name.
func (r *PackRegistry) PackByName(name string) (*ResourcePack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packs[registryKey(name)]
	return p, ok
}

// Packs returns all packs in registration order.
func (r *PackRegistry) Packs() []*ResourcePack {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*ResourcePack, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.packs[key])
	}
	return result
}

// Len returns the number of registered packs.
func (r *PackRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.packs)
}

// SetEmptyPack designates the pack that means "no pack". The pack must already be
// registered; nil clears the designation.
func (r *PackRegistry) SetEmptyPack(p *ResourcePack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p == nil {
		r.empty = nil
		return nil
	}
	registered, ok := r.packs[registryKey(p.name)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, p.name)
	}
	r.empty = registered
	return nil
}

// EmptyPack returns the designated empty pack, or nil.
func (r *PackRegistry) EmptyPack() *ResourcePack {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.empty
}

// Suggest returns the registered name closest to name, or an empty string.
func (r *PackRegistry) Suggest(name string) string {
	r.mu.RLock()
	names := make([]string, 0, len(r.packs))
	for _, key := range r.order {
		names = append(names, r.packs[key].name)
	}
	r.mu.RUnlock()

	matches := fuzzy.Find(strings.ToLower(name), lowerAll(names))
	if len(matches) == 0 {
		return ""
	}
	return names[matches[0].Index]
}

// withReplaced returns a copy of the registry where packs sharing a name with one of
// replaced are swapped for it. The empty designation follows the swap.
func (r *PackRegistry) withReplaced(replaced []*ResourcePack) *PackRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := &PackRegistry{
		packs: make(map[string]*ResourcePack, len(r.packs)),
		order: append([]string(nil), r.order...),
	}
	for key, p := range r.packs {
		c.packs[key] = p
	}
	for _, p := range replaced {
		key := registryKey(p.name)
		if _, ok := c.packs[key]; ok {
			c.packs[key] = p
		}
	}
	if r.empty != nil {
		c.empty = c.packs[registryKey(r.empty.name)]
	}
	return c
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
