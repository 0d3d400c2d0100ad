package packsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Player is a read-only projection of a connected player.
type Player struct {
	ID   uuid.UUID
	Name string
}

func (p Player) String() string {
	return p.Name + " (" + p.ID.String() + ")"
}

// StoredPackPriority decides where a player's stored pack ranks against assignments.
type StoredPackPriority int

const (
	// StoredPackOverride ranks the stored pack directly below a temporary override.
	StoredPackOverride StoredPackPriority = iota
	// StoredPackFallback ranks the stored pack directly above the empty pack.
	StoredPackFallback
	// StoredPackOff ignores stored packs during resolution.
	StoredPackOff
)

// ParseStoredPackPriority parses "override", "fallback" or "off". An empty string is
// StoredPackOverride.
func ParseStoredPackPriority(s string) (StoredPackPriority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "override":
		return StoredPackOverride, nil
	case "fallback":
		return StoredPackFallback, nil
	case "off", "none":
		return StoredPackOff, nil
	default:
		return StoredPackOverride, fmt.Errorf("packsync: unknown stored pack priority %q", s)
	}
}

func (p StoredPackPriority) String() string {
	switch p {
	case StoredPackFallback:
		return "fallback"
	case StoredPackOff:
		return "off"
	default:
		return "override"
	}
}

// Source identifies which rule produced a Resolution.
type Source int

const (
	SourceNone Source = iota
	SourceOverride
	SourceStored
	SourceScope
	SourceGlobal
	SourceEmpty
	SourceLastApplied
)

func (s Source) String() string {
	switch s {
	case SourceOverride:
		return "override"
	case SourceStored:
		return "stored"
	case SourceScope:
		return "scope"
	case SourceGlobal:
		return "global"
	case SourceEmpty:
		return "empty"
	case SourceLastApplied:
		return "last applied"
	default:
		return "none"
	}
}

// Override is a player-specific pack choice that outranks every assignment.
type Override struct {
	Pack string

	// Expires is when the override lapses. The zero time never lapses.
	Expires time.Time
}

// Active reports whether the override applies at now.
func (o *Override) Active(now time.Time) bool {
	return o != nil && o.Pack != "" && (o.Expires.IsZero() || now.Before(o.Expires))
}

// ResolveInput is everything the resolver knows about a player at one instant.
type ResolveInput struct {
	Player Player
	Scope  string

	// HasPermission reports whether the player holds a permission. nil grants nothing.
	HasPermission func(permission string) bool

	// ClientFormat is the highest pack format the client supports, or -1 when unknown.
	ClientFormat int

	Override   *Override
	StoredPack string

	// LastApplied is the pack an assignment last gave the player, remembered with
	// store-applied-packs. It only ranks above the empty pack.
	LastApplied string

	Now time.Time
}

// Resolution is the outcome of Catalog.Resolve.
type Resolution struct {
	// Pack is the resolved pack; nil means the player should have no pack.
	Pack *ResourcePack

	// Format is the pack format to report to the client, clamped to ClientFormat.
	Format int

	Source Source

	// Assignment is the rule set that chose Pack, for SourceScope and SourceGlobal.
	Assignment *PackAssignment

	// Warnings holds *UnknownPackReferenceError values met while resolving.
	Warnings []error
}

// Settings are the behavioural options loaded alongside packs and assignments.
type Settings struct {
	// UseAuth holds resolution back until the player is authenticated.
	UseAuth bool

	// AutoGenerateHashes regenerates pack hashes whenever a catalog is loaded.
	AutoGenerateHashes bool

	// UsepackTemporary makes UsePack set a temporary override instead of a stored pack.
	UsepackTemporary bool

	// UsepackDuration is the default override length. Zero lasts until reset or disconnect.
	UsepackDuration time.Duration

	StoredPriority StoredPackPriority

	// StoreAppliedPacks remembers the pack an assignment last gave the player, as a
	// fallback for scopes with no rule.
	StoreAppliedPacks bool
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{UsepackTemporary: true}
}

// Catalog is an immutable snapshot of the pack registry, the assignments and the
// settings. Manager swaps catalogs atomically on reload.
type Catalog struct {
	Packs       *PackRegistry
	Assignments *AssignmentStore
	Settings    Settings
}

// NewCatalog creates a catalog with an empty registry and assignment store.
func NewCatalog() *Catalog {
	return &Catalog{
		Packs:       NewPackRegistry(),
		Assignments: NewAssignmentStore(),
		Settings:    DefaultSettings(),
	}
}

type resolver struct {
	c   *Catalog
	in  ResolveInput
	res Resolution
}

// Resolve picks the pack a player should have. Highest precedence first: an active
// override, the stored pack (StoredPackOverride), the scope's permission-gated entries,
// the scope default, the global assignment, the stored pack (StoredPackFallback), the
// last applied pack, the empty pack, and finally no pack.
func (c *Catalog) Resolve(in ResolveInput) Resolution {
	r := &resolver{c: c, in: in}
	r.resolve()
	if r.res.Pack != nil {
		r.res.Format = r.res.Pack.Format()
		if in.ClientFormat >= 0 && r.res.Format > in.ClientFormat {
			r.res.Format = in.ClientFormat
		}
	}
	return r.res
}

func (r *resolver) resolve() {
	if r.in.Override.Active(r.in.Now) {
		if p := r.lookup("override", r.in.Override.Pack); p != nil {
			r.choose(p, SourceOverride, nil)
			return
		}
	}

	if r.c.Settings.StoredPriority == StoredPackOverride && r.stored() {
		return
	}

	if r.in.Scope != "" {
		if a, ok := r.c.Assignments.Assignment(r.in.Scope); ok {
			if p := r.evaluate(a); p != nil {
				r.choose(p, SourceScope, a)
				return
			}
		}
	}

	if g := r.c.Assignments.GlobalAssignment(); g != nil {
		if p := r.evaluate(g); p != nil {
			r.choose(p, SourceGlobal, g)
			return
		}
	}

	if r.c.Settings.StoredPriority == StoredPackFallback && r.stored() {
		return
	}

	if r.in.LastApplied != "" {
		if p := r.lookup("last applied", r.in.LastApplied); p != nil && r.permitted(p, "") {
			r.choose(p, SourceLastApplied, nil)
			return
		}
	}

	if e := r.c.Packs.EmptyPack(); e != nil {
		r.choose(e, SourceEmpty, nil)
	}
}

func (r *resolver) stored() bool {
	if r.in.StoredPack == "" {
		return false
	}
	p := r.lookup("stored", r.in.StoredPack)
	if p == nil || !r.permitted(p, "") {
		return false
	}
	r.choose(p, SourceStored, nil)
	return true
}

// evaluate returns the first applicable entry of a, or its permitted default pack.
func (r *resolver) evaluate(a *PackAssignment) *ResourcePack {
	for _, e := range a.secondary {
		p := r.lookup(a.name, e.Pack)
		if p == nil {
			continue
		}
		if r.permitted(p, e.Permission) {
			return p
		}
	}
	if a.pack == "" {
		return nil
	}
	p := r.lookup(a.name, a.pack)
	if p == nil || !r.permitted(p, "") {
		return nil
	}
	return p
}

// permitted checks perm, or the pack's own permission when perm is empty and the pack
// is restricted.
func (r *resolver) permitted(p *ResourcePack, perm string) bool {
	if perm == "" {
		if !p.restricted {
			return true
		}
		perm = p.permission
	}
	return r.in.HasPermission != nil && r.in.HasPermission(perm)
}

func (r *resolver) lookup(assignment, name string) *ResourcePack {
	p, ok := r.c.Packs.PackByName(name)
	if !ok {
		r.res.Warnings = append(r.res.Warnings, &UnknownPackReferenceError{
			Assignment: assignment,
			Pack:       name,
			Suggestion: r.c.Packs.Suggest(name),
		})
		return nil
	}
	return p
}

func (r *resolver) choose(p *ResourcePack, src Source, a *PackAssignment) {
	r.res.Pack = p
	r.res.Source = src
	r.res.Assignment = a
}
