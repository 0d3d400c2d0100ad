package packsync

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// DefaultPermissionPrefix prefixes the permission of packs that do not configure one.
const DefaultPermissionPrefix = "packsync.pack."

// EmptyPackName is the name a pack defined inline under the "empty" section is registered as.
const EmptyPackName = "empty"

// ResourcePack is a pack definition: a download URL, its SHA-1 hash and the pack format
// it was built for.
//
// Packs obtained from a Catalog are shared between goroutines and must be treated as
// read-only. Mutate a Clone and publish it through Manager.UpdatePacks.
type ResourcePack struct {
	name string
	url  string

	// rawHash is the configured hash, lowercased. Empty when the hash is derived from the url.
	rawHash string
	hash    [sha1.Size]byte

	format     int
	restricted bool
	permission string
}

// NewResourcePack creates a pack. A hash that is not exactly 40 hex characters is ignored
// and replaced by the SHA-1 digest of the url. An empty permission defaults to
// DefaultPermissionPrefix followed by the name.
func NewResourcePack(name, url, hash string, format int, restricted bool, permission string) *ResourcePack {
	p := &ResourcePack{
		name:       name,
		url:        url,
		format:     format,
		restricted: restricted,
		permission: permission,
	}
	if p.permission == "" {
		p.permission = DefaultPermissionPrefix + name
	}
	p.applyHash(hash)
	return p
}

// applyHash stores a valid hex hash, or derives one from the url.
func (p *ResourcePack) applyHash(hash string) {
	if raw, ok := parseHash(hash); ok {
		copy(p.hash[:], raw)
		p.rawHash = strings.ToLower(hash)
		return
	}
	p.rawHash = ""
	p.hash = sha1.Sum([]byte(p.url))
}

func parseHash(hash string) ([]byte, bool) {
	if len(hash) != sha1.Size*2 {
		return nil, false
	}
	raw, err := hex.DecodeString(hash)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Name returns the pack's name as configured.
func (p *ResourcePack) Name() string { return p.name }

// URL returns the download url.
func (p *ResourcePack) URL() string { return p.url }

// Hash returns the 20-byte SHA-1 hash.
func (p *ResourcePack) Hash() [sha1.Size]byte { return p.hash }

// HashHex returns the hash as 40 lowercase hex characters.
func (p *ResourcePack) HashHex() string { return hex.EncodeToString(p.hash[:]) }

// RawHash returns the explicitly configured hash, or an empty string when the hash was
// derived from the url.
func (p *ResourcePack) RawHash() string { return p.rawHash }

// Format returns the configured pack format.
func (p *ResourcePack) Format() int { return p.format }

// Restricted reports whether players need Permission to receive the pack.
func (p *ResourcePack) Restricted() bool { return p.restricted }

// Permission returns the permission gating the pack.
func (p *ResourcePack) Permission() string { return p.permission }

// SetFormat sets the pack format and reports whether it changed.
func (p *ResourcePack) SetFormat(format int) bool {
	if p.format == format {
		return false
	}
	p.format = format
	return true
}

// SetRestricted sets the restricted flag and reports whether it changed.
func (p *ResourcePack) SetRestricted(restricted bool) bool {
	if p.restricted == restricted {
		return false
	}
	p.restricted = restricted
	return true
}

// SetPermission sets the permission and reports whether it changed.
func (p *ResourcePack) SetPermission(permission string) bool {
	if p.permission == permission {
		return false
	}
	p.permission = permission
	return true
}

// SetURL sets the url and reports whether it changed. A derived hash follows the new url.
func (p *ResourcePack) SetURL(url string) bool {
	if p.url == url {
		return false
	}
	p.url = url
	if p.rawHash == "" {
		p.hash = sha1.Sum([]byte(url))
	}
	return true
}

// SetHash sets the hash from its hex form and reports whether the effective hash changed.
// An invalid hash reverts to the url-derived hash.
func (p *ResourcePack) SetHash(hash string) bool {
	before := p.hash
	p.applyHash(hash)
	return before != p.hash
}

// Clone returns an independent copy of the pack.
func (p *ResourcePack) Clone() *ResourcePack {
	c := *p
	return &c
}

// Equal reports whether both packs have the same name, url and hash.
// Two nil packs are equal.
func (p *ResourcePack) Equal(o *ResourcePack) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.name == o.name && p.url == o.url && p.hash == o.hash
}

// IsEmpty reports whether p is the designated empty pack of the registry.
func (p *ResourcePack) IsEmpty(r *PackRegistry) bool {
	if p == nil || r == nil {
		return false
	}
	e := r.EmptyPack()
	return e != nil && strings.EqualFold(e.name, p.name)
}

func (p *ResourcePack) String() string {
	if p == nil {
		return "<none>"
	}
	return "ResourcePack{Name: " + p.name + ", URL: " + p.url + ", Hash: " + p.HashHex() + "}"
}
