package packsync

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
)

// GlobalScope is the name of the default assignment.
const GlobalScope = "global"

// Assignment map keys understood by LoadAssignment.
const (
	keyPack       = "pack"
	keySecondary  = "secondary"
	keyPermission = "permission"
	keySendDelay  = "send-delay"
	keyRegex      = "regex"
)

// regexTimeout bounds a single scope pattern match.
const regexTimeout = 100 * time.Millisecond

// PackEntry is a conditional pack choice of an assignment.
type PackEntry struct {
	// Pack is the name of the pack chosen by the entry.
	Pack string

	// Permission gates the entry. When empty, the entry is gated by the pack's own
	// permission if the pack is restricted, and always applies otherwise.
	Permission string
}

// entry is a PackEntry plus the form it was written in.
type entry struct {
	PackEntry

	// long is set for entries written as a map.
	long bool
}

// PackAssignment is the rule set for one routing scope: ordered conditional entries and a
// default pack. Assignments reachable from a Catalog are shared and must be treated as
// read-only.
type PackAssignment struct {
	name      string
	pack      string
	secondary []entry
	sendDelay int
	regex     string
	pattern   *regexp2.Regexp

	// hasSecondary and hasDelay record keys that were written even when empty or zero,
	// so Serialize writes them back.
	hasSecondary bool
	hasDelay     bool
}

// NewPackAssignment creates an assignment without rules.
func NewPackAssignment(name string) *PackAssignment {
	return &PackAssignment{name: name}
}

// Name returns the scope name the assignment is attached to.
func (a *PackAssignment) Name() string { return a.name }

// Pack returns the name of the scope default pack, or an empty string.
func (a *PackAssignment) Pack() string { return a.pack }

// SetPack sets the scope default pack and reports whether it changed.
func (a *PackAssignment) SetPack(name string) bool {
	if a.pack == name {
		return false
	}
	a.pack = name
	return true
}

// Secondary returns a copy of the conditional entries in evaluation order.
func (a *PackAssignment) Secondary() []PackEntry {
	if len(a.secondary) == 0 {
		return nil
	}
	result := make([]PackEntry, len(a.secondary))
	for i, e := range a.secondary {
		result[i] = e.PackEntry
	}
	return result
}

// AddSecondary appends a conditional entry.
func (a *PackAssignment) AddSecondary(e PackEntry) {
	a.secondary = append(a.secondary, entry{PackEntry: e})
}

// SendDelay returns the delay before the assignment's pack is sent, in ticks.
func (a *PackAssignment) SendDelay() int { return a.sendDelay }

// SetSendDelay sets the send delay in ticks. Negative values are treated as zero.
func (a *PackAssignment) SetSendDelay(ticks int) {
	a.sendDelay = max(ticks, 0)
	a.hasDelay = true
}

// Regex returns the scope pattern, or an empty string.
func (a *PackAssignment) Regex() string { return a.regex }

// SetRegex compiles and sets the scope pattern. An empty pattern clears it.
func (a *PackAssignment) SetRegex(pattern string) error {
	if pattern == "" {
		a.regex, a.pattern = "", nil
		return nil
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return err
	}
	re.MatchTimeout = regexTimeout
	a.regex, a.pattern = pattern, re
	return nil
}

// Matches reports whether the assignment's pattern matches scope.
func (a *PackAssignment) Matches(scope string) bool {
	if a.pattern == nil {
		return false
	}
	ok, err := a.pattern.MatchString(scope)
	return err == nil && ok
}

// IsEmpty reports whether the assignment has neither a default pack nor entries.
func (a *PackAssignment) IsEmpty() bool {
	return a.pack == "" && len(a.secondary) == 0
}

// Clone returns an independent copy.
func (a *PackAssignment) Clone() *PackAssignment {
	c := *a
	c.secondary = append([]entry(nil), a.secondary...)
	return &c
}

// Serialize returns the nested map form consumed by LoadAssignment. Entries keep the
// form they were loaded in, and a loaded empty secondary list or zero send delay is
// written back.
func (a *PackAssignment) Serialize() map[string]any {
	m := make(map[string]any)
	if a.pack != "" {
		m[keyPack] = a.pack
	}
	if len(a.secondary) > 0 || a.hasSecondary {
		entries := make([]any, 0, len(a.secondary))
		for _, e := range a.secondary {
			if e.Permission == "" && !e.long {
				entries = append(entries, e.Pack)
				continue
			}
			em := map[string]any{keyPack: e.Pack}
			if e.Permission != "" {
				em[keyPermission] = e.Permission
			}
			entries = append(entries, em)
		}
		m[keySecondary] = entries
	}
	if a.sendDelay > 0 || a.hasDelay {
		m[keySendDelay] = a.sendDelay
	}
	if a.regex != "" {
		m[keyRegex] = a.regex
	}
	return m
}

// LoadAssignment parses the nested map form of an assignment. Malformed entries are
// dropped and returned as *ConfigError warnings; the assignment is always usable.
func LoadAssignment(name string, raw map[string]any) (*PackAssignment, []error) {
	a := NewPackAssignment(name)
	var warnings []error
	warn := func(key, reason string, err error) {
		warnings = append(warnings, &ConfigError{Section: "assignment " + name, Key: key, Reason: reason, Err: err})
	}

	for key, value := range raw {
		switch key {
		case keyPack:
			s, ok := value.(string)
			if !ok {
				warn(key, fmt.Sprintf("expected a pack name, got %T", value), nil)
				continue
			}
			a.pack = s
		case keySecondary:
			list, ok := value.([]any)
			if !ok {
				warn(key, fmt.Sprintf("expected a list, got %T", value), nil)
				continue
			}
			a.hasSecondary = true
			for i, item := range list {
				e, err := parseEntry(item)
				if err != nil {
					warn(fmt.Sprintf("%s[%d]", key, i), err.Error(), nil)
					continue
				}
				a.secondary = append(a.secondary, e)
			}
		case keySendDelay:
			n, ok := toInt(value)
			if !ok || n < 0 {
				warn(key, fmt.Sprintf("expected a non-negative tick count, got %v", value), nil)
				continue
			}
			a.sendDelay = n
			a.hasDelay = true
		case keyRegex:
			s, ok := value.(string)
			if !ok {
				warn(key, fmt.Sprintf("expected a pattern, got %T", value), nil)
				continue
			}
			if err := a.SetRegex(s); err != nil {
				warn(key, "invalid pattern", err)
			}
		default:
			warn(key, "unknown key", nil)
		}
	}
	return a, warnings
}

func parseEntry(item any) (entry, error) {
	switch v := item.(type) {
	case string:
		if v == "" {
			return entry{}, fmt.Errorf("empty pack name")
		}
		return entry{PackEntry: PackEntry{Pack: v}}, nil
	case map[string]any:
		pack, _ := v[keyPack].(string)
		if pack == "" {
			return entry{}, fmt.Errorf("entry has no pack")
		}
		e := entry{PackEntry: PackEntry{Pack: pack}, long: true}
		perm, ok := v[keyPermission]
		if !ok {
			return e, nil
		}
		s, ok := perm.(string)
		if !ok {
			return entry{}, fmt.Errorf("permission must be a string, got %T", perm)
		}
		e.Permission = s
		return e, nil
	default:
		return entry{}, fmt.Errorf("expected a pack name or map, got %T", item)
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}

// AssignmentStore holds the global assignment and one assignment per scope name.
// Scope names are case-sensitive. It is safe for concurrent use.
type AssignmentStore struct {
	mu     sync.RWMutex
	global *PackAssignment
	scopes map[string]*PackAssignment
	order  []string
}

// NewAssignmentStore creates a store with an empty global assignment.
func NewAssignmentStore() *AssignmentStore {
	return &AssignmentStore{
		global: NewPackAssignment(GlobalScope),
		scopes: make(map[string]*PackAssignment),
	}
}

// SetGlobalAssignment replaces the global assignment. nil resets it to an empty one.
func (s *AssignmentStore) SetGlobalAssignment(a *PackAssignment) {
	if a == nil {
		a = NewPackAssignment(GlobalScope)
	}
	s.mu.Lock()
	s.global = a
	s.mu.Unlock()
}

// GlobalAssignment returns the global assignment. It is never nil.
func (s *AssignmentStore) GlobalAssignment() *PackAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.global
}

// AddAssignment adds a scope assignment, replacing one with the same name.
func (s *AssignmentStore) AddAssignment(a *PackAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scopes[a.name]; !ok {
		s.order = append(s.order, a.name)
	}
	s.scopes[a.name] = a
}

// RemoveAssignment removes the scope assignment name and reports whether it existed.
func (s *AssignmentStore) RemoveAssignment(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scopes[name]; !ok {
		return false
	}
	delete(s.scopes, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Assignment returns the assignment for scope: an exact name match, or else the first
// assignment, in insertion order, whose pattern matches.
func (s *AssignmentStore) Assignment(scope string) (*PackAssignment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.scopes[scope]; ok {
		return a, true
	}
	for _, name := range s.order {
		if a := s.scopes[name]; a.Matches(scope) {
			return a, true
		}
	}
	return nil, false
}

// Assignments returns all scope assignments in insertion order.
func (s *AssignmentStore) Assignments() []*PackAssignment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*PackAssignment, 0, len(s.order))
	for _, name := range s.order {
		result = append(result, s.scopes[name])
	}
	return result
}
