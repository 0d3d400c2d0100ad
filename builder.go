package packsync

import (
	"errors"
	"log/slog"
	"time"
)

// Builder configures a Manager before initialization.
// Use NewBuilder() to create a builder and chain configuration methods.
type Builder struct {
	role         Role
	host         Host
	transport    PackTransport
	channel      Channel
	auth         Authenticator
	messenger    Messenger
	store        PackStore
	listeners    []Listener
	logger       *slog.Logger
	clock        Clock
	hasher       *Hasher
	catalog      *Catalog
	onSave       func(*Catalog) error
	serverFormat int
	storeTimeout time.Duration
}

// NewBuilder creates a new builder for a standalone node.
func NewBuilder() *Builder {
	return &Builder{
		role:         RoleStandalone,
		serverFormat: -1,
		storeTimeout: 5 * time.Second,
	}
}

// Role sets the part the node plays.
func (b *Builder) Role(r Role) *Builder {
	b.role = r
	return b
}

// Host sets the platform used for player lookups and permission checks. Required.
func (b *Builder) Host(h Host) *Builder {
	b.host = h
	return b
}

// Transport sets the pack delivery transport. Required.
//
// Example:
//
//	t, err := packsync.SelectTransport(serverProtocol, modern, legacy)
//	builder.Transport(t)
func (b *Builder) Transport(t PackTransport) *Builder {
	b.transport = t
	return b
}

// Channel sets the plugin message channel. Required for proxies and backends.
func (b *Builder) Channel(c Channel) *Builder {
	b.channel = c
	return b
}

// Authenticator sets the external login check consulted when useauth is enabled.
func (b *Builder) Authenticator(a Authenticator) *Builder {
	b.auth = a
	return b
}

// Messenger sets the localized message sink.
func (b *Builder) Messenger(m Messenger) *Builder {
	b.messenger = m
	return b
}

// Store sets the durable stored-pack store. Defaults to a MemoryStore.
func (b *Builder) Store(s PackStore) *Builder {
	b.store = s
	return b
}

// StoreTimeout bounds each stored-pack lookup or write. Default: 5 seconds.
func (b *Builder) StoreTimeout(d time.Duration) *Builder {
	b.storeTimeout = d
	return b
}

// Listener adds a selection and delivery listener.
func (b *Builder) Listener(l Listener) *Builder {
	b.listeners = append(b.listeners, l)
	return b
}

// Logger sets the logger. Defaults to slog.Default().
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Clock sets the time source. Defaults to the system clock.
func (b *Builder) Clock(c Clock) *Builder {
	b.clock = c
	return b
}

// Hasher sets the hasher used by GenerateHashes. Defaults to NewHasher().
func (b *Builder) Hasher(h *Hasher) *Builder {
	b.hasher = h
	return b
}

// Catalog sets the initial packs, assignments and settings.
func (b *Builder) Catalog(c *Catalog) *Builder {
	b.catalog = c
	return b
}

// OnSave sets the function persisting catalog changes, such as regenerated hashes.
//
// Example:
//
//	builder.OnSave(func(c *packsync.Catalog) error {
//	    cfg.Apply(c)
//	    return cfg.Save()
//	})
func (b *Builder) OnSave(fn func(*Catalog) error) *Builder {
	b.onSave = fn
	return b
}

// ServerVersion sets the pack format assumed for players whose protocol is unknown,
// derived from the server's version string.
func (b *Builder) ServerVersion(version string) *Builder {
	b.serverFormat = ServerPackFormat(version)
	return b
}

// Init validates the configuration, starts the scheduler and returns the Manager.
func (b *Builder) Init() (*Manager, error) {
	if b.host == nil {
		return nil, errors.New("packsync: a host is required")
	}
	if b.transport == nil {
		return nil, errors.New("packsync: a pack transport is required")
	}
	if b.role != RoleStandalone && b.channel == nil {
		return nil, errors.New("packsync: a channel is required for " + b.role.String() + " nodes")
	}

	m := newManager(b)
	m.Start()

	if m.Catalog().Settings.AutoGenerateHashes {
		m.generateOnLoad()
	}
	return m, nil
}
