package packsync

import (
	"github.com/google/uuid"
)

// Role is the part a node plays in a deployment.
type Role int

const (
	// RoleStandalone is a single server without a proxy. Scopes are worlds.
	RoleStandalone Role = iota
	// RoleProxy is the front door. Scopes are backend server names.
	RoleProxy
	// RoleBackend is a server behind a proxy. Scopes are worlds.
	RoleBackend
)

func (r Role) String() string {
	switch r {
	case RoleProxy:
		return "proxy"
	case RoleBackend:
		return "backend"
	default:
		return "standalone"
	}
}

// Host is the server platform the manager runs on.
type Host interface {
	// Player returns the online player with the given id.
	Player(id uuid.UUID) (Player, bool)

	// PlayerByName returns the online player with the given name.
	PlayerByName(name string) (Player, bool)

	// HasPermission reports whether the player holds permission.
	HasPermission(id uuid.UUID, permission string) bool

	// ProtocolVersion returns the client's protocol version, if known.
	ProtocolVersion(id uuid.UUID) (int, bool)

	// Scope returns the world or backend server the player is currently in.
	Scope(id uuid.UUID) (string, bool)
}

// Delivery is a pack send to one client.
type Delivery struct {
	Pack *ResourcePack

	// Format is the pack format reported to the client. It may be lower than
	// Pack.Format() for legacy clients.
	Format int

	// Protocol is the client's protocol version, or -1 when unknown.
	Protocol int
}

// PackTransport delivers pack assignment packets to clients. Sends are fire-and-forget:
// an implementation must not wait for the client's response.
type PackTransport interface {
	// Supports reports whether the transport can reach a client on protocol.
	// A protocol of -1 means the version is unknown.
	Supports(protocol int) bool

	// SendPack instructs the client to download and apply the pack.
	SendPack(p Player, d Delivery) error

	// ClearPack instructs the client to drop the server pack.
	ClearPack(p Player, protocol int) error
}

// Channel sends plugin messages over a player's connection.
type Channel interface {
	SendPluginMessage(p Player, channel string, data []byte) error
}

// Authenticator reports whether a player has passed an external login step.
type Authenticator interface {
	IsAuthenticated(id uuid.UUID) bool
}

// Messenger delivers localized messages to players by key.
type Messenger interface {
	SendMessage(p Player, key string, args ...any)
}

// Message keys passed to Messenger.
const (
	MessageOverrideExpired = "usepack.expired"
	MessageUnsupported     = "sendpack.unsupported"
)

// SelectTransport returns the first candidate able to serve hostProtocol. It is called
// once at startup with the protocol version the node itself runs.
func SelectTransport(hostProtocol int, candidates ...PackTransport) (PackTransport, error) {
	for _, t := range candidates {
		if t != nil && t.Supports(hostProtocol) {
			return t, nil
		}
	}
	return nil, &ProtocolIncompatibleError{Protocol: hostProtocol, Feature: "pack transport"}
}

// ProtocolRange restricts a transport to protocols in [Min, Max]. A Max of 0 is unbounded.
// Unknown protocols are accepted.
type ProtocolRange struct {
	Min, Max  int
	Transport PackTransport
}

func (r ProtocolRange) Supports(protocol int) bool {
	if protocol < 0 {
		return r.Transport.Supports(protocol)
	}
	if protocol < r.Min || (r.Max > 0 && protocol > r.Max) {
		return false
	}
	return r.Transport.Supports(protocol)
}

func (r ProtocolRange) SendPack(p Player, d Delivery) error {
	return r.Transport.SendPack(p, d)
}

func (r ProtocolRange) ClearPack(p Player, protocol int) error {
	return r.Transport.ClearPack(p, protocol)
}
