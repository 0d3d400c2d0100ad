package packsync

// SelectStatus describes the outcome a SelectEvent proposes.
type SelectStatus int

const (
	// StatusAccepted means a pack was resolved for the player.
	StatusAccepted SelectStatus = iota
	// StatusNoPack means no rule applied and the player's pack will be cleared.
	StatusNoPack
)

func (s SelectStatus) String() string {
	if s == StatusNoPack {
		return "no-pack"
	}
	return "accepted"
}

// SelectEvent is emitted after a pack is resolved and before it is applied.
// Cancelling it leaves the player's pack unchanged.
type SelectEvent struct {
	Player Player
	Scope  string
	Pack   *ResourcePack
	Source Source
	Status SelectStatus

	cancelled bool
}

// Cancel denies the selection.
func (e *SelectEvent) Cancel() { e.cancelled = true }

// Cancelled reports whether a listener denied the selection.
func (e *SelectEvent) Cancelled() bool { return e.cancelled }

// SendEvent is emitted after a pack was handed to the transport, or after the client was
// told to clear its pack.
type SendEvent struct {
	Player Player
	Pack   *ResourcePack
	Format int

	// Cleared is set when the client was told to drop its pack.
	Cleared bool
}

// Listener observes pack selection and delivery. Listeners run while the player's state
// is locked and must not call back into the Manager for the same player.
type Listener interface {
	HandlePackSelect(e *SelectEvent)
	HandlePackSend(e *SendEvent)
}

// NopListener implements Listener with no-ops. Embed it to handle a subset of events.
type NopListener struct{}

func (NopListener) HandlePackSelect(*SelectEvent) {}
func (NopListener) HandlePackSend(*SendEvent)     {}

// Compile-time check that NopListener implements Listener.
var _ Listener = NopListener{}
