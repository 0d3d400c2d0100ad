package packsync

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

type fakeHost struct {
	mu       sync.Mutex
	players  map[uuid.UUID]Player
	perms    map[uuid.UUID]map[string]bool
	protocol map[uuid.UUID]int
	scope    map[uuid.UUID]string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		players:  make(map[uuid.UUID]Player),
		perms:    make(map[uuid.UUID]map[string]bool),
		protocol: make(map[uuid.UUID]int),
		scope:    make(map[uuid.UUID]string),
	}
}

func (h *fakeHost) join(name, scope string, perms ...string) Player {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := Player{ID: uuid.New(), Name: name}
	h.players[p.ID] = p
	h.scope[p.ID] = scope
	h.perms[p.ID] = make(map[string]bool)
	for _, perm := range perms {
		h.perms[p.ID][perm] = true
	}
	return p
}

func (h *fakeHost) leave(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.players, id)
}

func (h *fakeHost) move(id uuid.UUID, scope string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scope[id] = scope
}

func (h *fakeHost) setProtocol(id uuid.UUID, protocol int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.protocol[id] = protocol
}

func (h *fakeHost) Player(id uuid.UUID) (Player, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[id]
	return p, ok
}

func (h *fakeHost) PlayerByName(name string) (Player, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.players {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Player{}, false
}

func (h *fakeHost) HasPermission(id uuid.UUID, permission string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.perms[id][permission]
}

func (h *fakeHost) ProtocolVersion(id uuid.UUID) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.protocol[id]
	return v, ok
}

func (h *fakeHost) Scope(id uuid.UUID) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.scope[id]
	return s, ok
}

type sent struct {
	Player   Player
	Delivery Delivery
}

type recordingTransport struct {
	mu          sync.Mutex
	sends       []sent
	clears      []Player
	unsupported map[int]bool
	err         error
}

func (t *recordingTransport) Supports(protocol int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.unsupported[protocol]
}

func (t *recordingTransport) SendPack(p Player, d Delivery) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.sends = append(t.sends, sent{Player: p, Delivery: d})
	return nil
}

func (t *recordingTransport) ClearPack(p Player, _ int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clears = append(t.clears, p)
	return nil
}

// sentPacks returns the names of the packs sent so far.
func (t *recordingTransport) sentPacks() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := []string{}
	for _, s := range t.sends {
		names = append(names, s.Delivery.Pack.Name())
	}
	return names
}

type recordingChannel struct {
	mu       sync.Mutex
	messages []SyncMessage
}

func (c *recordingChannel) SendPluginMessage(_ Player, channel string, data []byte) error {
	if channel != ChannelName {
		panic("unexpected channel " + channel)
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	return nil
}

func (c *recordingChannel) ops() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ops := []string{}
	for _, m := range c.messages {
		ops = append(ops, m.Op)
	}
	return ops
}

type recordingMessenger struct {
	mu   sync.Mutex
	keys []string
}

func (m *recordingMessenger) SendMessage(_ Player, key string, _ ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
}

type denyListener struct {
	NopListener
	pack  string
	sends []*SendEvent
}

func (l *denyListener) HandlePackSelect(e *SelectEvent) {
	if e.Pack != nil && e.Pack.Name() == l.pack {
		e.Cancel()
	}
}

func (l *denyListener) HandlePackSend(e *SendEvent) {
	l.sends = append(l.sends, e)
}
