// Package registry tracks live client connections and their role and
// topic memberships, and performs best-effort delivery to them.
package registry

import (
	"log/slog"
	"sync"

	"github.com/akontos/sirena/internal/event"
)

type Role string

const (
	RoleRegisteredUser  Role = "registered_user"
	RoleFieldAgent      Role = "field_agent"
	RoleTeamLeader      Role = "team_leader"
	RoleServiceProvider Role = "service_provider"
	RoleOfficeStaff     Role = "office_staff"
	RoleAdmin           Role = "admin"
)

// Conn is the transport handle for one live client. gorilla/websocket
// connections satisfy it through the wsConn adapter in internal/web.
type Conn interface {
	WriteText(data []byte) error
	Close() error
}

type connection struct {
	actorID   string
	role      Role
	transport Conn

	// Serializes writes so delivery order per actor matches SendTo call
	// order even when fan-out goroutines target the same connection.
	writeMu sync.Mutex
}

func (c *connection) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.transport.WriteText(data)
}

// Registry owns three indexes: actor → connection, role → actor set,
// topic → subscriber set. One mutex guards all three; they are never
// mutated without it.
type Registry struct {
	mu     sync.Mutex
	conns  map[string]*connection
	roles  map[Role]map[string]struct{}
	topics map[string]map[string]struct{}
}

func New() *Registry {
	return &Registry{
		conns:  make(map[string]*connection),
		roles:  make(map[Role]map[string]struct{}),
		topics: make(map[string]map[string]struct{}),
	}
}

// Connect registers conn for actorID, replacing any prior connection.
// The superseded transport is closed so a reconnect does not leak its
// old socket. Last write wins; there are no error cases.
func (r *Registry) Connect(conn Conn, actorID string, role Role) {
	c := &connection{actorID: actorID, role: role, transport: conn}

	r.mu.Lock()
	prev := r.conns[actorID]
	if prev != nil {
		r.removeLocked(actorID)
	}
	r.conns[actorID] = c
	if r.roles[role] == nil {
		r.roles[role] = make(map[string]struct{})
	}
	r.roles[role][actorID] = struct{}{}
	r.mu.Unlock()

	if prev != nil {
		_ = prev.transport.Close()
		slog.Info("connection replaced", "actor", actorID)
	}
	slog.Debug("actor connected", "actor", actorID, "role", role)
}

// Disconnect removes the actor from all three indexes. It is a no-op
// for an actor that is not connected. The transport is not closed here;
// the read loop that observed EOF owns the handle.
func (r *Registry) Disconnect(actorID string) {
	r.mu.Lock()
	r.removeLocked(actorID)
	r.mu.Unlock()
}

// DisconnectIf removes the actor only while transport is still its
// current connection, so the read loop of a superseded socket cannot
// evict the replacement that took its place.
func (r *Registry) DisconnectIf(actorID string, transport Conn) {
	r.mu.Lock()
	if c, ok := r.conns[actorID]; ok && c.transport == transport {
		r.removeLocked(actorID)
	}
	r.mu.Unlock()
}

// removeLocked drops actorID from the connection map, its role set and
// every topic set, deleting entries left empty. Caller holds r.mu.
func (r *Registry) removeLocked(actorID string) {
	c, ok := r.conns[actorID]
	if !ok {
		return
	}
	delete(r.conns, actorID)

	if members := r.roles[c.role]; members != nil {
		delete(members, actorID)
		if len(members) == 0 {
			delete(r.roles, c.role)
		}
	}

	for topic, subs := range r.topics {
		delete(subs, actorID)
		if len(subs) == 0 {
			delete(r.topics, topic)
		}
	}
}

func (r *Registry) Subscribe(actorID, topicID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.topics[topicID] == nil {
		r.topics[topicID] = make(map[string]struct{})
	}
	r.topics[topicID][actorID] = struct{}{}
}

func (r *Registry) Unsubscribe(actorID, topicID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.topics[topicID]
	if !ok {
		return
	}
	delete(subs, actorID)
	if len(subs) == 0 {
		delete(r.topics, topicID)
	}
}

// SendTo delivers the event to actorID's live connection. An offline
// actor is a silent no-op; the caller cannot distinguish "offline"
// from "never connected". A transport failure is treated as an
// implicit disconnect.
func (r *Registry) SendTo(actorID string, ev *event.Event) {
	r.mu.Lock()
	c := r.conns[actorID]
	r.mu.Unlock()
	if c == nil {
		return
	}
	r.deliver(c, ev)
}

// BroadcastToTopic fans the event out to every current subscriber of
// the topic. Delivery is concurrent; one recipient's failure never
// blocks or fails the others.
func (r *Registry) BroadcastToTopic(topicID string, ev *event.Event) {
	r.mu.Lock()
	targets := make([]*connection, 0, len(r.topics[topicID]))
	for actorID := range r.topics[topicID] {
		if c, ok := r.conns[actorID]; ok {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	r.fanOut(targets, ev)
}

// BroadcastToRole fans the event out to every connected actor holding
// the role, with the same isolation guarantee as BroadcastToTopic.
func (r *Registry) BroadcastToRole(role Role, ev *event.Event) {
	r.mu.Lock()
	targets := make([]*connection, 0, len(r.roles[role]))
	for actorID := range r.roles[role] {
		if c, ok := r.conns[actorID]; ok {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	r.fanOut(targets, ev)
}

func (r *Registry) fanOut(targets []*connection, ev *event.Event) {
	if len(targets) == 0 {
		return
	}

	data, err := ev.Marshal()
	if err != nil {
		slog.Error("event marshal failed", "type", ev.Type, "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Add(1)
		go func(c *connection) {
			defer wg.Done()
			r.writeOrHeal(c, data)
		}(c)
	}
	wg.Wait()
}

func (r *Registry) deliver(c *connection, ev *event.Event) {
	data, err := ev.Marshal()
	if err != nil {
		slog.Error("event marshal failed", "type", ev.Type, "error", err)
		return
	}
	r.writeOrHeal(c, data)
}

// writeOrHeal writes one frame and, on failure, self-heals by dropping
// the broken connection with the same side effects as Disconnect. The
// drop is skipped when a newer connection already replaced this one.
func (r *Registry) writeOrHeal(c *connection, data []byte) {
	if err := c.write(data); err != nil {
		slog.Warn("send failed, dropping connection", "actor", c.actorID, "error", err)

		r.mu.Lock()
		if r.conns[c.actorID] == c {
			r.removeLocked(c.actorID)
		}
		r.mu.Unlock()
		_ = c.transport.Close()
	}
}

// IsConnected reports whether actorID has a live connection.
func (r *Registry) IsConnected(actorID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[actorID]
	return ok
}

// RoleOf returns the role the actor connected with.
func (r *Registry) RoleOf(actorID string) (Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[actorID]
	if !ok {
		return "", false
	}
	return c.role, true
}

// Subscribers returns a snapshot of the topic's subscriber set.
func (r *Registry) Subscribers(topicID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.topics[topicID]))
	for actorID := range r.topics[topicID] {
		ids = append(ids, actorID)
	}
	return ids
}

// ConnectedActor is an ops-facing view of one live connection.
type ConnectedActor struct {
	ActorID string `json:"actor_id"`
	Role    Role   `json:"role"`
}

// Connected returns a snapshot of everyone currently online.
func (r *Registry) Connected() []ConnectedActor {
	r.mu.Lock()
	defer r.mu.Unlock()

	actors := make([]ConnectedActor, 0, len(r.conns))
	for _, c := range r.conns {
		actors = append(actors, ConnectedActor{ActorID: c.actorID, Role: c.role})
	}
	return actors
}

// ParseRole validates a role string from config or an auth token.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleRegisteredUser, RoleFieldAgent, RoleTeamLeader,
		RoleServiceProvider, RoleOfficeStaff, RoleAdmin:
		return Role(s), true
	}
	return "", false
}
