// Package realtime fans domain events out to WebSocket subscribers.
//
// A Manager owns the room table. Each room is individually locked, so a
// publish only contends with joins, leaves and other publishes to the same
// room. Publishing encodes the event once and enqueues the frame on every
// member's bounded send queue without blocking; what happens when a queue
// is full is decided by the Manager's OverflowPolicy.
//
// Lock order is Manager.mu, then room.mu, then Conn.mu. No path takes them
// in the other direction.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/policy/accesspolicy"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/metrics"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/ratelimit"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/events"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// OverflowPolicy decides what happens to a connection whose send queue is
// full when a new frame arrives.
type OverflowPolicy string

const (
	// DropOldest discards the oldest queued frame to make room.
	DropOldest OverflowPolicy = "drop_oldest"
	// Disconnect closes the slow connection.
	Disconnect OverflowPolicy = "disconnect"
)

// ParseOverflowPolicy accepts the config spelling of a policy. Empty means
// DropOldest.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case "", DropOldest:
		return DropOldest, nil
	case Disconnect:
		return Disconnect, nil
	}
	return "", fmt.Errorf("unknown overflow policy %q (want %s or %s)", s, DropOldest, Disconnect)
}

const (
	DefaultSendBuffer   = 256
	DefaultInboundRate  = 20 // messages per second
	DefaultInboundBurst = 40
)

// ErrClosed is returned by operations on a closed Manager or Conn.
var ErrClosed = errors.New("realtime: closed")

// Resolver turns a handshake credential into an Account.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (models.Account, error)
}

// Authorizer is the access guard as seen by room joins. A denial comes back
// as an error carrying its apierr code.
type Authorizer interface {
	Authorize(ctx context.Context, acct *models.Account, ref accesspolicy.ResourceRef, action accesspolicy.Action) (accesspolicy.Decision, error)
}

// Config tunes a Manager. Zero values take the defaults.
type Config struct {
	SendBuffer     int
	Overflow       OverflowPolicy
	InboundRate    float64
	InboundBurst   int
	AllowedOrigins []string
}

// Manager is the room table plus the set of live connections.
type Manager struct {
	resolver Resolver
	authz    Authorizer
	log      *zap.Logger

	sendBuffer int
	overflow   OverflowPolicy
	inbound    *ratelimit.Limiter
	origins    []string

	mu     sync.RWMutex
	rooms  map[events.RoomKey]*room
	conns  map[*Conn]struct{}
	closed bool
	gen    uint64 // bumped by every eviction and room close

	pumps sync.WaitGroup
}

type room struct {
	key   events.RoomKey
	scope primitive.ObjectID // project the room belongs to

	mu      sync.Mutex
	members map[*Conn]struct{}
	dead    bool // unlinked from the table; joiners must look again
}

// NewManager builds a Manager. It must exist before the HTTP server starts
// accepting connections.
func NewManager(resolver Resolver, authz Authorizer, cfg Config, logger *zap.Logger) *Manager {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}
	if cfg.Overflow == "" {
		cfg.Overflow = DropOldest
	}
	rps := cfg.InboundRate
	if rps <= 0 {
		rps = DefaultInboundRate
	}
	burst := cfg.InboundBurst
	if burst <= 0 {
		burst = DefaultInboundBurst
	}
	return &Manager{
		resolver:   resolver,
		authz:      authz,
		log:        logger,
		sendBuffer: cfg.SendBuffer,
		overflow:   cfg.Overflow,
		inbound:    ratelimit.New(ratelimit.Per(int(rps), time.Second), burst),
		origins:    cfg.AllowedOrigins,
		rooms:      make(map[events.RoomKey]*room),
		conns:      make(map[*Conn]struct{}),
	}
}

// Inbound exposes the per-connection message limiter so the janitor can
// sweep idle buckets.
func (m *Manager) Inbound() *ratelimit.Limiter { return m.inbound }

/* ------------------------------ connections ------------------------------ */

// Authenticate verifies credential for c and moves it to AUTHENTICATED.
// On failure c is CLOSED and the error says whether the credential was bad
// (AUTH_REQUIRED) or the provider could not answer (UPSTREAM_UNAVAILABLE).
func (m *Manager) Authenticate(ctx context.Context, c *Conn, credential string) error {
	acct, err := m.resolver.Resolve(ctx, credential)
	if err != nil {
		c.setState(StateClosed)
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnecting {
		return ErrClosed
	}
	c.account = acct
	c.state = StateAuthenticated
	return nil
}

// register adds an authenticated connection to the live set and reserves
// pumps goroutines that Close will wait for.
func (m *Manager) register(c *Conn, pumps int) error {
	if c.State() != StateAuthenticated {
		return ErrClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.pumps.Add(pumps)
	m.conns[c] = struct{}{}
	metrics.WSConnections.Set(float64(len(m.conns)))
	return nil
}

// Disconnect removes c from every room and closes its send queue. Once the
// state flips to CLOSED no publish can enqueue to c, so the connection stops
// receiving at that instant. Safe to call more than once.
func (m *Manager) Disconnect(c *Conn) {
	joined, ok := c.shutdown()
	if !ok {
		return
	}
	for _, r := range joined {
		r.mu.Lock()
		delete(r.members, c)
		empty := len(r.members) == 0
		r.mu.Unlock()
		if empty {
			m.reap(r)
		}
	}

	m.mu.Lock()
	delete(m.conns, c)
	n := len(m.conns)
	m.mu.Unlock()

	m.inbound.Reset(c.id)
	metrics.WSConnections.Set(float64(n))
	m.log.Debug("websocket disconnected",
		zap.String("conn", c.id),
		zap.String("account", c.account.ID.Hex()))
}

/* --------------------------------- rooms --------------------------------- */

// Join subscribes c to key after the same access check a REST read of the
// resource would make. A denied or failed join changes nothing.
//
// An eviction or room close may run between the check and the subscribe.
// Join notices through the generation counter and checks again; if the
// recheck fails it takes back its own subscribe, so a connection never
// stays in a room its account lost access to.
func (m *Manager) Join(ctx context.Context, c *Conn, key events.RoomKey) error {
	kind, id, err := events.ParseRoomKey(string(key))
	if err != nil {
		return apierr.Invalid("invalid room", map[string]string{"room": err.Error()})
	}
	if c.State() != StateAuthenticated {
		return ErrClosed
	}

	acct := c.Account()
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), m.log, "room join")
	defer cancel()

	rechecked := false
	for {
		gen := m.generation()
		scope, err := m.authorizeJoin(ctx, &acct, kind, id)
		if err != nil {
			if rechecked {
				m.Leave(c, key)
			}
			metrics.WSJoins.WithLabelValues(kindLabel(kind), joinResult(err)).Inc()
			return err
		}
		if err := m.subscribe(c, key, scope); err != nil {
			return err
		}
		if m.generation() == gen {
			break
		}
		rechecked = true
	}
	metrics.WSJoins.WithLabelValues(kindLabel(kind), "ok").Inc()
	return nil
}

// authorizeJoin runs the read check for the room and returns the project
// the room is scoped to.
func (m *Manager) authorizeJoin(ctx context.Context, acct *models.Account, kind events.Kind, id primitive.ObjectID) (primitive.ObjectID, error) {
	if kind == events.KindTask {
		d, err := m.authz.Authorize(ctx, acct, accesspolicy.Task(id), accesspolicy.ReadTask)
		if err != nil {
			return primitive.NilObjectID, err
		}
		return d.Task.ProjectID, nil
	}
	if _, err := m.authz.Authorize(ctx, acct, accesspolicy.Project(id), accesspolicy.ReadProject); err != nil {
		return primitive.NilObjectID, err
	}
	return id, nil
}

// subscribe adds c to the live room for key. Joining a room c is already
// in keeps the single membership.
func (m *Manager) subscribe(c *Conn, key events.RoomKey, scope primitive.ObjectID) error {
	for {
		r := m.roomFor(key, scope)
		if r == nil {
			return ErrClosed
		}
		r.mu.Lock()
		if r.dead {
			r.mu.Unlock()
			continue
		}
		if !c.link(r) {
			r.mu.Unlock()
			return ErrClosed
		}
		r.members[c] = struct{}{}
		r.mu.Unlock()
		return nil
	}
}

func (m *Manager) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

// Leave unsubscribes c from key. Leaving a room c is not in is a no-op.
func (m *Manager) Leave(c *Conn, key events.RoomKey) {
	r := c.unlink(key)
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.members, c)
	empty := len(r.members) == 0
	r.mu.Unlock()
	if empty {
		m.reap(r)
	}
}

// Publish delivers ev to every connection in its room at this moment and
// returns how many frames were enqueued. Frames to one room reach each
// subscriber in publish order.
func (m *Manager) Publish(ev events.Event) int {
	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()

	m.mu.RLock()
	r := m.rooms[ev.Room]
	m.mu.RUnlock()
	if r == nil {
		return 0
	}

	frame, err := json.Marshal(ev)
	if err != nil {
		m.log.Error("encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return 0
	}

	var slow []*Conn
	delivered := 0
	r.mu.Lock()
	for c := range r.members {
		switch c.enqueue(frame, m.overflow) {
		case enqueued:
			delivered++
		case overflowed:
			slow = append(slow, c)
		}
	}
	r.mu.Unlock()

	for _, c := range slow {
		m.log.Warn("websocket send queue full, disconnecting",
			zap.String("conn", c.id),
			zap.String("room", string(ev.Room)))
		m.Disconnect(c)
	}
	metrics.EventDeliveries.Add(float64(delivered))
	return delivered
}

// EvictAccount removes every connection of accountID from the project room
// of projectID and from each task room scoped to that project.
func (m *Manager) EvictAccount(accountID, projectID primitive.ObjectID) {
	for _, r := range m.evictScope(projectID) {
		var gone []*Conn
		r.mu.Lock()
		for c := range r.members {
			if c.account.ID == accountID {
				gone = append(gone, c)
			}
		}
		r.mu.Unlock()
		for _, c := range gone {
			m.Leave(c, r.key)
		}
	}
}

// CloseRoom drops key and unsubscribes its members. Closing a project room
// also drops the task rooms scoped to that project.
func (m *Manager) CloseRoom(key events.RoomKey) {
	kind, id, err := events.ParseRoomKey(string(key))
	if err != nil {
		return
	}

	m.mu.Lock()
	m.gen++
	var doomed []*room
	for k, r := range m.rooms {
		if k == key || (kind == events.KindProject && r.scope == id) {
			doomed = append(doomed, r)
			delete(m.rooms, k)
		}
	}
	n := len(m.rooms)
	m.mu.Unlock()

	for _, r := range doomed {
		r.mu.Lock()
		r.dead = true
		members := r.members
		r.members = make(map[*Conn]struct{})
		r.mu.Unlock()
		for c := range members {
			c.unlinkRoom(r)
		}
	}
	metrics.WSRooms.Set(float64(n))
}

// Close disconnects every connection, waits for their pumps to exit and
// empties the table. Later joins and registrations fail with ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	conns := make([]*Conn, 0, len(m.conns))
	for c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		m.Disconnect(c)
	}
	m.pumps.Wait()

	m.mu.Lock()
	m.rooms = make(map[events.RoomKey]*room)
	m.mu.Unlock()
	metrics.WSRooms.Set(0)
	metrics.WSConnections.Set(0)
}

// Stats is a point-in-time view of the table.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Connections: len(m.conns), Rooms: len(m.rooms)}
}

// Subscribers returns the number of connections in key.
func (m *Manager) Subscribers(key events.RoomKey) int {
	m.mu.RLock()
	r := m.rooms[key]
	m.mu.RUnlock()
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// roomFor returns the live room for key, creating it if needed. It returns
// nil once the Manager is closed.
func (m *Manager) roomFor(key events.RoomKey, scope primitive.ObjectID) *room {
	m.mu.RLock()
	r, ok := m.rooms[key]
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil
	}
	if ok {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	if r, ok := m.rooms[key]; ok {
		return r
	}
	r = &room{key: key, scope: scope, members: make(map[*Conn]struct{})}
	m.rooms[key] = r
	metrics.WSRooms.Set(float64(len(m.rooms)))
	return r
}

// reap unlinks r from the table if it is still empty.
func (m *Manager) reap(r *room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead || len(r.members) > 0 {
		return
	}
	r.dead = true
	if m.rooms[r.key] == r {
		delete(m.rooms, r.key)
	}
	metrics.WSRooms.Set(float64(len(m.rooms)))
}

// evictScope bumps the generation and returns the rooms scoped to
// projectID, both under one lock so a join that subscribed before the bump
// is in the returned rooms.
func (m *Manager) evictScope(projectID primitive.ObjectID) []*room {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	var out []*room
	for _, r := range m.rooms {
		if r.scope == projectID {
			out = append(out, r)
		}
	}
	return out
}

func kindLabel(k events.Kind) string {
	if k == events.KindTask {
		return "task"
	}
	return "project"
}

func joinResult(err error) string {
	switch apierr.CodeOf(err) {
	case apierr.Upstream, apierr.Internal:
		return "error"
	}
	return "denied"
}
