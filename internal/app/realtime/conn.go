package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/metrics"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/events"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// State is the lifecycle stage of a Conn.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	default:
		return "CLOSED"
	}
}

// Conn is one subscriber. The Manager enqueues encoded frames on send; the
// write pump drains it to the socket.
type Conn struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	ws     *websocket.Conn

	mu      sync.Mutex
	state   State
	account models.Account
	rooms   map[events.RoomKey]*room
	send    chan []byte
}

func newConn(buffer int) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		id:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		state:  StateConnecting,
		rooms:  make(map[events.RoomKey]*room),
		send:   make(chan []byte, buffer),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Account returns the authenticated account. It is the zero value before
// Authenticate succeeds.
func (c *Conn) Account() models.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account
}

// Rooms lists the rooms c is currently in.
func (c *Conn) Rooms() []events.RoomKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.RoomKey, 0, len(c.rooms))
	for k := range c.rooms {
		out = append(out, k)
	}
	return out
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	if s == StateClosed {
		c.closeLocked()
		return
	}
	c.state = s
}

// closeLocked flips c to CLOSED and closes the send queue. c.mu must be held.
func (c *Conn) closeLocked() {
	c.state = StateClosed
	c.rooms = nil
	close(c.send)
	c.cancel()
}

// shutdown closes c and returns the rooms it was in. ok is false if c was
// already closed.
func (c *Conn) shutdown() (joined []*room, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return nil, false
	}
	joined = make([]*room, 0, len(c.rooms))
	for _, r := range c.rooms {
		joined = append(joined, r)
	}
	c.closeLocked()
	return joined, true
}

// link records membership of r. Called with r.mu held.
func (c *Conn) link(r *room) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticated {
		return false
	}
	c.rooms[r.key] = r
	return true
}

// unlink forgets key and returns the room it pointed at, or nil.
func (c *Conn) unlink(key events.RoomKey) *room {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rooms[key]
	if !ok {
		return nil
	}
	delete(c.rooms, key)
	return r
}

// unlinkRoom forgets r only if it is still the room c holds for r.key.
func (c *Conn) unlinkRoom(r *room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rooms[r.key] == r {
		delete(c.rooms, r.key)
	}
}

type enqueueResult int

const (
	skipped enqueueResult = iota
	enqueued
	overflowed
)

// enqueue puts frame on the send queue without blocking.
func (c *Conn) enqueue(frame []byte, policy OverflowPolicy) enqueueResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticated {
		return skipped
	}

	select {
	case c.send <- frame:
		return enqueued
	default:
	}

	metrics.WSFramesDropped.WithLabelValues(string(policy)).Inc()
	if policy == Disconnect {
		return overflowed
	}
	// Only the write pump receives concurrently, so after one receive
	// there is room.
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- frame:
		return enqueued
	default:
		return skipped
	}
}

/* --------------------------------- pumps --------------------------------- */

// readPump handles client messages until the socket fails, then
// disconnects c.
func (c *Conn) readPump(m *Manager) {
	defer m.pumps.Done()
	defer func() {
		m.Disconnect(c)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				m.log.Info("unexpected websocket close", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}
		if !m.inbound.Allow(c.id) {
			c.reply(m, errorFrame(errRateLimited))
			continue
		}
		m.handle(c, raw)
	}
}

// writePump drains the send queue to the socket and keeps the peer alive
// with pings. It returns when the queue is closed or a write fails.
func (c *Conn) writePump(m *Manager) {
	defer m.pumps.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				m.log.Debug("websocket write failed", zap.String("conn", c.id), zap.Error(err))
				m.Disconnect(c)
				return
			}
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.Disconnect(c)
				return
			}
		}
	}
}

// reply queues a control frame for c alone.
func (c *Conn) reply(m *Manager, f frame) {
	raw, err := encodeFrame(f)
	if err != nil {
		m.log.Error("encode reply", zap.String("type", f.Type), zap.Error(err))
		return
	}
	if c.enqueue(raw, m.overflow) == overflowed {
		m.Disconnect(c)
	}
}
