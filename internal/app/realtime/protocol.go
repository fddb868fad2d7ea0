package realtime

import (
	"context"
	"errors"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/events"
	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Client message types.
const (
	MsgJoinProject  = "join:project"
	MsgLeaveProject = "leave:project"
	MsgJoinTask     = "join:task"
	MsgLeaveTask    = "leave:task"
	MsgPing         = "ping"
)

// Server acknowledgement types. Acks go to the requesting connection only
// and are never replayed.
const (
	AckJoinOK    = "join:ok"
	AckJoinError = "join:error"
	AckLeaveOK   = "leave:ok"
	AckPong      = "pong"
	AckError     = "error"
)

// clientMessage is what a client sends: {"type":"join:project","data":"<id>"}.
type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// frame is the server envelope shared with domain events.
type frame struct {
	Type string         `json:"type"`
	Room events.RoomKey `json:"room,omitempty"`
	Data any            `json:"data,omitempty"`
}

type errorData struct {
	Code    apierr.Code `json:"code"`
	Message string      `json:"message"`
}

var (
	errRateLimited = apierr.New(apierr.RateLimited, "too many messages")
	errBadMessage  = apierr.New(apierr.Validation, "malformed message")
	errUnknownType = apierr.New(apierr.Validation, "unknown message type")
	errBadRoomID   = apierr.New(apierr.Validation, "room id must be a resource id string")
)

func encodeFrame(f frame) ([]byte, error) { return json.Marshal(f) }

func describe(err error) errorData {
	var c apierr.Coded
	if errors.As(err, &c) {
		return errorData{Code: c.ErrorCode(), Message: err.Error()}
	}
	return errorData{Code: apierr.Internal, Message: "internal error"}
}

func errorFrame(err error) frame {
	return frame{Type: AckError, Data: describe(err)}
}

// handle dispatches one client message.
func (m *Manager) handle(c *Conn, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		c.reply(m, errorFrame(errBadMessage))
		return
	}

	switch msg.Type {
	case MsgPing:
		c.reply(m, frame{Type: AckPong})
	case MsgJoinProject, MsgJoinTask:
		key, err := roomKey(msg)
		if err != nil {
			c.reply(m, frame{Type: AckJoinError, Data: describe(err)})
			return
		}
		m.handleJoin(c.ctx, c, key)
	case MsgLeaveProject, MsgLeaveTask:
		key, err := roomKey(msg)
		if err != nil {
			c.reply(m, errorFrame(err))
			return
		}
		m.Leave(c, key)
		c.reply(m, frame{Type: AckLeaveOK, Room: key})
	default:
		c.reply(m, errorFrame(errUnknownType))
	}
}

func (m *Manager) handleJoin(ctx context.Context, c *Conn, key events.RoomKey) {
	err := m.Join(ctx, c, key)
	switch {
	case err == nil:
		c.reply(m, frame{Type: AckJoinOK, Room: key})
	case errors.Is(err, ErrClosed), errors.Is(err, context.Canceled):
	default:
		if apierr.IsUpstream(err) {
			m.log.Warn("room join failed", zap.String("room", string(key)), zap.Error(err))
		}
		c.reply(m, frame{Type: AckJoinError, Room: key, Data: describe(err)})
	}
}

func roomKey(msg clientMessage) (events.RoomKey, error) {
	var raw string
	if err := json.Unmarshal(msg.Data, &raw); err != nil {
		return "", errBadRoomID
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return "", errBadRoomID
	}
	switch msg.Type {
	case MsgJoinTask, MsgLeaveTask:
		return events.TaskRoom(id), nil
	default:
		return events.ProjectRoom(id), nil
	}
}
