// Package events defines the notifications the mutation layer emits and the
// room keys they are routed by.
//
// Every event is addressed to exactly one room:
//   - project-level and task events go to the project room ("project:<id>")
//   - comment events go to the task room ("task:<id>")
package events

import (
	"errors"
	"strings"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Type names an event on the wire.
type Type string

const (
	TaskCreated    Type = "task:created"
	TaskUpdated    Type = "task:updated"
	TaskDeleted    Type = "task:deleted"
	CommentCreated Type = "comment:created"
	CommentUpdated Type = "comment:updated"
	CommentDeleted Type = "comment:deleted"
	ProjectCreated Type = "project:created"
	ProjectUpdated Type = "project:updated"
	ProjectDeleted Type = "project:deleted"
	MemberAdded    Type = "member:added"
	MemberRemoved  Type = "member:removed"
)

// Event is a transient notification routed to one room. Scope is the project
// the room belongs to and is never sent to clients.
type Event struct {
	Type  Type               `json:"type"`
	Room  RoomKey            `json:"room"`
	Data  any                `json:"data"`
	Scope primitive.ObjectID `json:"-"`
}

/* ------------------------------- room keys ------------------------------- */

// RoomKey identifies a broadcast room.
type RoomKey string

// Kind is the resource family a room is keyed to.
type Kind int

const (
	KindProject Kind = iota + 1
	KindTask
)

const (
	projectPrefix = "project:"
	taskPrefix    = "task:"
)

// ErrBadRoomKey is returned by ParseRoomKey for malformed keys.
var ErrBadRoomKey = errors.New("malformed room key")

// ProjectRoom returns the room key for a project.
func ProjectRoom(id primitive.ObjectID) RoomKey { return RoomKey(projectPrefix + id.Hex()) }

// TaskRoom returns the room key for a task.
func TaskRoom(id primitive.ObjectID) RoomKey { return RoomKey(taskPrefix + id.Hex()) }

// ParseRoomKey splits a room key into its kind and resource id.
func ParseRoomKey(key string) (Kind, primitive.ObjectID, error) {
	var kind Kind
	var raw string
	switch {
	case strings.HasPrefix(key, projectPrefix):
		kind, raw = KindProject, strings.TrimPrefix(key, projectPrefix)
	case strings.HasPrefix(key, taskPrefix):
		kind, raw = KindTask, strings.TrimPrefix(key, taskPrefix)
	default:
		return 0, primitive.NilObjectID, ErrBadRoomKey
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return 0, primitive.NilObjectID, ErrBadRoomKey
	}
	return kind, id, nil
}

/* -------------------------------- payloads ------------------------------- */

type TaskPayload struct {
	Task models.Task `json:"task"`
}

type TaskDeletedPayload struct {
	TaskID string `json:"taskId"`
}

type CommentPayload struct {
	Comment models.Comment `json:"comment"`
}

type CommentDeletedPayload struct {
	CommentID string `json:"commentId"`
}

type ProjectPayload struct {
	Project models.Project `json:"project"`
}

type ProjectDeletedPayload struct {
	ProjectID string `json:"projectId"`
}

type MemberAddedPayload struct {
	Project models.Project `json:"project"`
	Member  models.Account `json:"member"`
}

type MemberRemovedPayload struct {
	Project  models.Project `json:"project"`
	MemberID string         `json:"memberId"`
}

/* ------------------------------ constructors ----------------------------- */

func NewTaskCreated(t models.Task) Event {
	return Event{Type: TaskCreated, Room: ProjectRoom(t.ProjectID), Scope: t.ProjectID, Data: TaskPayload{Task: t}}
}

func NewTaskUpdated(t models.Task) Event {
	return Event{Type: TaskUpdated, Room: ProjectRoom(t.ProjectID), Scope: t.ProjectID, Data: TaskPayload{Task: t}}
}

func NewTaskDeleted(projectID, taskID primitive.ObjectID) Event {
	return Event{Type: TaskDeleted, Room: ProjectRoom(projectID), Scope: projectID, Data: TaskDeletedPayload{TaskID: taskID.Hex()}}
}

func NewCommentCreated(c models.Comment) Event {
	return Event{Type: CommentCreated, Room: TaskRoom(c.TaskID), Scope: c.ProjectID, Data: CommentPayload{Comment: c}}
}

func NewCommentUpdated(c models.Comment) Event {
	return Event{Type: CommentUpdated, Room: TaskRoom(c.TaskID), Scope: c.ProjectID, Data: CommentPayload{Comment: c}}
}

func NewCommentDeleted(c models.Comment) Event {
	return Event{Type: CommentDeleted, Room: TaskRoom(c.TaskID), Scope: c.ProjectID, Data: CommentDeletedPayload{CommentID: c.ID.Hex()}}
}

// NewProjectCreated is addressed to the new project's own room, which has
// no subscribers yet; it keeps one event per mutation.
func NewProjectCreated(p models.Project) Event {
	return Event{Type: ProjectCreated, Room: ProjectRoom(p.ID), Scope: p.ID, Data: ProjectPayload{Project: p}}
}

func NewProjectUpdated(p models.Project) Event {
	return Event{Type: ProjectUpdated, Room: ProjectRoom(p.ID), Scope: p.ID, Data: ProjectPayload{Project: p}}
}

func NewProjectDeleted(projectID primitive.ObjectID) Event {
	return Event{Type: ProjectDeleted, Room: ProjectRoom(projectID), Scope: projectID, Data: ProjectDeletedPayload{ProjectID: projectID.Hex()}}
}

func NewMemberAdded(p models.Project, member models.Account) Event {
	return Event{Type: MemberAdded, Room: ProjectRoom(p.ID), Scope: p.ID, Data: MemberAddedPayload{Project: p, Member: member}}
}

func NewMemberRemoved(p models.Project, memberID primitive.ObjectID) Event {
	return Event{Type: MemberRemoved, Room: ProjectRoom(p.ID), Scope: p.ID, Data: MemberRemovedPayload{Project: p, MemberID: memberID.Hex()}}
}
