// Package gateway is the only write path for projects, tasks, comments and
// project membership.
//
// Each operation runs the same sequence: authorize with the access guard,
// persist, then hand exactly one domain event to the broadcaster before
// returning. Broadcasting never fails a mutation that has been persisted.
package gateway

import (
	"context"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/policy/accesspolicy"
	projectstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/projects"
	taskstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/tasks"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/events"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Broadcaster delivers events to live subscribers.
type Broadcaster interface {
	Publish(ev events.Event) int
	// EvictAccount drops accountID's connections from every room scoped to
	// projectID.
	EvictAccount(accountID, projectID primitive.ObjectID)
	// CloseRoom drops a room whose resource no longer exists.
	CloseRoom(key events.RoomKey)
}

type AccountReader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Account, error)
}

type ProjectStore interface {
	Create(ctx context.Context, p models.Project) (models.Project, error)
	Update(ctx context.Context, id primitive.ObjectID, u projectstore.Update) (models.Project, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error
	AddMember(ctx context.Context, id, accountID primitive.ObjectID) (models.Project, error)
	RemoveMember(ctx context.Context, id, accountID primitive.ObjectID) (models.Project, error)
}

type TaskStore interface {
	Create(ctx context.Context, t models.Task) (models.Task, error)
	Update(ctx context.Context, id primitive.ObjectID, u taskstore.Update) (models.Task, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error
	SoftDeleteByProject(ctx context.Context, projectID primitive.ObjectID, at time.Time) (int64, error)
}

type CommentStore interface {
	Create(ctx context.Context, c models.Comment) (models.Comment, error)
	UpdateContent(ctx context.Context, id primitive.ObjectID, content string) (models.Comment, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error
	SoftDeleteByTask(ctx context.Context, taskID primitive.ObjectID, at time.Time) (int64, error)
	SoftDeleteByProject(ctx context.Context, projectID primitive.ObjectID, at time.Time) (int64, error)
}

// Deps wires a Gateway.
type Deps struct {
	Guard    *accesspolicy.Guard
	Accounts AccountReader
	Projects ProjectStore
	Tasks    TaskStore
	Comments CommentStore
	Bus      Broadcaster
	Log      *zap.Logger
}

type Gateway struct {
	guard    *accesspolicy.Guard
	accounts AccountReader
	projects ProjectStore
	tasks    TaskStore
	comments CommentStore
	bus      Broadcaster
	log      *zap.Logger
}

func New(d Deps) *Gateway {
	return &Gateway{
		guard:    d.Guard,
		accounts: d.Accounts,
		projects: d.Projects,
		tasks:    d.Tasks,
		comments: d.Comments,
		bus:      d.Bus,
		log:      d.Log,
	}
}

// Authorize runs the access guard and turns a denial into an error.
// Read handlers use it directly.
func (g *Gateway) Authorize(ctx context.Context, acct *models.Account, ref accesspolicy.ResourceRef, action accesspolicy.Action) (accesspolicy.Decision, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), g.log, "authorize "+action.String())
	defer cancel()

	return g.guard.Authorize(ctx, acct, ref, action)
}

func (g *Gateway) emit(ev events.Event) {
	n := g.bus.Publish(ev)
	g.log.Debug("event published",
		zap.String("type", string(ev.Type)),
		zap.String("room", string(ev.Room)),
		zap.Int("delivered", n))
}

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }
