package gateway_test

import (
	"context"
	"sync"
	"testing"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/gateway"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/policy/accesspolicy"
	accountstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/accounts"
	commentstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/comments"
	projectstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/projects"
	taskstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/tasks"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/events"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type recorder struct {
	mu      sync.Mutex
	events  []events.Event
	evicted []primitive.ObjectID
	closed  []events.RoomKey
}

func (r *recorder) Publish(ev events.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return 0
}

func (r *recorder) EvictAccount(accountID, _ primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted = append(r.evicted, accountID)
}

func (r *recorder) CloseRoom(key events.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, key)
}

func (r *recorder) take() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

type env struct {
	gw       *gateway.Gateway
	bus      *recorder
	fx       *testutil.Fixtures
	tasks    *taskstore.Store
	comments *commentstore.Store
	ctx      context.Context
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)

	projects := projectstore.New(db)
	tasks := taskstore.New(db)
	comments := commentstore.New(db)
	bus := &recorder{}
	gw := gateway.New(gateway.Deps{
		Guard:    accesspolicy.NewGuard(projects, tasks, comments),
		Accounts: accountstore.New(db),
		Projects: projects,
		Tasks:    tasks,
		Comments: comments,
		Bus:      bus,
		Log:      zap.NewNop(),
	})
	return &env{gw: gw, bus: bus, fx: testutil.NewFixtures(t, db), tasks: tasks, comments: comments, ctx: ctx}
}

func expectOne(t *testing.T, bus *recorder, typ events.Type, room events.RoomKey) events.Event {
	t.Helper()
	got := bus.take()
	if len(got) != 1 {
		t.Fatalf("got %d events, want exactly 1: %+v", len(got), got)
	}
	if got[0].Type != typ || got[0].Room != room {
		t.Fatalf("got %s -> %s, want %s -> %s", got[0].Type, got[0].Room, typ, room)
	}
	return got[0]
}

func expectNone(t *testing.T, bus *recorder) {
	t.Helper()
	if got := bus.take(); len(got) != 0 {
		t.Fatalf("denied mutation emitted %d events", len(got))
	}
}

func TestProjectLifecycle(t *testing.T) {
	e := setup(t)
	admin := e.fx.CreateAccount(e.ctx, "Admin", models.RoleAdmin)
	user := e.fx.CreateAccount(e.ctx, "User", models.RoleUser)

	if _, err := e.gw.CreateProject(e.ctx, &user, gateway.NewProject{Name: "Nope"}); apierr.CodeOf(err) != apierr.Forbidden {
		t.Fatalf("non-admin create: got %v, want FORBIDDEN", err)
	}
	expectNone(t, e.bus)

	p, err := e.gw.CreateProject(e.ctx, &admin, gateway.NewProject{Name: "<b>Launch</b>", Description: "go"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.Name != "Launch" {
		t.Errorf("name not sanitized: %q", p.Name)
	}
	expectOne(t, e.bus, events.ProjectCreated, events.ProjectRoom(p.ID))

	name := "Launch v2"
	if _, err := e.gw.UpdateProject(e.ctx, &admin, p.ID, projectstore.Update{Name: &name}); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	expectOne(t, e.bus, events.ProjectUpdated, events.ProjectRoom(p.ID))

	if _, err := e.gw.UpdateProject(e.ctx, &user, p.ID, projectstore.Update{Name: &name}); apierr.CodeOf(err) != apierr.NotFound {
		t.Errorf("outsider update: got %v, want NOT_FOUND", err)
	}
	expectNone(t, e.bus)

	if _, err := e.gw.AddMember(e.ctx, &admin, p.ID, user.ID); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	ev := expectOne(t, e.bus, events.MemberAdded, events.ProjectRoom(p.ID))
	if ev.Data.(events.MemberAddedPayload).Member.ID != user.ID {
		t.Error("member:added payload carries the wrong member")
	}

	if _, err := e.gw.AddMember(e.ctx, &admin, p.ID, user.ID); apierr.CodeOf(err) != apierr.Conflict {
		t.Errorf("duplicate AddMember: got %v, want CONFLICT", err)
	}
	if _, err := e.gw.AddMember(e.ctx, &admin, p.ID, primitive.NewObjectID()); apierr.CodeOf(err) != apierr.NotFound {
		t.Errorf("AddMember unknown user: got %v, want NOT_FOUND", err)
	}
	if _, err := e.gw.UpdateProject(e.ctx, &user, p.ID, projectstore.Update{Name: &name}); apierr.CodeOf(err) != apierr.NotOwner {
		t.Errorf("member update: got %v, want NOT_OWNER", err)
	}
	expectNone(t, e.bus)

	if _, err := e.gw.RemoveMember(e.ctx, &admin, p.ID, admin.ID); apierr.CodeOf(err) != apierr.Validation {
		t.Errorf("remove owner: got %v, want VALIDATION", err)
	}
	if _, err := e.gw.RemoveMember(e.ctx, &admin, p.ID, user.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	expectOne(t, e.bus, events.MemberRemoved, events.ProjectRoom(p.ID))
	if len(e.bus.evicted) != 1 || e.bus.evicted[0] != user.ID {
		t.Errorf("removed member not evicted: %v", e.bus.evicted)
	}

	if err := e.gw.DeleteProject(e.ctx, &admin, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	expectOne(t, e.bus, events.ProjectDeleted, events.ProjectRoom(p.ID))
	if len(e.bus.closed) != 1 || e.bus.closed[0] != events.ProjectRoom(p.ID) {
		t.Errorf("project room not closed: %v", e.bus.closed)
	}
}

func TestTaskRules(t *testing.T) {
	e := setup(t)
	owner := e.fx.CreateAccount(e.ctx, "Owner", models.RoleUser)
	member := e.fx.CreateAccount(e.ctx, "Member", models.RoleUser)
	outsider := e.fx.CreateAccount(e.ctx, "Outsider", models.RoleUser)
	p := e.fx.CreateProject(e.ctx, "P", owner, member)

	if _, err := e.gw.CreateTask(e.ctx, &member, p.ID, gateway.NewTask{Title: "t", AssigneeID: &outsider.ID}); apierr.CodeOf(err) != apierr.Validation {
		t.Fatalf("non-member assignee: got %v, want VALIDATION", err)
	}
	task, err := e.gw.CreateTask(e.ctx, &member, p.ID, gateway.NewTask{Title: "Write spec", AssigneeID: &owner.ID})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	expectOne(t, e.bus, events.TaskCreated, events.ProjectRoom(p.ID))

	if _, err := e.gw.UpdateTask(e.ctx, &owner, p.ID, task.ID, taskstore.Update{ClearAssignee: true}); err != nil {
		t.Fatalf("UpdateTask(clear): %v", err)
	}
	expectOne(t, e.bus, events.TaskUpdated, events.ProjectRoom(p.ID))

	other := e.fx.CreateProject(e.ctx, "Other", owner)
	if _, err := e.gw.UpdateTask(e.ctx, &owner, other.ID, task.ID, taskstore.Update{}); apierr.CodeOf(err) != apierr.NotFound {
		t.Errorf("task under wrong project: got %v, want NOT_FOUND", err)
	}

	if err := e.gw.DeleteTask(e.ctx, &owner, p.ID, task.ID); apierr.CodeOf(err) != apierr.Forbidden {
		t.Errorf("owner deleting others' task: got %v, want FORBIDDEN", err)
	}
	if _, err := e.gw.CreateTask(e.ctx, &outsider, p.ID, gateway.NewTask{Title: "x"}); apierr.CodeOf(err) != apierr.NotFound {
		t.Errorf("outsider create: got %v, want NOT_FOUND", err)
	}
	expectNone(t, e.bus)

	c := e.fx.CreateComment(e.ctx, task, "hello", owner)
	if err := e.gw.DeleteTask(e.ctx, &member, p.ID, task.ID); err != nil {
		t.Fatalf("creator DeleteTask: %v", err)
	}
	expectOne(t, e.bus, events.TaskDeleted, events.ProjectRoom(p.ID))
	if _, err := e.comments.GetByID(e.ctx, c.ID); err != commentstore.ErrNotFound {
		t.Errorf("comment survived task delete: %v", err)
	}
}

func TestCommentRules(t *testing.T) {
	e := setup(t)
	owner := e.fx.CreateAccount(e.ctx, "Owner", models.RoleUser)
	author := e.fx.CreateAccount(e.ctx, "Author", models.RoleUser)
	p := e.fx.CreateProject(e.ctx, "P", owner, author)
	task := e.fx.CreateTask(e.ctx, p, "T", owner)

	c, err := e.gw.CreateComment(e.ctx, &author, task.ID, "looks good")
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	ev := expectOne(t, e.bus, events.CommentCreated, events.TaskRoom(task.ID))
	if ev.Scope != p.ID {
		t.Errorf("comment event scope: got %s, want project %s", ev.Scope.Hex(), p.ID.Hex())
	}

	if _, err := e.gw.CreateComment(e.ctx, &author, task.ID, "<script>x</script>"); apierr.CodeOf(err) != apierr.Validation {
		t.Errorf("empty after sanitizing: got %v, want VALIDATION", err)
	}
	if _, err := e.gw.UpdateComment(e.ctx, &owner, c.ID, "hijack"); apierr.CodeOf(err) != apierr.NotAuthor {
		t.Errorf("owner editing comment: got %v, want NOT_AUTHOR", err)
	}
	expectNone(t, e.bus)

	if _, err := e.gw.UpdateComment(e.ctx, &author, c.ID, "edited"); err != nil {
		t.Fatalf("UpdateComment: %v", err)
	}
	expectOne(t, e.bus, events.CommentUpdated, events.TaskRoom(task.ID))

	if err := e.gw.DeleteComment(e.ctx, &author, c.ID); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	expectOne(t, e.bus, events.CommentDeleted, events.TaskRoom(task.ID))

	if err := e.gw.DeleteComment(e.ctx, &author, c.ID); apierr.CodeOf(err) != apierr.NotFound {
		t.Errorf("second delete: got %v, want NOT_FOUND", err)
	}
	expectNone(t, e.bus)
}
