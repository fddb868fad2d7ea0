package realtime

import (
	"context"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/policy/accesspolicy"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/identity"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/events"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/* --------------------------------- fakes --------------------------------- */

type stubResolver struct {
	accounts map[string]models.Account
	down     bool
}

func (s *stubResolver) Resolve(_ context.Context, credential string) (models.Account, error) {
	if s.down {
		return models.Account{}, identity.ErrUnavailable
	}
	a, ok := s.accounts[credential]
	if !ok {
		return models.Account{}, identity.ErrInvalidCredential
	}
	return a, nil
}

type stubAuthz struct {
	mu      sync.Mutex
	members map[primitive.ObjectID]map[primitive.ObjectID]bool
	tasks   map[primitive.ObjectID]primitive.ObjectID
	down    bool
}

func newStubAuthz() *stubAuthz {
	return &stubAuthz{
		members: map[primitive.ObjectID]map[primitive.ObjectID]bool{},
		tasks:   map[primitive.ObjectID]primitive.ObjectID{},
	}
}

func (a *stubAuthz) addMember(project, account primitive.ObjectID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.members[project] == nil {
		a.members[project] = map[primitive.ObjectID]bool{}
	}
	a.members[project][account] = true
}

func (a *stubAuthz) removeMember(project, account primitive.ObjectID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.members[project], account)
}

func (a *stubAuthz) removeTask(task primitive.ObjectID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tasks, task)
}

func (a *stubAuthz) addTask(task, project primitive.ObjectID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tasks[task] = project
}

func (a *stubAuthz) Authorize(_ context.Context, acct *models.Account, ref accesspolicy.ResourceRef, _ accesspolicy.Action) (accesspolicy.Decision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.down {
		return accesspolicy.Decision{}, apierr.ErrStore
	}
	projectID := ref.ID
	var task *models.Task
	if ref.Kind == accesspolicy.KindTask {
		pid, ok := a.tasks[ref.ID]
		if !ok {
			return accesspolicy.Decision{}, &accesspolicy.Denied{Reason: apierr.NotFound, Kind: ref.Kind}
		}
		task = &models.Task{ID: ref.ID, ProjectID: pid}
		projectID = pid
	}
	if !a.members[projectID][acct.ID] {
		return accesspolicy.Decision{}, &accesspolicy.Denied{Reason: apierr.NotMember, Kind: ref.Kind}
	}
	return accesspolicy.Decision{Allowed: true, Visible: true, Task: task}, nil
}

// gatedAuthz holds the first Authorize call after its decision is made
// until release is closed.
type gatedAuthz struct {
	*stubAuthz
	once    sync.Once
	decided chan struct{}
	release chan struct{}
}

func newGatedAuthz(a *stubAuthz) *gatedAuthz {
	return &gatedAuthz{stubAuthz: a, decided: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedAuthz) Authorize(ctx context.Context, acct *models.Account, ref accesspolicy.ResourceRef, action accesspolicy.Action) (accesspolicy.Decision, error) {
	d, err := g.stubAuthz.Authorize(ctx, acct, ref, action)
	g.once.Do(func() {
		close(g.decided)
		<-g.release
	})
	return d, err
}

/* -------------------------------- helpers -------------------------------- */

type harness struct {
	m     *Manager
	authz *stubAuthz
	res   *stubResolver
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	return newHarnessWith(t, cfg, func(a *stubAuthz) Authorizer { return a })
}

// newHarnessWith lets a test put wrap around the stub authorizer.
func newHarnessWith(t *testing.T, cfg Config, wrap func(*stubAuthz) Authorizer) *harness {
	t.Helper()
	h := &harness{
		authz: newStubAuthz(),
		res:   &stubResolver{accounts: map[string]models.Account{}},
	}
	h.m = NewManager(h.res, wrap(h.authz), cfg, zap.NewNop())
	t.Cleanup(h.m.Close)
	return h
}

// connect authenticates a fresh socketless connection for a new account.
func (h *harness) connect(t *testing.T) *Conn {
	t.Helper()
	acct := models.Account{ID: primitive.NewObjectID(), Role: models.RoleUser}
	return h.connectAs(t, acct)
}

func (h *harness) connectAs(t *testing.T, acct models.Account) *Conn {
	t.Helper()
	token := primitive.NewObjectID().Hex()
	h.res.accounts[token] = acct
	c := newConn(h.m.sendBuffer)
	if err := h.m.Authenticate(context.Background(), c, token); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := h.m.register(c, 0); err != nil {
		t.Fatalf("register: %v", err)
	}
	return c
}

func (h *harness) join(t *testing.T, c *Conn, key events.RoomKey) {
	t.Helper()
	if err := h.m.Join(context.Background(), c, key); err != nil {
		t.Fatalf("Join %s: %v", key, err)
	}
}

type received struct {
	Type string          `json:"type"`
	Room string          `json:"room"`
	Data json.RawMessage `json:"data"`
}

// drain returns every frame queued for c without blocking.
func drain(t *testing.T, c *Conn) []received {
	t.Helper()
	var out []received
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return out
			}
			var r received
			if err := json.Unmarshal(raw, &r); err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			out = append(out, r)
		default:
			return out
		}
	}
}

func taskEvent(projectID primitive.ObjectID, title string) events.Event {
	return events.NewTaskCreated(models.Task{ID: primitive.NewObjectID(), ProjectID: projectID, Title: title})
}

/* --------------------------------- tests --------------------------------- */

func TestAuthenticate(t *testing.T) {
	h := newHarness(t, Config{})
	acct := models.Account{ID: primitive.NewObjectID()}
	h.res.accounts["good"] = acct

	tests := []struct {
		name     string
		token    string
		down     bool
		wantCode apierr.Code
	}{
		{"valid", "good", false, ""},
		{"rejected", "bad", false, apierr.AuthRequired},
		{"empty", "", false, apierr.AuthRequired},
		{"provider down", "good", true, apierr.Upstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.res.down = tt.down
			defer func() { h.res.down = false }()

			c := newConn(4)
			err := h.m.Authenticate(context.Background(), c, tt.token)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Authenticate: %v", err)
				}
				if c.State() != StateAuthenticated || c.Account().ID != acct.ID {
					t.Errorf("state=%v account=%v", c.State(), c.Account().ID)
				}
				return
			}
			if got := apierr.CodeOf(err); got != tt.wantCode {
				t.Errorf("code: got %q, want %q (err %v)", got, tt.wantCode, err)
			}
			if c.State() != StateClosed {
				t.Errorf("rejected conn state: got %v, want CLOSED", c.State())
			}
		})
	}
}

func TestPublish_OnlyRoomMembers(t *testing.T) {
	h := newHarness(t, Config{})
	projectID := primitive.NewObjectID()

	in1, in2, out := h.connect(t), h.connect(t), h.connect(t)
	for _, c := range []*Conn{in1, in2} {
		h.authz.addMember(projectID, c.Account().ID)
		h.join(t, c, events.ProjectRoom(projectID))
	}

	ev := taskEvent(projectID, "write docs")
	if n := h.m.Publish(ev); n != 2 {
		t.Fatalf("Publish delivered to %d, want 2", n)
	}

	for _, c := range []*Conn{in1, in2} {
		got := drain(t, c)
		if len(got) != 1 {
			t.Fatalf("member got %d frames, want 1", len(got))
		}
		if got[0].Type != string(events.TaskCreated) || got[0].Room != string(ev.Room) {
			t.Errorf("frame: %+v", got[0])
		}
	}
	if got := drain(t, out); len(got) != 0 {
		t.Errorf("non-member received %d frames", len(got))
	}

	if n := h.m.Publish(taskEvent(primitive.NewObjectID(), "nobody listening")); n != 0 {
		t.Errorf("publish to empty room delivered %d", n)
	}
}

func TestPublish_PerRoomOrder(t *testing.T) {
	h := newHarness(t, Config{SendBuffer: 64})
	projectID := primitive.NewObjectID()
	c := h.connect(t)
	h.authz.addMember(projectID, c.Account().ID)
	h.join(t, c, events.ProjectRoom(projectID))

	var want []string
	for i := 0; i < 20; i++ {
		ev := events.NewTaskDeleted(projectID, primitive.NewObjectID())
		want = append(want, ev.Data.(events.TaskDeletedPayload).TaskID)
		h.m.Publish(ev)
	}

	got := drain(t, c)
	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d", len(got), len(want))
	}
	for i, f := range got {
		var p events.TaskDeletedPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if p.TaskID != want[i] {
			t.Fatalf("frame %d out of order", i)
		}
	}
}

func TestJoin_Denied(t *testing.T) {
	h := newHarness(t, Config{})
	projectID := primitive.NewObjectID()
	taskID := primitive.NewObjectID()
	h.authz.addTask(taskID, projectID)
	c := h.connect(t)

	tests := []struct {
		name     string
		key      events.RoomKey
		down     bool
		wantCode apierr.Code
	}{
		{"not a member of project", events.ProjectRoom(projectID), false, apierr.NotFound},
		{"not a member of task's project", events.TaskRoom(taskID), false, apierr.NotFound},
		{"unknown task", events.TaskRoom(primitive.NewObjectID()), false, apierr.NotFound},
		{"malformed key", events.RoomKey("board:1"), false, apierr.Validation},
		{"store down", events.ProjectRoom(projectID), true, apierr.Upstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.authz.down = tt.down
			defer func() { h.authz.down = false }()

			err := h.m.Join(context.Background(), c, tt.key)
			if got := apierr.CodeOf(err); got != tt.wantCode {
				t.Errorf("code: got %q, want %q (err %v)", got, tt.wantCode, err)
			}
			if n := h.m.Subscribers(tt.key); n != 0 {
				t.Errorf("failed join left %d subscribers", n)
			}
		})
	}
	if rooms := c.Rooms(); len(rooms) != 0 {
		t.Errorf("conn rooms after denied joins: %v", rooms)
	}
}

func TestLeave_Idempotent(t *testing.T) {
	h := newHarness(t, Config{})
	projectID := primitive.NewObjectID()
	key := events.ProjectRoom(projectID)
	c := h.connect(t)
	h.authz.addMember(projectID, c.Account().ID)

	h.m.Leave(c, key) // never joined

	h.join(t, c, key)
	h.join(t, c, key) // joining twice keeps one membership
	if n := h.m.Subscribers(key); n != 1 {
		t.Fatalf("subscribers: got %d, want 1", n)
	}

	h.m.Leave(c, key)
	h.m.Leave(c, key)
	if n := h.m.Subscribers(key); n != 0 {
		t.Errorf("subscribers after leave: %d", n)
	}
	if s := h.m.Stats(); s.Rooms != 0 {
		t.Errorf("empty room not reaped: %+v", s)
	}
	if n := h.m.Publish(taskEvent(projectID, "x")); n != 0 {
		t.Errorf("publish after leave delivered %d", n)
	}
}

func TestDisconnect(t *testing.T) {
	h := newHarness(t, Config{})
	projectID := primitive.NewObjectID()
	taskID := primitive.NewObjectID()
	h.authz.addTask(taskID, projectID)

	c, other := h.connect(t), h.connect(t)
	for _, x := range []*Conn{c, other} {
		h.authz.addMember(projectID, x.Account().ID)
	}
	h.join(t, c, events.ProjectRoom(projectID))
	h.join(t, c, events.TaskRoom(taskID))
	h.join(t, other, events.ProjectRoom(projectID))

	h.m.Disconnect(c)
	h.m.Disconnect(c)

	if c.State() != StateClosed {
		t.Errorf("state: got %v", c.State())
	}
	if n := h.m.Publish(taskEvent(projectID, "after")); n != 1 {
		t.Errorf("publish after disconnect delivered %d, want 1", n)
	}
	if _, ok := <-c.send; ok {
		t.Error("send queue still open after disconnect")
	}
	if err := h.m.Join(context.Background(), c, events.ProjectRoom(projectID)); !errors.Is(err, ErrClosed) {
		t.Errorf("join after disconnect: got %v, want ErrClosed", err)
	}
	if s := h.m.Stats(); s.Connections != 1 || s.Rooms != 1 {
		t.Errorf("stats: %+v", s)
	}
}

func TestDisconnect_RacesPublish(t *testing.T) {
	h := newHarness(t, Config{SendBuffer: 8})
	projectID := primitive.NewObjectID()

	var conns []*Conn
	for i := 0; i < 16; i++ {
		c := h.connect(t)
		h.authz.addMember(projectID, c.Account().ID)
		h.join(t, c, events.ProjectRoom(projectID))
		conns = append(conns, c)
	}

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h.m.Publish(taskEvent(projectID, "load"))
			}
		}()
	}
	for _, c := range conns {
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			h.m.Disconnect(c)
		}(c)
	}
	wg.Wait()

	if n := h.m.Publish(taskEvent(projectID, "last")); n != 0 {
		t.Errorf("publish after all disconnects delivered %d", n)
	}
}

func TestOverflow(t *testing.T) {
	projectID := primitive.NewObjectID()

	t.Run("drop oldest", func(t *testing.T) {
		h := newHarness(t, Config{SendBuffer: 2})
		c := h.connect(t)
		h.authz.addMember(projectID, c.Account().ID)
		h.join(t, c, events.ProjectRoom(projectID))

		var ids []string
		for i := 0; i < 3; i++ {
			ev := events.NewTaskDeleted(projectID, primitive.NewObjectID())
			ids = append(ids, ev.Data.(events.TaskDeletedPayload).TaskID)
			if n := h.m.Publish(ev); n != 1 {
				t.Fatalf("publish %d delivered %d", i, n)
			}
		}

		got := drain(t, c)
		if len(got) != 2 {
			t.Fatalf("queued frames: got %d, want 2", len(got))
		}
		var first events.TaskDeletedPayload
		_ = json.Unmarshal(got[0].Data, &first)
		if first.TaskID != ids[1] {
			t.Errorf("oldest frame was not dropped")
		}
		if c.State() != StateAuthenticated {
			t.Errorf("state: %v", c.State())
		}
	})

	t.Run("disconnect", func(t *testing.T) {
		h := newHarness(t, Config{SendBuffer: 1, Overflow: Disconnect})
		slow, fast := h.connect(t), h.connect(t)
		for _, c := range []*Conn{slow, fast} {
			h.authz.addMember(projectID, c.Account().ID)
			h.join(t, c, events.ProjectRoom(projectID))
		}

		h.m.Publish(taskEvent(projectID, "one"))
		drain(t, fast)
		if n := h.m.Publish(taskEvent(projectID, "two")); n != 1 {
			t.Errorf("second publish delivered %d, want 1", n)
		}
		if slow.State() != StateClosed {
			t.Errorf("slow conn state: got %v, want CLOSED", slow.State())
		}
		if fast.State() != StateAuthenticated {
			t.Errorf("fast conn state: got %v", fast.State())
		}
	})
}

func TestParseOverflowPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    OverflowPolicy
		wantErr bool
	}{
		{"", DropOldest, false},
		{"drop_oldest", DropOldest, false},
		{"disconnect", Disconnect, false},
		{"block", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOverflowPolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOverflowPolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestEvictAccount(t *testing.T) {
	h := newHarness(t, Config{})
	projectID, otherProject := primitive.NewObjectID(), primitive.NewObjectID()
	taskID, otherTask := primitive.NewObjectID(), primitive.NewObjectID()
	h.authz.addTask(taskID, projectID)
	h.authz.addTask(otherTask, otherProject)

	acct := models.Account{ID: primitive.NewObjectID()}
	phone, laptop := h.connectAs(t, acct), h.connectAs(t, acct)
	stays := h.connect(t)
	for _, id := range []primitive.ObjectID{acct.ID, stays.Account().ID} {
		h.authz.addMember(projectID, id)
	}
	h.authz.addMember(otherProject, acct.ID)

	for _, c := range []*Conn{phone, laptop, stays} {
		h.join(t, c, events.ProjectRoom(projectID))
		h.join(t, c, events.TaskRoom(taskID))
	}
	h.join(t, phone, events.TaskRoom(otherTask))

	h.m.EvictAccount(acct.ID, projectID)

	if n := h.m.Subscribers(events.ProjectRoom(projectID)); n != 1 {
		t.Errorf("project room: got %d subscribers, want 1", n)
	}
	if n := h.m.Subscribers(events.TaskRoom(taskID)); n != 1 {
		t.Errorf("task room: got %d subscribers, want 1", n)
	}
	if n := h.m.Subscribers(events.TaskRoom(otherTask)); n != 1 {
		t.Errorf("unrelated project's task room lost its subscriber")
	}
	if phone.State() != StateAuthenticated {
		t.Error("eviction must not close the connection")
	}
	if rooms := laptop.Rooms(); len(rooms) != 0 {
		t.Errorf("evicted conn still in %v", rooms)
	}
}

func TestCloseRoom(t *testing.T) {
	h := newHarness(t, Config{})
	projectID := primitive.NewObjectID()
	taskID := primitive.NewObjectID()
	h.authz.addTask(taskID, projectID)
	c := h.connect(t)
	h.authz.addMember(projectID, c.Account().ID)
	h.join(t, c, events.ProjectRoom(projectID))
	h.join(t, c, events.TaskRoom(taskID))

	h.m.CloseRoom(events.TaskRoom(taskID))
	if n := h.m.Subscribers(events.TaskRoom(taskID)); n != 0 {
		t.Errorf("task room survived CloseRoom")
	}
	if n := h.m.Subscribers(events.ProjectRoom(projectID)); n != 1 {
		t.Errorf("closing a task room touched its project room")
	}

	h.join(t, c, events.TaskRoom(taskID))
	h.m.CloseRoom(events.ProjectRoom(projectID))
	if s := h.m.Stats(); s.Rooms != 0 {
		t.Errorf("rooms after closing project: %d", s.Rooms)
	}
	if rooms := c.Rooms(); len(rooms) != 0 {
		t.Errorf("conn still in %v", rooms)
	}

	// A closed room can be joined again and is a fresh room.
	h.join(t, c, events.ProjectRoom(projectID))
	if n := h.m.Publish(taskEvent(projectID, "again")); n != 1 {
		t.Errorf("publish to rejoined room delivered %d", n)
	}
}

func TestJoin_RacesRevocation(t *testing.T) {
	tests := []struct {
		name   string
		task   bool
		revoke func(h *harness, acct, projectID, taskID primitive.ObjectID)
		want   apierr.Code
	}{
		{"member removed during project join", false, func(h *harness, acct, projectID, _ primitive.ObjectID) {
			h.authz.removeMember(projectID, acct)
			h.m.EvictAccount(acct, projectID)
		}, apierr.NotFound},
		{"member removed during task join", true, func(h *harness, acct, projectID, _ primitive.ObjectID) {
			h.authz.removeMember(projectID, acct)
			h.m.EvictAccount(acct, projectID)
		}, apierr.NotFound},
		{"task deleted during join", true, func(h *harness, _, _, taskID primitive.ObjectID) {
			h.authz.removeTask(taskID)
			h.m.CloseRoom(events.TaskRoom(taskID))
		}, apierr.NotFound},
		{"project deleted during join", false, func(h *harness, acct, projectID, _ primitive.ObjectID) {
			h.authz.removeMember(projectID, acct)
			h.m.CloseRoom(events.ProjectRoom(projectID))
		}, apierr.NotFound},
		{"someone else removed", false, func(h *harness, _, projectID, _ primitive.ObjectID) {
			h.m.EvictAccount(primitive.NewObjectID(), projectID)
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gate *gatedAuthz
			h := newHarnessWith(t, Config{}, func(a *stubAuthz) Authorizer {
				gate = newGatedAuthz(a)
				return gate
			})
			projectID, taskID := primitive.NewObjectID(), primitive.NewObjectID()
			h.authz.addTask(taskID, projectID)
			c := h.connect(t)
			acct := c.Account().ID
			h.authz.addMember(projectID, acct)

			key := events.ProjectRoom(projectID)
			if tt.task {
				key = events.TaskRoom(taskID)
			}

			errc := make(chan error, 1)
			go func() { errc <- h.m.Join(context.Background(), c, key) }()
			<-gate.decided
			tt.revoke(h, acct, projectID, taskID)
			close(gate.release)
			err := <-errc

			if tt.want == "" {
				if err != nil {
					t.Fatalf("Join: %v", err)
				}
				if n := h.m.Subscribers(key); n != 1 {
					t.Errorf("subscribers: got %d, want 1", n)
				}
				return
			}
			if got := apierr.CodeOf(err); got != tt.want {
				t.Errorf("code: got %q, want %q (err %v)", got, tt.want, err)
			}
			if rooms := c.Rooms(); len(rooms) != 0 {
				t.Errorf("revoked conn still in %v", rooms)
			}
			if n := h.m.Subscribers(key); n != 0 {
				t.Errorf("subscribers: got %d, want 0", n)
			}
			if s := h.m.Stats(); s.Rooms != 0 {
				t.Errorf("room for revoked join lingers: %+v", s)
			}
			h.m.Publish(taskEvent(projectID, "after revocation"))
			h.m.Publish(events.NewCommentCreated(models.Comment{ID: primitive.NewObjectID(), TaskID: taskID, ProjectID: projectID}))
			if got := drain(t, c); len(got) != 0 {
				t.Errorf("revoked conn received %v", got)
			}
		})
	}
}

func TestLeave_RacesPublish(t *testing.T) {
	h := newHarness(t, Config{SendBuffer: 1024})
	projectID := primitive.NewObjectID()
	key := events.ProjectRoom(projectID)
	c, other := h.connect(t), h.connect(t)
	for _, x := range []*Conn{c, other} {
		h.authz.addMember(projectID, x.Account().ID)
	}
	h.join(t, other, key) // keeps the room alive between rounds

	var published atomic.Int64
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for seq := int64(1); ; seq++ {
			select {
			case <-stop:
				return
			default:
			}
			h.m.Publish(taskEvent(projectID, strconv.FormatInt(seq, 10)))
			published.Store(seq)
		}
	}()
	defer func() {
		close(stop)
		<-done
	}()

	waitUntil := func(n int64) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for published.Load() < n {
			if time.Now().After(deadline) {
				t.Fatalf("publisher stalled at %d, want %d", published.Load(), n)
			}
			runtime.Gosched()
		}
	}

	for round := 0; round < 50; round++ {
		h.join(t, c, key)
		waitUntil(published.Load() + 5)

		h.m.Leave(c, key)
		// At most the one publish in flight when Leave returned may still land.
		cutoff := published.Load() + 1

		waitUntil(cutoff + 20)
		for _, f := range drain(t, c) {
			var p events.TaskPayload
			if err := json.Unmarshal(f.Data, &p); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			seq, err := strconv.ParseInt(p.Task.Title, 10, 64)
			if err != nil {
				t.Fatalf("title %q: %v", p.Task.Title, err)
			}
			if seq > cutoff {
				t.Fatalf("round %d: frame %d arrived after Leave returned (cutoff %d)", round, seq, cutoff)
			}
		}
	}
}

func TestClose(t *testing.T) {
	h := newHarness(t, Config{})
	projectID := primitive.NewObjectID()
	c := h.connect(t)
	h.authz.addMember(projectID, c.Account().ID)
	h.join(t, c, events.ProjectRoom(projectID))

	h.m.Close()
	h.m.Close()

	if c.State() != StateClosed {
		t.Errorf("conn state after Close: %v", c.State())
	}
	if s := h.m.Stats(); s != (Stats{}) {
		t.Errorf("stats after Close: %+v", s)
	}

	late := newConn(1)
	h.res.accounts["late"] = models.Account{ID: primitive.NewObjectID()}
	if err := h.m.Authenticate(context.Background(), late, "late"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := h.m.register(late, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("register after Close: got %v, want ErrClosed", err)
	}
}
