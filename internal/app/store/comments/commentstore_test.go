package commentstore_test

import (
	"strings"
	"testing"
	"time"

	commentstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/comments"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/indexes"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/paging"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateAndUpdate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := commentstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fx.CreateAccount(ctx, "Author", models.RoleUser)
	p := fx.CreateProject(ctx, "P", author)
	task := fx.CreateTask(ctx, p, "T", author)

	c, err := store.Create(ctx, models.Comment{TaskID: task.ID, ProjectID: p.ID, Content: "first", AuthorID: author.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := store.UpdateContent(ctx, c.ID, "edited")
	if err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if got.Content != "edited" || got.AuthorID != author.ID {
		t.Errorf("UpdateContent: got %+v", got)
	}
	if _, err := store.UpdateContent(ctx, primitive.NewObjectID(), "x"); err != commentstore.ErrNotFound {
		t.Errorf("missing comment: got %v, want ErrNotFound", err)
	}
}

func TestStore_CascadesAndPaging(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := commentstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fx.CreateAccount(ctx, "Author", models.RoleUser)
	p := fx.CreateProject(ctx, "P", author)
	t1 := fx.CreateTask(ctx, p, "T1", author)
	t2 := fx.CreateTask(ctx, p, "T2", author)
	for i := 0; i < 3; i++ {
		fx.CreateComment(ctx, t1, "on t1", author)
	}
	fx.CreateComment(ctx, t2, "on t2", author)

	codec := paging.NewCodec([]byte(strings.Repeat("k", 32)), nil)
	page, err := store.PageByTask(ctx, codec, t1.ID, paging.Query{Sort: paging.OldestFirst, Limit: 10})
	if err != nil {
		t.Fatalf("PageByTask: %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("got %d comments, want 3", len(page.Items))
	}
	for i := 1; i < len(page.Items); i++ {
		if page.Items[i].CreatedAt.Before(page.Items[i-1].CreatedAt) {
			t.Error("comments not oldest-first")
		}
	}

	n, err := store.SoftDeleteByTask(ctx, t1.ID, time.Now())
	if err != nil || n != 3 {
		t.Fatalf("SoftDeleteByTask: n=%d err=%v", n, err)
	}
	n, err = store.SoftDeleteByProject(ctx, p.ID, time.Now())
	if err != nil || n != 1 {
		t.Fatalf("SoftDeleteByProject: n=%d err=%v", n, err)
	}
	page, err = store.PageByTask(ctx, codec, t2.ID, paging.Query{Sort: paging.OldestFirst, Limit: 10})
	if err != nil {
		t.Fatalf("PageByTask: %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("tombstoned comments listed: %d", len(page.Items))
	}
}

func TestStore_SearchExcludesTombstones(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := commentstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	author := fx.CreateAccount(ctx, "Author", models.RoleUser)
	p := fx.CreateProject(ctx, "P", author)
	task := fx.CreateTask(ctx, p, "T", author)
	live := fx.CreateComment(ctx, task, "deploy tonight", author)
	dead := fx.CreateComment(ctx, task, "deploy tomorrow", author)
	if err := store.SoftDelete(ctx, dead.ID, time.Now()); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	got, err := store.Search(ctx, []primitive.ObjectID{p.ID}, "deploy", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != live.ID {
		t.Errorf("Search: got %+v", got)
	}
}
