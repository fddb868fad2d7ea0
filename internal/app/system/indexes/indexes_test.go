package indexes_test

import (
	"testing"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/indexes"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("first EnsureAll: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	want := map[string][]string{
		"accounts":      {"uniq_accounts_idp_user_id", "uniq_accounts_email"},
		"credentials":   {"uniq_credentials_email", "uniq_credentials_subject"},
		"projects":      {"idx_projects_members_deleted_created__id", "txt_projects_name_description"},
		"tasks":         {"idx_tasks_project_deleted_created__id", "txt_tasks_title_description"},
		"comments":      {"idx_comments_task_deleted_created__id", "txt_comments_content"},
		"login_records": {"idx_login_records_account_created"},
	}

	for coll, names := range want {
		cur, err := db.Collection(coll).Indexes().List(ctx)
		if err != nil {
			t.Fatalf("%s: list indexes: %v", coll, err)
		}
		have := map[string]bool{}
		for cur.Next(ctx) {
			var idx bson.M
			if err := cur.Decode(&idx); err != nil {
				t.Fatalf("%s: decode: %v", coll, err)
			}
			if name, ok := idx["name"].(string); ok {
				have[name] = true
			}
		}
		cur.Close(ctx)

		for _, n := range names {
			if !have[n] {
				t.Errorf("%s: missing index %q", coll, n)
			}
		}
	}
}
