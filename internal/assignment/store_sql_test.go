package assignment_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/reha-link/rehalink-platform/internal/assignment"
	"github.com/reha-link/rehalink-platform/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return dbh
}

func strp(s string) *string { return &s }

func mcqInput(title string) assignment.CreateInput {
	return assignment.CreateInput{
		Topic: 2,
		Title: title,
		Qtype: assignment.QtypeMultipleChoice,
		Items: []assignment.ItemInput{
			{
				Prompt:    strp("pick one"),
				Choices:   []assignment.Choice{{Text: "a"}, {Text: "b"}, {Text: "c"}},
				AnswerKey: json.RawMessage(`2`),
			},
			{
				Prompt:    strp("no key"),
				Choices:   []assignment.Choice{{Text: "x"}, {Text: "y"}},
				AnswerKey: nil,
			},
		},
	}
}

func TestCreateAndGetV2(t *testing.T) {
	dbh := openTestDB(t)
	store := assignment.NewSQLStore(dbh)
	ctx := context.Background()

	id, err := store.Create(ctx, mcqInput("caps"), "admin-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	p, err := store.GetV2(ctx, id)
	if err != nil {
		t.Fatalf("get v2: %v", err)
	}
	if p.Title != "caps" || p.Topic != 2 || len(p.Items) != 2 {
		t.Fatalf("payload: %+v", p)
	}
	if p.Items[0].Type != "mcq" || string(p.Items[0].AnswerKey) != "2" {
		t.Fatalf("item 0: %+v", p.Items[0])
	}
	if p.Items[1].AnswerKey != nil {
		t.Fatalf("item without key should have no answer_key: %s", p.Items[1].AnswerKey)
	}

	// the typed rows normalize without a legacy fallback
	a, err := assignment.Load(ctx, store, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(a.Items) != 2 || a.Items[0].AnswerIndex == nil || *a.Items[0].AnswerIndex != 2 {
		t.Fatalf("normalized: %+v", a.Items)
	}
}

func TestCreateWritingItems(t *testing.T) {
	dbh := openTestDB(t)
	store := assignment.NewSQLStore(dbh)
	ctx := context.Background()

	in := assignment.CreateInput{
		Topic:      3,
		Title:      "describe",
		Qtype:      assignment.QtypeWriting,
		Properties: map[string]any{"manualReview": true},
		Items: []assignment.ItemInput{
			{Prompt: strp("free form")},
			{Prompt: strp("weekday"), AnswerKey: json.RawMessage(`"Wednesday"`)},
		},
	}
	id, err := store.Create(ctx, in, "admin-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a, err := assignment.Load(ctx, store, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if a.Items[0].Type != assignment.TypeWriting || !a.Items[0].ManualReview {
		t.Fatalf("item 0: %+v", a.Items[0])
	}
	if a.Items[1].AnswerText != "Wednesday" {
		t.Fatalf("item 1: %+v", a.Items[1])
	}
}

func TestUpdateReplacesItems(t *testing.T) {
	dbh := openTestDB(t)
	store := assignment.NewSQLStore(dbh)
	ctx := context.Background()

	id, err := store.Create(ctx, mcqInput("v1"), "admin-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	upd := mcqInput("v2")
	upd.Items = upd.Items[:1]
	if err := store.Update(ctx, id, upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	p, err := store.GetV2(ctx, id)
	if err != nil {
		t.Fatalf("get v2: %v", err)
	}
	if p.Title != "v2" || len(p.Items) != 1 {
		t.Fatalf("update not wholesale: %+v", p)
	}

	if err := store.Update(ctx, 9999, upd); !errors.Is(err, assignment.ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}
}

func TestLegacyRoundTrip(t *testing.T) {
	dbh := openTestDB(t)
	store := assignment.NewSQLStore(dbh)
	ctx := context.Background()

	// legacy-era head: no typed items
	var id int64
	err := dbh.QueryRow(
		`INSERT INTO assignments (topic, title, qtype, properties_json, created_at)
		 VALUES (4,'old','multiple_choice','{}',0) RETURNING id`).Scan(&id)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	items := []assignment.LegacyItem{
		{Prompt: strp("q1"), Choices: []assignment.Choice{{Text: "a"}, {Text: "b"}}, AnswerKey: strp("0")},
	}
	if err := store.PutLegacyItems(ctx, id, items); err != nil {
		t.Fatalf("put legacy: %v", err)
	}

	p, err := store.GetLegacy(ctx, id)
	if err != nil {
		t.Fatalf("get legacy: %v", err)
	}
	if len(p.Items) != 1 || *p.Items[0].AnswerKey != "0" {
		t.Fatalf("legacy payload: %+v", p)
	}

	// v2 is empty, so normalization falls through to the legacy items
	a, err := assignment.Load(ctx, store, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(a.Items) != 1 || a.Items[0].ID != 0 || a.Items[0].AnswerIndex == nil {
		t.Fatalf("fallback items: %+v", a.Items)
	}

	if err := store.PutLegacyItems(ctx, 9999, items); !errors.Is(err, assignment.ErrNotFound) {
		t.Fatalf("put legacy missing: %v", err)
	}
}

func TestGetLegacyHonorsContext(t *testing.T) {
	dbh := openTestDB(t)
	store := assignment.NewSQLStore(dbh)

	id, err := store.Create(context.Background(), mcqInput("ctx"), "admin-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.GetLegacy(ctx, id); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled fetch = %v, want context.Canceled", err)
	}
}

func TestAssignAndList(t *testing.T) {
	dbh := openTestDB(t)
	store := assignment.NewSQLStore(dbh)
	ctx := context.Background()

	if _, err := dbh.Exec(
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ('p1','pat','x','patient',0)`); err != nil {
		t.Fatalf("seed patient: %v", err)
	}

	a1, err := store.Create(ctx, mcqInput("one"), "admin-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	in2 := mcqInput("two")
	in2.Topic = 5
	a2, err := store.Create(ctx, in2, "admin-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list = %d, want 2", len(all))
	}
	topic5, err := store.List(ctx, 5)
	if err != nil {
		t.Fatalf("list topic: %v", err)
	}
	if len(topic5) != 1 || topic5[0].ID != a2 {
		t.Fatalf("topic filter: %+v", topic5)
	}

	if err := store.Assign(ctx, a1, "p1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := store.Assign(ctx, a1, "p1"); err != nil {
		t.Fatalf("re-assign should be a no-op: %v", err)
	}

	assigned, err := store.ListAssigned(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("list assigned: %v", err)
	}
	if len(assigned) != 1 || assigned[0].ID != a1 {
		t.Fatalf("assigned: %+v", assigned)
	}

	ok, err := store.IsAssigned(ctx, a1, "p1")
	if err != nil || !ok {
		t.Fatalf("is assigned = %v, %v", ok, err)
	}
	ok, err = store.IsAssigned(ctx, a2, "p1")
	if err != nil || ok {
		t.Fatalf("unassigned reported assigned")
	}
}

func TestDelete(t *testing.T) {
	dbh := openTestDB(t)
	store := assignment.NewSQLStore(dbh)
	ctx := context.Background()

	id, err := store.Create(ctx, mcqInput("gone"), "admin-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetV2(ctx, id); !errors.Is(err, assignment.ErrNotFound) {
		t.Fatalf("get deleted: %v", err)
	}
	if err := store.Delete(ctx, id); !errors.Is(err, assignment.ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}
}
