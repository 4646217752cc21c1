package http_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	api "github.com/reha-link/rehalink-platform/internal/api/http"
	"github.com/reha-link/rehalink-platform/internal/assignment"
	"github.com/reha-link/rehalink-platform/internal/attempt"
	"github.com/reha-link/rehalink-platform/internal/audit"
	authmw "github.com/reha-link/rehalink-platform/internal/auth/middleware"
	"github.com/reha-link/rehalink-platform/internal/db"
)

func strp(s string) *string { return &s }

// patientRouter mounts the patient routes with the subject pinned, the
// way the JWT middleware would after a login.
func patientRouter(t *testing.T, dbh *sql.DB, patientID string) *chi.Mux {
	t.Helper()
	assignments := assignment.NewSQLStore(dbh)
	records := attempt.NewSQLStore(dbh)
	events := audit.NewEventRepo(dbh, "test")

	r := chi.NewRouter()
	r.Use(func(next nethttp.Handler) nethttp.Handler {
		return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, req *nethttp.Request) {
			next.ServeHTTP(w, req.WithContext(authmw.WithSubject(req.Context(), patientID)))
		})
	})
	r.Get("/patient/assignments", api.ListAssignedHandler(assignments))
	r.Get("/patient/assignments/v2/{assignmentID}", api.GetAssignedV2Handler(assignments))
	r.Get("/patient/assignments/{assignmentID}", api.GetAssignedLegacyHandler(assignments))
	r.Post("/patient/records/{assignmentID}/start", api.StartRecordHandler(records, events))
	r.Post("/patient/records/{assignmentID}/mcq", api.SaveMCQHandler(records))
	r.Post("/patient/records/{assignmentID}/finish", api.FinishRecordHandler(records, events))
	r.Get("/patient/records/{assignmentID}/history", api.RecordHistoryHandler(records))
	r.Get("/patient/progress", api.PatientProgressHandler(assignments, records))
	return r
}

func setupPatientTest(t *testing.T) (*sql.DB, *httptest.Server, int64) {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })

	if _, err := dbh.Exec(
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ('p1','pat','x','patient',$1)`,
		time.Now().Unix()); err != nil {
		t.Fatalf("seed patient: %v", err)
	}

	store := assignment.NewSQLStore(dbh)
	assID, err := store.Create(ctx, assignment.CreateInput{
		Topic: 1, Title: "caps", Qtype: assignment.QtypeMultipleChoice,
		Items: []assignment.ItemInput{
			{Prompt: strp("q"), Choices: []assignment.Choice{{Text: "a"}, {Text: "b"}}, AnswerKey: json.RawMessage(`1`)},
		},
	}, "admin")
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if err := store.Assign(ctx, assID, "p1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	srv := httptest.NewServer(patientRouter(t, dbh, "p1"))
	t.Cleanup(srv.Close)
	return dbh, srv, assID
}

func postJSON(t *testing.T, url string, body any) *nethttp.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := nethttp.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := nethttp.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("get %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestPatientAttemptFlow(t *testing.T) {
	_, srv, assID := setupPatientTest(t)
	base := srv.URL

	var list []assignment.Summary
	getJSON(t, base+"/patient/assignments", &list)
	if len(list) != 1 || list[0].ID != assID {
		t.Fatalf("assigned list: %+v", list)
	}

	resp := postJSON(t, fmt.Sprintf("%s/patient/records/%d/start", base, assID), map[string]any{})
	var started struct {
		RecordID string `json:"record_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	resp.Body.Close()
	if started.RecordID == "" {
		t.Fatalf("no record id")
	}

	resp = postJSON(t, fmt.Sprintf("%s/patient/records/%d/mcq", base, assID), map[string]any{
		"item_id": 0, "choice_index": 1, "is_correct": true,
	})
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("mcq status %d", resp.StatusCode)
	}

	score := 1
	resp = postJSON(t, fmt.Sprintf("%s/patient/records/%d/finish", base, assID), map[string]any{"score": score})
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("finish status %d", resp.StatusCode)
	}

	var hist []attempt.Record
	getJSON(t, fmt.Sprintf("%s/patient/records/%d/history", base, assID), &hist)
	if len(hist) != 1 {
		t.Fatalf("history: %+v", hist)
	}
	rec := hist[0]
	if rec.ID != started.RecordID || rec.FinishedAt == nil || rec.Score == nil || *rec.Score != 1 {
		t.Fatalf("record: %+v", rec)
	}
	if len(rec.MCQAnswers) != 1 || rec.MCQAnswers[0].ChoiceIndex != 1 {
		t.Fatalf("answers: %+v", rec.MCQAnswers)
	}

	var prog struct {
		Assignments []struct {
			AssignmentID int64 `json:"assignment_id"`
			Attempts     int   `json:"attempts"`
			Done         bool  `json:"done"`
			LatestScore  *int  `json:"latest_score"`
		} `json:"assignments"`
	}
	getJSON(t, base+"/patient/progress", &prog)
	if len(prog.Assignments) != 1 {
		t.Fatalf("progress: %+v", prog)
	}
	row := prog.Assignments[0]
	if !row.Done || row.Attempts != 1 || row.LatestScore == nil || *row.LatestScore != 1 {
		t.Fatalf("progress row: %+v", row)
	}
}

func TestAssignmentFetchRequiresAssignment(t *testing.T) {
	dbh, srv, _ := setupPatientTest(t)
	ctx := context.Background()

	// a second assignment the patient is not assigned
	store := assignment.NewSQLStore(dbh)
	otherID, err := store.Create(ctx, assignment.CreateInput{
		Topic: 2, Title: "other", Qtype: assignment.QtypeMultipleChoice,
		Items: []assignment.ItemInput{
			{Prompt: strp("q"), Choices: []assignment.Choice{{Text: "a"}}, AnswerKey: json.RawMessage(`0`)},
		},
	}, "admin")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, err := nethttp.Get(fmt.Sprintf("%s/patient/assignments/v2/%d", srv.URL, otherID))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != nethttp.StatusForbidden {
		t.Fatalf("status %d, want 403", resp.StatusCode)
	}
}

func TestV2FetchServesTypedItems(t *testing.T) {
	_, srv, assID := setupPatientTest(t)

	var p assignment.V2Payload
	getJSON(t, fmt.Sprintf("%s/patient/assignments/v2/%d", srv.URL, assID), &p)
	if len(p.Items) != 1 || p.Items[0].Type != "mcq" {
		t.Fatalf("v2 payload: %+v", p)
	}

	var legacy assignment.LegacyPayload
	getJSON(t, fmt.Sprintf("%s/patient/assignments/%d", srv.URL, assID), &legacy)
	if len(legacy.Items) != 0 {
		t.Fatalf("typed assignment should have empty legacy items: %+v", legacy.Items)
	}
}
