package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reha-link/rehalink-platform/internal/assignment"
	"github.com/reha-link/rehalink-platform/internal/attempt"
	"github.com/reha-link/rehalink-platform/internal/audit"
	authmw "github.com/reha-link/rehalink-platform/internal/auth/middleware"
	"github.com/reha-link/rehalink-platform/internal/review"
)

type patientRow struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// GET /doctor/patients — patients bound to the calling doctor.
func BoundPatientsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := authmw.SubjectFromContext(r.Context())
		rows, err := db.QueryContext(r.Context(),
			`SELECT id, username, first_name, last_name FROM users
			 WHERE role='patient' AND doctor_id=$1 ORDER BY username`, doctorID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		defer rows.Close()
		writePatientRows(w, rows)
	}
}

// GET /doctor/patients/available — patients not yet bound to anyone.
func AvailablePatientsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(),
			`SELECT id, username, first_name, last_name FROM users
			 WHERE role='patient' AND doctor_id IS NULL ORDER BY username`)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		defer rows.Close()
		writePatientRows(w, rows)
	}
}

func writePatientRows(w http.ResponseWriter, rows *sql.Rows) {
	out := []patientRow{}
	for rows.Next() {
		var p patientRow
		var first, last sql.NullString
		if err := rows.Scan(&p.ID, &p.Username, &first, &last); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		p.FirstName, p.LastName = first.String, last.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// POST /doctor/patients/{patientID}/bind
// Binding is first-come: an already-bound patient stays with their doctor.
func BindPatientHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := authmw.SubjectFromContext(r.Context())
		patientID := chi.URLParam(r, "patientID")
		res, err := db.ExecContext(r.Context(),
			`UPDATE users SET doctor_id=$1 WHERE id=$2 AND role='patient' AND doctor_id IS NULL`,
			doctorID, patientID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			http.Error(w, "patient not available", http.StatusConflict)
			return
		}
		_, _ = db.ExecContext(r.Context(),
			`INSERT INTO doctor_patient_bindings (doctor_id, patient_id, created_at)
			 VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`,
			doctorID, patientID, time.Now().Unix())
		_ = json.NewEncoder(w).Encode(map[string]bool{"bound": true})
	}
}

// POST /doctor/patients/{patientID}/assign/{assignmentID}
func AssignToPatientHandler(db *sql.DB, store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r)
		if !ok {
			return
		}
		doctorID := authmw.SubjectFromContext(r.Context())
		patientID := chi.URLParam(r, "patientID")
		if !requireBound(w, r, db, doctorID, patientID) {
			return
		}
		if err := store.Assign(r.Context(), id, patientID); err != nil {
			assignmentError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"assigned": true})
	}
}

// GET /doctor/reviews — pending writing answers across bound patients,
// grouped by record.
func ListReviewsHandler(q review.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := authmw.SubjectFromContext(r.Context())
		items, err := q.ListPending(r.Context(), doctorID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(items)
	}
}

type verdictReq struct {
	Correct bool `json:"correct"`
}

// POST /doctor/reviews/{answerID}
// One-way: a second verdict on the same answer is rejected, and the
// owning record's score is never touched.
func MarkVerdictHandler(q review.Queue, events *audit.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		answerID := chi.URLParam(r, "answerID")
		var req verdictReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := q.MarkVerdict(r.Context(), answerID, req.Correct); err != nil {
			switch {
			case errors.Is(err, review.ErrAlreadyReviewed):
				http.Error(w, "already reviewed", http.StatusConflict)
			case errors.Is(err, review.ErrAnswerNotFound):
				http.Error(w, "answer not found", http.StatusNotFound)
			default:
				http.Error(w, err.Error(), 500)
			}
			return
		}
		_ = events.Append(r.Context(), audit.EventVerdictApplied, answerID,
			map[string]any{"correct": req.Correct, "doctor_id": authmw.SubjectFromContext(r.Context())})
		_ = json.NewEncoder(w).Encode(map[string]bool{"reviewed": true})
	}
}

// GET /doctor/patients/{patientID}/records/{assignmentID}
func BoundHistoryHandler(db *sql.DB, store attempt.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r)
		if !ok {
			return
		}
		doctorID := authmw.SubjectFromContext(r.Context())
		patientID := chi.URLParam(r, "patientID")
		if !requireBound(w, r, db, doctorID, patientID) {
			return
		}
		recs, err := store.History(r.Context(), id, patientID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recs)
	}
}

// GET /doctor/patients/{patientID}/progress
func BoundProgressHandler(db *sql.DB, astore assignment.Store, rstore attempt.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := authmw.SubjectFromContext(r.Context())
		patientID := chi.URLParam(r, "patientID")
		if !requireBound(w, r, db, doctorID, patientID) {
			return
		}
		rows, topics, err := buildProgress(r, astore, rstore, patientID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"assignments": rows, "topics": topics})
	}
}

func requireBound(w http.ResponseWriter, r *http.Request, db *sql.DB, doctorID, patientID string) bool {
	var one int
	err := db.QueryRowContext(r.Context(),
		`SELECT 1 FROM users WHERE id=$1 AND role='patient' AND doctor_id=$2`,
		patientID, doctorID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "patient not bound to you", http.StatusForbidden)
		return false
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return false
	}
	return true
}
