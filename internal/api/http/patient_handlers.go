package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reha-link/rehalink-platform/internal/assignment"
	"github.com/reha-link/rehalink-platform/internal/attempt"
	"github.com/reha-link/rehalink-platform/internal/audit"
	authmw "github.com/reha-link/rehalink-platform/internal/auth/middleware"
	"github.com/reha-link/rehalink-platform/internal/progress"
)

// GET /patient/assignments?topic=N
func ListAssignedHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID := authmw.SubjectFromContext(r.Context())
		topic := parseIntDefault(r.URL.Query().Get("topic"), 0)
		list, err := store.ListAssigned(r.Context(), patientID, topic)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	}
}

// GET /patient/assignments/v2/{assignmentID}
// The v2 shape; items may be empty, which tells the client to fall
// back to the legacy endpoint.
func GetAssignedV2Handler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r)
		if !ok {
			return
		}
		if !requireAssigned(w, r, store, id) {
			return
		}
		p, err := store.GetV2(r.Context(), id)
		if err != nil {
			assignmentError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p)
	}
}

// GET /patient/assignments/{assignmentID} (legacy shape)
func GetAssignedLegacyHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r)
		if !ok {
			return
		}
		if !requireAssigned(w, r, store, id) {
			return
		}
		p, err := store.GetLegacy(r.Context(), id)
		if err != nil {
			assignmentError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p)
	}
}

// POST /patient/records/{assignmentID}/start
func StartRecordHandler(store attempt.Store, events *audit.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r)
		if !ok {
			return
		}
		patientID := authmw.SubjectFromContext(r.Context())
		rec, err := store.Start(r.Context(), id, patientID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = events.Append(r.Context(), audit.EventAttemptStarted, rec.ID,
			map[string]any{"assignment_id": id, "patient_id": patientID})
		_ = json.NewEncoder(w).Encode(map[string]any{"started": true, "record_id": rec.ID})
	}
}

type mcqSubmitReq struct {
	ItemID      int64 `json:"item_id"`
	ChoiceIndex int   `json:"choice_index"`
	IsCorrect   bool  `json:"is_correct"` // computed by the client at write time
}

// POST /patient/records/{assignmentID}/mcq
func SaveMCQHandler(store attempt.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r)
		if !ok {
			return
		}
		var req mcqSubmitReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		patientID := authmw.SubjectFromContext(r.Context())
		if err := store.SaveMCQ(r.Context(), id, patientID, req.ItemID, req.ChoiceIndex, req.IsCorrect); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}
}

type writingSubmitReq struct {
	ItemID     int64  `json:"item_id"`
	AnswerText string `json:"answer_text"`
}

// POST /patient/records/{assignmentID}/writing
func SaveWritingHandler(store attempt.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r)
		if !ok {
			return
		}
		var req writingSubmitReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		patientID := authmw.SubjectFromContext(r.Context())
		if err := store.UpsertWriting(r.Context(), id, patientID, req.ItemID, req.AnswerText); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}
}

type finishReq struct {
	Score *int `json:"score"` // null when nothing was auto-gradable
}

// POST /patient/records/{assignmentID}/finish
func FinishRecordHandler(store attempt.Store, events *audit.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r)
		if !ok {
			return
		}
		var req finishReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		patientID := authmw.SubjectFromContext(r.Context())
		if err := store.Finish(r.Context(), id, patientID, req.Score); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = events.Append(r.Context(), audit.EventAttemptSubmitted, patientID,
			map[string]any{"assignment_id": id, "score": req.Score})
		_ = json.NewEncoder(w).Encode(map[string]bool{"done": true})
	}
}

// GET /patient/records
func ListRecordsHandler(store attempt.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID := authmw.SubjectFromContext(r.Context())
		recs, err := store.ListByPatient(r.Context(), patientID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recs)
	}
}

// GET /patient/records/{assignmentID}/history
func RecordHistoryHandler(store attempt.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r)
		if !ok {
			return
		}
		patientID := authmw.SubjectFromContext(r.Context())
		recs, err := store.History(r.Context(), id, patientID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recs)
	}
}

// GET /patient/records/detail/{recordID}
func RecordDetailHandler(store attempt.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID := chi.URLParam(r, "recordID")
		patientID := authmw.SubjectFromContext(r.Context())
		rec, err := store.Detail(r.Context(), recordID, patientID)
		if err != nil {
			if errors.Is(err, attempt.ErrRecordNotFound) {
				http.Error(w, "record not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rec)
	}
}

// GET /patient/progress
// Server-side rendition of the dashboard numbers: normalized
// assignments plus attempt history, folded by the progress reporter.
func PatientProgressHandler(astore assignment.Store, rstore attempt.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID := authmw.SubjectFromContext(r.Context())
		rows, topics, err := buildProgress(r, astore, rstore, patientID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"assignments": rows, "topics": topics})
	}
}

func buildProgress(r *http.Request, astore assignment.Store, rstore attempt.Store, patientID string) ([]progress.AssignmentSummary, []progress.TopicSummary, error) {
	ctx := r.Context()
	summaries, err := astore.ListAssigned(ctx, patientID, 0)
	if err != nil {
		return nil, nil, err
	}
	assignments := make([]assignment.Assignment, 0, len(summaries))
	for _, sm := range summaries {
		a, err := assignment.Load(ctx, astore, sm.ID)
		if err != nil {
			return nil, nil, err
		}
		assignments = append(assignments, a)
	}
	recs, err := rstore.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	rows := progress.Summarize(assignments, recs)
	return rows, progress.ByTopic(rows), nil
}

func requireAssigned(w http.ResponseWriter, r *http.Request, store assignment.Store, id int64) bool {
	patientID := authmw.SubjectFromContext(r.Context())
	ok, err := store.IsAssigned(r.Context(), id, patientID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return false
	}
	if !ok {
		http.Error(w, "not assigned", http.StatusForbidden)
		return false
	}
	return true
}
