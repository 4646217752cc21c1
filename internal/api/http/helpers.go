package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reha-link/rehalink-platform/internal/assignment"
)

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

func assignmentIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "assignmentID"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "bad assignment id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func assignmentError(w http.ResponseWriter, err error) {
	if errors.Is(err, assignment.ErrNotFound) {
		http.Error(w, "assignment not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), 500)
}
