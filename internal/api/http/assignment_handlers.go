package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/reha-link/rehalink-platform/internal/assignment"
	authmw "github.com/reha-link/rehalink-platform/internal/auth/middleware"
	"github.com/reha-link/rehalink-platform/internal/storage"
)

var validate = validator.New()

// GET /assignments?topic=N — full catalog for doctor/admin.
func ListAssignmentsHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := parseIntDefault(r.URL.Query().Get("topic"), 0)
		list, err := store.List(r.Context(), topic)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	}
}

// GET /assignments/v2/{assignmentID}
func GetAssignmentV2Handler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r)
		if !ok {
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

// GET /assignments/{assignmentID} (legacy shape)
func GetAssignmentLegacyHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r)
		if !ok {
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

// POST /assignments
func CreateAssignmentHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := decodeAssignmentInput(w, r)
		if !ok {
			return
		}
		id, err := store.Create(r.Context(), in, authmw.SubjectFromContext(r.Context()))
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]int64{"id": id})
	}
}

// PUT /assignments/{assignmentID} — full replace, items included.
func UpdateAssignmentHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r)
		if !ok {
			return
		}
		in, ok := decodeAssignmentInput(w, r)
		if !ok {
			return
		}
		if err := store.Update(r.Context(), id, in); err != nil {
			assignmentError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"updated": true})
	}
}

// DELETE /assignments/{assignmentID}
func DeleteAssignmentHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r)
		if !ok {
			return
		}
		if err := store.Delete(r.Context(), id); err != nil {
			assignmentError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"deleted": true})
	}
}

func decodeAssignmentInput(w http.ResponseWriter, r *http.Request) (assignment.CreateInput, bool) {
	var in assignment.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return in, false
	}
	if err := validate.Struct(in); err != nil {
		http.Error(w, fmt.Sprintf("validation: %v", err), http.StatusUnprocessableEntity)
		return in, false
	}
	return in, true
}

// POST /assignments/images — multipart upload, returns the stored key
// for use as an item's image_path.
func UploadImageHandler(blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			http.Error(w, "bad multipart form", http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer f.Close()

		ext := strings.ToLower(path.Ext(hdr.Filename))
		switch ext {
		case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		default:
			http.Error(w, "unsupported image type", http.StatusUnsupportedMediaType)
			return
		}
		key, err := blobs.Put("images/"+uuid.NewString()+ext, f)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"image_path": key})
	}
}
