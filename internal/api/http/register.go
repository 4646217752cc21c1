package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type registerReq struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	Password    string `json:"password" validate:"required,min=8"`
	Email       string `json:"email" validate:"required,email"`
	FirstName   string `json:"first_name" validate:"max=128"`
	LastName    string `json:"last_name" validate:"max=128"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Address     string `json:"address" validate:"max=512"`
}

// POST /auth/register — self-serve patient signup. Doctors and admins
// are provisioned through /admin/users; a signup is always a patient
// with no doctor bound yet.
func RegisterHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		req.Email = strings.TrimSpace(req.Email)
		if err := validate.Struct(req); err != nil {
			http.Error(w, fmt.Sprintf("validation: %v", err), http.StatusUnprocessableEntity)
			return
		}
		if req.DateOfBirth != "" {
			if dob, err := time.Parse("2006-01-02", req.DateOfBirth); err != nil || dob.After(time.Now()) {
				http.Error(w, "date of birth cannot be in the future", http.StatusUnprocessableEntity)
				return
			}
		}

		ctx := r.Context()
		// duplicates checked separately for clearer error messages
		if err := db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username=$1`, req.Username).Scan(new(int)); err == nil {
			http.Error(w, "username already taken", http.StatusBadRequest)
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			http.Error(w, err.Error(), 500)
			return
		}
		if err := db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email=$1`, req.Email).Scan(new(int)); err == nil {
			http.Error(w, "email already registered", http.StatusBadRequest)
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			http.Error(w, err.Error(), 500)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		id := uuid.NewString()
		_, err = db.ExecContext(ctx,
			`INSERT INTO users (id, username, password_hash, role, first_name, last_name, email, date_of_birth, address, created_at)
			 VALUES ($1,$2,$3,'patient',$4,$5,$6,$7,$8,$9)`,
			id, req.Username, string(hash), req.FirstName, req.LastName, req.Email, req.DateOfBirth, req.Address, time.Now().Unix())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":       id,
			"username": req.Username,
			"role":     "patient",
		})
	}
}
