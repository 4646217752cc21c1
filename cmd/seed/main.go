// Seed loads a demo clinic into the database: three users, a typed
// multiple-choice assignment, and a legacy-era writing assignment that
// exercises the legacy fallback path.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/reha-link/rehalink-platform/internal/assignment"
	"github.com/reha-link/rehalink-platform/internal/config"
	"github.com/reha-link/rehalink-platform/internal/db"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	adminID := mustUser(ctx, dbh, "admin", "admin", "admin", "", "")
	doctorID := mustUser(ctx, dbh, "doctor1", "doctor1", "doctor", "Dana", "Ortiz")
	patientID := mustUser(ctx, dbh, "patient1", "patient1", "patient", "Pat", "Keller")

	if _, err := dbh.ExecContext(ctx,
		`UPDATE users SET doctor_id=$1 WHERE id=$2`, doctorID, patientID); err != nil {
		log.Fatalf("bind patient: %v", err)
	}

	store := assignment.NewSQLStore(dbh)

	mcqID, err := store.Create(ctx, assignment.CreateInput{
		Topic: 1,
		Title: "Capitals warm-up",
		Qtype: assignment.QtypeMultipleChoice,
		Items: []assignment.ItemInput{
			{
				Prompt:    strp("Capital of France?"),
				Choices:   []assignment.Choice{{Text: "Paris"}, {Text: "Lyon"}, {Text: "Nice"}},
				AnswerKey: json.RawMessage(`0`),
			},
			{
				Prompt:    strp("Capital of Japan?"),
				Choices:   []assignment.Choice{{Text: "Kyoto"}, {Text: "Tokyo"}},
				AnswerKey: json.RawMessage(`1`),
			},
		},
	}, adminID)
	if err != nil {
		log.Fatalf("create mcq assignment: %v", err)
	}

	legacyID, err := legacyHead(ctx, dbh, 3, "Describe your morning", assignment.QtypeWriting, adminID)
	if err != nil {
		log.Fatalf("create legacy assignment: %v", err)
	}
	err = store.PutLegacyItems(ctx, legacyID, []assignment.LegacyItem{
		{Prompt: strp("Write one sentence about your morning routine.")},
		{Prompt: strp("Name the weekday that comes after Tuesday."), AnswerKey: strp("Wednesday")},
	})
	if err != nil {
		log.Fatalf("put legacy items: %v", err)
	}

	for _, id := range []int64{mcqID, legacyID} {
		if err := store.Assign(ctx, id, patientID); err != nil {
			log.Fatalf("assign %d: %v", id, err)
		}
	}

	fmt.Printf("seeded: admin/doctor1/patient1, assignments %d and %d\n", mcqID, legacyID)
}

// legacyHead inserts an assignment row with no typed items, the shape
// rows imported from the old schema have.
func legacyHead(ctx context.Context, dbh *sql.DB, topic int, title, qtype, createdBy string) (int64, error) {
	var id int64
	err := dbh.QueryRowContext(ctx,
		`INSERT INTO assignments (topic, title, qtype, properties_json, legacy_items_json, created_by, created_at)
		 VALUES ($1,$2,$3,'{"manualReview":true}','[]',$4,$5) RETURNING id`,
		topic, title, qtype, createdBy, time.Now().Unix()).Scan(&id)
	return id, err
}

func mustUser(ctx context.Context, dbh *sql.DB, username, password, role, first, last string) string {
	var id string
	err := dbh.QueryRowContext(ctx, `SELECT id FROM users WHERE username=$1`, username).Scan(&id)
	if err == nil {
		return id
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	id = uuid.NewString()
	_, err = dbh.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, first_name, last_name, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, username, string(hash), role, first, last, time.Now().Unix())
	if err != nil {
		log.Fatalf("create user %s: %v", username, err)
	}
	return id
}

func strp(s string) *string { return &s }
