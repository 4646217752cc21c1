package attempt

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrRecordNotFound = errors.New("record not found")

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// Start returns the open record for the pair, creating one when the
// latest record is finished or none exists. Concurrent starts may race
// into two open records; they diverge rather than corrupt each other.
func (s *SQLStore) Start(ctx context.Context, assignmentID int64, patientID string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at FROM records
		 WHERE assignment_id=$1 AND patient_id=$2 AND finished_at IS NULL
		 ORDER BY seq DESC LIMIT 1`, assignmentID, patientID)
	var rec Record
	var started int64
	err := row.Scan(&rec.ID, &started)
	switch {
	case err == nil:
		rec.AssignmentID = assignmentID
		rec.PatientID = patientID
		rec.StartedAt = time.Unix(started, 0)
		return rec, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to create
	default:
		return Record{}, err
	}

	now := time.Now()
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, assignment_id, patient_id, started_at) VALUES ($1,$2,$3,$4)`,
		id, assignmentID, patientID, now.Unix())
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, AssignmentID: assignmentID, PatientID: patientID, StartedAt: now}, nil
}

// SaveMCQ records a choice on the open record, latest write wins per item.
func (s *SQLStore) SaveMCQ(ctx context.Context, assignmentID int64, patientID string, itemID int64, choiceIndex int, isCorrect bool) error {
	rec, err := s.Start(ctx, assignmentID, patientID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO mcq_answers (id, record_id, item_id, choice_index, is_correct)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (record_id, item_id) DO UPDATE SET choice_index=EXCLUDED.choice_index, is_correct=EXCLUDED.is_correct`,
		uuid.NewString(), rec.ID, itemID, choiceIndex, isCorrect)
	return err
}

// UpsertWriting attaches a writing answer to the most recent record,
// finished or not: the flush runs after finish and must land on the
// record it belongs to instead of spawning a rogue one.
func (s *SQLStore) UpsertWriting(ctx context.Context, assignmentID int64, patientID string, itemID int64, text string) error {
	row := s.db.QueryRowContext(ctx,
		`SELECT id FROM records WHERE assignment_id=$1 AND patient_id=$2 ORDER BY seq DESC LIMIT 1`,
		assignmentID, patientID)
	var recID string
	if err := row.Scan(&recID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		rec, err := s.Start(ctx, assignmentID, patientID)
		if err != nil {
			return err
		}
		recID = rec.ID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO writing_answers (id, record_id, item_id, answer_text, reviewed)
		 VALUES ($1,$2,$3,$4,FALSE)
		 ON CONFLICT (record_id, item_id) DO UPDATE SET answer_text=EXCLUDED.answer_text`,
		uuid.NewString(), recID, itemID, text)
	return err
}

// Finish stamps finished_at and the score on the open record.
// finished_at is written exactly once; a finished record is immutable.
func (s *SQLStore) Finish(ctx context.Context, assignmentID int64, patientID string, score *int) error {
	rec, err := s.Start(ctx, assignmentID, patientID)
	if err != nil {
		return err
	}
	var sc sql.NullInt64
	if score != nil {
		sc = sql.NullInt64{Int64: int64(*score), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE records SET finished_at=$1, score=$2 WHERE id=$3 AND finished_at IS NULL`,
		time.Now().Unix(), sc, rec.ID)
	return err
}

// ListByPatient returns bare records (no answers), newest first.
func (s *SQLStore) ListByPatient(ctx context.Context, patientID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, assignment_id, patient_id, started_at, finished_at, score
		 FROM records WHERE patient_id=$1 ORDER BY seq DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// History returns the full attempt history for one assignment, answers
// included, newest first.
func (s *SQLStore) History(ctx context.Context, assignmentID int64, patientID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, assignment_id, patient_id, started_at, finished_at, score
		 FROM records WHERE assignment_id=$1 AND patient_id=$2 ORDER BY seq DESC`,
		assignmentID, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if err := s.loadAnswers(ctx, &recs[i]); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// Detail loads one record with answers, scoped to its owner.
func (s *SQLStore) Detail(ctx context.Context, recordID, patientID string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, assignment_id, patient_id, started_at, finished_at, score
		 FROM records WHERE id=$1 AND patient_id=$2`, recordID, patientID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	if err := s.loadAnswers(ctx, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLStore) loadAnswers(ctx context.Context, rec *Record) error {
	rec.MCQAnswers = []MCQAnswer{}
	rec.WritingAnswers = []WritingAnswer{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, item_id, choice_index, is_correct
		 FROM mcq_answers WHERE record_id=$1 ORDER BY item_id`, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a MCQAnswer
		if err := rows.Scan(&a.ID, &a.RecordID, &a.ItemID, &a.ChoiceIndex, &a.IsCorrect); err != nil {
			return err
		}
		rec.MCQAnswers = append(rec.MCQAnswers, a)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	wrows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, item_id, answer_text, reviewed, correct
		 FROM writing_answers WHERE record_id=$1 ORDER BY item_id`, rec.ID)
	if err != nil {
		return err
	}
	defer wrows.Close()
	for wrows.Next() {
		var a WritingAnswer
		var correct sql.NullBool
		if err := wrows.Scan(&a.ID, &a.RecordID, &a.ItemID, &a.AnswerText, &a.Reviewed, &correct); err != nil {
			return err
		}
		if correct.Valid {
			v := correct.Bool
			a.Correct = &v
		}
		rec.WritingAnswers = append(rec.WritingAnswers, a)
	}
	return wrows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var started int64
	var finished, score sql.NullInt64
	if err := row.Scan(&rec.ID, &rec.AssignmentID, &rec.PatientID, &started, &finished, &score); err != nil {
		return Record{}, err
	}
	rec.StartedAt = time.Unix(started, 0)
	if finished.Valid {
		t := time.Unix(finished.Int64, 0)
		rec.FinishedAt = &t
	}
	if score.Valid {
		v := int(score.Int64)
		rec.Score = &v
	}
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
