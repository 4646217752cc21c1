package assignment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

var _ Store = (*SQLStore)(nil)

func (s *SQLStore) Create(ctx context.Context, in CreateInput, createdBy string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	props, err := json.Marshal(in.Properties)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO assignments (topic, title, qtype, properties_json, legacy_items_json, created_by, created_at)
		 VALUES ($1,$2,$3,$4,'[]',$5,$6) RETURNING id`,
		in.Topic, in.Title, in.Qtype, string(props), createdBy, time.Now().Unix()).Scan(&id)
	if err != nil {
		return 0, err
	}
	if err := insertItems(ctx, tx, id, in); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Update replaces the assignment head and its typed items wholesale,
// matching the editor's save-everything model.
func (s *SQLStore) Update(ctx context.Context, id int64, in CreateInput) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	props, err := json.Marshal(in.Properties)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE assignments SET topic=$1, title=$2, qtype=$3, properties_json=$4 WHERE id=$5`,
		in.Topic, in.Title, in.Qtype, string(props), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assignment_items WHERE assignment_id=$1`, id); err != nil {
		return err
	}
	if err := insertItems(ctx, tx, id, in); err != nil {
		return err
	}
	return tx.Commit()
}

func insertItems(ctx context.Context, tx *sql.Tx, id int64, in CreateInput) error {
	for i, item := range in.Items {
		var (
			itemType    ItemType
			choicesJSON sql.NullString
			answerIdx   sql.NullInt64
			answerText  sql.NullString
			manual      bool
		)
		if in.Qtype == QtypeMultipleChoice {
			itemType = TypeMCQ
			cj, err := json.Marshal(item.Choices)
			if err != nil {
				return err
			}
			choicesJSON = sql.NullString{String: string(cj), Valid: true}
			idx, ok, err := decodeIntKey(item.AnswerKey)
			if err != nil {
				return fmt.Errorf("item %d: answer_key: %w", i, err)
			}
			if ok {
				answerIdx = sql.NullInt64{Int64: int64(idx), Valid: true}
			}
		} else {
			itemType = TypeWriting
			txt, ok, err := decodeStringKey(item.AnswerKey)
			if err != nil {
				return fmt.Errorf("item %d: answer_key: %w", i, err)
			}
			if ok {
				answerText = sql.NullString{String: txt, Valid: true}
			}
			manual = in.Properties["manualReview"] == true
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO assignment_items (assignment_id, ord, item_type, prompt, image_path, choices_json, answer_index, answer_text, manual_review)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			id, i, string(itemType), nullStr(item.Prompt), nullStr(item.ImagePath),
			choicesJSON, answerIdx, answerText, manual)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assignments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, topic int) ([]Summary, error) {
	q := `SELECT id, topic, title, qtype FROM assignments ORDER BY created_at DESC, id DESC`
	args := []any{}
	if topic > 0 {
		q = `SELECT id, topic, title, qtype FROM assignments WHERE topic=$1 ORDER BY created_at DESC, id DESC`
		args = append(args, topic)
	}
	return s.listSummaries(ctx, q, args...)
}

func (s *SQLStore) ListAssigned(ctx context.Context, patientID string, topic int) ([]Summary, error) {
	q := `SELECT a.id, a.topic, a.title, a.qtype FROM assignments a
	      JOIN assignment_patients ap ON ap.assignment_id = a.id
	      WHERE ap.patient_id=$1 ORDER BY a.created_at DESC, a.id DESC`
	args := []any{patientID}
	if topic > 0 {
		q = `SELECT a.id, a.topic, a.title, a.qtype FROM assignments a
		     JOIN assignment_patients ap ON ap.assignment_id = a.id
		     WHERE ap.patient_id=$1 AND a.topic=$2 ORDER BY a.created_at DESC, a.id DESC`
		args = append(args, topic)
	}
	return s.listSummaries(ctx, q, args...)
}

func (s *SQLStore) listSummaries(ctx context.Context, q string, args ...any) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.Topic, &sm.Title, &sm.Qtype); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *SQLStore) Assign(ctx context.Context, assignmentID int64, patientID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assignment_patients (assignment_id, patient_id) VALUES ($1,$2)
		 ON CONFLICT (assignment_id, patient_id) DO NOTHING`,
		assignmentID, patientID)
	return err
}

func (s *SQLStore) IsAssigned(ctx context.Context, assignmentID int64, patientID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM assignment_patients WHERE assignment_id=$1 AND patient_id=$2`,
		assignmentID, patientID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLStore) GetV2(ctx context.Context, id int64) (V2Payload, error) {
	p, err := s.head(ctx, id)
	if err != nil {
		return V2Payload{}, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_type, prompt, image_path, choices_json, answer_index, answer_text, manual_review
		 FROM assignment_items WHERE assignment_id=$1 ORDER BY ord`, id)
	if err != nil {
		return V2Payload{}, err
	}
	defer rows.Close()
	p.Items = []V2Item{}
	for rows.Next() {
		var (
			it          V2Item
			prompt      sql.NullString
			imagePath   sql.NullString
			choicesJSON sql.NullString
			answerIdx   sql.NullInt64
			answerText  sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.Type, &prompt, &imagePath, &choicesJSON, &answerIdx, &answerText, &it.Manual); err != nil {
			return V2Payload{}, err
		}
		if prompt.Valid {
			it.Prompt = &prompt.String
		}
		if imagePath.Valid {
			it.ImagePath = &imagePath.String
		}
		if choicesJSON.Valid {
			if err := json.Unmarshal([]byte(choicesJSON.String), &it.Choices); err != nil {
				return V2Payload{}, err
			}
		}
		switch {
		case it.Type == string(TypeMCQ) && answerIdx.Valid:
			it.AnswerKey, _ = json.Marshal(int(answerIdx.Int64))
		case it.Type == string(TypeWriting) && answerText.Valid:
			it.AnswerKey, _ = json.Marshal(answerText.String)
		}
		p.Items = append(p.Items, it)
	}
	return p, rows.Err()
}

func (s *SQLStore) GetLegacy(ctx context.Context, id int64) (LegacyPayload, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, title, qtype, properties_json, legacy_items_json FROM assignments WHERE id=$1`, id)
	var (
		p          LegacyPayload
		propsJSON  string
		legacyJSON string
	)
	if err := row.Scan(&p.ID, &p.Topic, &p.Title, &p.Qtype, &propsJSON, &legacyJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LegacyPayload{}, ErrNotFound
		}
		return LegacyPayload{}, err
	}
	if err := json.Unmarshal([]byte(propsJSON), &p.Properties); err != nil {
		p.Properties = map[string]any{}
	}
	if err := json.Unmarshal([]byte(legacyJSON), &p.Items); err != nil {
		return LegacyPayload{}, err
	}
	return p, nil
}

func (s *SQLStore) PutLegacyItems(ctx context.Context, id int64, items []LegacyItem) error {
	buf, err := json.Marshal(items)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET legacy_items_json=$1 WHERE id=$2`, string(buf), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) head(ctx context.Context, id int64) (V2Payload, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, title, qtype, properties_json FROM assignments WHERE id=$1`, id)
	var p V2Payload
	var propsJSON string
	if err := row.Scan(&p.ID, &p.Topic, &p.Title, &p.Qtype, &propsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return V2Payload{}, ErrNotFound
		}
		return V2Payload{}, err
	}
	if err := json.Unmarshal([]byte(propsJSON), &p.Properties); err != nil {
		p.Properties = map[string]any{}
	}
	return p, nil
}

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
