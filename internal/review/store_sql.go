package review

import (
	"context"
	"database/sql"
	"errors"
)

type SQLQueue struct {
	db *sql.DB
}

func NewSQLQueue(db *sql.DB) *SQLQueue { return &SQLQueue{db: db} }

func (q *SQLQueue) ListPending(ctx context.Context, doctorID string) ([]Item, error) {
	// Prompt comes from the typed item table; legacy records carry
	// positional item ids with no row there, so the join is left.
	rows, err := q.db.QueryContext(ctx, `
		SELECT wa.id, wa.record_id, u.id,
		       COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.username),
		       a.id, a.title, ai.prompt, wa.answer_text
		FROM writing_answers wa
		JOIN records r      ON r.id = wa.record_id
		JOIN users u        ON u.id = r.patient_id
		JOIN assignments a  ON a.id = r.assignment_id
		LEFT JOIN assignment_items ai ON ai.id = wa.item_id AND ai.assignment_id = a.id
		WHERE wa.reviewed = FALSE AND u.doctor_id = $1
		ORDER BY r.seq, COALESCE(ai.ord, wa.item_id), wa.item_id`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		var it Item
		var prompt sql.NullString
		if err := rows.Scan(&it.AnswerID, &it.RecordID, &it.PatientID, &it.PatientName,
			&it.AssignmentID, &it.AssignmentTitle, &prompt, &it.AnswerText); err != nil {
			return nil, err
		}
		if prompt.Valid {
			p := prompt.String
			it.Prompt = &p
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// MarkVerdict flips exactly one pending answer to reviewed. Verdicts
// against reviewed or unknown ids are rejected, never applied twice.
func (q *SQLQueue) MarkVerdict(ctx context.Context, answerID string, correct bool) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE writing_answers SET reviewed=TRUE, correct=$1 WHERE id=$2 AND reviewed=FALSE`,
		correct, answerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var reviewed bool
	err = q.db.QueryRowContext(ctx,
		`SELECT reviewed FROM writing_answers WHERE id=$1`, answerID).Scan(&reviewed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrAnswerNotFound
	case err != nil:
		return err
	case reviewed:
		return ErrAlreadyReviewed
	default:
		return errors.New("verdict not applied")
	}
}
