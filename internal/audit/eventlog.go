// Package audit appends domain events to an append-only log table.
// Used for attempt submissions and review verdicts so a site can be
// reconciled or debugged after the fact.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const (
	EventAttemptStarted   = "AttemptStarted"
	EventAttemptSubmitted = "AttemptSubmitted"
	EventVerdictApplied   = "VerdictApplied"
)

type Event struct {
	Offset    int64
	SiteID    string
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

type EventRepo struct {
	db     *sql.DB
	siteID string
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID}
}

func (r *EventRepo) Append(ctx context.Context, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(buf), time.Now().Unix())
	return err
}
