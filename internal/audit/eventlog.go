// Package audit appends attempt lifecycle events to the event_log table
// so finalized attempts can be traced after the fact (who finished, who
// was disqualified, who abandoned).
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Event types recorded by the quiz handlers.
const (
	TypeAttemptCompleted    = "attempt.completed"
	TypeAttemptIncomplete   = "attempt.incomplete"
	TypeAttemptDisqualified = "attempt.disqualified"
	TypeSetActivated        = "set.activated"
)

type Event struct {
	ID        int64
	SiteID    string
	Type      string
	Key       string // natural key: "<user_id>:<set_id>"
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
