package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/mcdev12/draftengine/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

const insertEntry = `
INSERT INTO draft_audit_events (id, draft_id, participant_id, overall_pick, event_type, message, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`

const listEntries = `
SELECT id, draft_id, participant_id, overall_pick, event_type, message, payload, created_at
FROM draft_audit_events
WHERE draft_id = $1
ORDER BY created_at, id`

// PostgresSink appends entries to the draft_audit_events table.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// Open connects with the lib/pq driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	return db, nil
}

func (s *PostgresSink) Record(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	payload, err := marshalPayload(e.Payload)
	if err != nil {
		return err
	}
	var occurredAt *time.Time
	if !e.OccurredAt.IsZero() {
		occurredAt = &e.OccurredAt
	}

	_, err = s.db.ExecContext(ctx, insertEntry,
		e.ID,
		e.DraftID,
		sqlutil.ToNullUUID(e.ParticipantID),
		sqlutil.ToSqlInt32Direct(e.OverallPick),
		e.EventType,
		sqlutil.ToSqlString(nonEmpty(e.Message)),
		payload,
		sqlutil.ToSqlTime(occurredAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// List returns a draft's audit trail, oldest first. Payloads come back as json.RawMessage.
func (s *PostgresSink) List(ctx context.Context, draftID uuid.UUID) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, listEntries, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e           Entry
			participant uuid.NullUUID
			overallPick sql.NullInt32
			message     sql.NullString
			payload     pqtype.NullRawMessage
		)
		if err := rows.Scan(&e.ID, &e.DraftID, &participant, &overallPick, &e.EventType, &message, &payload, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.ParticipantID = sqlutil.FromNullUUID(participant)
		e.OverallPick = int(overallPick.Int32)
		e.Message = message.String
		if payload.Valid {
			e.Payload = payload.RawMessage
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return out, nil
}

func marshalPayload(v any) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("failed to marshal audit payload: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
