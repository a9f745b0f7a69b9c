package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/draft/repository"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/mcdev12/draftengine/go/internal/sqlutil"
)

const derbyColumns = `id, draft_id, status, derby_order::text[], current_turn, turn_time_sec, turn_deadline, created_at, updated_at`

func scanDerby(row pgx.Row) (*models.Derby, error) {
	var (
		d        models.Derby
		status   string
		order    []string
		deadline sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.DraftID, &status, &order, &d.CurrentTurn, &d.TurnTimeSec, &deadline,
		&d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Status = models.DerbyStatus(status)
	d.TurnDeadline = sqlutil.FromSqlTime(deadline)
	d.DerbyOrder = make([]uuid.UUID, 0, len(order))
	for _, raw := range order {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid derby order entry %q: %w", raw, err)
		}
		d.DerbyOrder = append(d.DerbyOrder, id)
	}
	return &d, nil
}

func orderStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// InsertDerby creates the draft's derby in the same transaction that holds the draft row.
func (q *draftTx) InsertDerby(ctx context.Context, d *models.Derby) error {
	_, err := q.tx.Exec(ctx, `
		INSERT INTO derbies (id, draft_id, status, derby_order, current_turn, turn_time_sec, turn_deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4::uuid[], $5, $6, $7, $8, $9)`,
		d.ID, d.DraftID, string(d.Status), orderStrings(d.DerbyOrder), d.CurrentTurn, d.TurnTimeSec,
		sqlutil.ToSqlTime(d.TurnDeadline), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create derby: %w", mapError(err))
	}
	return nil
}

func (q *draftTx) ActiveDerby(ctx context.Context) (bool, error) {
	var active bool
	err := q.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM derbies WHERE draft_id = $1 AND status <> $2)`,
		q.draft.ID, string(models.DerbyStatusCompleted)).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("failed to check derby: %w", err)
	}
	return active, nil
}

func (s *Store) GetDerbyByDraft(ctx context.Context, draftID uuid.UUID) (*models.Derby, error) {
	d, err := scanDerby(s.pool.QueryRow(ctx, `SELECT `+derbyColumns+` FROM derbies WHERE draft_id = $1`, draftID))
	if err != nil {
		return nil, fmt.Errorf("failed to get derby: %w", mapError(err))
	}
	return d, nil
}

func (s *Store) ListDerbySelections(ctx context.Context, derbyID uuid.UUID) ([]models.DerbySelection, error) {
	return querySelections(ctx, s.pool, derbyID)
}

func (s *Store) ListDraftIDsWithActiveDerby(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT draft_id FROM derbies WHERE status = $1`, string(models.DerbyStatusInProgress))
	if err != nil {
		return nil, fmt.Errorf("failed to list active derbies: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan derby draft ids: %w", err)
	}
	return ids, nil
}

func querySelections(ctx context.Context, q rowQuerier, derbyID uuid.UUID) ([]models.DerbySelection, error) {
	rows, err := q.Query(ctx, `
		SELECT derby_id, draft_position, participant_id, is_auto, selected_at
		FROM derby_selections WHERE derby_id = $1 ORDER BY draft_position`, derbyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query derby selections: %w", err)
	}
	defer rows.Close()

	var out []models.DerbySelection
	for rows.Next() {
		var sel models.DerbySelection
		if err := rows.Scan(&sel.DerbyID, &sel.DraftPosition, &sel.ParticipantID, &sel.IsAuto, &sel.SelectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan derby selection: %w", err)
		}
		out = append(out, sel)
	}
	return out, rows.Err()
}

// WithDerbyLock runs fn with the derby row held by SELECT ... FOR UPDATE NOWAIT.
func (s *Store) WithDerbyLock(ctx context.Context, draftID uuid.UUID, fn func(tx repository.DerbyTx) error) error {
	err := sqlutil.Run(ctx, s.pool,
		func(tx pgx.Tx) *derbyTx { return &derbyTx{tx: tx} },
		func(q *derbyTx) error {
			d, err := scanDerby(q.tx.QueryRow(ctx, `SELECT `+derbyColumns+` FROM derbies WHERE draft_id = $1 FOR UPDATE NOWAIT`, draftID))
			if err != nil {
				return mapError(err)
			}
			q.derby = d
			return fn(q)
		})
	return mapError(err)
}

type derbyTx struct {
	tx    pgx.Tx
	derby *models.Derby
}

func (q *derbyTx) Derby() *models.Derby {
	return q.derby.Clone()
}

func (q *derbyTx) Selections(ctx context.Context) ([]models.DerbySelection, error) {
	return querySelections(ctx, q.tx, q.derby.ID)
}

func (q *derbyTx) InsertSelection(ctx context.Context, sel models.DerbySelection) error {
	_, err := q.tx.Exec(ctx, `
		INSERT INTO derby_selections (derby_id, draft_position, participant_id, is_auto, selected_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sel.DerbyID, sel.DraftPosition, sel.ParticipantID, sel.IsAuto, sel.SelectedAt)
	return mapError(err)
}

func (q *derbyTx) UpdateDerby(ctx context.Context, d *models.Derby) error {
	_, err := q.tx.Exec(ctx, `
		UPDATE derbies SET status = $2, current_turn = $3, turn_deadline = $4, updated_at = $5 WHERE id = $1`,
		d.ID, string(d.Status), d.CurrentTurn, sqlutil.ToSqlTime(d.TurnDeadline), d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update derby: %w", mapError(err))
	}
	q.derby = d.Clone()
	return nil
}

func (q *derbyTx) AssignDraftPosition(ctx context.Context, draftID, participantID uuid.UUID, position int) error {
	// FOR SHARE conflicts with the FOR UPDATE taken by draft transitions.
	var status string
	err := q.tx.QueryRow(ctx, `SELECT status FROM drafts WHERE id = $1 FOR SHARE NOWAIT`, draftID).Scan(&status)
	if err != nil {
		return fmt.Errorf("failed to lock draft: %w", mapError(err))
	}
	if models.DraftStatus(status) != models.DraftStatusNotStarted {
		return fmt.Errorf("draft is %s: %w", status, drafterr.ErrInvalidTransition)
	}

	_, err = q.tx.Exec(ctx, `
		INSERT INTO turn_order (draft_id, participant_id, draft_position)
		VALUES ($1, $2, $3)
		ON CONFLICT (draft_id, participant_id) DO UPDATE SET draft_position = EXCLUDED.draft_position`,
		draftID, participantID, position)
	if err != nil {
		return fmt.Errorf("failed to assign draft position: %w", mapError(err))
	}
	return nil
}
