// Package postgres implements the draft storage contract on PostgreSQL with pgx.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/draftengine/go/internal/draft/drafterr"
	"github.com/mcdev12/draftengine/go/internal/draft/repository"
	"github.com/mcdev12/draftengine/go/internal/models"
	"github.com/mcdev12/draftengine/go/internal/sqlutil"
)

//go:embed schema.sql
var Schema string

var (
	_ repository.DraftStore   = (*Store)(nil)
	_ repository.DerbyStore   = (*Store)(nil)
	_ repository.Catalog      = (*Store)(nil)
	_ repository.Directory    = (*Store)(nil)
	_ repository.SeasonWriter = (*Store)(nil)
)

// Store is backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates any missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// constraintErrors maps unique constraints to the error a caller should see.
var constraintErrors = map[string]error{
	"draft_picks_player_key":           drafterr.ErrItemAlreadyPicked,
	"draft_picks_overall_pick_key":     drafterr.ErrConcurrentModification,
	"derby_selections_position_key":    drafterr.ErrPositionAlreadyClaimed,
	"derby_selections_participant_key": drafterr.ErrPositionAlreadyClaimed,
	"derbies_draft_key":                drafterr.ErrInvalidTransition,
	"turn_order_position_key":          drafterr.ErrInvalidTurnOrder,
}

// mapError translates driver errors into the engine's taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", drafterr.ErrNotFound, err)
	}
	if sqlutil.IsLockNotAvailable(err) {
		return fmt.Errorf("%w: %v", drafterr.ErrConcurrentModification, err)
	}
	if constraint, ok := sqlutil.UniqueViolation(err); ok {
		if mapped, known := constraintErrors[constraint]; known {
			return fmt.Errorf("%w: %v", mapped, err)
		}
	}
	return err
}

const draftColumns = `id, league_id, style, status, settings, current_pick, current_round, current_turn_holder,
	pick_deadline, turn_started_at, started_at, completed_at, created_at, updated_at`

func scanDraft(row pgx.Row) (*models.Draft, error) {
	var (
		d          models.Draft
		style      string
		status     string
		settings   []byte
		holder     uuid.NullUUID
		deadline   *time.Time
		turnStart  *time.Time
		startedAt  *time.Time
		finishedAt *time.Time
	)
	err := row.Scan(&d.ID, &d.LeagueID, &style, &status, &settings, &d.CurrentPick, &d.CurrentRound, &holder,
		&deadline, &turnStart, &startedAt, &finishedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &d.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft settings: %w", err)
	}
	d.Style = models.DraftStyle(style)
	d.Status = models.DraftStatus(status)
	d.CurrentTurnHolder = sqlutil.FromNullUUID(holder)
	d.PickDeadline = deadline
	d.TurnStartedAt = turnStart
	d.StartedAt = startedAt
	d.CompletedAt = finishedAt
	return &d, nil
}

func (s *Store) CreateDraft(ctx context.Context, d *models.Draft) error {
	settings, err := json.Marshal(d.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal draft settings: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO drafts (id, league_id, style, status, settings, current_pick, current_round, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.LeagueID, string(d.Style), string(d.Status), settings, d.CurrentPick, d.CurrentRound, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create draft: %w", mapError(err))
	}
	return nil
}

func (s *Store) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	d, err := scanDraft(s.pool.QueryRow(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", mapError(err))
	}
	return d, nil
}

func (s *Store) ListDraftIDsByStatus(ctx context.Context, status models.DraftStatus) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM drafts WHERE status = $1`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan draft ids: %w", err)
	}
	return ids, nil
}

func (s *Store) GetTurnOrder(ctx context.Context, draftID uuid.UUID) (models.TurnOrder, error) {
	return queryTurnOrder(ctx, s.pool, draftID)
}

func (s *Store) ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.DraftPick, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, draft_id, round, pick, overall_pick, participant_id, player_id, is_auto_pick, is_skipped,
		       time_spent_sec, picked_at
		FROM draft_picks WHERE draft_id = $1 ORDER BY overall_pick`, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	defer rows.Close()

	var picks []models.DraftPick
	for rows.Next() {
		var (
			p        models.DraftPick
			playerID uuid.NullUUID
		)
		if err := rows.Scan(&p.ID, &p.DraftID, &p.Round, &p.Pick, &p.OverallPick, &p.ParticipantID, &playerID,
			&p.IsAutoPick, &p.IsSkipped, &p.TimeSpentSec, &p.PickedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pick: %w", err)
		}
		p.PlayerID = sqlutil.FromNullUUID(playerID)
		picks = append(picks, p)
	}
	return picks, rows.Err()
}

// rowQuerier is satisfied by both the pool and an open transaction.
type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryTurnOrder(ctx context.Context, q rowQuerier, draftID uuid.UUID) (models.TurnOrder, error) {
	rows, err := q.Query(ctx, `
		SELECT draft_id, participant_id, draft_position, is_autodrafting, time_remaining_sec, time_used_sec
		FROM turn_order WHERE draft_id = $1 ORDER BY draft_position`, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turn order: %w", err)
	}
	defer rows.Close()

	var order models.TurnOrder
	for rows.Next() {
		var e models.TurnOrderEntry
		if err := rows.Scan(&e.DraftID, &e.ParticipantID, &e.DraftPosition, &e.IsAutodrafting,
			&e.TimeRemainingSec, &e.TimeUsedSec); err != nil {
			return nil, fmt.Errorf("failed to scan turn order: %w", err)
		}
		order = append(order, e)
	}
	return order, rows.Err()
}

// WithDraftLock runs fn with the draft row held by SELECT ... FOR UPDATE NOWAIT.
func (s *Store) WithDraftLock(ctx context.Context, draftID uuid.UUID, fn func(tx repository.DraftTx) error) error {
	err := sqlutil.Run(ctx, s.pool,
		func(tx pgx.Tx) *draftTx { return &draftTx{tx: tx} },
		func(q *draftTx) error {
			d, err := scanDraft(q.tx.QueryRow(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = $1 FOR UPDATE NOWAIT`, draftID))
			if err != nil {
				return mapError(err)
			}
			q.draft = d
			return fn(q)
		})
	return mapError(err)
}

type draftTx struct {
	tx    pgx.Tx
	draft *models.Draft
}

func (q *draftTx) Draft() *models.Draft {
	return q.draft.Clone()
}

func (q *draftTx) TurnOrder(ctx context.Context) (models.TurnOrder, error) {
	return queryTurnOrder(ctx, q.tx, q.draft.ID)
}

func (q *draftTx) IsPicked(ctx context.Context, playerID uuid.UUID) (bool, error) {
	var exists bool
	err := q.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM draft_picks WHERE draft_id = $1 AND player_id = $2)`,
		q.draft.ID, playerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pick: %w", err)
	}
	return exists, nil
}

func (q *draftTx) InsertPick(ctx context.Context, p models.DraftPick) error {
	_, err := q.tx.Exec(ctx, `
		INSERT INTO draft_picks (id, draft_id, round, pick, overall_pick, participant_id, player_id, is_auto_pick,
		                         is_skipped, time_spent_sec, picked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.DraftID, p.Round, p.Pick, p.OverallPick, p.ParticipantID, sqlutil.ToNullUUID(p.PlayerID),
		p.IsAutoPick, p.IsSkipped, p.TimeSpentSec, p.PickedAt)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (q *draftTx) UpdateDraft(ctx context.Context, d *models.Draft) error {
	settings, err := json.Marshal(d.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal draft settings: %w", err)
	}
	_, err = q.tx.Exec(ctx, `
		UPDATE drafts SET
			status = $2, settings = $3, current_pick = $4, current_round = $5, current_turn_holder = $6,
			pick_deadline = $7, turn_started_at = $8, started_at = $9, completed_at = $10, updated_at = $11
		WHERE id = $1`,
		d.ID, string(d.Status), settings, d.CurrentPick, d.CurrentRound, sqlutil.ToNullUUID(d.CurrentTurnHolder),
		sqlutil.ToSqlTime(d.PickDeadline), sqlutil.ToSqlTime(d.TurnStartedAt), sqlutil.ToSqlTime(d.StartedAt),
		sqlutil.ToSqlTime(d.CompletedAt), d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", mapError(err))
	}
	q.draft = d.Clone()
	return nil
}

func (q *draftTx) ReplaceTurnOrder(ctx context.Context, order models.TurnOrder) error {
	if _, err := q.tx.Exec(ctx, `DELETE FROM turn_order WHERE draft_id = $1`, q.draft.ID); err != nil {
		return fmt.Errorf("failed to clear turn order: %w", err)
	}
	batch := &pgx.Batch{}
	for _, e := range order {
		batch.Queue(`
			INSERT INTO turn_order (draft_id, participant_id, draft_position, is_autodrafting, time_remaining_sec, time_used_sec)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			q.draft.ID, e.ParticipantID, e.DraftPosition, e.IsAutodrafting, e.TimeRemainingSec, e.TimeUsedSec)
	}
	if err := q.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert turn order: %w", mapError(err))
	}
	return nil
}

func (q *draftTx) UpdateTurnOrderEntry(ctx context.Context, e models.TurnOrderEntry) error {
	tag, err := q.tx.Exec(ctx, `
		UPDATE turn_order SET draft_position = $3, is_autodrafting = $4, time_remaining_sec = $5, time_used_sec = $6
		WHERE draft_id = $1 AND participant_id = $2`,
		q.draft.ID, e.ParticipantID, e.DraftPosition, e.IsAutodrafting, e.TimeRemainingSec, e.TimeUsedSec)
	if err != nil {
		return fmt.Errorf("failed to update turn order entry: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("participant %s not in turn order: %w", e.ParticipantID, drafterr.ErrNotFound)
	}
	return nil
}
