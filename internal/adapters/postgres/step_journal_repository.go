package postgres

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type stepJournalRepository struct {
	db *DB
}

var _ ports.StepJournal = (*stepJournalRepository)(nil) // Ensure compliance

// NewStepJournalRepository creates a journal backed by the step_transitions table.
func NewStepJournalRepository(db *DB) ports.StepJournal {
	return &stepJournalRepository{db: db}
}

// Append inserts one transition.
func (r *stepJournalRepository) Append(ctx context.Context, entry domain.StepTransition) error {
	query := `
		INSERT INTO step_transitions (
			run_id, run_kind, run_name, step_id, step_index, status, attempt, error, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
	`
	_, err := r.db.pool.Exec(ctx, query,
		entry.RunID,
		string(entry.RunKind),
		entry.RunName,
		entry.StepID,
		entry.StepIndex,
		string(entry.Status),
		entry.Attempt,
		entry.Error,
		entry.OccurredAt,
	)
	if err != nil {
		r.db.log.Error().Err(err).
			Str("run_id", entry.RunID).
			Str("step_id", entry.StepID).
			Msg("Failed to append step transition")
		return fmt.Errorf("append step transition: %w", err)
	}
	return nil
}

// ListByRun returns the transitions of one run in insertion order.
func (r *stepJournalRepository) ListByRun(ctx context.Context, runID string) ([]domain.StepTransition, error) {
	query := `
		SELECT run_id, run_kind, run_name, step_id, step_index, status, attempt, COALESCE(error, ''), occurred_at
		FROM step_transitions
		WHERE run_id = $1
		ORDER BY id
	`
	rows, err := r.db.pool.Query(ctx, query, runID)
	if err != nil {
		r.db.log.Error().Err(err).Str("run_id", runID).Msg("Failed to query step transitions")
		return nil, fmt.Errorf("list step transitions: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StepTransition, error) {
		var (
			e      domain.StepTransition
			kind   string
			status string
		)
		err := row.Scan(&e.RunID, &kind, &e.RunName, &e.StepID, &e.StepIndex, &status, &e.Attempt, &e.Error, &e.OccurredAt)
		e.RunKind = domain.RunKind(kind)
		e.Status = domain.StepStatus(status)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan step transitions: %w", err)
	}
	return entries, nil
}
