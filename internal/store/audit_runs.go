package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/farxc/envelopa-auditoria/internal/audit"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AuditRun struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	TriggerType string          `db:"trigger_type" json:"trigger_type"`
	Status      string          `db:"status" json:"status"`
	StartedAt   time.Time       `db:"started_at" json:"started_at"`
	FinishedAt  *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	Contracts   int             `db:"contracts" json:"contracts"`
	Validated   int             `db:"validated" json:"validated"`
	Summary     json.RawMessage `db:"summary" json:"summary"`
}

type AuditFinding struct {
	ID         int64     `db:"id" json:"id"`
	RunID      uuid.UUID `db:"run_id" json:"run_id"`
	ContractID int64     `db:"contract_id" json:"contract_id"`
	Stage      string    `db:"stage" json:"stage"`
	BuildError bool      `db:"build_error" json:"build_error"`
	Kind       string    `db:"kind" json:"kind"`
	Rule       string    `db:"rule" json:"rule,omitempty"`
	Message    string    `db:"message" json:"message"`
}

// findingChunk keeps a multi-row insert well under the postgres limit of
// 65535 bind parameters.
const findingChunk = 1000

type AuditRunStore struct {
	db Queryer
}

var _ audit.RunRecorder = (*AuditRunStore)(nil)

func (as *AuditRunStore) StartRun(ctx context.Context, run *audit.Run) error {
	query := `INSERT INTO audit_run (
		id,
		trigger_type,
		status,
		started_at
	) VALUES (
		:id,
		:trigger_type,
		:status,
		:started_at
	) RETURNING started_at`

	row := AuditRun{
		ID:          run.ID,
		TriggerType: run.Trigger,
		Status:      run.Status,
		StartedAt:   run.StartedAt,
	}

	rows, err := sqlx.NamedQueryContext(ctx, as.db, query, row)
	if err != nil {
		return fmt.Errorf("failed to insert audit run: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&run.StartedAt); err != nil {
			return fmt.Errorf("failed to read audit run: %w", err)
		}
	}
	return rows.Err()
}

func (as *AuditRunStore) RecordFindings(ctx context.Context, runID uuid.UUID, reports []audit.Report) error {
	if len(reports) == 0 {
		return nil
	}

	query := `INSERT INTO audit_finding (
		run_id,
		contract_id,
		stage,
		build_error,
		kind,
		rule,
		message
	) VALUES (
		:run_id,
		:contract_id,
		:stage,
		:build_error,
		:kind,
		:rule,
		:message
	)`

	for start := 0; start < len(reports); start += findingChunk {
		end := min(start+findingChunk, len(reports))
		batch := make([]AuditFinding, 0, end-start)
		for _, r := range reports[start:end] {
			batch = append(batch, AuditFinding{
				RunID:      runID,
				ContractID: r.ContractID,
				Stage:      string(r.Stage),
				BuildError: r.BuildError,
				Kind:       r.Kind,
				Rule:       r.Rule,
				Message:    r.Message,
			})
		}
		if _, err := sqlx.NamedExecContext(ctx, as.db, query, batch); err != nil {
			return fmt.Errorf("failed to insert findings for run %s: %w", runID, err)
		}
	}
	return nil
}

func (as *AuditRunStore) FinishRun(ctx context.Context, run *audit.Run) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	query := `UPDATE audit_run
		SET status = $1, finished_at = $2, contracts = $3, validated = $4, summary = $5
		WHERE id = $6`

	res, err := as.db.ExecContext(ctx, query,
		run.Status, run.FinishedAt, run.Summary.Contracts, run.Summary.Validated, string(summary), run.ID)
	if err != nil {
		return fmt.Errorf("failed to update audit run %s: %w", run.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("audit run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (as *AuditRunStore) GetLatest(ctx context.Context, limit int) ([]AuditRun, error) {
	query := `SELECT id, trigger_type, status, started_at, finished_at, contracts, validated, summary
		FROM audit_run
		ORDER BY started_at DESC
		LIMIT $1`

	runs := []AuditRun{}
	if err := as.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list audit runs: %w", err)
	}
	return runs, nil
}

func (as *AuditRunStore) GetByID(ctx context.Context, id uuid.UUID) (AuditRun, error) {
	query := `SELECT id, trigger_type, status, started_at, finished_at, contracts, validated, summary
		FROM audit_run
		WHERE id = $1`

	var run AuditRun
	err := as.db.GetContext(ctx, &run, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return AuditRun{}, fmt.Errorf("audit run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return AuditRun{}, fmt.Errorf("failed to fetch audit run %s: %w", id, err)
	}
	return run, nil
}

func (as *AuditRunStore) Findings(ctx context.Context, runID uuid.UUID) ([]AuditFinding, error) {
	query := `SELECT id, run_id, contract_id, stage, build_error, kind, rule, message
		FROM audit_finding
		WHERE run_id = $1
		ORDER BY contract_id, id`

	findings := []AuditFinding{}
	if err := as.db.SelectContext(ctx, &findings, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list findings of run %s: %w", runID, err)
	}
	return findings, nil
}
