package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nova-retail/catalogsync/core"
)

// PostgresRunStoreOption configures a PostgresRunStore.
type PostgresRunStoreOption func(*postgresRunStoreConfig)

type postgresRunStoreConfig struct {
	logger    core.Logger
	tableName string
}

// WithPostgresLogger sets the logger used for connection and query
// diagnostics.
func WithPostgresLogger(logger core.Logger) PostgresRunStoreOption {
	return func(c *postgresRunStoreConfig) { c.logger = logger }
}

// WithPostgresTable overrides the default "sync_runs" table name.
func WithPostgresTable(name string) PostgresRunStoreOption {
	return func(c *postgresRunStoreConfig) { c.tableName = name }
}

// PostgresRunStore persists run records as JSONB rows and emulates the two
// atomic merge RPCs with a row-level lock: BEGIN, SELECT ... FOR UPDATE to
// fetch the current document, merge in application code, UPDATE, COMMIT.
// This keeps the merge algorithm identical between MemoryRunStore and
// PostgresRunStore while still making it atomic against concurrent ticks.
type PostgresRunStore struct {
	pool      *pgxpool.Pool
	logger    core.Logger
	tableName string
}

// NewPostgresRunStore connects to dsn and returns a ready store. The
// caller owns the returned pool's lifetime via Close.
func NewPostgresRunStore(ctx context.Context, dsn string, opts ...PostgresRunStoreOption) (*PostgresRunStore, error) {
	cfg := postgresRunStoreConfig{logger: core.NoOpLogger{}, tableName: "sync_runs"}
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	return &PostgresRunStore{pool: pool, logger: cfg.logger, tableName: cfg.tableName}, nil
}

// Close releases the underlying connection pool.
func (p *PostgresRunStore) Close() { p.pool.Close() }

var _ RunStore = (*PostgresRunStore)(nil)

// runRow is the JSON wire shape of one sync_runs row: run_id/status/etc
// are real columns; steps/metrics/location_warnings/file_manifest are
// JSONB columns merged via the row-lock pattern above.
type runRow struct {
	RunID            string                `json:"run_id"`
	Status           RunStatus             `json:"status"`
	TriggerType      TriggerType           `json:"trigger_type"`
	StartedAt        time.Time             `json:"started_at"`
	FinishedAt       *time.Time            `json:"finished_at,omitempty"`
	RuntimeMS        int64                 `json:"runtime_ms"`
	Steps            map[string]*StepState `json:"steps"`
	CurrentStep      string                `json:"current_step"`
	Metrics          map[string]int64      `json:"metrics"`
	LocationWarnings map[string]int64      `json:"location_warnings"`
	WarningCount     int                   `json:"warning_count"`
	FileManifest     map[string]string     `json:"file_manifest"`
	CancelRequested  bool                  `json:"cancel_requested"`
	CancelledByUser  bool                  `json:"cancelled_by_user"`
	ErrorMessage     string                `json:"error_message"`
}

func (p *PostgresRunStore) CreateRun(ctx context.Context, run *RunRecord) error {
	stepsJSON, err := json.Marshal(run.Steps)
	if err != nil {
		return fmt.Errorf("store: marshal steps: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (run_id, status, trigger_type, started_at, current_step, steps, metrics, location_warnings, file_manifest)
		VALUES ($1, $2, $3, $4, $5, $6, '{}'::jsonb, '{}'::jsonb, '{}'::jsonb)
	`, p.tableName)
	_, err = p.pool.Exec(ctx, query, run.RunID, run.Status, run.TriggerType, run.StartedAt, run.CurrentStep, stepsJSON)
	if err != nil {
		return core.NewError("store.CreateRun", "store", run.RunID, "", fmt.Errorf("%w: %v", core.ErrInvalidConfiguration, err))
	}
	return nil
}

func (p *PostgresRunStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row, err := p.selectRow(ctx, p.pool, runID)
	if err != nil {
		return nil, err
	}
	return rowToRecord(row), nil
}

func (p *PostgresRunStore) FindRunningRun(ctx context.Context) (*RunRecord, error) {
	query := fmt.Sprintf(`
		SELECT run_id, status, trigger_type, started_at, finished_at, runtime_ms,
		       steps, current_step, metrics, location_warnings, warning_count,
		       file_manifest, cancel_requested, cancelled_by_user, error_message
		FROM %s WHERE status = $1 ORDER BY started_at DESC LIMIT 1
	`, p.tableName)
	row := p.pool.QueryRow(ctx, query, RunRunning)
	rr, err := scanRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, core.NewError("store.FindRunningRun", "store", "", "", core.ErrRunNotFound)
		}
		return nil, fmt.Errorf("store: find running run: %w", err)
	}
	return rowToRecord(rr), nil
}

func (p *PostgresRunStore) SetStepInProgress(ctx context.Context, runID, step string) error {
	return p.withRowLock(ctx, runID, func(rr *runRow) error {
		rr.CurrentStep = step
		ss := rr.Steps[step]
		if ss == nil {
			rr.Steps[step] = &StepState{Status: StepInProgress, Fields: map[string]interface{}{}}
		} else {
			ss.Status = StepInProgress
		}
		return nil
	}, "current_step", "steps")
}

func (p *PostgresRunStore) MergeStep(ctx context.Context, runID, step string, patch map[string]interface{}) error {
	return p.withRowLock(ctx, runID, func(rr *runRow) error {
		ss := rr.Steps[step]
		if ss == nil {
			ss = &StepState{Fields: map[string]interface{}{}}
			rr.Steps[step] = ss
		}
		applyStepPatch(ss, patch)
		return nil
	}, "steps")
}

func (p *PostgresRunStore) MergeRun(ctx context.Context, runID string, patch map[string]interface{}) error {
	return p.withRowLock(ctx, runID, func(rr *runRow) error {
		rec := rowToRecord(rr)
		applyRunPatch(rec, patch)
		*rr = *recordToRow(rec)
		return nil
	}, "status", "finished_at", "runtime_ms", "warning_count", "cancel_requested",
		"cancelled_by_user", "error_message", "current_step", "metrics", "location_warnings", "file_manifest")
}

func (p *PostgresRunStore) AppendEvent(ctx context.Context, ev Event) error {
	detailsJSON, err := json.Marshal(ev.Details)
	if err != nil {
		return fmt.Errorf("store: marshal event details: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s_events (run_id, level, message, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.tableName)
	_, err = p.pool.Exec(ctx, query, ev.RunID, ev.Level, ev.Message, detailsJSON, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("store: append event: %w", err)
	}
	return nil
}

func (p *PostgresRunStore) ListEvents(ctx context.Context, runID string, limit int) ([]Event, error) {
	query := fmt.Sprintf(`
		SELECT run_id, level, message, details, occurred_at
		FROM %s_events WHERE run_id = $1 ORDER BY occurred_at ASC
	`, p.tableName)
	if limit > 0 {
		query = fmt.Sprintf(`
		SELECT run_id, level, message, details, occurred_at FROM (
			SELECT run_id, level, message, details, occurred_at
			FROM %s_events WHERE run_id = $1 ORDER BY occurred_at DESC LIMIT %d
		) recent ORDER BY occurred_at ASC
	`, p.tableName, limit)
	}
	rows, err := p.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var detailsJSON []byte
		if err := rows.Scan(&ev.RunID, &ev.Level, &ev.Message, &detailsJSON, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		if len(detailsJSON) > 0 {
			_ = json.Unmarshal(detailsJSON, &ev.Details)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// withRowLock performs BEGIN / SELECT ... FOR UPDATE / mutate / UPDATE
// (cols) / COMMIT, so MergeStep and MergeRun read-modify-write atomically
// against any other tick touching the same run.
func (p *PostgresRunStore) withRowLock(ctx context.Context, runID string, mutate func(*runRow) error, cols ...string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rr, err := p.selectRowForUpdate(ctx, tx, runID)
	if err != nil {
		return err
	}
	if err := mutate(rr); err != nil {
		return err
	}
	if err := updateRow(ctx, tx, p.tableName, rr, cols); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *PostgresRunStore) selectRow(ctx context.Context, q interface {
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}, runID string) (*runRow, error) {
	query := fmt.Sprintf(`
		SELECT run_id, status, trigger_type, started_at, finished_at, runtime_ms,
		       steps, current_step, metrics, location_warnings, warning_count,
		       file_manifest, cancel_requested, cancelled_by_user, error_message
		FROM %s WHERE run_id = $1
	`, p.tableName)
	row := q.QueryRow(ctx, query, runID)
	rr, err := scanRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, core.NewError("store.GetRun", "store", runID, "", core.ErrRunNotFound)
		}
		return nil, fmt.Errorf("store: select run: %w", err)
	}
	return rr, nil
}

func (p *PostgresRunStore) selectRowForUpdate(ctx context.Context, tx pgx.Tx, runID string) (*runRow, error) {
	query := fmt.Sprintf(`
		SELECT run_id, status, trigger_type, started_at, finished_at, runtime_ms,
		       steps, current_step, metrics, location_warnings, warning_count,
		       file_manifest, cancel_requested, cancelled_by_user, error_message
		FROM %s WHERE run_id = $1 FOR UPDATE
	`, p.tableName)
	row := tx.QueryRow(ctx, query, runID)
	rr, err := scanRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, core.NewError("store.MergeRun", "store", runID, "", core.ErrRunNotFound)
		}
		return nil, fmt.Errorf("store: select run for update: %w", err)
	}
	return rr, nil
}

func scanRow(row pgx.Row) (*runRow, error) {
	var rr runRow
	var stepsJSON, metricsJSON, locJSON, manifestJSON []byte
	if err := row.Scan(
		&rr.RunID, &rr.Status, &rr.TriggerType, &rr.StartedAt, &rr.FinishedAt, &rr.RuntimeMS,
		&stepsJSON, &rr.CurrentStep, &metricsJSON, &locJSON, &rr.WarningCount,
		&manifestJSON, &rr.CancelRequested, &rr.CancelledByUser, &rr.ErrorMessage,
	); err != nil {
		return nil, err
	}
	rr.Steps = map[string]*StepState{}
	rr.Metrics = map[string]int64{}
	rr.LocationWarnings = map[string]int64{}
	rr.FileManifest = map[string]string{}
	if len(stepsJSON) > 0 {
		_ = json.Unmarshal(stepsJSON, &rr.Steps)
	}
	if len(metricsJSON) > 0 {
		_ = json.Unmarshal(metricsJSON, &rr.Metrics)
	}
	if len(locJSON) > 0 {
		_ = json.Unmarshal(locJSON, &rr.LocationWarnings)
	}
	if len(manifestJSON) > 0 {
		_ = json.Unmarshal(manifestJSON, &rr.FileManifest)
	}
	return &rr, nil
}

func updateRow(ctx context.Context, tx pgx.Tx, table string, rr *runRow, cols []string) error {
	set := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	argN := 1
	add := func(col string, val interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, val)
		argN++
	}
	for _, col := range cols {
		switch col {
		case "current_step":
			add("current_step", rr.CurrentStep)
		case "steps":
			b, _ := json.Marshal(rr.Steps)
			add("steps", b)
		case "status":
			add("status", rr.Status)
		case "finished_at":
			add("finished_at", rr.FinishedAt)
		case "runtime_ms":
			add("runtime_ms", rr.RuntimeMS)
		case "warning_count":
			add("warning_count", rr.WarningCount)
		case "cancel_requested":
			add("cancel_requested", rr.CancelRequested)
		case "cancelled_by_user":
			add("cancelled_by_user", rr.CancelledByUser)
		case "error_message":
			add("error_message", rr.ErrorMessage)
		case "metrics":
			b, _ := json.Marshal(rr.Metrics)
			add("metrics", b)
		case "location_warnings":
			b, _ := json.Marshal(rr.LocationWarnings)
			add("location_warnings", b)
		case "file_manifest":
			b, _ := json.Marshal(rr.FileManifest)
			add("file_manifest", b)
		}
	}
	args = append(args, rr.RunID)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE run_id = $%d", table, joinSet(set), argN)
	_, err := tx.Exec(ctx, query, args...)
	return err
}

func joinSet(set []string) string {
	out := ""
	for i, s := range set {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

func rowToRecord(rr *runRow) *RunRecord {
	return &RunRecord{
		RunID:            rr.RunID,
		Status:           rr.Status,
		TriggerType:      rr.TriggerType,
		StartedAt:        rr.StartedAt,
		FinishedAt:       rr.FinishedAt,
		RuntimeMS:        rr.RuntimeMS,
		Steps:            rr.Steps,
		CurrentStep:      rr.CurrentStep,
		Metrics:          rr.Metrics,
		LocationWarnings: rr.LocationWarnings,
		WarningCount:     rr.WarningCount,
		FileManifest:     rr.FileManifest,
		CancelRequested:  rr.CancelRequested,
		CancelledByUser:  rr.CancelledByUser,
		ErrorMessage:     rr.ErrorMessage,
	}
}

func recordToRow(r *RunRecord) *runRow {
	return &runRow{
		RunID:            r.RunID,
		Status:           r.Status,
		TriggerType:      r.TriggerType,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
		RuntimeMS:        r.RuntimeMS,
		Steps:            r.Steps,
		CurrentStep:      r.CurrentStep,
		Metrics:          r.Metrics,
		LocationWarnings: r.LocationWarnings,
		WarningCount:     r.WarningCount,
		FileManifest:     r.FileManifest,
		CancelRequested:  r.CancelRequested,
		CancelledByUser:  r.CancelledByUser,
		ErrorMessage:     r.ErrorMessage,
	}
}
