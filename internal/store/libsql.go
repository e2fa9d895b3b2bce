package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/agentflow/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Workflow definitions ---

func (s *LibSQLStore) SaveDefinition(ctx context.Context, def *StoredDefinition) error {
	if def.Name == "" {
		return schema.NewError(schema.ErrCodeValidation, "definition name is empty")
	}
	raw, err := json.Marshal(def.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	inputSchema, err := nullableJSON(def.InputSchema)
	if err != nil {
		return fmt.Errorf("marshal input_schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO definitions (name, definition, input_schema, category, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   definition=excluded.definition,
		   input_schema=excluded.input_schema,
		   category=excluded.category,
		   updated_at=excluded.updated_at`,
		def.Name, string(raw), inputSchema, nullStr(def.Definition.Category),
		timeOrNow(def.CreatedAt), time.Now().UTC(),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save definition %q: %s", def.Name, err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) GetDefinition(ctx context.Context, name string) (*StoredDefinition, error) {
	d := &StoredDefinition{Name: name}
	var (
		defJSON     string
		inputSchema sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT definition, input_schema, run_count, created_at, updated_at
		 FROM definitions WHERE name = ?`, name,
	).Scan(&defJSON, &inputSchema, &d.RunCount, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("definition", name)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(defJSON), &d.Definition); err != nil {
		return nil, fmt.Errorf("unmarshal definition %q: %w", name, err)
	}
	d.InputSchema = jsonOrNil(inputSchema)
	return d, nil
}

func (s *LibSQLStore) ListDefinitions(ctx context.Context, filter DefinitionFilter) ([]*StoredDefinition, error) {
	query := `SELECT name, definition, input_schema, run_count, created_at, updated_at FROM definitions`
	var (
		conds []string
		args  []any
	)
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StoredDefinition
	for rows.Next() {
		d := &StoredDefinition{}
		var (
			defJSON     string
			inputSchema sql.NullString
		)
		if err := rows.Scan(&d.Name, &defJSON, &inputSchema, &d.RunCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(defJSON), &d.Definition); err != nil {
			return nil, fmt.Errorf("unmarshal definition %q: %w", d.Name, err)
		}
		d.InputSchema = jsonOrNil(inputSchema)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteDefinition(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM definitions WHERE name = ?`, name)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "definition", name)
}

// TouchDefinition increments a definition's run counter.
func (s *LibSQLStore) TouchDefinition(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE definitions SET run_count = run_count + 1 WHERE name = ?`, name)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "definition", name)
}

// --- Scheduled jobs ---

func (s *LibSQLStore) CreateScheduledJob(ctx context.Context, job *ScheduledJob) error {
	if job.ID == "" || job.Workflow == "" || job.CronExpression == "" {
		return schema.NewError(schema.ErrCodeValidation, "scheduled job requires id, workflow and cron_expression")
	}
	input, err := nullableJSON(job.Input)
	if err != nil {
		return fmt.Errorf("marshal job input: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs (id, workflow, cron_expression, input, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.Workflow, job.CronExpression, input, job.Enabled, timeOrNow(job.CreatedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create scheduled job %q: %s", job.ID, err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) GetScheduledJob(ctx context.Context, id string) (*ScheduledJob, error) {
	j := &ScheduledJob{}
	var (
		input     sql.NullString
		lastRunAt sql.NullTime
		lastRunSt sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workflow, cron_expression, input, enabled, last_run_at, last_run_status, created_at
		 FROM scheduled_jobs WHERE id = ?`, id,
	).Scan(&j.ID, &j.Workflow, &j.CronExpression, &input, &j.Enabled, &lastRunAt, &lastRunSt, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("scheduled job", id)
	}
	if err != nil {
		return nil, err
	}
	j.Input = jsonOrNil(input)
	if lastRunAt.Valid {
		j.LastRunAt = &lastRunAt.Time
	}
	j.LastRunStatus = lastRunSt.String
	return j, nil
}

func (s *LibSQLStore) UpdateScheduledJob(ctx context.Context, id string, update ScheduledJobUpdate) error {
	var (
		sets []string
		args []any
	)
	if update.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, *update.Enabled)
	}
	if update.LastRunAt != nil {
		sets = append(sets, "last_run_at = ?")
		args = append(args, *update.LastRunAt)
	}
	if update.LastRunStatus != "" {
		sets = append(sets, "last_run_status = ?")
		args = append(args, update.LastRunStatus)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled job", id)
}

func (s *LibSQLStore) ListScheduledJobs(ctx context.Context, filter ScheduledJobFilter) ([]*ScheduledJob, error) {
	query := `SELECT id, workflow, cron_expression, input, enabled, last_run_at, last_run_status, created_at FROM scheduled_jobs`
	var args []any
	if filter.Enabled != nil {
		query += " WHERE enabled = ?"
		args = append(args, *filter.Enabled)
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScheduledJob
	for rows.Next() {
		j := &ScheduledJob{}
		var (
			input     sql.NullString
			lastRunAt sql.NullTime
			lastRunSt sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.Workflow, &j.CronExpression, &input, &j.Enabled, &lastRunAt, &lastRunSt, &j.CreatedAt); err != nil {
			return nil, err
		}
		j.Input = jsonOrNil(input)
		if lastRunAt.Valid {
			j.LastRunAt = &lastRunAt.Time
		}
		j.LastRunStatus = lastRunSt.String
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteScheduledJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled job", id)
}

// --- Run archive ---

func (s *LibSQLStore) ArchiveRun(ctx context.Context, run *ArchivedRun) error {
	if run.RunID == "" {
		return schema.NewError(schema.ErrCodeValidation, "run_id is empty")
	}
	record, err := nullableJSON(run.Record)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	if record == nil {
		record = "{}"
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, workflow, status, record, duration_ms, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Workflow, run.Status, record, run.DurationMs, timeOrNow(run.CompletedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "archive run %q: %s", run.RunID, err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) GetRun(ctx context.Context, runID string) (*ArchivedRun, error) {
	r := &ArchivedRun{}
	var record string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, workflow, status, record, duration_ms, completed_at FROM runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &r.Workflow, &r.Status, &record, &r.DurationMs, &r.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("run", runID)
	}
	if err != nil {
		return nil, err
	}
	r.Record = json.RawMessage(record)
	return r, nil
}

func (s *LibSQLStore) ListRuns(ctx context.Context, filter RunFilter) ([]*ArchivedRun, error) {
	query := `SELECT run_id, workflow, status, record, duration_ms, completed_at FROM runs`
	var (
		conds []string
		args  []any
	)
	if filter.Workflow != "" {
		conds = append(conds, "workflow = ?")
		args = append(args, filter.Workflow)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Since != nil {
		conds = append(conds, "completed_at >= ?")
		args = append(args, *filter.Since)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY completed_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ArchivedRun
	for rows.Next() {
		r := &ArchivedRun{}
		var record string
		if err := rows.Scan(&r.RunID, &r.Workflow, &r.Status, &record, &r.DurationMs, &r.CompletedAt); err != nil {
			return nil, err
		}
		r.Record = json.RawMessage(record)
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func jsonOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func nullableJSON(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid JSON payload")
	}
	return string(raw), nil
}

var _ Store = (*LibSQLStore)(nil)
