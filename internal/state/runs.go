package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

// RunRecord is one stored run summary.
type RunRecord struct {
	ID            string           `json:"id"`
	Status        models.RunStatus `json:"status"`
	Completed     int              `json:"completed"`
	Failed        int              `json:"failed"`
	Skipped       int              `json:"skipped"`
	CostEstimated float64          `json:"cost_estimated"`
	CostCompleted float64          `json:"cost_completed"`
	WorkerCalls   int              `json:"worker_calls"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    *time.Time       `json:"finished_at"`
}

// TaskRecord is one stored per-task outcome.
type TaskRecord struct {
	RunID      string            `json:"run_id"`
	TaskID     string            `json:"task_id"`
	Capability string            `json:"capability"`
	Status     models.TaskStatus `json:"status"`
	Error      string            `json:"error,omitempty"`
	SkipReason string            `json:"skip_reason,omitempty"`
}

// SaveRun stores a finished run and its per-task outcomes.
func (db *DB) SaveRun(result *models.ExecutionResult, tasks []*models.Task) error {
	finished := formatTime(result.FinishedAt)
	_, err := db.Exec(`
		INSERT INTO runs (id, status, completed, failed, skipped, cost_estimated, cost_completed, worker_calls, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.RunID, string(result.Status), result.Completed, result.Failed, result.Skipped,
		result.Usage.CostUnitsEstimated, result.Usage.CostUnitsCompleted, result.Usage.WorkerCalls,
		formatTime(result.StartedAt), finished)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	for _, task := range tasks {
		_, err := db.Exec(`
			INSERT INTO run_tasks (run_id, task_id, capability, status, error, skip_reason)
			VALUES (?, ?, ?, ?, ?, ?)
		`, result.RunID, task.ID, task.Capability, string(task.Status), task.Error, task.SkipReason)
		if err != nil {
			return fmt.Errorf("save run task %s: %w", task.ID, err)
		}
	}
	return nil
}

// GetRun retrieves a run by ID, or nil when not found.
func (db *DB) GetRun(id string) (*RunRecord, error) {
	row := db.QueryRow(`
		SELECT id, status, completed, failed, skipped, cost_estimated, cost_completed, worker_calls, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	var (
		r          RunRecord
		startedAt  string
		finishedAt sql.NullString
	)
	err := row.Scan(&r.ID, &r.Status, &r.Completed, &r.Failed, &r.Skipped,
		&r.CostEstimated, &r.CostCompleted, &r.WorkerCalls, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// ListRuns lists stored runs, most recent first.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, status, completed, failed, skipped, cost_estimated, cost_completed, worker_calls, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r          RunRecord
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Status, &r.Completed, &r.Failed, &r.Skipped,
			&r.CostEstimated, &r.CostCompleted, &r.WorkerCalls, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = parseTime(startedAt)
		r.FinishedAt = parseNullableTime(finishedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunTasks lists the stored per-task outcomes for a run.
func (db *DB) RunTasks(runID string) ([]TaskRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, task_id, capability, status, error, skip_reason
		FROM run_tasks WHERE run_id = ? ORDER BY task_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var (
			t          TaskRecord
			errMsg     sql.NullString
			skipReason sql.NullString
		)
		if err := rows.Scan(&t.RunID, &t.TaskID, &t.Capability, &t.Status, &errMsg, &skipReason); err != nil {
			return nil, fmt.Errorf("scan run task: %w", err)
		}
		t.Error = errMsg.String
		t.SkipReason = skipReason.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// PurgeOldRuns deletes runs older than the specified duration.
// Returns the number of runs deleted.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.Exec("DELETE FROM runs WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}
	return result.RowsAffected()
}
