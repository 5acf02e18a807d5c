package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/command"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/database"
)

// Journal query limits.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// createdAtFormat is fixed-width so timestamps sort lexically.
const createdAtFormat = "2006-01-02T15:04:05.000000Z07:00"

// Record is one row of the command journal.
type Record struct {
	ID         int64          `json:"id"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
	Success    bool           `json:"success"`
	Changes    map[string]any `json:"changes"`
	Error      string         `json:"error,omitempty"`
	Source     string         `json:"source"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Journal stores executed commands in the command_history table.
// It implements command.Recorder.
type Journal struct {
	db *database.DB
}

// NewJournal creates a journal over a migrated database.
func NewJournal(db *database.DB) *Journal {
	return &Journal{db: db}
}

// Record appends one entry.
func (j *Journal) Record(ctx context.Context, e command.Entry) error {
	params, err := json.Marshal(orEmpty(e.Parameters))
	if err != nil {
		return fmt.Errorf("encoding parameters: %w", err)
	}
	changes, err := json.Marshal(orEmpty(e.Result.Changes))
	if err != nil {
		return fmt.Errorf("encoding changes: %w", err)
	}

	var errText any
	if e.Result.Error != "" {
		errText = e.Result.Error
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO command_history (action, parameters, success, changes, error, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Action, string(params), e.Result.Success, string(changes), errText, string(e.Source),
		e.At.UTC().Format(createdAtFormat),
	)
	if err != nil {
		return fmt.Errorf("recording command: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first. limit is clamped to
// 1..MaxHistoryLimit; zero or negative means DefaultHistoryLimit.
func (j *Journal) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, action, parameters, success, changes, COALESCE(error, ''), source, created_at
		FROM command_history
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing commands: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		var params, changes, createdAt string
		if err := rows.Scan(&r.ID, &r.Action, &params, &r.Success, &changes, &r.Error, &r.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command row: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &r.Parameters); err != nil {
			return nil, fmt.Errorf("decoding parameters of %d: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(changes), &r.Changes); err != nil {
			return nil, fmt.Errorf("decoding changes of %d: %w", r.ID, err)
		}
		r.CreatedAt, _ = time.Parse(createdAtFormat, createdAt) //nolint:errcheck // Format is controlled
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating commands: %w", err)
	}
	return records, nil
}

// Prune deletes entries created before cutoff and reports how many went.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		"DELETE FROM command_history WHERE created_at < ?",
		cutoff.UTC().Format(createdAtFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning commands: %w", err)
	}
	return res.RowsAffected()
}

// RunRetention prunes entries older than retention once per interval
// until ctx is cancelled. A non-positive retention disables pruning.
func (j *Journal) RunRetention(ctx context.Context, retention, interval time.Duration, logger Logger) {
	if retention <= 0 {
		return
	}
	if logger == nil {
		logger = noopLogger{}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := j.Prune(ctx, time.Now().Add(-retention))
		switch {
		case err != nil:
			logger.Warn("journal prune failed", "error", err)
		case n > 0:
			logger.Info("journal pruned", "deleted", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
