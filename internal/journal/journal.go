// Package journal keeps an sqlite record of delivery outcomes per tick, for
// post-mortem of sink availability. Reading values are not stored.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloudpico-sensorsim/internal/types"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// ChannelSummary counts recorded attempts for one channel.
type ChannelSummary struct {
	Channel   types.Channel `json:"channel"`
	OK        int64         `json:"ok"`
	Failed    int64         `json:"failed"`
	LastError string        `json:"last_error,omitempty"`
}

// Open opens (creating if needed) the journal at path and applies pending
// migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(newTraceConnector(dsn, logger))
	// One writer; the driver serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal ping: %w", err)
	}
	if err := migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal migrate: %w", err)
	}

	return &Journal{db: db, logger: logger}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record stores one tick's outcomes in a single transaction.
func (j *Journal) Record(ctx context.Context, tickID string, at time.Time, outcomes []types.Outcome) error {
	if tickID == "" {
		return errors.New("tick id is required")
	}
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := at.UTC().Format(timeLayout)
	for _, o := range outcomes {
		var errText sql.NullString
		if o.Err != nil {
			errText = sql.NullString{String: o.Err.Error(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO deliveries (tick_id, at, channel, ok, error) VALUES (?, ?, ?, ?, ?)`,
			tickID, ts, string(o.Channel), o.OK, errText,
		); err != nil {
			return fmt.Errorf("insert %s: %w", o.Channel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Summary returns per-channel counts, ordered by channel name.
func (j *Journal) Summary(ctx context.Context) ([]ChannelSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT d.channel,
		       SUM(d.ok),
		       SUM(1 - d.ok),
		       (SELECT e.error FROM deliveries e
		         WHERE e.channel = d.channel AND e.ok = 0
		         ORDER BY e.id DESC LIMIT 1)
		  FROM deliveries d
		 GROUP BY d.channel
		 ORDER BY d.channel`)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	out := []ChannelSummary{}
	for rows.Next() {
		var (
			s       ChannelSummary
			channel string
			lastErr sql.NullString
		)
		if err := rows.Scan(&channel, &s.OK, &s.Failed, &lastErr); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.Channel = types.Channel(channel)
		s.LastError = lastErr.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func buildDSN(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("journal path is required")
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
