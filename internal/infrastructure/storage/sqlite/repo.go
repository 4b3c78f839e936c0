package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"xbasis/internal/application/port"
	"xbasis/internal/domain/model"
)

// Repo 周期审计表（只记录周期元数据，不存行情）
type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS cycles (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  started_ms INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL,
  candidates INTEGER NOT NULL,
  results INTEGER NOT NULL,
  subscribers INTEGER NOT NULL,
  delivered INTEGER NOT NULL,
  failed_feeds TEXT NOT NULL,
  err TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_ms);
`)
	return err
}

func (r *Repo) RecordCycle(ctx context.Context, rec model.CycleRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cycles(started_ms, duration_ms, candidates, results, subscribers, delivered, failed_feeds, err, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.StartedAt.UnixMilli(), rec.Duration.Milliseconds(), rec.Candidates, rec.Results,
		rec.Subscribers, rec.Delivered, strings.Join(rec.FailedFeeds, ","), rec.Err, time.Now().UnixMilli())
	return err
}

// RecentCycles returns up to limit rows, newest first.
func (r *Repo) RecentCycles(ctx context.Context, limit int) ([]model.CycleRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT started_ms, duration_ms, candidates, results, subscribers, delivered, failed_feeds, err
		FROM cycles ORDER BY started_ms DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CycleRecord
	for rows.Next() {
		var (
			rec                model.CycleRecord
			startedMs, durMs   int64
			failedFeeds, errTx string
		)
		if err := rows.Scan(&startedMs, &durMs, &rec.Candidates, &rec.Results, &rec.Subscribers, &rec.Delivered, &failedFeeds, &errTx); err != nil {
			return nil, err
		}
		rec.StartedAt = time.UnixMilli(startedMs)
		rec.Duration = time.Duration(durMs) * time.Millisecond
		if failedFeeds != "" {
			rec.FailedFeeds = strings.Split(failedFeeds, ",")
		}
		rec.Err = errTx
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ port.CycleRecorder = (*Repo)(nil)
