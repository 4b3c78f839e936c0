package postgres

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"xbasis/internal/application/port"
	"xbasis/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
  id BIGSERIAL PRIMARY KEY,
  started_at TIMESTAMPTZ NOT NULL,
  duration_ms BIGINT NOT NULL,
  candidates INTEGER NOT NULL,
  results INTEGER NOT NULL,
  subscribers INTEGER NOT NULL,
  delivered INTEGER NOT NULL,
  failed_feeds TEXT NOT NULL,
  err TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);
`)
	return err
}

func (r *Repo) RecordCycle(ctx context.Context, rec model.CycleRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cycles(started_at, duration_ms, candidates, results, subscribers, delivered, failed_feeds, err)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.StartedAt, rec.Duration.Milliseconds(), rec.Candidates, rec.Results,
		rec.Subscribers, rec.Delivered, strings.Join(rec.FailedFeeds, ","), rec.Err)
	return err
}

var _ port.CycleRecorder = (*Repo)(nil)
