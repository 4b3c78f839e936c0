package composite

import (
	"context"

	"xbasis/internal/application/port"
	"xbasis/internal/domain/model"
)

// Repo fans one cycle record out to every backend.
type Repo struct {
	repos []port.CycleRecorder
}

func New(repos ...port.CycleRecorder) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.CycleRecorder, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

// Len reports how many backends are attached.
func (r *Repo) Len() int { return len(r.repos) }

func (r *Repo) RecordCycle(ctx context.Context, rec model.CycleRecord) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.RecordCycle(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) Close() error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.CycleRecorder = (*Repo)(nil)
