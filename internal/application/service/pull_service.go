package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"xbasis/internal/domain/model"
	"xbasis/internal/metrics"
)

// pullGrace is added on top of the feed timeout so a cycle whose feeds all
// time out still gets to report it.
const pullGrace = 2 * time.Second

// Computer produces a fresh snapshot per call.
type Computer interface {
	Compute(ctx context.Context) (model.Snapshot, error)
}

// PullService 按需同步计算，不做跨请求缓存
type PullService struct {
	engine  Computer
	timeout time.Duration
	now     func() time.Time
}

// NewPullService bounds every request by feedTimeout plus a small grace.
func NewPullService(engine Computer, feedTimeout time.Duration) *PullService {
	if feedTimeout <= 0 {
		feedTimeout = DefaultFeedTimeout
	}
	return &PullService{
		engine:  engine,
		timeout: feedTimeout + pullGrace,
		now:     time.Now,
	}
}

// Basis returns the pull envelope. limit > 0 caps the result to the top entries.
// Failures never escape: they come back as success=false with empty data.
func (s *PullService) Basis(ctx context.Context, limit int) model.PullEnvelope {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snap, err := s.engine.Compute(ctx)
	if err != nil {
		metrics.PullRequestsTotal.WithLabelValues("failed").Inc()
		if errors.Is(err, ErrAllFeedsFailed) {
			log.Warn().Strs("failed_feeds", snap.FailedFeeds).Msg("pull: all feeds failed")
		} else {
			log.Error().Err(err).Msg("pull: compute failed")
		}
		return model.FailedPullEnvelope(s.now(), err)
	}

	metrics.PullRequestsTotal.WithLabelValues("ok").Inc()
	return model.NewPullEnvelope(snap.Timestamp, snap.Top(limit))
}
