package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/encoding/json"
	"golang.org/x/sync/errgroup"

	"xbasis/internal/application/port"
	"xbasis/internal/domain/model"
	"xbasis/internal/metrics"
)

// ErrHubClosed is returned by Register after Close.
var ErrHubClosed = errors.New("broadcast hub closed")

// Observed defaults.
const (
	DefaultInterval        = 10 * time.Second
	DefaultIdleInterval    = 1 * time.Second
	DefaultBackoff         = 5 * time.Second
	DefaultSendTimeout     = 2 * time.Second
	DefaultSendConcurrency = 32

	recordTimeout = 3 * time.Second
)

// Engine produces one snapshot per call.
type Engine interface {
	Compute(ctx context.Context) (model.Snapshot, error)
}

// Options 广播参数，零值使用默认值
type Options struct {
	Interval        time.Duration // between broadcast cycles
	IdleInterval    time.Duration // poll period while nobody is subscribed
	Backoff         time.Duration // wait after a failed cycle
	SendTimeout     time.Duration // per subscriber send
	SendConcurrency int

	Clock    clockwork.Clock
	Relays   []port.Relay
	Recorder port.CycleRecorder // optional
}

func (o *Options) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.IdleInterval <= 0 {
		o.IdleInterval = DefaultIdleInterval
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = DefaultSendTimeout
	}
	if o.SendConcurrency <= 0 {
		o.SendConcurrency = DefaultSendConcurrency
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

// Hub 持有订阅者注册表，并周期性地把最新快照推送给所有订阅者
type Hub struct {
	engine Engine
	reg    *Registry
	opts   Options
}

func NewHub(engine Engine, opts Options) *Hub {
	opts.applyDefaults()
	return &Hub{
		engine: engine,
		reg:    NewRegistry(),
		opts:   opts,
	}
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int { return h.reg.Len() }

// Register adds sub and immediately delivers a fresh snapshot to it, without
// waiting for the next cycle. If that first send fails the subscriber is
// dropped again and the error returned.
func (h *Hub) Register(ctx context.Context, sub port.Subscriber) (uuid.UUID, error) {
	id, err := h.reg.Add(sub)
	if err != nil {
		_ = sub.Close()
		return uuid.Nil, err
	}
	log.Info().Str("subscriber", id.String()).Int("total", h.reg.Len()).Msg("subscriber registered")

	snap, err := h.engine.Compute(ctx)
	if err != nil {
		// still answer right away; the next cycle retries
		log.Warn().Err(err).Str("subscriber", id.String()).Msg("initial snapshot compute failed, sending empty snapshot")
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = h.opts.Clock.Now()
	}
	payload, err := json.Marshal(model.NewPushEnvelope(model.EnvelopeInitial, ts, snap.Tickers))
	if err != nil {
		h.Deregister(id)
		return uuid.Nil, fmt.Errorf("encode initial snapshot: %w", err)
	}

	if err := h.send(ctx, sub, payload); err != nil {
		metrics.SendFailuresTotal.Inc()
		log.Warn().Err(err).Str("subscriber", id.String()).Msg("initial send failed")
		h.Deregister(id)
		return uuid.Nil, fmt.Errorf("initial send: %w", err)
	}
	return id, nil
}

// Deregister removes and closes the subscriber. Unknown IDs are ignored.
func (h *Hub) Deregister(id uuid.UUID) {
	sub, ok := h.reg.Remove(id)
	if !ok {
		return
	}
	if err := sub.Close(); err != nil {
		log.Debug().Err(err).Str("subscriber", id.String()).Msg("subscriber close")
	}
	log.Info().Str("subscriber", id.String()).Int("total", h.reg.Len()).Msg("subscriber removed")
}

// Close rejects further registrations and closes every subscriber.
func (h *Hub) Close() {
	subs := h.reg.Drain()
	for _, sub := range subs {
		_ = sub.Close()
	}
	log.Info().Int("closed", len(subs)).Msg("broadcast hub closed")
}

// Run drives the broadcast cycle until ctx is cancelled. A failed compute or
// send never stops the loop.
func (h *Hub) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", h.opts.Interval).
		Dur("send_timeout", h.opts.SendTimeout).
		Msg("broadcast loop started")

	for {
		wait := h.step(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.opts.Clock.After(wait):
		}
	}
}

// step runs at most one cycle and returns how long to wait before the next.
func (h *Hub) step(ctx context.Context) (wait time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("broadcast cycle panic recovered")
			metrics.BroadcastCyclesTotal.WithLabelValues("failed").Inc()
			wait = h.opts.Backoff
		}
	}()

	if h.reg.Len() == 0 {
		metrics.BroadcastCyclesTotal.WithLabelValues("idle").Inc()
		return h.opts.IdleInterval
	}

	rec, err := h.Cycle(ctx)
	h.record(rec)
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		metrics.BroadcastCyclesTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Dur("backoff", h.opts.Backoff).Msg("broadcast cycle failed")
		return h.opts.Backoff
	}

	metrics.BroadcastCyclesTotal.WithLabelValues("sent").Inc()
	log.Info().
		Int("count", rec.Results).
		Int("subscribers", rec.Subscribers).
		Int("delivered", rec.Delivered).
		Dur("took", rec.Duration).
		Msg("broadcast done")

	// keep a fixed cadence regardless of how long the cycle took
	if wait = h.opts.Interval - rec.Duration; wait < 0 {
		wait = 0
	}
	return wait
}

// Cycle computes one snapshot, encodes it once and sends the identical payload
// to every registered subscriber. Subscribers whose send fails are dropped;
// the rest of the fan-out is unaffected.
func (h *Hub) Cycle(ctx context.Context) (model.CycleRecord, error) {
	start := h.opts.Clock.Now()
	rec := model.CycleRecord{StartedAt: start}
	defer func() { metrics.BroadcastDuration.Observe(h.opts.Clock.Since(start).Seconds()) }()

	snap, err := h.engine.Compute(ctx)
	rec.Candidates = snap.Candidates
	rec.FailedFeeds = snap.FailedFeeds
	if err != nil {
		rec.Err = err.Error()
		rec.Duration = h.opts.Clock.Since(start)
		return rec, err
	}

	env := model.NewPushEnvelope(model.EnvelopeUpdate, snap.Timestamp, snap.Tickers)
	payload, err := json.Marshal(env)
	if err != nil {
		rec.Err = err.Error()
		rec.Duration = h.opts.Clock.Since(start)
		return rec, fmt.Errorf("encode snapshot: %w", err)
	}
	rec.Results = env.TotalCount

	members := h.reg.members()
	rec.Subscribers = len(members)
	rec.Delivered = h.fanout(ctx, members, payload)
	h.relay(ctx, env, payload)

	rec.Duration = h.opts.Clock.Since(start)
	return rec, nil
}

func (h *Hub) fanout(ctx context.Context, members []entry, payload []byte) int {
	var (
		delivered atomic.Int64
		g         errgroup.Group
	)
	g.SetLimit(h.opts.SendConcurrency)

	for _, m := range members {
		m := m
		g.Go(func() error {
			if err := h.send(ctx, m.sub, payload); err != nil {
				metrics.SendFailuresTotal.Inc()
				log.Warn().Err(err).Str("subscriber", m.id.String()).Msg("broadcast send failed, dropping subscriber")
				h.Deregister(m.id)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(delivered.Load())
}

func (h *Hub) send(ctx context.Context, sub port.Subscriber, payload []byte) error {
	cctx, cancel := context.WithTimeout(ctx, h.opts.SendTimeout)
	defer cancel()
	return sub.Send(cctx, payload)
}

func (h *Hub) relay(ctx context.Context, env model.PushEnvelope, payload []byte) {
	for _, r := range h.opts.Relays {
		cctx, cancel := context.WithTimeout(ctx, h.opts.SendTimeout)
		err := r.Publish(cctx, env, payload)
		cancel()
		if err != nil {
			metrics.RelayFailuresTotal.WithLabelValues(r.Name()).Inc()
			log.Warn().Err(err).Str("relay", r.Name()).Msg("relay publish failed")
		}
	}
}

func (h *Hub) record(rec model.CycleRecord) {
	if h.opts.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := h.opts.Recorder.RecordCycle(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("cycle record failed")
	}
}
