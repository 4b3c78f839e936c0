package redis

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"xbasis/internal/application/port"
	"xbasis/internal/domain/model"
)

// Relay 将每次广播的快照 PUBLISH 到 redis 频道，供其他进程订阅
// Nothing is stored; late subscribers only see later cycles.
type Relay struct {
	rdb     *redis.Client
	channel string
}

func New(rdb *redis.Client, channel string) *Relay {
	if strings.TrimSpace(channel) == "" {
		channel = "xbasis:snapshots"
	}
	return &Relay{rdb: rdb, channel: channel}
}

func (r *Relay) Name() string { return "redis" }

func (r *Relay) Channel() string { return r.channel }

// Publish sends the already encoded envelope verbatim.
func (r *Relay) Publish(ctx context.Context, env model.PushEnvelope, payload []byte) error {
	return r.rdb.Publish(ctx, r.channel, payload).Err()
}

var _ port.Relay = (*Relay)(nil)
