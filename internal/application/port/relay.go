package port

import (
	"context"

	"xbasis/internal/domain/model"
)

// Relay receives every broadcast snapshot besides the live subscribers
// (console line, redis channel). Failures are logged by the caller and never
// affect subscriber delivery.
type Relay interface {
	Name() string
	Publish(ctx context.Context, env model.PushEnvelope, payload []byte) error
}
