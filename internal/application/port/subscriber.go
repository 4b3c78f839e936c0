package port

import "context"

// Subscriber 一个实时推送通道
type Subscriber interface {
	// Send writes one payload. Implementations honour the ctx deadline.
	Send(ctx context.Context, payload []byte) error
	// Close releases the channel; safe to call more than once.
	Close() error
}
