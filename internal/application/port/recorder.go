package port

import (
	"context"

	"xbasis/internal/domain/model"
)

// CycleRecorder stores one audit row per broadcast cycle.
type CycleRecorder interface {
	RecordCycle(ctx context.Context, rec model.CycleRecord) error

	// Connection management
	Close() error
}
