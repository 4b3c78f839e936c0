package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"xbasis/internal/application/port"
	"xbasis/internal/domain/model"
)

// Sink prints each broadcast as a single console line.
type Sink struct {
	mu  sync.Mutex
	out io.Writer
	f   *Formatter
}

func NewSink(out io.Writer, f *Formatter) *Sink {
	if out == nil {
		out = os.Stdout
	}
	if f == nil {
		f = NewFormatter(0, 0, nil)
	}
	return &Sink{out: out, f: f}
}

func (s *Sink) Name() string { return "console" }

func (s *Sink) Publish(ctx context.Context, env model.PushEnvelope, payload []byte) error {
	line := s.f.Render(env)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "%s %s\n", env.Timestamp, line)
	return err
}

var _ port.Relay = (*Sink)(nil)
