package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/tracking/metrics"
)

// sequence numbers every event of the process. It is never persisted.
var sequence atomic.Uint64

// Emitter writes events as newline-delimited JSON. Each event is written
// with a single Write call while holding the lock, so lines never interleave
// and sequence order matches output order.
type Emitter struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewEmitter creates an emitter writing to w.
func NewEmitter(w io.Writer, now func() time.Time) *Emitter {
	if now == nil {
		now = time.Now
	}
	return &Emitter{w: w, now: now}
}

// Emit writes one event and returns it.
func (e *Emitter) Emit(t domain.EventType, payload any) (domain.StreamEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev := domain.StreamEvent{
		Type:      t,
		Sequence:  sequence.Add(1),
		Timestamp: e.now().UTC(),
		Payload:   payload,
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return ev, fmt.Errorf("failed to marshal %s event: %w", t, err)
	}
	line = append(line, '\n')
	if _, err := e.w.Write(line); err != nil {
		return ev, fmt.Errorf("failed to write %s event: %w", t, err)
	}
	metrics.EventsEmitted.WithLabelValues(string(t)).Inc()
	return ev, nil
}
