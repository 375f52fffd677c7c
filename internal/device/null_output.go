package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crosstalk-ai/crosstalk/internal/audio"
	"github.com/crosstalk-ai/crosstalk/internal/capture"
	"github.com/crosstalk-ai/crosstalk/internal/playback"
)

// FailingInput is an input device whose acquisition always fails.
// Exercises the microphone-unavailable path end to end.
type FailingInput struct {
	Reason string
}

// Acquire always returns an error.
func (d *FailingInput) Acquire(ctx context.Context) (capture.Stream, error) {
	reason := d.Reason
	if reason == "" {
		reason = "permission denied"
	}
	return nil, fmt.Errorf("acquire input: %s", reason)
}

// NullOutput is a silent output device with a real monotonic clock.
// Segments "play" for their true duration and complete on schedule, so
// playback timing behaves exactly as against real hardware.
type NullOutput struct {
	epoch    time.Time
	epochSet sync.Once
}

// Now returns the device's monotonic clock.
func (d *NullOutput) Now() time.Duration {
	d.epochSet.Do(func() { d.epoch = time.Now() })
	return time.Since(d.epoch)
}

// Schedule arms a timer for the segment's natural end. done fires once
// when the segment finishes; cancelling first suppresses it.
func (d *NullOutput) Schedule(buf *audio.PlaybackBuffer, startAt time.Duration, done func()) (playback.Handle, error) {
	delay := startAt + buf.Duration() - d.Now()
	if delay < 0 {
		delay = 0
	}

	h := &nullHandle{}
	h.timer = time.AfterFunc(delay, func() {
		h.mu.Lock()
		finished := !h.cancelled
		h.mu.Unlock()
		if finished {
			done()
		}
	})
	return h, nil
}

type nullHandle struct {
	mu        sync.Mutex
	timer     *time.Timer
	cancelled bool
}

// Cancel stops the segment. A no-op when it already finished.
func (h *nullHandle) Cancel() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
	h.timer.Stop()
}
