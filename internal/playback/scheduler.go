package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/crosstalk-ai/crosstalk/internal/audio"
	"github.com/crosstalk-ai/crosstalk/internal/observability"
	"github.com/rs/zerolog"
)

// Handle controls one scheduled segment on the output device.
// Cancel must be a no-op once the segment has finished naturally.
type Handle interface {
	Cancel()
}

// Device is the output side of the audio hardware: a monotonic clock plus
// a buffer-scheduling primitive. done fires exactly once when the segment
// finishes playing naturally (not when it is cancelled).
type Device interface {
	Now() time.Duration
	Schedule(buf *audio.PlaybackBuffer, startAt time.Duration, done func()) (Handle, error)
}

// Scheduler plays decoded segments back-to-back against the device clock.
// Segments never overlap and always play in enqueue order; the shared
// next-start clock is advanced only here.
type Scheduler struct {
	dev    Device
	logger zerolog.Logger

	mu        sync.Mutex
	nextStart time.Duration
	live      map[uint64]Handle
	seq       uint64
}

// NewScheduler creates a scheduler bound to an output device.
func NewScheduler(dev Device, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		dev:    dev,
		logger: logger,
		live:   make(map[uint64]Handle),
	}
}

// Enqueue decodes raw PCM bytes and schedules them to start at the later
// of the playback clock and the device's current time, then advances the
// clock by the segment duration. Arrival jitter therefore never reorders
// segments or opens gaps between them.
func (s *Scheduler) Enqueue(data []byte, rate int) error {
	buf, err := audio.DecodePCM16(data, rate)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	startAt := s.dev.Now()
	if s.nextStart > startAt {
		startAt = s.nextStart
	}

	s.seq++
	id := s.seq
	handle, err := s.dev.Schedule(buf, startAt, func() {
		s.mu.Lock()
		// Late completions for segments already cancelled by StopAll are
		// ignored; the id is no longer in the live set.
		delete(s.live, id)
		s.mu.Unlock()
	})
	if err != nil {
		return fmt.Errorf("enqueue: schedule segment: %w", err)
	}

	s.live[id] = handle
	s.nextStart = startAt + buf.Duration()
	observability.RecordPlaybackSegment(buf.Duration().Seconds())

	s.logger.Debug().
		Int("samples", len(buf.Samples)).
		Int("rate", rate).
		Dur("start_at", startAt).
		Msg("Scheduled playback segment")
	return nil
}

// StopAll halts every live segment immediately and resets the playback
// clock to the device's current time so the next Enqueue starts right
// away instead of honoring stale scheduling. Safe to call at any time,
// including mid-segment; stopping an already-finished segment is a no-op.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, handle := range s.live {
		handle.Cancel()
		delete(s.live, id)
	}
	s.nextStart = s.dev.Now()
}

// Idle reports whether no segments are currently scheduled or playing.
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live) == 0
}

// NextStart returns the playback clock, the earliest time a newly
// enqueued segment would begin.
func (s *Scheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}
