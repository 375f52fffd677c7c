// Package device provides synthetic audio devices: a tone-generating
// input and a timing-faithful silent output. They stand in for real
// hardware in soak runs and examples; production embedders supply their
// own capture.Device and playback.Device implementations.
package device

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/crosstalk-ai/crosstalk/internal/capture"
)

// ErrReleased is returned by Read after the stream has been released.
var ErrReleased = errors.New("device stream released")

// ToneInput is a synthetic input device producing a fixed-frequency sine
// tone at the configured sample rate, paced in real time.
type ToneInput struct {
	SampleRate int
	Frequency  float64 // Hz; 0 produces silence
	Amplitude  float64 // 0..1
}

// Acquire opens a tone stream. It never fails; use FailingInput to
// exercise the device-error path.
func (d *ToneInput) Acquire(ctx context.Context) (capture.Stream, error) {
	rate := d.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	return &ToneStream{
		rate:      rate,
		freq:      d.Frequency,
		amplitude: d.Amplitude,
		released:  make(chan struct{}),
	}, nil
}

// ToneStream is a live tone capture stream.
type ToneStream struct {
	rate      int
	freq      float64
	amplitude float64
	phase     float64

	mu       sync.Mutex
	released chan struct{}
	done     bool
}

// Read fills p with tone samples, sleeping to match the real-time cadence
// of a hardware microphone.
func (s *ToneStream) Read(p []float32) (int, error) {
	wait := time.Duration(float64(len(p)) / float64(s.rate) * float64(time.Second))
	select {
	case <-s.released:
		return 0, ErrReleased
	case <-time.After(wait):
	}

	step := 2 * math.Pi * s.freq / float64(s.rate)
	for i := range p {
		p[i] = float32(s.amplitude * math.Sin(s.phase))
		s.phase += step
	}
	return len(p), nil
}

// Release ends the stream; subsequent Reads fail with ErrReleased.
func (s *ToneStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.done = true
		close(s.released)
	}
	return nil
}
