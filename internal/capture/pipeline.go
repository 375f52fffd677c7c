package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/crosstalk-ai/crosstalk/internal/audio"
	"github.com/crosstalk-ai/crosstalk/internal/observability"
	"github.com/rs/zerolog"
)

// ErrDeviceUnavailable wraps input device acquisition failures so callers
// can surface them as a microphone problem rather than a session fault.
var ErrDeviceUnavailable = errors.New("input device unavailable")

// Device grants access to a capture source (the microphone).
type Device interface {
	// Acquire opens the device and returns a live sample stream. The
	// stream is exclusively owned by the caller until Release.
	Acquire(ctx context.Context) (Stream, error)
}

// Stream delivers mono float samples at the device's fixed rate.
type Stream interface {
	// Read fills p with captured samples and returns how many were
	// written. Blocks until samples are available or the stream ends.
	Read(p []float32) (int, error)
	// Release disconnects the tap and frees the hardware resource.
	Release() error
}

// OnFrame receives one encoded frame per captured, unmuted frame, in
// capture order.
type OnFrame func(audio.Chunk)

// Pipeline pulls fixed-size frames from an input device, applies the mute
// gate, encodes each frame, and hands it to the session's outbound path.
type Pipeline struct {
	frameSize int
	logger    zerolog.Logger

	mu      sync.Mutex
	stream  Stream
	done    chan struct{}
	running bool

	muteMu    sync.RWMutex
	mutedFlag bool
}

// NewPipeline creates a capture pipeline emitting frames of frameSize
// samples.
func NewPipeline(frameSize int, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		frameSize: frameSize,
		logger:    logger,
	}
}

// Start acquires the device and begins pumping frames into onFrame.
// Returns ErrDeviceUnavailable (wrapped) when the device cannot be
// acquired.
func (p *Pipeline) Start(ctx context.Context, dev Device, onFrame OnFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("capture pipeline already running")
	}

	stream, err := dev.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	p.stream = stream
	p.done = make(chan struct{})
	p.running = true

	go p.pump(stream, p.done, onFrame)

	p.logger.Info().Int("frame_size", p.frameSize).Msg("Capture pipeline started")
	return nil
}

// pump is the single reader goroutine; one reader means frames reach
// onFrame in strict capture order with no reordering or cross-call
// buffering.
func (p *Pipeline) pump(stream Stream, done chan struct{}, onFrame OnFrame) {
	assembler := audio.NewFrameAssembler(p.frameSize)
	scratch := make([]float32, p.frameSize)

	for {
		select {
		case <-done:
			return
		default:
		}

		n, err := stream.Read(scratch)
		if err != nil {
			select {
			case <-done:
				// Read failures after Stop are expected; the stream was
				// released underneath the reader.
			default:
				p.logger.Warn().Err(err).Msg("Capture stream read failed")
			}
			return
		}
		if n == 0 {
			continue
		}

		assembler.Push(scratch[:n])
		for {
			frame := assembler.NextFrame()
			if frame == nil {
				break
			}
			observability.SetInputLevel(audio.RMS(frame))
			if p.Muted() {
				continue // dropped before encoding; the device keeps running
			}
			chunk := audio.EncodePCM16(frame)
			observability.RecordCaptureFrame(int64(len(frame) * 2))
			onFrame(chunk)
		}
	}
}

// Stop disconnects the device tap and releases the microphone. Idempotent
// and safe to call while a read is in flight.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	close(p.done)

	if err := p.stream.Release(); err != nil {
		// A failed release is a resource leak to log, not an error to
		// propagate upward.
		p.logger.Error().Err(err).Msg("Failed to release input device")
	}
	p.stream = nil
	p.logger.Info().Msg("Capture pipeline stopped")
}

// SetMuted flips the local mute gate. Muting drops frames before encoding
// and never touches the device, so unmuting resumes instantly.
func (p *Pipeline) SetMuted(muted bool) {
	p.muteMu.Lock()
	p.mutedFlag = muted
	p.muteMu.Unlock()
}

// Muted reports the current mute gate state.
func (p *Pipeline) Muted() bool {
	p.muteMu.RLock()
	defer p.muteMu.RUnlock()
	return p.mutedFlag
}

// Running reports whether the pipeline currently owns a device stream.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
