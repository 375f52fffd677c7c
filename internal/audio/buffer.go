package audio

import (
	"sync"
)

// FrameAssembler repacks arbitrary-size sample deliveries from an input
// device into fixed-size frames, preserving sample order. It is safe for
// one writer and one reader running concurrently.
type FrameAssembler struct {
	mu        sync.Mutex
	buffer    []float32
	size      int
	read      int
	write     int
	frameSize int
}

// NewFrameAssembler creates an assembler emitting frames of frameSize
// samples. Internal capacity holds several frames of backlog.
func NewFrameAssembler(frameSize int) *FrameAssembler {
	size := frameSize*4 + 1
	return &FrameAssembler{
		buffer:    make([]float32, size),
		size:      size,
		frameSize: frameSize,
	}
}

// Push appends samples to the assembler. Returns the number of samples
// accepted; samples beyond capacity are dropped rather than blocking the
// device callback.
func (a *FrameAssembler) Push(samples []float32) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	pushed := 0
	for _, s := range samples {
		if (a.write+1)%a.size == a.read {
			break // full
		}
		a.buffer[a.write] = s
		a.write = (a.write + 1) % a.size
		pushed++
	}
	return pushed
}

// NextFrame pops one complete frame, or returns nil when fewer than
// frameSize samples are buffered.
func (a *FrameAssembler) NextFrame() []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.buffered() < a.frameSize {
		return nil
	}
	frame := make([]float32, a.frameSize)
	for i := range frame {
		frame[i] = a.buffer[a.read]
		a.read = (a.read + 1) % a.size
	}
	return frame
}

// Buffered returns the number of samples currently held.
func (a *FrameAssembler) Buffered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffered()
}

func (a *FrameAssembler) buffered() int {
	if a.write >= a.read {
		return a.write - a.read
	}
	return a.size - a.read + a.write
}

// Reset discards all buffered samples.
func (a *FrameAssembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.read = 0
	a.write = 0
}
