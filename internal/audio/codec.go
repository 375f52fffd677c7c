package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultInputRate is the capture sample rate the engine sends upstream.
const DefaultInputRate = 16000

// ErrTruncatedPCM is returned when an inbound payload cannot be split into
// whole 16-bit samples.
var ErrTruncatedPCM = errors.New("pcm byte length is not a multiple of 2")

// Chunk is an encoded audio payload ready for transmission.
// Payload is base64 so it can be embedded directly in a JSON envelope.
type Chunk struct {
	Payload  string
	MIMEType string
}

// PlaybackBuffer holds decoded audio samples at a declared sample rate.
type PlaybackBuffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the buffer.
func (b *PlaybackBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	seconds := float64(len(b.Samples)) / float64(b.SampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// EncodePCM16 converts float samples in [-1, 1] to a 16-bit little-endian
// PCM chunk. Out-of-range samples are clamped, never rejected.
func EncodePCM16(samples []float32) Chunk {
	data := make([]byte, len(samples)*2)
	for i, sample := range samples {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		v := int16(math.Round(float64(sample) * 32767))
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}
	return Chunk{
		Payload:  base64.StdEncoding.EncodeToString(data),
		MIMEType: fmt.Sprintf("audio/pcm;rate=%d", DefaultInputRate),
	}
}

// DecodePCM16 reinterprets raw bytes as little-endian 16-bit samples and
// builds a playable buffer at the given output rate. Decoding divides by
// the same 32767 scale the encoder multiplies by, so a round trip stays
// within one quantization step; -32768 is clamped to -1.
func DecodePCM16(data []byte, rate int) (*PlaybackBuffer, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("decode %d bytes: %w", len(data), ErrTruncatedPCM)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("decode: invalid sample rate %d", rate)
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		sample := float32(v) / 32767
		if sample < -1 {
			sample = -1
		}
		samples[i] = sample
	}
	return &PlaybackBuffer{Samples: samples, SampleRate: rate}, nil
}

// RMS calculates the root mean square amplitude of float samples.
// Used for input level metering.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
