package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/crosstalk-ai/crosstalk/internal/audio"
	"github.com/crosstalk-ai/crosstalk/internal/capture"
	"github.com/crosstalk-ai/crosstalk/internal/observability"
	"github.com/crosstalk-ai/crosstalk/internal/playback"
	"github.com/crosstalk-ai/crosstalk/internal/remote"
	"github.com/crosstalk-ai/crosstalk/internal/transcript"
	"github.com/rs/zerolog"
)

// InterruptedSuffix is appended to a model transcript entry that was cut
// off by a barge-in.
const InterruptedSuffix = " [Interrupted]"

// State is the session lifecycle state. It is owned exclusively by the
// Controller; everything else reads it through State().
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Sink receives session state changes and user-visible notices. The UI
// collaborator implements it; rendering stays outside the engine.
type Sink interface {
	StateChanged(State)
	Notice(text string)
}

type nopSink struct{}

func (nopSink) StateChanged(State) {}
func (nopSink) Notice(string)      {}

// Options configures a Controller.
type Options struct {
	SourceLanguage   string
	TargetLanguage   string
	Instructions     string
	FrameSize        int
	InputSampleRate  int
	OutputSampleRate int
}

// Controller orchestrates the session lifecycle: it acquires the capture
// device, opens the remote translation session, and wires inbound
// messages into the playback scheduler and the transcript log.
type Controller struct {
	micDev capture.Device
	outDev playback.Device
	dialer remote.Dialer
	sink   Sink
	logger zerolog.Logger

	transcripts *transcript.Log

	mu           sync.RWMutex
	opts         Options
	state        State
	sess         remote.Session
	pipeline     *capture.Pipeline
	scheduler    *playback.Scheduler
	micMuted     bool
	speakerMuted bool
	startedAt    time.Time
	startGen     uint64
}

// NewController creates a controller in the disconnected state. A nil
// sink is replaced with a no-op.
func NewController(opts Options, micDev capture.Device, outDev playback.Device, dialer remote.Dialer, sink Sink, logger zerolog.Logger) *Controller {
	if sink == nil {
		sink = nopSink{}
	}
	return &Controller{
		micDev:      micDev,
		outDev:      outDev,
		dialer:      dialer,
		sink:        sink,
		logger:      logger,
		opts:        opts,
		transcripts: transcript.NewLog(),
		state:       StateDisconnected,
	}
}

// Start acquires the microphone, opens the remote session, and moves the
// controller to connecting. The transition to connected happens when the
// remote end signals ready. Rejects when already connecting or connected.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot start session while %s", state)
	}

	logger := observability.WithSessionID(c.logger, observability.NewSessionID())

	pipeline := capture.NewPipeline(c.opts.FrameSize, logger)
	pipeline.SetMuted(c.micMuted)
	scheduler := playback.NewScheduler(c.outDev, logger)

	c.pipeline = pipeline
	c.scheduler = scheduler
	c.startedAt = time.Now()
	c.setStateLocked(StateConnecting)
	c.startGen++
	gen := c.startGen
	opts := c.opts
	c.mu.Unlock()

	observability.RecordSessionStart()

	// Microphone first: a capture frame must never race the session open.
	// Frames are gated on the connected state, so nothing is sent before
	// the remote end is ready.
	err := pipeline.Start(ctx, c.micDev, func(chunk audio.Chunk) {
		c.mu.RLock()
		sess := c.sess
		ready := c.state == StateConnected
		c.mu.RUnlock()
		if !ready || sess == nil {
			return
		}
		if err := sess.SendAudio(chunk); err != nil {
			logger.Warn().Err(err).Msg("Failed to send capture frame")
			observability.RecordError("send_audio", "session")
		}
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to acquire input device")
		c.sink.Notice("Microphone unavailable. Check audio permissions and try again.")
		c.teardown(StateDisconnected)
		if errors.Is(err, capture.ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("start capture: %w", err)
	}

	if c.startStale(gen) {
		// Stop ran while the device was being acquired; teardown saw a
		// pipeline that was not yet running, so release it here.
		pipeline.Stop()
		return fmt.Errorf("session stopped during start")
	}

	sess, err := c.dialer.Dial(ctx, remote.Config{
		SourceLanguage:   opts.SourceLanguage,
		TargetLanguage:   opts.TargetLanguage,
		Instructions:     opts.Instructions,
		InputSampleRate:  opts.InputSampleRate,
		OutputSampleRate: opts.OutputSampleRate,
		TranscribeInput:  true,
		TranscribeOutput: true,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open remote session")
		c.sink.Notice("Could not reach the translation service.")
		observability.RecordError("dial", "session")
		c.teardown(StateError)
		return fmt.Errorf("open remote session: %w", err)
	}

	c.mu.Lock()
	if c.startGen != gen || c.state != StateConnecting {
		// Stop ran while the dial was in flight. The session that just
		// came up belongs to no one; close it instead of installing it.
		c.mu.Unlock()
		if err := sess.Close(); err != nil {
			logger.Warn().Err(err).Msg("Error closing late remote session")
		}
		pipeline.Stop()
		return fmt.Errorf("session stopped during start")
	}
	c.sess = sess
	c.mu.Unlock()

	go c.dispatch(sess, logger)

	logger.Info().
		Str("source", opts.SourceLanguage).
		Str("target", opts.TargetLanguage).
		Msg("Session starting")
	return nil
}

// dispatch is the single consumer of the remote message stream; messages
// are applied strictly in arrival order.
func (c *Controller) dispatch(sess remote.Session, logger zerolog.Logger) {
	for msg := range sess.Messages() {
		switch msg.Kind {
		case remote.KindReady:
			c.mu.Lock()
			if c.state == StateConnecting {
				c.setStateLocked(StateConnected)
			}
			c.mu.Unlock()
			logger.Info().Msg("Remote session ready")

		case remote.KindInputTranscriptDelta:
			c.transcripts.AppendDelta(transcript.RoleUser, msg.Text)

		case remote.KindOutputTranscriptDelta:
			c.transcripts.AppendDelta(transcript.RoleModel, msg.Text)

		case remote.KindTurnComplete:
			for _, role := range c.transcripts.SealTurn() {
				observability.RecordTranscriptEntry(string(role))
			}

		case remote.KindAudioChunk:
			observability.RecordInboundAudio(int64(len(msg.Audio)))
			if c.SpeakerMuted() {
				continue
			}
			c.mu.RLock()
			scheduler := c.scheduler
			c.mu.RUnlock()
			if scheduler == nil {
				continue
			}
			if err := scheduler.Enqueue(msg.Audio, msg.SampleRate); err != nil {
				// Malformed audio is dropped; playback of later chunks
				// continues.
				logger.Warn().Err(err).Msg("Dropping inbound audio chunk")
				if errors.Is(err, audio.ErrTruncatedPCM) {
					observability.RecordDecodeError()
				} else {
					observability.RecordError("enqueue", "playback")
				}
			}

		case remote.KindInterrupted:
			c.mu.RLock()
			scheduler := c.scheduler
			c.mu.RUnlock()
			if scheduler != nil {
				scheduler.StopAll()
			}
			if c.transcripts.SealOnInterrupt(InterruptedSuffix) {
				observability.RecordTranscriptEntry(string(transcript.RoleModel))
			}
			observability.RecordInterruption()
			logger.Info().Msg("Barge-in: playback cancelled")

		case remote.KindClosed:
			logger.Info().Msg("Remote session closed")
			c.teardown(StateDisconnected)
			return

		case remote.KindError:
			logger.Error().Str("detail", msg.ErrText).Msg("Remote session error")
			c.sink.Notice("Translation service error: " + msg.ErrText)
			observability.RecordError("remote", "session")
			c.teardown(StateError)
			return

		default:
			logger.Warn().Str("kind", string(msg.Kind)).Msg("Unknown remote message kind")
		}
	}
	// Channel closed without a terminal message: either a local Stop
	// already tore the session down, or the remote end vanished
	// mid-stream. Teardown is idempotent, so run it as a backstop.
	c.teardown(StateDisconnected)
}

// Stop tears the session down: capture stops, pending playback is
// cancelled, and the remote session closes. Safe to call from any state
// and idempotent.
func (c *Controller) Stop() {
	c.teardown(StateDisconnected)
}

// teardown releases every resource unconditionally and moves to final.
// Resource release never depends on a prior step succeeding.
func (c *Controller) teardown(final State) {
	c.mu.Lock()
	pipeline := c.pipeline
	scheduler := c.scheduler
	sess := c.sess
	startedAt := c.startedAt
	wasActive := c.state == StateConnecting || c.state == StateConnected
	c.pipeline = nil
	c.scheduler = nil
	c.sess = nil
	// A message drained after Stop must not move an already-disconnected
	// controller into the error state.
	if c.state != final && (wasActive || final == StateDisconnected) {
		c.setStateLocked(final)
	}
	c.mu.Unlock()

	if pipeline != nil {
		pipeline.Stop()
	}
	if scheduler != nil {
		scheduler.StopAll()
	}
	if sess != nil {
		if err := sess.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Error closing remote session")
		}
	}
	if wasActive {
		observability.RecordSessionEnd(time.Since(startedAt).Seconds())
		c.logger.Info().Msg("Session stopped")
	}
}

// startStale reports whether a teardown superseded the Start attempt
// identified by gen.
func (c *Controller) startStale(gen uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startGen != gen || c.state != StateConnecting
}

// setStateLocked updates the state and notifies the sink. Caller holds mu.
func (c *Controller) setStateLocked(next State) {
	if c.state == next {
		return
	}
	c.state = next
	c.sink.StateChanged(next)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetMicMuted flips the microphone gate. Takes effect on the next frame.
func (c *Controller) SetMicMuted(muted bool) {
	c.mu.Lock()
	c.micMuted = muted
	pipeline := c.pipeline
	c.mu.Unlock()
	if pipeline != nil {
		pipeline.SetMuted(muted)
	}
}

// MicMuted reports the microphone gate state.
func (c *Controller) MicMuted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.micMuted
}

// SetSpeakerMuted flips the speaker gate, consulted per inbound audio
// message. Segments already scheduled keep playing.
func (c *Controller) SetSpeakerMuted(muted bool) {
	c.mu.Lock()
	c.speakerMuted = muted
	c.mu.Unlock()
}

// SpeakerMuted reports the speaker gate state.
func (c *Controller) SpeakerMuted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speakerMuted
}

// SwapLanguages exchanges source and target. Only permitted while
// disconnected.
func (c *Controller) SwapLanguages() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return fmt.Errorf("cannot swap languages while %s", c.state)
	}
	c.opts.SourceLanguage, c.opts.TargetLanguage = c.opts.TargetLanguage, c.opts.SourceLanguage
	return nil
}

// Languages returns the current source and target language codes.
func (c *Controller) Languages() (source, target string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts.SourceLanguage, c.opts.TargetLanguage
}

// Transcript returns a snapshot of the conversation log in creation
// order.
func (c *Controller) Transcript() []transcript.Entry {
	return c.transcripts.Entries()
}

// PlaybackIdle reports whether any translated audio is scheduled or
// playing. Gates UI affordances only; control flow never depends on it.
func (c *Controller) PlaybackIdle() bool {
	c.mu.RLock()
	scheduler := c.scheduler
	c.mu.RUnlock()
	if scheduler == nil {
		return true
	}
	return scheduler.Idle()
}
