package remote

import (
	"context"

	"github.com/crosstalk-ai/crosstalk/internal/audio"
)

// MessageKind discriminates the typed messages a translation session emits.
type MessageKind string

const (
	// KindReady signals the remote end accepted the session configuration
	// and is ready for audio.
	KindReady MessageKind = "ready"
	// KindInputTranscriptDelta carries a partial transcript of the user's
	// own speech.
	KindInputTranscriptDelta MessageKind = "input_transcript_delta"
	// KindOutputTranscriptDelta carries a partial transcript of the
	// translated model speech.
	KindOutputTranscriptDelta MessageKind = "output_transcript_delta"
	// KindTurnComplete marks the end of one conversational turn.
	KindTurnComplete MessageKind = "turn_complete"
	// KindAudioChunk carries synthesized translated audio.
	KindAudioChunk MessageKind = "audio_chunk"
	// KindInterrupted signals the user barged in while model audio was
	// still playing.
	KindInterrupted MessageKind = "interrupted"
	// KindClosed signals a clean remote shutdown.
	KindClosed MessageKind = "closed"
	// KindError signals a remote failure; ErrText holds the detail.
	KindError MessageKind = "error"
)

// Message is one typed event from the remote translation session.
type Message struct {
	Kind       MessageKind
	Text       string // transcript fragment for the delta kinds
	Audio      []byte // raw PCM bytes for KindAudioChunk
	SampleRate int    // output rate for KindAudioChunk
	ErrText    string // human-readable detail for KindError
}

// Config is the session configuration negotiated at open time.
type Config struct {
	SourceLanguage   string
	TargetLanguage   string
	Instructions     string // persona instruction string
	InputSampleRate  int
	OutputSampleRate int
	// TranscribeInput and TranscribeOutput request incremental transcripts
	// for the respective direction.
	TranscribeInput  bool
	TranscribeOutput bool
}

// Session is an open bidirectional translation channel. The engine treats
// it as opaque: audio goes in, typed messages come out in arrival order.
type Session interface {
	// SendAudio transmits one encoded capture frame. The chunk is not
	// retained after the call returns.
	SendAudio(chunk audio.Chunk) error
	// Messages returns the inbound event stream. The channel is closed
	// after a terminal message (KindClosed or KindError) or Close.
	Messages() <-chan Message
	// Close shuts the session down. Idempotent.
	Close() error
}

// Dialer opens translation sessions.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Session, error)
}
