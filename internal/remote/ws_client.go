package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"

	"github.com/crosstalk-ai/crosstalk/internal/audio"
	"github.com/crosstalk-ai/crosstalk/internal/resilience"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// envelope is the JSON frame exchanged over the websocket. Only the
// fields relevant for a given type are populated.
type envelope struct {
	Type       string       `json:"type"`
	Payload    string       `json:"payload,omitempty"` // base64 audio
	MIMEType   string       `json:"mimeType,omitempty"`
	SampleRate int          `json:"sampleRate,omitempty"`
	Text       string       `json:"text,omitempty"`
	Message    string       `json:"message,omitempty"`
	Setup      *setupParams `json:"setup,omitempty"`
}

// setupParams is the session configuration sent on open.
type setupParams struct {
	SourceLanguage   string `json:"sourceLanguage"`
	TargetLanguage   string `json:"targetLanguage"`
	Instructions     string `json:"instructions,omitempty"`
	InputSampleRate  int    `json:"inputSampleRate"`
	OutputSampleRate int    `json:"outputSampleRate"`
	TranscribeInput  bool   `json:"transcribeInput"`
	TranscribeOutput bool   `json:"transcribeOutput"`
}

// WSDialer opens translation sessions over a websocket endpoint.
type WSDialer struct {
	URL     string
	APIKey  string
	Backoff *resilience.BackoffConfig
	Logger  zerolog.Logger
}

// Dial connects with bounded backoff, sends the setup frame, and returns
// the live session. The remote "ready" acknowledgment is delivered as the
// first message on Messages, not awaited here.
func (d *WSDialer) Dial(ctx context.Context, cfg Config) (Session, error) {
	header := http.Header{}
	if d.APIKey != "" {
		header.Set("Authorization", "Bearer "+d.APIKey)
	}

	var conn *websocket.Conn
	err := resilience.Do(ctx, d.Backoff, func() error {
		c, _, err := websocket.DefaultDialer.DialContext(ctx, d.URL, header)
		if err != nil {
			d.Logger.Warn().Err(err).Str("url", d.URL).Msg("Remote dial attempt failed")
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dial remote session: %w", err)
	}

	sess := &wsSession{
		conn:   conn,
		msgs:   make(chan Message, 100),
		logger: d.Logger,
	}

	setup := envelope{
		Type: "setup",
		Setup: &setupParams{
			SourceLanguage:   cfg.SourceLanguage,
			TargetLanguage:   cfg.TargetLanguage,
			Instructions:     cfg.Instructions,
			InputSampleRate:  cfg.InputSampleRate,
			OutputSampleRate: cfg.OutputSampleRate,
			TranscribeInput:  cfg.TranscribeInput,
			TranscribeOutput: cfg.TranscribeOutput,
		},
	}
	if err := sess.writeJSON(setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send session setup: %w", err)
	}

	go sess.readLoop()

	d.Logger.Info().
		Str("source", cfg.SourceLanguage).
		Str("target", cfg.TargetLanguage).
		Msg("Remote translation session opened")
	return sess, nil
}

// wsSession is a live websocket-backed translation session.
type wsSession struct {
	conn   *websocket.Conn
	msgs   chan Message
	logger zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    bool
}

func (s *wsSession) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return fmt.Errorf("session is closed")
	}
	return s.conn.WriteJSON(v)
}

// SendAudio transmits one encoded capture frame.
func (s *wsSession) SendAudio(chunk audio.Chunk) error {
	return s.writeJSON(envelope{
		Type:     "audio",
		Payload:  chunk.Payload,
		MIMEType: chunk.MIMEType,
	})
}

// Messages returns the inbound event stream.
func (s *wsSession) Messages() <-chan Message {
	return s.msgs
}

// readLoop is the single reader goroutine; one reader means messages are
// delivered in exactly the order they arrived on the wire.
func (s *wsSession) readLoop() {
	defer close(s.msgs)

	for {
		var env envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			s.writeMu.Lock()
			wasClosed := s.closed
			s.writeMu.Unlock()
			if wasClosed || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.deliver(Message{Kind: KindClosed})
			} else {
				s.logger.Warn().Err(err).Msg("Remote session read failed")
				s.deliver(Message{Kind: KindError, ErrText: err.Error()})
			}
			return
		}

		msg, terminal, err := s.translate(env)
		if err != nil {
			s.logger.Warn().Err(err).Str("type", env.Type).Msg("Dropping malformed remote frame")
			continue
		}
		s.deliver(msg)
		if terminal {
			return
		}
	}
}

// translate maps one wire envelope to a typed message.
func (s *wsSession) translate(env envelope) (Message, bool, error) {
	switch env.Type {
	case "ready":
		return Message{Kind: KindReady}, false, nil
	case "input_transcript":
		return Message{Kind: KindInputTranscriptDelta, Text: env.Text}, false, nil
	case "output_transcript":
		return Message{Kind: KindOutputTranscriptDelta, Text: env.Text}, false, nil
	case "turn_complete":
		return Message{Kind: KindTurnComplete}, false, nil
	case "audio":
		data, err := base64.StdEncoding.DecodeString(env.Payload)
		if err != nil {
			return Message{}, false, fmt.Errorf("decode audio payload: %w", err)
		}
		rate := env.SampleRate
		if rate == 0 {
			rate = audio.DefaultInputRate
		}
		return Message{Kind: KindAudioChunk, Audio: data, SampleRate: rate}, false, nil
	case "interrupted":
		return Message{Kind: KindInterrupted}, false, nil
	case "close":
		return Message{Kind: KindClosed}, true, nil
	case "error":
		return Message{Kind: KindError, ErrText: env.Message}, true, nil
	default:
		return Message{}, false, fmt.Errorf("unknown frame type %q", env.Type)
	}
}

// deliver hands one message to the consumer. Audio and transcript deltas
// may be shed under backpressure; control messages never are, since
// losing a turn boundary or a terminal frame desynchronizes the session.
func (s *wsSession) deliver(msg Message) {
	switch msg.Kind {
	case KindAudioChunk, KindInputTranscriptDelta, KindOutputTranscriptDelta:
		select {
		case s.msgs <- msg:
		default:
			s.logger.Warn().Str("kind", string(msg.Kind)).Msg("Remote message channel full, dropping")
		}
	default:
		s.msgs <- msg
	}
}

// Close sends a close frame and tears the connection down. Idempotent.
func (s *wsSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.closed = true
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
