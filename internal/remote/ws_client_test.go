package remote

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crosstalk-ai/crosstalk/internal/audio"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeService is a scripted translation service endpoint.
type fakeService struct {
	t      *testing.T
	script []envelope // frames to send after the setup handshake
	setup  chan envelope
	audio  chan envelope
}

func newFakeService(t *testing.T, script ...envelope) *fakeService {
	return &fakeService{
		t:      t,
		script: script,
		setup:  make(chan envelope, 1),
		audio:  make(chan envelope, 16),
	}
}

func (s *fakeService) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			s.t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var setup envelope
		if err := conn.ReadJSON(&setup); err != nil {
			s.t.Errorf("Reading setup frame failed: %v", err)
			return
		}
		s.setup <- setup

		for _, env := range s.script {
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		}

		for {
			var env envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			if env.Type == "audio" {
				s.audio <- env
			}
		}
	}
}

func dialTest(t *testing.T, svc *fakeService) (Session, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(svc.handler())
	dialer := &WSDialer{
		URL:    "ws" + strings.TrimPrefix(server.URL, "http"),
		Logger: zerolog.Nop(),
	}
	sess, err := dialer.Dial(context.Background(), Config{
		SourceLanguage:   "en-US",
		TargetLanguage:   "fr-FR",
		Instructions:     "interpret",
		InputSampleRate:  16000,
		OutputSampleRate: 24000,
		TranscribeInput:  true,
		TranscribeOutput: true,
	})
	if err != nil {
		server.Close()
		t.Fatalf("Dial failed: %v", err)
	}
	return sess, server
}

func recvMessage(t *testing.T, sess Session) Message {
	t.Helper()
	select {
	case msg, ok := <-sess.Messages():
		if !ok {
			t.Fatal("Message channel closed unexpectedly")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for message")
	}
	return Message{}
}

func TestWSDialer_SendsSetupFrame(t *testing.T) {
	svc := newFakeService(t, envelope{Type: "ready"})
	sess, server := dialTest(t, svc)
	defer server.Close()
	defer sess.Close()

	select {
	case setup := <-svc.setup:
		if setup.Type != "setup" || setup.Setup == nil {
			t.Fatalf("Expected setup frame, got %+v", setup)
		}
		if setup.Setup.SourceLanguage != "en-US" || setup.Setup.TargetLanguage != "fr-FR" {
			t.Errorf("Unexpected languages: %+v", setup.Setup)
		}
		if !setup.Setup.TranscribeInput || !setup.Setup.TranscribeOutput {
			t.Error("Expected transcription enabled in both directions")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for setup frame")
	}

	if msg := recvMessage(t, sess); msg.Kind != KindReady {
		t.Errorf("Expected ready message, got %s", msg.Kind)
	}
}

func TestWSSession_TranslatesInboundFrames(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04}
	svc := newFakeService(t,
		envelope{Type: "ready"},
		envelope{Type: "input_transcript", Text: "hello"},
		envelope{Type: "output_transcript", Text: "bonjour"},
		envelope{Type: "audio", Payload: base64.StdEncoding.EncodeToString(raw), SampleRate: 24000},
		envelope{Type: "turn_complete"},
		envelope{Type: "interrupted"},
	)
	sess, server := dialTest(t, svc)
	defer server.Close()
	defer sess.Close()

	wantKinds := []MessageKind{
		KindReady,
		KindInputTranscriptDelta,
		KindOutputTranscriptDelta,
		KindAudioChunk,
		KindTurnComplete,
		KindInterrupted,
	}
	for i, want := range wantKinds {
		msg := recvMessage(t, sess)
		if msg.Kind != want {
			t.Fatalf("Message %d: expected kind %s, got %s", i, want, msg.Kind)
		}
		switch want {
		case KindInputTranscriptDelta:
			if msg.Text != "hello" {
				t.Errorf("Expected text 'hello', got '%s'", msg.Text)
			}
		case KindOutputTranscriptDelta:
			if msg.Text != "bonjour" {
				t.Errorf("Expected text 'bonjour', got '%s'", msg.Text)
			}
		case KindAudioChunk:
			if len(msg.Audio) != len(raw) {
				t.Errorf("Expected %d audio bytes, got %d", len(raw), len(msg.Audio))
			}
			if msg.SampleRate != 24000 {
				t.Errorf("Expected sample rate 24000, got %d", msg.SampleRate)
			}
		}
	}
}

func TestWSSession_SendAudio(t *testing.T) {
	svc := newFakeService(t, envelope{Type: "ready"})
	sess, server := dialTest(t, svc)
	defer server.Close()
	defer sess.Close()

	chunk := audio.EncodePCM16([]float32{0.1, -0.1, 0.2})
	if err := sess.SendAudio(chunk); err != nil {
		t.Fatalf("SendAudio failed: %v", err)
	}

	select {
	case env := <-svc.audio:
		if env.Payload != chunk.Payload {
			t.Error("Audio payload was altered in transit")
		}
		if env.MIMEType != chunk.MIMEType {
			t.Errorf("Expected MIME type '%s', got '%s'", chunk.MIMEType, env.MIMEType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for audio frame")
	}
}

func TestWSSession_ErrorFrameIsTerminal(t *testing.T) {
	svc := newFakeService(t,
		envelope{Type: "ready"},
		envelope{Type: "error", Message: "quota exceeded"},
	)
	sess, server := dialTest(t, svc)
	defer server.Close()
	defer sess.Close()

	if msg := recvMessage(t, sess); msg.Kind != KindReady {
		t.Fatalf("Expected ready, got %s", msg.Kind)
	}
	msg := recvMessage(t, sess)
	if msg.Kind != KindError {
		t.Fatalf("Expected error message, got %s", msg.Kind)
	}
	if msg.ErrText != "quota exceeded" {
		t.Errorf("Expected error detail 'quota exceeded', got '%s'", msg.ErrText)
	}

	// The stream ends after a terminal frame.
	select {
	case _, ok := <-sess.Messages():
		if ok {
			t.Error("Expected no messages after a terminal error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for channel close")
	}
}

func TestWSSession_ControlFramesSurviveBackpressure(t *testing.T) {
	// Flood the session with more audio frames than the message channel
	// holds, then finish the turn. Audio may be shed under backpressure;
	// turn_complete and the terminal close must still come through.
	payload := base64.StdEncoding.EncodeToString([]byte{0x00, 0x00})
	script := []envelope{{Type: "ready"}}
	for i := 0; i < 150; i++ {
		script = append(script, envelope{Type: "audio", Payload: payload, SampleRate: 24000})
	}
	script = append(script,
		envelope{Type: "turn_complete"},
		envelope{Type: "close"},
	)

	svc := newFakeService(t, script...)
	sess, server := dialTest(t, svc)
	defer server.Close()
	defer sess.Close()

	// Let the reader saturate the channel before consuming anything.
	time.Sleep(200 * time.Millisecond)

	sawTurnComplete, sawClosed := false, false
	for msg := range sess.Messages() {
		switch msg.Kind {
		case KindTurnComplete:
			sawTurnComplete = true
		case KindClosed:
			sawClosed = true
		}
	}
	if !sawTurnComplete {
		t.Error("Expected turn_complete to survive backpressure")
	}
	if !sawClosed {
		t.Error("Expected the terminal close to survive backpressure")
	}
}

func TestWSSession_CloseIdempotent(t *testing.T) {
	svc := newFakeService(t, envelope{Type: "ready"})
	sess, server := dialTest(t, svc)
	defer server.Close()

	if err := sess.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
	if err := sess.SendAudio(audio.EncodePCM16([]float32{0})); err == nil {
		t.Error("Expected SendAudio to fail after Close")
	}
}

func TestWSDialer_Unreachable(t *testing.T) {
	dialer := &WSDialer{
		URL:    "ws://127.0.0.1:1/does-not-exist",
		Logger: zerolog.Nop(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := dialer.Dial(ctx, Config{}); err == nil {
		t.Fatal("Expected Dial to fail for an unreachable endpoint")
	}
}
