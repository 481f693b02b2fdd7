package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/livescribe-ai/livescribe/pkg/core"
	"github.com/livescribe-ai/livescribe/pkg/core/live"
)

const (
	defaultHost   = "generativelanguage.googleapis.com"
	bidiPath      = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	eventChanSize = 256
)

// Config carries the connection parameters for one live session.
type Config struct {
	// APIKey authenticates the websocket dial. Required.
	APIKey string

	// Host overrides the API host, mainly for tests.
	Host string

	// Session supplies the model, voice, and audio parameters that go
	// into the setup frame.
	Session live.SessionConfig

	// HandshakeTimeout bounds the dial plus setup exchange.
	HandshakeTimeout time.Duration

	Logger *slog.Logger
}

// Client is a connected BidiGenerateContent session. It implements
// live.SessionPort. A single reader goroutine owns the websocket read
// side and forwards decoded events, in arrival order, over a buffered
// channel; writes are serialized by writeMu.
type Client struct {
	id     string
	conn   *websocket.Conn
	cfg    Config
	logger *slog.Logger

	events chan *live.ServerEvent
	done   chan struct{}
	quit   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// Connect dials the live endpoint, performs the setup handshake, and
// starts the read loop. The returned client is ready for ReceiveTurn.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	return connectWS(ctx, cfg, "wss")
}

// connectWS lets tests dial a plaintext websocket server.
func connectWS(ctx context.Context, cfg Config, scheme string) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, core.NewConfigError("api key is required")
	}
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     bidiPath,
		RawQuery: "key=" + url.QueryEscape(cfg.APIKey),
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return nil, core.NewSessionError(fmt.Sprintf("dial live endpoint: %v", err))
	}

	c := &Client{
		id:     uuid.NewString(),
		conn:   conn,
		cfg:    cfg,
		events: make(chan *live.ServerEvent, eventChanSize),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
	}
	c.logger = logger.With("session_id", c.id)

	if err := c.writeJSON(buildSetup(cfg.Session)); err != nil {
		conn.Close()
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	var first serverMessage
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		return nil, core.NewSessionError(fmt.Sprintf("read setup response: %v", err))
	}
	if first.SetupComplete == nil {
		conn.Close()
		return nil, core.NewProtocolError("server did not acknowledge setup")
	}
	conn.SetReadDeadline(time.Time{})

	c.logger.Info("live session established", "model", cfg.Session.Model)
	go c.readLoop()
	return c, nil
}

// ID returns the locally assigned session identifier.
func (c *Client) ID() string { return c.id }

func buildSetup(s live.SessionConfig) setupMessage {
	setup := setupPayload{
		Model: "models/" + s.Model,
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: &voiceConfig{
					PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: s.VoiceName},
				},
			},
		},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
		RealtimeInputConfig: &realtimeInputConfig{
			AutomaticActivityDetection: &automaticActivityDetection{
				StartOfSpeechSensitivity: "START_SENSITIVITY_HIGH",
				EndOfSpeechSensitivity:   "END_SENSITIVITY_HIGH",
				PrefixPaddingMs:          300,
				SilenceDurationMs:        800,
			},
			ActivityHandling: "START_OF_ACTIVITY_INTERRUPTS",
			TurnCoverage:     "TURN_INCLUDES_ALL_INPUT",
		},
		EnableAffectiveDialog: s.AffectiveDialog,
	}
	if s.SystemInstruction != "" {
		setup.SystemInstruction = &content{Parts: []part{{Text: s.SystemInstruction}}}
	}
	if s.ProactiveAudio {
		setup.Proactivity = &proactivity{ProactiveAudio: true}
	}
	return setupMessage{Setup: setup}
}

// readLoop is the sole websocket reader. Malformed frames are logged and
// skipped; a read failure ends the session with a fatal error. Event
// sends block rather than drop, because the engine's interruption
// semantics depend on seeing every frame in order.
func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.setErr(core.NewSessionError(fmt.Sprintf("session read: %v", err)))
			}
			return
		}
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("unparseable server frame skipped", "error", err, "bytes", len(data))
			continue
		}
		if msg.GoAway != nil {
			c.logger.Warn("server go-away", "time_left", msg.GoAway.TimeLeft)
			continue
		}
		if msg.SessionResumptionUpdate != nil {
			c.logger.Debug("session resumption update",
				"resumable", msg.SessionResumptionUpdate.Resumable)
			continue
		}
		if msg.ServerContent == nil {
			continue
		}
		ev, err := toServerEvent(msg.ServerContent)
		if err != nil {
			c.logger.Warn("malformed server content skipped", "error", err)
			continue
		}
		select {
		case c.events <- ev:
		case <-c.quit:
			return
		}
	}
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Client) sessionErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err != nil {
		return c.err
	}
	return core.NewSessionError("session closed")
}

func (c *Client) writeJSON(v any) error {
	if c.closed.Load() {
		return core.NewSessionError("session closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(v); err != nil {
		err = core.NewSessionError(fmt.Sprintf("session write: %v", err))
		c.setErr(err)
		return err
	}
	return nil
}

// SendAudioFrame ships one captured PCM frame as realtime input.
func (c *Client) SendAudioFrame(pcm []byte) error {
	return c.writeJSON(realtimeInputMessage{
		RealtimeInput: realtimeInput{
			Audio: &inlineBlob{
				MimeType: fmt.Sprintf("audio/pcm;rate=%d", c.cfg.Session.InputAudio.SampleRate),
				Data:     base64.StdEncoding.EncodeToString(pcm),
			},
		},
	})
}

// SendTextTurn submits a text turn as client content.
func (c *Client) SendTextTurn(role live.Role, text string, complete bool) error {
	return c.writeJSON(clientContentMessage{
		ClientContent: clientContent{
			Turns:        []content{{Role: string(role), Parts: []part{{Text: text}}}},
			TurnComplete: complete,
		},
	})
}

// EndAudioStream tells the server no further realtime audio is coming.
func (c *Client) EndAudioStream() error {
	return c.writeJSON(realtimeInputMessage{
		RealtimeInput: realtimeInput{AudioStreamEnd: true},
	})
}

// ReceiveTurn returns a stream over the next model turn. Streams must be
// consumed one at a time; each ends with io.EOF after the frame that
// carries turn completion.
func (c *Client) ReceiveTurn(ctx context.Context) (live.EventStream, error) {
	select {
	case <-c.done:
		return nil, c.sessionErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return &turnStream{c: c}, nil
	}
}

type turnStream struct {
	c        *Client
	finished bool
}

func (s *turnStream) Next(ctx context.Context) (*live.ServerEvent, error) {
	if s.finished {
		return nil, io.EOF
	}
	select {
	case ev := <-s.c.events:
		if ev.TurnComplete {
			s.finished = true
		}
		return ev, nil
	case <-s.c.done:
		return nil, s.c.sessionErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the session down. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.quit)
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
		<-c.done
	})
	return err
}
