package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DeepgramURL is the live transcription endpoint.
const DeepgramURL = "wss://api.deepgram.com/v1/listen"

// DeepgramConfig configures the Deepgram recognizer.
type DeepgramConfig struct {
	APIKey   string
	URL      string
	Model    string
	Language string

	// Audio format of raw frames on the feed. Leave Encoding empty for
	// containerized audio such as Ogg/Opus; Deepgram detects it.
	Encoding   string
	SampleRate int
	Channels   int

	// Endpointing is the silence that ends a segment.
	Endpointing time.Duration

	// UtteranceEnd is the gap that emits an utterance_end event.
	UtteranceEnd time.Duration

	// KeepAlive is how often to ping Deepgram while no audio flows.
	KeepAlive time.Duration

	Logger *slog.Logger
}

// Option configures a Deepgram recognizer.
type Option func(*DeepgramConfig)

// WithURL overrides the endpoint, for self-hosted deployments and tests.
func WithURL(u string) Option { return func(c *DeepgramConfig) { c.URL = u } }

// WithModel sets the recognition model.
func WithModel(m string) Option { return func(c *DeepgramConfig) { c.Model = m } }

// WithLanguage sets the recognition language.
func WithLanguage(l string) Option { return func(c *DeepgramConfig) { c.Language = l } }

// WithEncoding describes the feed's audio format.
func WithEncoding(encoding string, sampleRate, channels int) Option {
	return func(c *DeepgramConfig) {
		c.Encoding = encoding
		c.SampleRate = sampleRate
		c.Channels = channels
	}
}

// WithEndpointing sets the segment-ending silence.
func WithEndpointing(d time.Duration) Option {
	return func(c *DeepgramConfig) { c.Endpointing = d }
}

// WithKeepAlive sets the keepalive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(c *DeepgramConfig) { c.KeepAlive = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *DeepgramConfig) { c.Logger = l } }

// DefaultDeepgramConfig returns settings for the Ogg/Opus feed a room
// produces.
func DefaultDeepgramConfig() *DeepgramConfig {
	return &DeepgramConfig{
		URL:          DeepgramURL,
		Model:        "nova-2",
		Language:     "en-US",
		Endpointing:  300 * time.Millisecond,
		UtteranceEnd: time.Second,
		KeepAlive:    5 * time.Second,
		Logger:       slog.Default(),
	}
}

// Deepgram recognizes speech over Deepgram's streaming websocket API.
type Deepgram struct {
	config *DeepgramConfig
	logger *slog.Logger
}

// NewDeepgram creates a Deepgram recognizer.
func NewDeepgram(apiKey string, opts ...Option) (*Deepgram, error) {
	cfg := DefaultDeepgramConfig()
	cfg.APIKey = apiKey
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Deepgram{
		config: cfg,
		logger: cfg.Logger.With("component", "stt.deepgram"),
	}, nil
}

func (d *Deepgram) listenURL() (string, error) {
	u, err := url.Parse(d.config.URL)
	if err != nil {
		return "", fmt.Errorf("stt: bad url: %w", err)
	}
	q := u.Query()
	q.Set("model", d.config.Model)
	if d.config.Language != "" {
		q.Set("language", d.config.Language)
	}
	if d.config.Encoding != "" {
		q.Set("encoding", d.config.Encoding)
		q.Set("sample_rate", strconv.Itoa(d.config.SampleRate))
		q.Set("channels", strconv.Itoa(d.config.Channels))
	}
	q.Set("interim_results", "true")
	q.Set("smart_format", "true")
	q.Set("vad_events", "true")
	if d.config.Endpointing > 0 {
		q.Set("endpointing", strconv.FormatInt(d.config.Endpointing.Milliseconds(), 10))
	}
	if d.config.UtteranceEnd > 0 {
		q.Set("utterance_end_ms", strconv.FormatInt(d.config.UtteranceEnd.Milliseconds(), 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Stream implements Recognizer. Frames read from audio are forwarded as
// binary messages until audio is closed or ctx ends.
func (d *Deepgram) Stream(ctx context.Context, audio <-chan []byte) (Stream, error) {
	target, err := d.listenURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+d.config.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("stt: deepgram handshake failed (%d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("stt: failed to connect to deepgram: %w", err)
	}

	ws.SetPingHandler(func(appData string) error {
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	streamCtx, cancel := context.WithCancel(ctx)
	s := &deepgramStream{
		ws:     ws,
		parent: ctx,
		ctx:    streamCtx,
		cancel: cancel,
		logger: d.logger,
	}
	go s.pump(audio, d.config.KeepAlive)
	go func() {
		<-streamCtx.Done()
		s.Close()
	}()

	d.logger.Debug("stream opened", "model", d.config.Model)
	return s, nil
}

// deepgram wire format
type dgMessage struct {
	Type        string  `json:"type"`
	IsFinal     bool    `json:"is_final"`
	SpeechFinal bool    `json:"speech_final"`
	Start       float64 `json:"start"`
	Duration    float64 `json:"duration"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type dgControl struct {
	Type string `json:"type"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

type deepgramStream struct {
	ws     *websocket.Conn
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

func (s *deepgramStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *deepgramStream) Recv() (*Event, error) {
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure) && !s.isClosed():
				return nil, io.EOF
			case s.parent.Err() != nil:
				return nil, s.parent.Err()
			case s.isClosed():
				return nil, ErrStreamClosed
			}
			return nil, fmt.Errorf("stt: deepgram read: %w", err)
		}

		var msg dgMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("undecodable message", "error", err)
			continue
		}

		switch msg.Type {
		case "Results":
			ev := &Event{
				Type:        EventInterim,
				SpeechFinal: msg.SpeechFinal,
				Start:       seconds(msg.Start),
				Duration:    seconds(msg.Duration),
				Raw:         data,
			}
			if msg.IsFinal {
				ev.Type = EventFinal
			}
			if alts := msg.Channel.Alternatives; len(alts) > 0 {
				ev.Text = alts[0].Transcript
				ev.Confidence = alts[0].Confidence
			}
			return ev, nil
		case "SpeechStarted":
			return &Event{Type: EventSpeechStarted, Raw: data}, nil
		case "UtteranceEnd":
			return &Event{Type: EventUtteranceEnd, Raw: data}, nil
		default:
			// Metadata and anything newer we do not model.
			continue
		}
	}
}

func (s *deepgramStream) write(msgType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.ws.WriteMessage(msgType, data)
}

func (s *deepgramStream) writeControl(typ string) error {
	data, _ := json.Marshal(dgControl{Type: typ})
	return s.write(websocket.TextMessage, data)
}

// pump forwards audio frames and keeps the socket alive between them.
func (s *deepgramStream) pump(audio <-chan []byte, keepAlive time.Duration) {
	if keepAlive <= 0 {
		keepAlive = 5 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case frame, ok := <-audio:
			if !ok {
				// Ask Deepgram to flush and close; Recv sees the close frame.
				if err := s.writeControl("CloseStream"); err != nil {
					s.logger.Debug("close stream failed", "error", err)
				}
				return
			}
			if len(frame) == 0 {
				continue
			}
			if err := s.write(websocket.BinaryMessage, frame); err != nil {
				s.logger.Warn("audio write failed", "error", err)
				return
			}
			ticker.Reset(keepAlive)
		case <-ticker.C:
			if err := s.writeControl("KeepAlive"); err != nil {
				return
			}
		}
	}
}

func (s *deepgramStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.writeControl("CloseStream")
		s.writeMu.Lock()
		s.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.ws.Close()
		s.cancel()
	})
	return err
}

var _ Recognizer = (*Deepgram)(nil)
