package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"

	"github.com/teslashibe/go-coach/internal/log"
)

// Config configures a Peer.
type Config struct {
	// ICEServers are STUN/TURN URLs.
	ICEServers []string

	// AudioBuffer is how many inbound Ogg pages may queue before new
	// packets are dropped. At 20ms per Opus frame, 100 is two seconds.
	// The two Ogg header pages need at least 2.
	AudioBuffer int

	// API overrides the pion API, e.g. to tune the setting engine.
	API *webrtc.API

	Logger *slog.Logger
}

// Peer is a server-side WebRTC peer answering a browser's offer.
type Peer struct {
	pc     *webrtc.PeerConnection
	out    *webrtc.TrackLocalStaticSample
	logger *slog.Logger

	mu sync.RWMutex
	dc *webrtc.DataChannel

	audioTrack  atomic.Bool
	audioMu     sync.RWMutex
	audio       chan []byte
	audioClosed bool
	dropped     atomic.Uint64

	playMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// NewPeer creates a peer with an outbound Opus track, ready for Answer.
func NewPeer(cfg Config) (*Peer, error) {
	if cfg.AudioBuffer <= 0 {
		cfg.AudioBuffer = 100
	}
	if cfg.AudioBuffer < 2 {
		cfg.AudioBuffer = 2
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Component("room.peer")
	}

	config := webrtc.Configuration{}
	if len(cfg.ICEServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}

	var (
		pc  *webrtc.PeerConnection
		err error
	)
	if cfg.API != nil {
		pc, err = cfg.API.NewPeerConnection(config)
	} else {
		pc, err = webrtc.NewPeerConnection(config)
	}
	if err != nil {
		return nil, fmt.Errorf("room: create peer connection: %w", err)
	}

	out, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "coach",
	)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("room: create audio track: %w", err)
	}

	sender, err := pc.AddTrack(out)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("room: add audio track: %w", err)
	}

	p := &Peer{
		pc:     pc,
		out:    out,
		logger: logger,
		audio:  make(chan []byte, cfg.AudioBuffer),
		done:   make(chan struct{}),
	}

	// RTCP must be read for interceptors to work.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.logger.Debug("remote track", "kind", track.Kind(), "codec", track.Codec().MimeType)
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		if !p.acceptAudio() {
			p.logger.Warn("ignoring extra audio track", "id", track.ID())
			return
		}
		go p.readAudio(track)
	})

	pc.OnDataChannel(p.attachDataChannel)

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.logger.Info("connection state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			go p.Close()
		}
	})

	return p, nil
}

// Answer applies the remote offer and returns the local answer with all
// ICE candidates gathered.
func (p *Peer) Answer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("room: set remote description: %w", err)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("room: create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("room: set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.pc.LocalDescription(), nil
}

func (p *Peer) attachDataChannel(dc *webrtc.DataChannel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dc != nil && p.dc.Label() == DataChannelLabel {
		p.logger.Debug("ignoring extra data channel", "label", dc.Label())
		return
	}
	p.dc = dc
	dc.OnOpen(func() {
		p.logger.Debug("data channel open", "label", dc.Label())
	})
	dc.OnClose(func() {
		p.logger.Debug("data channel closed", "label", dc.Label())
	})
}

// PublishData implements Room.
func (p *Peer) PublishData(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	dc := p.dc
	p.mu.RUnlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelClosed
	}
	return dc.SendText(string(data))
}

// acceptAudio reports whether this is the first inbound audio track.
// The audio channel carries a single Ogg stream, so later tracks are
// ignored.
func (p *Peer) acceptAudio() bool {
	return p.audioTrack.CompareAndSwap(false, true)
}

// readAudio repackages the track's RTP into an Ogg/Opus byte stream on
// the audio channel, one Ogg page per send.
func (p *Peer) readAudio(track *webrtc.TrackRemote) {
	channels := track.Codec().Channels
	if channels == 0 {
		channels = 2
	}
	w, err := oggwriter.NewWith(audioWriter{p}, opusClockRate, channels)
	if err != nil {
		p.logger.Error("ogg writer", "error", err)
		return
	}

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		p.muxPacket(w, pkt)
	}
}

// muxPacket turns pkt into one Ogg page, or drops the whole packet when
// the audio channel has no room for the page. Dropping ahead of the
// muxer keeps page sequence numbers contiguous; the granule position
// still advances by RTP timestamp across the gap.
func (p *Peer) muxPacket(w *oggwriter.OggWriter, pkt *rtp.Packet) {
	if len(p.audio) == cap(p.audio) {
		p.dropFrame()
		return
	}
	if err := writePacket(w, pkt); err != nil {
		p.logger.Warn("dropping rtp packet", "error", err)
	}
}

func writePacket(w *oggwriter.OggWriter, pkt *rtp.Packet) error {
	if pkt == nil || len(pkt.Payload) == 0 {
		return nil
	}
	return w.WriteRTP(pkt)
}

// audioWriter hands every write to the peer's audio channel.
type audioWriter struct{ p *Peer }

func (a audioWriter) Write(b []byte) (int, error) {
	a.p.pushAudio(append([]byte(nil), b...))
	return len(b), nil
}

func (p *Peer) pushAudio(frame []byte) {
	p.audioMu.RLock()
	defer p.audioMu.RUnlock()
	if p.audioClosed {
		return
	}
	select {
	case p.audio <- frame:
	default:
		p.dropFrame()
	}
}

func (p *Peer) dropFrame() {
	if n := p.dropped.Add(1); n%50 == 1 {
		p.logger.Warn("inbound audio backlog, dropping frames", "dropped", n)
	}
}

// Audio implements Room.
func (p *Peer) Audio() <-chan []byte {
	return p.audio
}

// Dropped returns how many inbound frames were discarded.
func (p *Peer) Dropped() uint64 {
	return p.dropped.Load()
}

// Done implements Room.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Close implements Room.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)

		p.audioMu.Lock()
		p.audioClosed = true
		close(p.audio)
		p.audioMu.Unlock()

		err = p.pc.Close()
	})
	return err
}

var _ Room = (*Peer)(nil)
