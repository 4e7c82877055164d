package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"

	"github.com/avolkov/farview/internal/application/constant"
)

// Mode определяет направление видео для peer-соединения.
type Mode int

const (
	// ModeSendVideo - хост: исходящий VP8 трек.
	ModeSendVideo Mode = iota
	// ModeRecvVideo - клиент: входящий VP8 трек.
	ModeRecvVideo
)

const (
	vp8PayloadType   = 96
	videoClockRate   = 90000
	defaultFrameDur  = 40 * time.Millisecond
	sampleBuilderLen = 64
)

// PionConfig - параметры создания Pion engine.
type PionConfig struct {
	ICEServers []webrtc.ICEServer
	Mode       Mode
	Logger     *slog.Logger
}

// PionEngine реализует Engine поверх pion/webrtc.
type PionEngine struct {
	pc  *webrtc.PeerConnection
	log *slog.Logger

	videoTrack *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	onVideo func(uint32, []byte)
	lastTs  uint32
	hasTs   bool

	closeOnce sync.Once
	closeErr  error
}

// NewPion создает peer-соединение с зарегистрированным VP8 кодеком.
func NewPion(cfg PionConfig) (*PionEngine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeVP8,
			ClockRate: videoClockRate,
		},
		PayloadType: vp8PayloadType,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register VP8 codec: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: cfg.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	e := &PionEngine{pc: pc, log: cfg.Logger}

	switch cfg.Mode {
	case ModeSendVideo:
		if err := e.setupSendTrack(); err != nil {
			pc.Close()
			return nil, err
		}
	case ModeRecvVideo:
		if err := e.setupRecvTrack(); err != nil {
			pc.Close()
			return nil, err
		}
	}

	return e, nil
}

func (e *PionEngine) setupSendTrack() error {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "farview",
	)
	if err != nil {
		return fmt.Errorf("create video track: %w", err)
	}

	sender, err := e.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add video track: %w", err)
	}

	// Вычитываем RTCP, чтобы interceptor'ы продолжали работать.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	e.videoTrack = track
	return nil
}

func (e *PionEngine) setupRecvTrack() error {
	if _, err := e.pc.AddTransceiverFromKind(
		webrtc.RTPCodecTypeVideo,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly},
	); err != nil {
		return fmt.Errorf("add recv transceiver: %w", err)
	}

	e.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		go e.readVideo(track)
	})

	return nil
}

// readVideo собирает RTP пакеты в целые закодированные кадры.
func (e *PionEngine) readVideo(track *webrtc.TrackRemote) {
	sb := samplebuilder.New(sampleBuilderLen, &codecs.VP8Packet{}, videoClockRate)

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				e.log.Debug("RTP read stopped", slog.Any(constant.Error, err))
			}
			return
		}

		sb.Push(pkt)

		for sample := sb.Pop(); sample != nil; sample = sb.Pop() {
			e.mu.Lock()
			fn := e.onVideo
			e.mu.Unlock()

			if fn != nil {
				fn(sample.PacketTimestamp/(videoClockRate/1000), sample.Data)
			}
		}
	}
}

func (e *PionEngine) CreateOffer(ctx context.Context) (string, error) {
	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := e.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return offer.SDP, nil
}

func (e *PionEngine) CreateAnswer(ctx context.Context) (string, error) {
	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := e.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return answer.SDP, nil
}

func (e *PionEngine) SetRemoteDescription(kind, sdp string) error {
	desc := webrtc.SessionDescription{
		Type: webrtc.NewSDPType(kind),
		SDP:  sdp,
	}
	if err := e.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description (%s): %w", kind, err)
	}
	return nil
}

func (e *PionEngine) AddICECandidate(candidateJSON string) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(candidateJSON), &init); err != nil {
		return fmt.Errorf("unmarshal ICE candidate: %w", err)
	}
	if err := e.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

func (e *PionEngine) OnICECandidate(fn func(string)) {
	e.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			e.log.Error("marshal ICE candidate", slog.Any(constant.Error, err))
			return
		}
		fn(string(raw))
	})
}

func (e *PionEngine) OnConnectionStateChange(fn func(State)) {
	e.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		fn(mapState(s))
	})
}

func (e *PionEngine) CreateDataChannel(label string) (DataChannel, error) {
	ordered := true
	dc, err := e.pc.CreateDataChannel(label, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	return &pionDataChannel{dc: dc}, nil
}

func (e *PionEngine) OnDataChannel(fn func(DataChannel)) {
	e.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		fn(&pionDataChannel{dc: dc})
	})
}

func (e *PionEngine) SendVideo(timestampMs uint32, payload []byte) error {
	if e.videoTrack == nil {
		return fmt.Errorf("engine has no outbound video track")
	}

	// Длительность кадра восстанавливается из дельты меток;
	// вычитание uint32 корректно и при переполнении.
	e.mu.Lock()
	dur := defaultFrameDur
	if e.hasTs {
		if d := timestampMs - e.lastTs; d > 0 && d < 1000 {
			dur = time.Duration(d) * time.Millisecond
		}
	}
	e.lastTs = timestampMs
	e.hasTs = true
	e.mu.Unlock()

	if err := e.videoTrack.WriteSample(media.Sample{Data: payload, Duration: dur}); err != nil {
		return fmt.Errorf("write video sample: %w", err)
	}
	return nil
}

func (e *PionEngine) OnVideoFrame(fn func(uint32, []byte)) {
	e.mu.Lock()
	e.onVideo = fn
	e.mu.Unlock()
}

func (e *PionEngine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.pc.Close()
	})
	return e.closeErr
}

func mapState(s webrtc.PeerConnectionState) State {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return StateNew
	case webrtc.PeerConnectionStateConnecting:
		return StateConnecting
	case webrtc.PeerConnectionStateConnected:
		return StateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return StateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return StateFailed
	default:
		return StateClosed
	}
}

type pionDataChannel struct {
	dc *webrtc.DataChannel
}

func (c *pionDataChannel) Label() string { return c.dc.Label() }

func (c *pionDataChannel) OnOpen(fn func()) { c.dc.OnOpen(fn) }

func (c *pionDataChannel) OnMessage(fn func([]byte)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (c *pionDataChannel) Send(data []byte) error {
	if c.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("data channel %q is not open", c.dc.Label())
	}
	return c.dc.Send(data)
}

func (c *pionDataChannel) Close() error { return c.dc.Close() }
