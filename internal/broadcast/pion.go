package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/mathivegas/unistream-client/internal/config"
	"github.com/mathivegas/unistream-client/pkg/log"
)

// PionEngine implements Engine over a pion/webrtc peer connection. Offer and
// answer are exchanged with the broadcast gateway over plain HTTP; candidates
// are gathered up front so no trickle channel is needed.
type PionEngine struct {
	gatewayURL string
	httpClient *http.Client
	capture    CaptureProvider
	renderer   Renderer
	logger     zerolog.Logger

	mu          sync.Mutex
	role        Role
	pc          *webrtc.PeerConnection
	channel     string
	senders     map[string]*webrtc.RTPSender
	remotes     map[string]*pionRemoteParticipant
	onPublished func(p RemoteParticipant, kind TrackKind)
	onGone      func(p RemoteParticipant)
	onLeft      func(p RemoteParticipant)
}

// NewPionEngine creates an engine talking to the given gateway.
func NewPionEngine(cfg config.BroadcastConfig, capture CaptureProvider, renderer Renderer) *PionEngine {
	return &PionEngine{
		gatewayURL: cfg.GatewayURL,
		httpClient: &http.Client{},
		capture:    capture,
		renderer:   renderer,
		logger:     log.L().With().Str(log.FieldComponent, "broadcast.engine").Logger(),
		senders:    make(map[string]*webrtc.RTPSender),
		remotes:    make(map[string]*pionRemoteParticipant),
	}
}

func (e *PionEngine) SetRole(role Role) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pc != nil {
		return errors.New("cannot change role while joined")
	}
	e.role = role
	return nil
}

func (e *PionEngine) OnRemotePublished(fn func(p RemoteParticipant, kind TrackKind)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPublished = fn
}

func (e *PionEngine) OnRemoteUnpublished(fn func(p RemoteParticipant)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onGone = fn
}

func (e *PionEngine) OnRemoteLeft(fn func(p RemoteParticipant)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onLeft = fn
}

func (e *PionEngine) newPeerConnection() (*webrtc.PeerConnection, error) {
	m := &webrtc.MediaEngine{}

	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeVP8,
			ClockRate:   90000,
			Channels:    0,
			SDPFmtpLine: "",
		},
		PayloadType: 96,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, err
	}

	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, err
	}

	i := &interceptor.Registry{}

	intervalPliFactory, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		return nil, err
	}
	i.Add(intervalPliFactory)

	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i))

	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.handleTrack(track)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		e.logger.Debug().Str("state", state.String()).Msg("connection state changed")
	})

	return pc, nil
}

type joinRequest struct {
	Channel       string `json:"channel"`
	ParticipantID string `json:"participantId"`
	Role          string `json:"role"`
	Token         string `json:"token,omitempty"`
	SDP           string `json:"sdp"`
}

type joinResponse struct {
	SDP string `json:"sdp"`
}

func (e *PionEngine) Join(ctx context.Context, appID, channel, token, participantID string) error {
	e.mu.Lock()
	if e.pc != nil {
		e.mu.Unlock()
		return errors.New("already joined")
	}
	role := e.role
	e.mu.Unlock()

	pc, err := e.newPeerConnection()
	if err != nil {
		return err
	}

	// An audience member still needs receive transceivers in the offer.
	if role == RoleAudience {
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				pc.Close()
				return err
			}
		}
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return err
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return fmt.Errorf("failed to set local description: %w", err)
	}
	<-gatherComplete

	roleName := "audience"
	if role == RolePublisher {
		roleName = "publisher"
	}
	answer, err := e.exchange(ctx, joinRequest{
		Channel:       channel,
		ParticipantID: participantID,
		Role:          roleName,
		Token:         token,
		SDP:           pc.LocalDescription().SDP,
	})
	if err != nil {
		pc.Close()
		return err
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		pc.Close()
		return fmt.Errorf("failed to set remote description: %w", err)
	}

	e.mu.Lock()
	e.pc = pc
	e.channel = channel
	e.mu.Unlock()
	return nil
}

func (e *PionEngine) exchange(ctx context.Context, req joinRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.gatewayURL+"/join", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to reach broadcast gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("broadcast gateway returned %d: %s", resp.StatusCode, string(body))
	}

	var out joinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SDP, nil
}

func (e *PionEngine) Leave(ctx context.Context) error {
	e.mu.Lock()
	pc := e.pc
	channel := e.channel
	e.pc = nil
	e.channel = ""
	e.senders = make(map[string]*webrtc.RTPSender)
	remotes := e.remotes
	e.remotes = make(map[string]*pionRemoteParticipant)
	e.mu.Unlock()

	if pc == nil {
		return nil
	}

	for _, p := range remotes {
		p.stopAll()
	}

	// Best-effort notice so the gateway can release the membership promptly.
	payload, _ := json.Marshal(map[string]string{"channel": channel})
	if req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.gatewayURL+"/leave", bytes.NewReader(payload)); err == nil {
		req.Header.Set("Content-Type", "application/json")
		if resp, err := e.httpClient.Do(req); err == nil {
			resp.Body.Close()
		}
	}

	return pc.Close()
}

func (e *PionEngine) Publish(ctx context.Context, tracks ...LocalTrack) error {
	e.mu.Lock()
	pc := e.pc
	e.mu.Unlock()
	if pc == nil {
		return errors.New("not joined")
	}

	for _, t := range tracks {
		lt, ok := t.(*pionLocalTrack)
		if !ok {
			return fmt.Errorf("unexpected local track type %T", t)
		}
		sender, err := pc.AddTrack(lt.track)
		if err != nil {
			return err
		}
		// Drain RTCP so the interceptors keep running.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
		e.mu.Lock()
		e.senders[t.ID()] = sender
		e.mu.Unlock()
		lt.start()
	}

	return e.renegotiate(ctx)
}

func (e *PionEngine) Unpublish(ctx context.Context, tracks ...LocalTrack) error {
	e.mu.Lock()
	pc := e.pc
	e.mu.Unlock()
	if pc == nil {
		return errors.New("not joined")
	}

	for _, t := range tracks {
		e.mu.Lock()
		sender := e.senders[t.ID()]
		delete(e.senders, t.ID())
		e.mu.Unlock()
		if sender == nil {
			continue
		}
		if err := pc.RemoveTrack(sender); err != nil {
			return err
		}
	}

	return e.renegotiate(ctx)
}

// renegotiate pushes an updated offer to the gateway after the published
// track set changed.
func (e *PionEngine) renegotiate(ctx context.Context) error {
	e.mu.Lock()
	pc := e.pc
	channel := e.channel
	e.mu.Unlock()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}
	<-gatherComplete

	answer, err := e.exchange(ctx, joinRequest{
		Channel: channel,
		SDP:     pc.LocalDescription().SDP,
	})
	if err != nil {
		return err
	}
	return pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	})
}

func (e *PionEngine) Subscribe(_ context.Context, p RemoteParticipant, kind TrackKind) error {
	// The gateway forwards every published track on the single peer
	// connection; subscribing means the track has actually arrived.
	remote, ok := p.(*pionRemoteParticipant)
	if !ok {
		return fmt.Errorf("unexpected remote participant type %T", p)
	}
	if remote.track(kind) == nil {
		return ErrSubscriptionUnavailable
	}
	return nil
}

func (e *PionEngine) CreateCameraTrack(profile config.EncoderProfile) (LocalTrack, error) {
	src, err := e.capture.OpenCamera(profile)
	if err != nil {
		return nil, err
	}
	return newLocalVideoTrack("camera", src, e.logger)
}

func (e *PionEngine) CreateMicrophoneTrack() (LocalTrack, error) {
	src, err := e.capture.OpenMicrophone()
	if err != nil {
		return nil, err
	}
	return newLocalAudioTrack("microphone", src, e.logger)
}

func (e *PionEngine) CreateScreenTracks(profile config.EncoderProfile) ([]LocalTrack, error) {
	video, audio, err := e.capture.OpenScreen(profile)
	if err != nil {
		return nil, err
	}
	vt, err := newLocalVideoTrack("screen", video, e.logger)
	if err != nil {
		video.Close()
		if audio != nil {
			audio.Close()
		}
		return nil, err
	}
	tracks := []LocalTrack{vt}
	if audio != nil {
		at, err := newLocalAudioTrack("screen-audio", audio, e.logger)
		if err != nil {
			vt.Close()
			audio.Close()
			return nil, err
		}
		tracks = append(tracks, at)
	}
	return tracks, nil
}

func (e *PionEngine) ScreenShareSupported() bool {
	return e.capture.ScreenSupported()
}

// handleTrack maps an incoming pion track onto a remote participant keyed by
// the track's stream ID.
func (e *PionEngine) handleTrack(track *webrtc.TrackRemote) {
	kind := KindVideo
	if track.Kind() == webrtc.RTPCodecTypeAudio {
		kind = KindAudio
	}

	e.mu.Lock()
	remote, ok := e.remotes[track.StreamID()]
	if !ok {
		remote = &pionRemoteParticipant{id: track.StreamID(), renderer: e.renderer}
		e.remotes[track.StreamID()] = remote
	}
	remote.setTrack(kind, track)
	fn := e.onPublished
	e.mu.Unlock()

	e.logger.Debug().
		Str("remote", track.StreamID()).
		Str("kind", string(kind)).
		Msg("remote track received")

	if fn != nil {
		fn(remote, kind)
	}
}

// pionLocalTrack pumps an RTPSource into a static RTP track.
type pionLocalTrack struct {
	id     string
	kind   TrackKind
	track  *webrtc.TrackLocalStaticRTP
	src    RTPSource
	logger zerolog.Logger

	mu      sync.Mutex
	onEnded func()
	started bool
	closed  bool
}

func newLocalVideoTrack(label string, src RTPSource, logger zerolog.Logger) (*pionLocalTrack, error) {
	id := label + "-" + uuid.NewString()
	track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeVP8,
		ClockRate: 90000,
	}, id, id)
	if err != nil {
		src.Close()
		return nil, err
	}
	return &pionLocalTrack{id: id, kind: KindVideo, track: track, src: src, logger: logger}, nil
}

func newLocalAudioTrack(label string, src RTPSource, logger zerolog.Logger) (*pionLocalTrack, error) {
	id := label + "-" + uuid.NewString()
	track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	}, id, id)
	if err != nil {
		src.Close()
		return nil, err
	}
	return &pionLocalTrack{id: id, kind: KindAudio, track: track, src: src, logger: logger}, nil
}

func (t *pionLocalTrack) ID() string      { return t.id }
func (t *pionLocalTrack) Kind() TrackKind { return t.kind }

func (t *pionLocalTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = fn
}

// start begins the pump. Idempotent; the pump ends when the source does.
func (t *pionLocalTrack) start() {
	t.mu.Lock()
	if t.started || t.closed {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	go func() {
		for {
			pkt, err := t.src.ReadRTP()
			if err != nil {
				t.mu.Lock()
				ended := t.onEnded
				wasClosed := t.closed
				t.mu.Unlock()
				if !wasClosed {
					t.logger.Debug().Err(err).Str("track", t.id).Msg("capture source ended")
					if ended != nil {
						ended()
					}
				}
				return
			}
			if err := t.track.WriteRTP(pkt); err != nil {
				var closedErr net.Error
				if errors.As(err, &closedErr) || errors.Is(err, io.ErrClosedPipe) {
					return
				}
			}
		}
	}()
}

func (t *pionLocalTrack) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.src.Close()
}

// pionRemoteParticipant groups one remote stream's tracks.
type pionRemoteParticipant struct {
	id       string
	renderer Renderer

	mu    sync.Mutex
	video *pionRemoteTrack
	audio *pionRemoteTrack
}

func (p *pionRemoteParticipant) ID() string { return p.id }

func (p *pionRemoteParticipant) VideoTrack() RemoteTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.video == nil {
		return nil
	}
	return p.video
}

func (p *pionRemoteParticipant) AudioTrack() RemoteTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio == nil {
		return nil
	}
	return p.audio
}

func (p *pionRemoteParticipant) setTrack(kind TrackKind, track *webrtc.TrackRemote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rt := &pionRemoteTrack{id: track.ID(), kind: kind, track: track, renderer: p.renderer}
	if kind == KindVideo {
		p.video = rt
	} else {
		p.audio = rt
	}
}

func (p *pionRemoteParticipant) track(kind TrackKind) *pionRemoteTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	if kind == KindVideo {
		return p.video
	}
	return p.audio
}

func (p *pionRemoteParticipant) stopAll() {
	p.mu.Lock()
	video, audio := p.video, p.audio
	p.mu.Unlock()
	if video != nil {
		video.Stop()
	}
	if audio != nil {
		audio.Stop()
	}
}

// pionRemoteTrack forwards a remote track's payloads into the renderer.
type pionRemoteTrack struct {
	id       string
	kind     TrackKind
	track    *webrtc.TrackRemote
	renderer Renderer

	mu      sync.Mutex
	playing bool
	stop    chan struct{}
}

func (t *pionRemoteTrack) ID() string      { return t.id }
func (t *pionRemoteTrack) Kind() TrackKind { return t.kind }

func (t *pionRemoteTrack) Play() error {
	t.mu.Lock()
	if t.playing {
		t.mu.Unlock()
		return nil
	}

	var sink io.WriteCloser
	var err error
	if t.kind == KindAudio {
		sink, err = t.renderer.OpenAudio(t.id)
	} else {
		sink, err = t.renderer.OpenVideo(t.id)
	}
	if err != nil {
		t.mu.Unlock()
		return err
	}

	t.playing = true
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	go func() {
		defer sink.Close()
		buf := make([]byte, 1600)
		for {
			select {
			case <-stop:
				return
			default:
			}
			n, _, err := t.track.Read(buf)
			if err != nil {
				return
			}
			pkt := &rtp.Packet{}
			if err := pkt.Unmarshal(buf[:n]); err != nil {
				continue
			}
			if _, err := sink.Write(pkt.Payload); err != nil {
				return
			}
		}
	}()
	return nil
}

func (t *pionRemoteTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing {
		return
	}
	t.playing = false
	close(t.stop)
}
