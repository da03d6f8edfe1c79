package broadcast

import (
	"fmt"
	"net"

	"github.com/pion/rtp"

	"github.com/mathivegas/unistream-client/internal/config"
)

// RTPSource produces the RTP packets of one captured media track.
type RTPSource interface {
	ReadRTP() (*rtp.Packet, error)
	Close() error
}

// CaptureProvider opens local media sources. Running headless, capture is
// delegated to an external pipeline (ffmpeg, gstreamer) that encodes the
// device and hands the client raw RTP.
type CaptureProvider interface {
	OpenCamera(profile config.EncoderProfile) (RTPSource, error)
	OpenMicrophone() (RTPSource, error)
	// OpenScreen returns the screen video source and, when the pipeline
	// captures system audio too, an audio source (nil otherwise).
	OpenScreen(profile config.EncoderProfile) (RTPSource, RTPSource, error)
	ScreenSupported() bool
}

// UDPCaptureProvider reads RTP from loopback UDP ports fed by an external
// encoder process.
type UDPCaptureProvider struct {
	cfg config.CaptureConfig
}

// NewUDPCaptureProvider creates a provider over the given port layout.
func NewUDPCaptureProvider(cfg config.CaptureConfig) *UDPCaptureProvider {
	return &UDPCaptureProvider{cfg: cfg}
}

func (p *UDPCaptureProvider) OpenCamera(_ config.EncoderProfile) (RTPSource, error) {
	return openUDPSource(p.cfg.CameraPort)
}

func (p *UDPCaptureProvider) OpenMicrophone() (RTPSource, error) {
	return openUDPSource(p.cfg.MicrophonePort)
}

func (p *UDPCaptureProvider) OpenScreen(_ config.EncoderProfile) (RTPSource, RTPSource, error) {
	if !p.ScreenSupported() {
		return nil, nil, ErrScreenShareUnsupported
	}
	video, err := openUDPSource(p.cfg.ScreenPort)
	if err != nil {
		return nil, nil, err
	}
	if p.cfg.ScreenAudioPort == 0 {
		return video, nil, nil
	}
	audio, err := openUDPSource(p.cfg.ScreenAudioPort)
	if err != nil {
		video.Close()
		return nil, nil, err
	}
	return video, audio, nil
}

func (p *UDPCaptureProvider) ScreenSupported() bool {
	return p.cfg.ScreenPort != 0
}

type udpSource struct {
	conn *net.UDPConn
	buf  []byte
}

func openUDPSource(port int) (RTPSource, error) {
	if port == 0 {
		return nil, fmt.Errorf("%w: no capture port configured", ErrPermissionDenied)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{
		IP:   net.IPv4(127, 0, 0, 1),
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open capture port %d: %w", port, err)
	}
	return &udpSource{conn: conn, buf: make([]byte, 1600)}, nil
}

func (s *udpSource) ReadRTP() (*rtp.Packet, error) {
	n, _, err := s.conn.ReadFromUDP(s.buf)
	if err != nil {
		return nil, err
	}
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(s.buf[:n]); err != nil {
		return nil, err
	}
	return pkt, nil
}

func (s *udpSource) Close() error {
	return s.conn.Close()
}
