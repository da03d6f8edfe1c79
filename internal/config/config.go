package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/mathivegas/unistream-client/pkg/config"
	"github.com/mathivegas/unistream-client/pkg/log"
)

type Config struct {
	Backend   BackendConfig
	Realtime  RealtimeConfig
	Broadcast BroadcastConfig
	Leveling  LevelingConfig
	Store     StoreConfig
	Log       log.Config
}

type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RealtimeConfig struct {
	URL               string        `mapstructure:"url"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	PongWait          time.Duration `mapstructure:"pong_wait"`
	WriteWait         time.Duration `mapstructure:"write_wait"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

type BroadcastConfig struct {
	AppID             string         `mapstructure:"app_id"`
	GatewayURL        string         `mapstructure:"gateway_url"`
	Camera            EncoderProfile `mapstructure:"camera"`
	Screen            EncoderProfile `mapstructure:"screen"`
	Capture           CaptureConfig  `mapstructure:"capture"`
	SwitchSettleDelay time.Duration  `mapstructure:"switch_settle_delay"`
	BindRetryDelay    time.Duration  `mapstructure:"bind_retry_delay"`
}

// CaptureConfig names the loopback RTP ports an external encoder process
// pushes captured media to. A zero screen port disables screen sharing.
type CaptureConfig struct {
	CameraPort      int `mapstructure:"camera_port"`
	MicrophonePort  int `mapstructure:"microphone_port"`
	ScreenPort      int `mapstructure:"screen_port"`
	ScreenAudioPort int `mapstructure:"screen_audio_port"`
}

// EncoderProfile bounds the published video encoder. Bitrates are in kbps.
type EncoderProfile struct {
	Width      int `mapstructure:"width"`
	Height     int `mapstructure:"height"`
	FrameRate  int `mapstructure:"frame_rate"`
	BitrateMin int `mapstructure:"bitrate_min"`
	BitrateMax int `mapstructure:"bitrate_max"`
}

type LevelingConfig struct {
	HoursPerLevel float64 `mapstructure:"hours_per_level"`
	// TimeAcceleration scales wall-clock time into streamed hours. The
	// platform demo runs at 360 (ten real seconds count as one hour); set
	// to 1 for real-time accounting.
	TimeAcceleration  float64       `mapstructure:"time_acceleration"`
	PointsPerMessage  int           `mapstructure:"points_per_message"`
	LevelUpBannerTime time.Duration `mapstructure:"level_up_banner_time"`
	// LevelRecomputeInterval is how often the streamer level is re-derived
	// from the running session's hours while on air.
	LevelRecomputeInterval time.Duration `mapstructure:"level_recompute_interval"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "unistream")
	if err != nil {
		return nil, err
	}

	// Defaults
	v.SetDefault("backend.base_url", "http://localhost:3000")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("realtime.url", "ws://localhost:3000/ws")
	v.SetDefault("realtime.ping_interval", "30s")
	v.SetDefault("realtime.pong_wait", "60s")
	v.SetDefault("realtime.write_wait", "10s")
	v.SetDefault("realtime.max_message_size", 4096)
	v.SetDefault("realtime.reconnect_attempts", 5)
	v.SetDefault("realtime.reconnect_delay", "1s")
	v.SetDefault("realtime.heartbeat_interval", "30s")
	v.SetDefault("broadcast.app_id", "")
	v.SetDefault("broadcast.gateway_url", "http://localhost:3000/broadcast")
	v.SetDefault("broadcast.camera.width", 640)
	v.SetDefault("broadcast.camera.height", 480)
	v.SetDefault("broadcast.camera.frame_rate", 30)
	v.SetDefault("broadcast.camera.bitrate_min", 600)
	v.SetDefault("broadcast.camera.bitrate_max", 1500)
	v.SetDefault("broadcast.screen.width", 1920)
	v.SetDefault("broadcast.screen.height", 1080)
	v.SetDefault("broadcast.screen.frame_rate", 30)
	v.SetDefault("broadcast.screen.bitrate_min", 1000)
	v.SetDefault("broadcast.screen.bitrate_max", 3000)
	v.SetDefault("broadcast.capture.camera_port", 5004)
	v.SetDefault("broadcast.capture.microphone_port", 5006)
	v.SetDefault("broadcast.capture.screen_port", 5008)
	v.SetDefault("broadcast.capture.screen_audio_port", 0)
	v.SetDefault("broadcast.switch_settle_delay", "500ms")
	v.SetDefault("broadcast.bind_retry_delay", "300ms")
	v.SetDefault("leveling.hours_per_level", 5.0)
	v.SetDefault("leveling.time_acceleration", 360.0)
	v.SetDefault("leveling.points_per_message", 1)
	v.SetDefault("leveling.level_up_banner_time", "2s")
	v.SetDefault("leveling.level_recompute_interval", "1s")
	v.SetDefault("store.path", "unistream.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Environment overrides
	v.BindEnv("backend.base_url", "UNISTREAM_API_URL")
	v.BindEnv("realtime.url", "UNISTREAM_WS_URL")
	v.BindEnv("broadcast.app_id", "UNISTREAM_BROADCAST_APP_ID")
	v.BindEnv("broadcast.gateway_url", "UNISTREAM_BROADCAST_GATEWAY")
	v.BindEnv("store.path", "UNISTREAM_STORE_PATH")
	v.BindEnv("log.level", "UNISTREAM_LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Durations arrive as strings from env overrides; re-parse explicitly.
	cfg.Backend.Timeout = parseDuration(v, "backend.timeout", 10*time.Second)
	cfg.Realtime.PingInterval = parseDuration(v, "realtime.ping_interval", 30*time.Second)
	cfg.Realtime.PongWait = parseDuration(v, "realtime.pong_wait", 60*time.Second)
	cfg.Realtime.WriteWait = parseDuration(v, "realtime.write_wait", 10*time.Second)
	cfg.Realtime.ReconnectDelay = parseDuration(v, "realtime.reconnect_delay", time.Second)
	cfg.Realtime.HeartbeatInterval = parseDuration(v, "realtime.heartbeat_interval", 30*time.Second)
	cfg.Broadcast.SwitchSettleDelay = parseDuration(v, "broadcast.switch_settle_delay", 500*time.Millisecond)
	cfg.Broadcast.BindRetryDelay = parseDuration(v, "broadcast.bind_retry_delay", 300*time.Millisecond)
	cfg.Leveling.LevelUpBannerTime = parseDuration(v, "leveling.level_up_banner_time", 2*time.Second)
	cfg.Leveling.LevelRecomputeInterval = parseDuration(v, "leveling.level_recompute_interval", time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
