package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)

	assert.Equal(t, "ws://localhost:3000/ws", cfg.Realtime.URL)
	assert.Equal(t, 30*time.Second, cfg.Realtime.HeartbeatInterval)
	assert.Equal(t, 5, cfg.Realtime.ReconnectAttempts)
	assert.Equal(t, time.Second, cfg.Realtime.ReconnectDelay)

	assert.Equal(t, 640, cfg.Broadcast.Camera.Width)
	assert.Equal(t, 480, cfg.Broadcast.Camera.Height)
	assert.Equal(t, 30, cfg.Broadcast.Camera.FrameRate)
	assert.Equal(t, 600, cfg.Broadcast.Camera.BitrateMin)
	assert.Equal(t, 1500, cfg.Broadcast.Camera.BitrateMax)
	assert.Equal(t, 1920, cfg.Broadcast.Screen.Width)
	assert.Equal(t, 1080, cfg.Broadcast.Screen.Height)
	assert.Equal(t, 3000, cfg.Broadcast.Screen.BitrateMax)
	assert.Equal(t, 500*time.Millisecond, cfg.Broadcast.SwitchSettleDelay)
	assert.Equal(t, 5004, cfg.Broadcast.Capture.CameraPort)
	assert.Equal(t, 5008, cfg.Broadcast.Capture.ScreenPort)

	assert.Equal(t, 5.0, cfg.Leveling.HoursPerLevel)
	assert.Equal(t, 360.0, cfg.Leveling.TimeAcceleration)
	assert.Equal(t, 1, cfg.Leveling.PointsPerMessage)
	assert.Equal(t, 2*time.Second, cfg.Leveling.LevelUpBannerTime)
	assert.Equal(t, time.Second, cfg.Leveling.LevelRecomputeInterval)

	assert.Equal(t, "unistream.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("UNISTREAM_API_URL", "https://api.unistream.test")
	t.Setenv("UNISTREAM_STORE_PATH", "/tmp/alt.db")
	t.Setenv("UNISTREAM_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.unistream.test", cfg.Backend.BaseURL)
	assert.Equal(t, "/tmp/alt.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}
