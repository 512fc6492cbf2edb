package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultDomain, cfg.Domain)
	assert.Equal(t, "https://warpdrop.qzz.io/signaling", cfg.SignalingURL)
	assert.Equal(t, "wss://warpdrop.qzz.io/ws", cfg.WebSocketURL)
	assert.Equal(t, DefaultSTUNServers, cfg.GetSTUNServers())
	assert.Equal(t, DeviceDesktop, cfg.DeviceType)
	assert.Equal(t, TransportWebSocket, cfg.Transport)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.False(t, cfg.MirrorEnabled(), "mirror must stay off in production")
}

func TestLoad_Priority(t *testing.T) {
	t.Setenv("DOMAIN", "env.example.com")
	t.Setenv("DEVICE_TYPE", "mobile")
	t.Setenv("STUN_SERVER", "stun:a.example.com:3478, stun:b.example.com:3478")
	t.Setenv("WARPDROP_POLL_INTERVAL", "500ms")

	cfg, err := Load(Options{Domain: "flag.example.com"})
	require.NoError(t, err)

	assert.Equal(t, "flag.example.com", cfg.Domain)
	assert.Equal(t, DeviceMobile, cfg.DeviceType)
	assert.Equal(t, []string{"stun:a.example.com:3478", "stun:b.example.com:3478"}, cfg.STUNServers)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
}

func TestLoad_LocalDomainIsInsecure(t *testing.T) {
	cfg, err := Load(Options{Domain: "localhost:8080"})
	require.NoError(t, err)

	assert.True(t, cfg.Insecure)
	assert.Equal(t, "http://localhost:8080/signaling", cfg.SignalingURL)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.WebSocketURL)
	assert.Equal(t, "http://localhost:8080/r/abc", cfg.GetRoomLink("abc"))
}

func TestLoad_Mirror(t *testing.T) {
	t.Setenv("WARPDROP_ENV", "development")

	cfg, err := Load(Options{MirrorDomain: "127.0.0.1:9000"})
	require.NoError(t, err)

	assert.True(t, cfg.MirrorEnabled())
	assert.Equal(t, "http://127.0.0.1:9000/signaling", cfg.MirrorSignalingURL())
	assert.Equal(t, "ws://127.0.0.1:9000/ws", cfg.MirrorWebSocketURL())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		env  map[string]string
	}{
		{name: "device", opts: Options{DeviceType: "toaster"}},
		{name: "transport", opts: Options{Transport: "carrier-pigeon"}},
		{name: "env", opts: Options{Env: "staging"}},
		{name: "interval", env: map[string]string{"WARPDROP_HEARTBEAT_INTERVAL": "soon"}},
		{name: "bool", env: map[string]string{"WARPDROP_FORCE_RELAY": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestGetTURNServers(t *testing.T) {
	cfg, err := Load(Options{TURNServer: "turn:relay.example.com"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"turn:relay.example.com:3478?transport=udp",
		"turn:relay.example.com:3478?transport=tcp",
		"turns:relay.example.com:5349?transport=tcp",
	}, cfg.GetTURNServers())
}
