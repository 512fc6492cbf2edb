package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain       = "warpdrop.qzz.io"
	DefaultMirrorDomain = "localhost:8080"
	DefaultTURN         = "turn:warpdrop.qzz.io"
	DefaultTURNUser     = "warpdrop"
	DefaultTURNPass     = "warpdrop-secret"
	DefaultEnv          = EnvProduction
	DefaultDeviceType   = DeviceDesktop
	DefaultTransport    = TransportWebSocket

	DefaultPollInterval      = 2 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
)

// Deployment environments. The mirror endpoint is only tried outside production.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Device types announced to other peers.
const (
	DeviceR1      = "r1"
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
)

// Signaling transports.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "ws"
)

// DefaultSTUNServers are used when neither a flag nor STUN_SERVER is set.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
}

// Config holds application configuration
type Config struct {
	// Domain is the rendezvous server domain
	Domain string

	// MirrorDomain is tried when Domain is unreachable, outside production only
	MirrorDomain string

	Env string

	// Insecure selects http/ws instead of https/wss
	Insecure bool

	// SignalingURL and WebSocketURL are constructed from domain
	SignalingURL string
	WebSocketURL string

	DeviceType string

	// ICE servers for WebRTC
	STUNServers []string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool

	Transport         string
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain       string
	MirrorDomain string
	Env          string
	Insecure     bool
	DeviceType   string

	// STUNServer may list several servers separated by commas
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	Transport         string
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstNonEmpty(opts.Domain, os.Getenv("DOMAIN"), DefaultDomain)
	mirror := firstNonEmpty(opts.MirrorDomain, os.Getenv("WARPDROP_MIRROR"), DefaultMirrorDomain)
	env := strings.ToLower(firstNonEmpty(opts.Env, os.Getenv("WARPDROP_ENV"), DefaultEnv))
	deviceType := strings.ToLower(firstNonEmpty(opts.DeviceType, os.Getenv("DEVICE_TYPE"), DefaultDeviceType))
	transport := strings.ToLower(firstNonEmpty(opts.Transport, os.Getenv("WARPDROP_TRANSPORT"), DefaultTransport))

	stunServers := DefaultSTUNServers
	if s := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER")); s != "" {
		stunServers = splitList(s)
	}

	insecure, err := boolOption(opts.Insecure, "WARPDROP_INSECURE")
	if err != nil {
		return nil, err
	}
	forceRelay, err := boolOption(opts.ForceRelay, "WARPDROP_FORCE_RELAY")
	if err != nil {
		return nil, err
	}

	pollInterval, err := durationOption(opts.PollInterval, "WARPDROP_POLL_INTERVAL", DefaultPollInterval)
	if err != nil {
		return nil, err
	}
	heartbeatInterval, err := durationOption(opts.HeartbeatInterval, "WARPDROP_HEARTBEAT_INTERVAL", DefaultHeartbeatInterval)
	if err != nil {
		return nil, err
	}

	// Local development servers rarely have certificates.
	if isLocal(domain) {
		insecure = true
	}

	cfg := &Config{
		Domain:            domain,
		MirrorDomain:      mirror,
		Env:               env,
		Insecure:          insecure,
		DeviceType:        deviceType,
		STUNServers:       stunServers,
		TURNServer:        firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN),
		TURNUser:          firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser),
		TURNPass:          firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass),
		ForceRelay:        forceRelay,
		Transport:         transport,
		PollInterval:      pollInterval,
		HeartbeatInterval: heartbeatInterval,
	}
	cfg.SignalingURL = signalingURL(domain, insecure)
	cfg.WebSocketURL = webSocketURL(domain, insecure)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DeviceType {
	case DeviceR1, DeviceMobile, DeviceDesktop:
	default:
		return fmt.Errorf("unknown device type %q (want r1, mobile or desktop)", c.DeviceType)
	}
	switch c.Transport {
	case TransportHTTP, TransportWebSocket:
	default:
		return fmt.Errorf("unknown transport %q (want http or ws)", c.Transport)
	}
	switch c.Env {
	case EnvProduction, EnvDevelopment:
	default:
		return fmt.Errorf("unknown environment %q (want production or development)", c.Env)
	}
	if c.PollInterval <= 0 || c.HeartbeatInterval <= 0 {
		return errors.New("poll and heartbeat intervals must be positive")
	}
	return nil
}

// MirrorEnabled reports whether the mirror endpoint may be tried.
func (c *Config) MirrorEnabled() bool {
	return c.Env != EnvProduction && c.MirrorDomain != "" && c.MirrorDomain != c.Domain
}

// MirrorSignalingURL returns the request/response URL of the mirror endpoint.
func (c *Config) MirrorSignalingURL() string {
	return signalingURL(c.MirrorDomain, c.Insecure || isLocal(c.MirrorDomain))
}

// MirrorWebSocketURL returns the push URL of the mirror endpoint.
func (c *Config) MirrorWebSocketURL() string {
	return webSocketURL(c.MirrorDomain, c.Insecure || isLocal(c.MirrorDomain))
}

// GetRoomLink returns the webapp URL for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	scheme := "https"
	if c.Insecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/r/%s", scheme, c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return c.STUNServers
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func signalingURL(domain string, insecure bool) string {
	if insecure {
		return fmt.Sprintf("http://%s/signaling", domain)
	}
	return fmt.Sprintf("https://%s/signaling", domain)
}

func webSocketURL(domain string, insecure bool) string {
	if insecure {
		return fmt.Sprintf("ws://%s/ws", domain)
	}
	return fmt.Sprintf("wss://%s/ws", domain)
}

func isLocal(domain string) bool {
	host := domain
	if i := strings.LastIndex(domain, ":"); i > 0 && !strings.HasSuffix(domain, "]") {
		host = domain[:i]
	}
	return host == "localhost" || host == "127.0.0.1" || host == "[::1]"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func boolOption(flag bool, env string) (bool, error) {
	if flag {
		return true, nil
	}
	v, ok := os.LookupEnv(env)
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", env, err)
	}
	return b, nil
}

func durationOption(flag time.Duration, env string, def time.Duration) (time.Duration, error) {
	if flag != 0 {
		return flag, nil
	}
	v, ok := os.LookupEnv(env)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", env, err)
	}
	return d, nil
}
