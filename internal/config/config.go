package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default configuration values
const (
	DefaultSTUN        = "stun:stun.l.google.com:19302"
	DefaultRingTimeout = 30 * time.Second
	DefaultEnvFile     = ".env"
)

// ErrNoSignalingURL means no relay address was configured anywhere.
var ErrNoSignalingURL = errors.New("signaling URL is not configured")

// Config holds client configuration
type Config struct {
	// SignalingURL is the relay address as configured.
	SignalingURL string

	// WebSocketURL is derived from SignalingURL; empty when calls are disabled.
	WebSocketURL string

	// UserID identifies this user for presence rooms and direct calls.
	UserID string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	RingTimeout time.Duration
}

// Options for loading config with CLI flag overrides
type Options struct {
	SignalingURL string
	UserID       string
	STUNServer   string
	TURNServer   string
	TURNUser     string
	TURNPass     string
	RingTimeout  time.Duration

	// EnvFile defaults to .env in the working directory. A missing file is fine.
	EnvFile string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. The .env file
// 4. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
		dotenv = map[string]string{}
	}

	pick := func(flag, key, def string) string {
		if flag != "" {
			return flag
		}
		if v := os.Getenv(key); v != "" {
			return v
		}
		if v := dotenv[key]; v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		SignalingURL: pick(opts.SignalingURL, "SIGNALING_URL", ""),
		UserID:       pick(opts.UserID, "HUDDLE_USER", ""),
		STUNServer:   pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer:   pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:     pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:     pick(opts.TURNPass, "TURN_PASSWORD", ""),
		RingTimeout:  opts.RingTimeout,
	}

	if cfg.RingTimeout <= 0 {
		raw := pick("", "RING_TIMEOUT", "")
		cfg.RingTimeout = DefaultRingTimeout
		if raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("invalid RING_TIMEOUT %q", raw)
			}
			cfg.RingTimeout = d
		}
	}

	if cfg.SignalingURL != "" {
		ws, err := WebSocketURL(cfg.SignalingURL)
		if err != nil {
			return nil, err
		}
		cfg.WebSocketURL = ws
	}

	return cfg, nil
}

// CallsEnabled reports whether a relay is configured.
func (c *Config) CallsEnabled() bool {
	return c.WebSocketURL != ""
}

// WebSocketURL turns a relay address into the URL of its /ws endpoint.
// http and https map to ws and wss; a bare host gets wss.
func WebSocketURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoSignalingURL
	}
	if !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid signaling URL %q: %w", raw, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported signaling URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid signaling URL %q: missing host", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// HTTPURL returns the relay's HTTP URL for p, resolved next to the
// websocket endpoint so a relay mounted under a prefix keeps it.
func (c *Config) HTTPURL(p string) (string, error) {
	if !c.CallsEnabled() {
		return "", ErrNoSignalingURL
	}
	u, err := url.Parse(c.WebSocketURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "wss" {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	u.Path = path.Join(path.Dir(u.Path), p)
	u.RawPath = ""
	return u.String(), nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
// A bare turn:host expands to the usual UDP, TCP and TLS ports.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turns:"), "turn:")
	if strings.Contains(host, "?") {
		return []string{c.TURNServer}
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return []string{c.TURNServer}
	}
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
