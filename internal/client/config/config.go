package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/inboxpilot/internal/filex"
	"github.com/dmitrijs2005/inboxpilot/internal/flagx"
)

type Config struct {
	APIBaseURL        string
	SocketURL         string
	DataDir           string
	DBFile            string
	CallbackAddr      string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	RequestTimeout    time.Duration
	LogLevel          string
	StorePassphrase   string
	MetricsAddr       string
}

func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:3000"
	c.SocketURL = ""
	c.DataDir = "~/.inboxpilot"
	c.DBFile = "inboxpilot.db"
	c.CallbackAddr = "127.0.0.1:8765"
	c.ReconnectAttempts = 5
	c.ReconnectDelay = time.Second
	c.RequestTimeout = 15 * time.Second
	c.LogLevel = "warn"
	c.StorePassphrase = ""
	c.MetricsAddr = ""
}

// Load builds a Config from defaults, the config file named in args and the
// environment. Flags are applied separately with ApplyFlags once the command
// parser has run.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := flagx.ConfigFile(args); path != "" {
		if err := loadFile(cfg, path, getenv); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

var ErrInvalid = errors.New("invalid config")

func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api url %q must be absolute", ErrInvalid, c.APIBaseURL)
	}
	if c.SocketURL != "" {
		s, err := url.Parse(c.SocketURL)
		if err != nil || (s.Scheme != "ws" && s.Scheme != "wss") {
			return fmt.Errorf("%w: socket url %q must use ws or wss", ErrInvalid, c.SocketURL)
		}
	}
	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("%w: reconnect attempts must not be negative", ErrInvalid)
	}
	if c.ReconnectDelay <= 0 || c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: reconnect delay and request timeout must be positive", ErrInvalid)
	}
	return nil
}

// SocketEndpoint is SocketURL, or the API base with a ws scheme and /ws path
// when SocketURL is unset.
func (c *Config) SocketEndpoint() string {
	if c.SocketURL != "" {
		return c.SocketURL
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String()
}

// CallbackURL is where the OAuth flow sends the browser back to.
func (c *Config) CallbackURL() string {
	return "http://" + c.CallbackAddr + "/callback"
}

// DBPath resolves the database file inside DataDir, creating the directory.
// ":memory:" is passed through.
func (c *Config) DBPath() (string, error) {
	if c.DBFile == ":memory:" || filepath.IsAbs(c.DBFile) {
		return c.DBFile, nil
	}
	dir, err := filex.EnsureDir(c.DataDir)
	if err != nil {
		return "", fmt.Errorf("data dir: %w", err)
	}
	return filepath.Join(dir, c.DBFile), nil
}
