package config

import (
	"github.com/spf13/pflag"
)

// Flag names shared by every inboxctl command.
const (
	FlagConfig            = "config"
	FlagAPIURL            = "api-url"
	FlagSocketURL         = "socket-url"
	FlagDataDir           = "data-dir"
	FlagDBFile            = "db-file"
	FlagCallbackAddr      = "callback-addr"
	FlagReconnectAttempts = "reconnect-attempts"
	FlagReconnectDelay    = "reconnect-delay"
	FlagRequestTimeout    = "request-timeout"
	FlagLogLevel          = "log-level"
)

// RegisterFlags declares the config flags on fs. Their defaults are only
// for help output; ApplyFlags copies values the user actually set.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP(FlagConfig, "c", "", "config file (.json or .yaml)")
	fs.String(FlagAPIURL, d.APIBaseURL, "backend base URL")
	fs.String(FlagSocketURL, d.SocketURL, "realtime websocket URL (default: derived from --api-url)")
	fs.String(FlagDataDir, d.DataDir, "directory for local state")
	fs.String(FlagDBFile, d.DBFile, "local database file name inside --data-dir")
	fs.String(FlagCallbackAddr, d.CallbackAddr, "loopback address for the login callback")
	fs.Int(FlagReconnectAttempts, d.ReconnectAttempts, "realtime reconnect attempts")
	fs.Duration(FlagReconnectDelay, d.ReconnectDelay, "delay between realtime reconnects")
	fs.Duration(FlagRequestTimeout, d.RequestTimeout, "backend request timeout")
	fs.String(FlagLogLevel, d.LogLevel, "log level: debug, info, warn, error")
}

// ApplyFlags overlays cfg with every flag set on the command line.
func ApplyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case FlagAPIURL:
			cfg.APIBaseURL, err = fs.GetString(f.Name)
		case FlagSocketURL:
			cfg.SocketURL, err = fs.GetString(f.Name)
		case FlagDataDir:
			cfg.DataDir, err = fs.GetString(f.Name)
		case FlagDBFile:
			cfg.DBFile, err = fs.GetString(f.Name)
		case FlagCallbackAddr:
			cfg.CallbackAddr, err = fs.GetString(f.Name)
		case FlagReconnectAttempts:
			cfg.ReconnectAttempts, err = fs.GetInt(f.Name)
		case FlagReconnectDelay:
			cfg.ReconnectDelay, err = fs.GetDuration(f.Name)
		case FlagRequestTimeout:
			cfg.RequestTimeout, err = fs.GetDuration(f.Name)
		case FlagLogLevel:
			cfg.LogLevel, err = fs.GetString(f.Name)
		}
	})
	return err
}
