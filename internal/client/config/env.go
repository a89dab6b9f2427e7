package config

import (
	"fmt"
	"strconv"
	"time"
)

const EnvPrefix = "INBOXPILOT_"

func applyEnv(cfg *Config, getenv func(string) string) error {
	strs := map[string]*string{
		"API_URL":          &cfg.APIBaseURL,
		"SOCKET_URL":       &cfg.SocketURL,
		"DATA_DIR":         &cfg.DataDir,
		"DB_FILE":          &cfg.DBFile,
		"CALLBACK_ADDR":    &cfg.CallbackAddr,
		"LOG_LEVEL":        &cfg.LogLevel,
		"STORE_PASSPHRASE": &cfg.StorePassphrase,
		"METRICS_ADDR":     &cfg.MetricsAddr,
	}
	for name, dst := range strs {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	if v := getenv(EnvPrefix + "RECONNECT_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRECONNECT_ATTEMPTS: %w", EnvPrefix, err)
		}
		cfg.ReconnectAttempts = n
	}

	durs := map[string]*time.Duration{
		"RECONNECT_DELAY": &cfg.ReconnectDelay,
		"REQUEST_TIMEOUT": &cfg.RequestTimeout,
	}
	for name, dst := range durs {
		v := getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}
	return nil
}
