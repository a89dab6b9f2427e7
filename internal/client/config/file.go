package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/inboxpilot/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape. Pointers tell "absent" from "zero".
type fileConfig struct {
	APIBaseURL        *string         `json:"api_url" yaml:"api_url"`
	SocketURL         *string         `json:"socket_url" yaml:"socket_url"`
	DataDir           *string         `json:"data_dir" yaml:"data_dir"`
	DBFile            *string         `json:"db_file" yaml:"db_file"`
	CallbackAddr      *string         `json:"callback_addr" yaml:"callback_addr"`
	ReconnectAttempts *int            `json:"reconnect_attempts" yaml:"reconnect_attempts"`
	ReconnectDelay    *timex.Duration `json:"reconnect_delay" yaml:"reconnect_delay"`
	RequestTimeout    *timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	LogLevel          *string         `json:"log_level" yaml:"log_level"`
	StorePassphrase   *string         `json:"store_passphrase" yaml:"store_passphrase"`
	MetricsAddr       *string         `json:"metrics_addr" yaml:"metrics_addr"`
}

func loadFile(cfg *Config, path string, getenv func(string) string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	expanded := os.Expand(string(data), getenv)

	var fc fileConfig
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal([]byte(expanded), &fc)
	} else {
		err = yaml.Unmarshal([]byte(expanded), &fc)
	}
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc fileConfig) apply(cfg *Config) {
	setString(&cfg.APIBaseURL, fc.APIBaseURL)
	setString(&cfg.SocketURL, fc.SocketURL)
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.DBFile, fc.DBFile)
	setString(&cfg.CallbackAddr, fc.CallbackAddr)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.StorePassphrase, fc.StorePassphrase)
	setString(&cfg.MetricsAddr, fc.MetricsAddr)
	if fc.ReconnectAttempts != nil {
		cfg.ReconnectAttempts = *fc.ReconnectAttempts
	}
	if fc.ReconnectDelay != nil {
		cfg.ReconnectDelay = fc.ReconnectDelay.Duration
	}
	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
