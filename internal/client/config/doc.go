// Package config loads runtime configuration for inboxctl.
//
// Sources & precedence (later wins)
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file named by -c / --config. Files ending in .json are
//     read as JSON, anything else as YAML. ${VAR} references are expanded.
//  3. INBOXPILOT_* environment variables.
//  4. Command-line flags registered with RegisterFlags, when set.
//
// # File schema
//
// Intervals use timex.Duration, so "1s" and integer nanoseconds both work:
//
//	api_url: https://api.inboxpilot.app
//	socket_url: wss://api.inboxpilot.app/ws
//	data_dir: ~/.inboxpilot
//	reconnect_attempts: 5
//	reconnect_delay: 1s
//	request_timeout: 15s
//	log_level: info
package config
