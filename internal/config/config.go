package config

import (
	"time"

	"github.com/wskeep/wskeep"
)

// TailConfig is the top-level configuration for wstail.
type TailConfig struct {
	Log         LogConfig `yaml:"log"`
	Connections []Profile `yaml:"connections"`
}

// LogConfig controls console logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Profile describes one supervised connection. Durations are integer
// milliseconds in YAML.
type Profile struct {
	Name                string `yaml:"name"`
	URL                 string `yaml:"url"`
	AutoReconnect       bool   `yaml:"auto_reconnect"`
	ReconnectDelayMS    int    `yaml:"reconnect_delay_ms"`
	StoreHistory        bool   `yaml:"store_history"`
	MaxMessages         int    `yaml:"max_messages"`
	HeartbeatIntervalMS int    `yaml:"heartbeat_interval_ms"`
}

// Options converts the profile into supervisor options.
func (p Profile) Options() wskeep.Options {
	return wskeep.Options{
		URL:               p.URL,
		AutoReconnect:     p.AutoReconnect,
		ReconnectDelay:    time.Duration(p.ReconnectDelayMS) * time.Millisecond,
		StoreHistory:      p.StoreHistory,
		MaxMessages:       p.MaxMessages,
		HeartbeatInterval: time.Duration(p.HeartbeatIntervalMS) * time.Millisecond,
	}
}
