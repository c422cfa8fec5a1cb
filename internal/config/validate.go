package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *TailConfig) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level)
	}

	if len(c.Connections) == 0 {
		return errors.New("at least one connection is required")
	}

	seen := make(map[string]struct{}, len(c.Connections))
	for i, p := range c.Connections {
		prefix := fmt.Sprintf("connections[%d]", i)

		if p.Name == "" {
			return fmt.Errorf("%s.name is required", prefix)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%s.name %q is duplicated", prefix, p.Name)
		}
		seen[p.Name] = struct{}{}

		if p.URL == "" {
			return fmt.Errorf("%s.url is required", prefix)
		}
		if !strings.HasPrefix(p.URL, "ws://") && !strings.HasPrefix(p.URL, "wss://") {
			return fmt.Errorf("%s.url must start with ws:// or wss://, got %q", prefix, p.URL)
		}

		if p.ReconnectDelayMS < 0 {
			return fmt.Errorf("%s.reconnect_delay_ms must be >= 0", prefix)
		}
		if p.MaxMessages < 0 {
			return fmt.Errorf("%s.max_messages must be >= 0", prefix)
		}
		if p.HeartbeatIntervalMS < 0 {
			return fmt.Errorf("%s.heartbeat_interval_ms must be >= 0", prefix)
		}
	}

	return nil
}
