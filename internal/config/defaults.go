package config

// Default values for optional configuration fields.
const (
	DefaultLogLevel         = "info"
	DefaultReconnectDelayMS = 5000
	DefaultMaxMessages      = 100
)

func (c *TailConfig) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	for i := range c.Connections {
		p := &c.Connections[i]
		if p.AutoReconnect && p.ReconnectDelayMS == 0 {
			p.ReconnectDelayMS = DefaultReconnectDelayMS
		}
		if p.StoreHistory && p.MaxMessages == 0 {
			p.MaxMessages = DefaultMaxMessages
		}
	}
}
