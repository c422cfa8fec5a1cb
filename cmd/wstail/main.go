// wstail supervises the WebSocket connections named in a YAML profile file
// and tails their state transitions and messages to the console.
// Usage: go run ./cmd/wstail --config configs/wstail.example.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/wskeep/wskeep"
	"github.com/wskeep/wskeep/internal/config"
	"github.com/wskeep/wskeep/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/wstail.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full message payloads")
	flag.Parse()

	bootLog := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		bootLog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))

	client := wskeep.New(wskeep.Config{Logger: logger})

	tail := &tailer{
		client:    client,
		verbose:   *verbose,
		lastPhase: make(map[string]wskeep.Phase),
		lastSeen:  make(map[string]uuid.UUID),
	}

	for _, p := range cfg.Connections {
		name := p.Name
		client.Subscribe(name, func() { tail.onChange(name) })
		client.Connect(name, p.Options())
		logger.Info("supervising connection", "conn", name, "url", p.URL)
	}

	// Stats printer
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				st := client.Stats()
				logger.Info("stats", "names", st.Names, "connected", st.Connected)
			}
		}
	}()

	logger.Info("tailing started - press Ctrl+C to stop", "version", version.String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	close(stop)
	client.Close()
	logger.Info("shutdown complete")
}

// tailer prints phase transitions and newly arrived messages. Change
// notifications carry no payload, so it re-reads the snapshot and dedups
// messages by ID.
type tailer struct {
	client  *wskeep.Client
	verbose bool

	mu        sync.Mutex
	lastPhase map[string]wskeep.Phase
	lastSeen  map[string]uuid.UUID
}

func (t *tailer) onChange(name string) {
	st := t.client.GetState(name)

	t.mu.Lock()
	phaseChanged := t.lastPhase[name] != st.Phase
	t.lastPhase[name] = st.Phase
	t.mu.Unlock()

	if phaseChanged {
		fmt.Printf("[%s] phase=%s\n", name, st.Phase)
	}

	msg, ok := t.client.Latest(name)
	if !ok {
		return
	}

	t.mu.Lock()
	seen := t.lastSeen[name] == msg.ID
	t.lastSeen[name] = msg.ID
	t.mu.Unlock()
	if seen {
		return
	}

	if eot, ok := msg.Payload.(wskeep.EndOfTransfer); ok {
		fmt.Printf("[%s] end of transfer after %s of silence\n", name, eot.Idle)
		return
	}

	if t.verbose {
		data, _ := json.MarshalIndent(msg.Payload, "", "  ")
		fmt.Printf("[%s] %s\n", name, data)
	} else {
		fmt.Printf("[%s] received_at=%s payload=%s\n",
			name, msg.ReceivedAt.Format(time.RFC3339Nano), trunc(fmt.Sprintf("%v", msg.Payload), 120))
	}
}

func trunc(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
