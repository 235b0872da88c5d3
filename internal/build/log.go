package build

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
	"github.com/roasbeef/skylark/internal/baselib/actor"
	"github.com/roasbeef/skylark/internal/client"
	"github.com/roasbeef/skylark/internal/gateway"
	"github.com/roasbeef/skylark/internal/live"
	"github.com/roasbeef/skylark/internal/mapper"
	"github.com/roasbeef/skylark/internal/notifications"
	"github.com/roasbeef/skylark/internal/poll"
	"github.com/roasbeef/skylark/internal/session"
)

// LogConfig holds the daemon-wide logging configuration.
type LogConfig struct {
	// Level is the log level applied to all subsystems, as parsed by
	// btclog (trace, debug, info, warn, error, critical, off).
	Level string

	// NoFile disables the rotating log file, leaving console output only.
	NoFile bool

	// Rotator configures the on-disk log file when enabled.
	Rotator *LogRotatorConfig
}

// DefaultLogConfig returns a LogConfig writing info-level logs to the console
// and a rotating file under the given directory.
func DefaultLogConfig(logDir string) *LogConfig {
	rotatorCfg := DefaultLogRotatorConfig()
	rotatorCfg.LogDir = logDir

	return &LogConfig{
		Level:   "info",
		Rotator: rotatorCfg,
	}
}

// LogWriter bundles the root handler set with the file rotator it may be
// writing to, so the caller can close the rotator on shutdown.
type LogWriter struct {
	// Root is the handler set fanning out to all configured sinks.
	Root *HandlerSet

	rotator *RotatingLogWriter
}

// Close flushes and closes the rotating log file, if one was opened.
func (w *LogWriter) Close() error {
	if w.rotator != nil {
		return w.rotator.Close()
	}

	return nil
}

// InitLogging constructs the root handler set from the config and installs a
// tagged sub-logger into every subsystem package. It must run before any
// subsystem starts emitting logs.
func InitLogging(cfg *LogConfig) (*LogWriter, error) {
	handlers := []btclogv2.Handler{
		btclogv2.NewDefaultHandler(os.Stdout),
	}

	w := &LogWriter{}
	if !cfg.NoFile && cfg.Rotator != nil {
		rotator, err := NewRotatingLogWriter(cfg.Rotator)
		if err != nil {
			return nil, fmt.Errorf("unable to init log "+
				"rotator: %w", err)
		}
		w.rotator = rotator

		handlers = append(handlers, btclogv2.NewDefaultHandler(
			w.rotator, btclogv2.WithNoTimestamp(),
		))
	}

	w.Root = NewHandlerSet(handlers...)

	level, ok := btclog.LevelFromString(cfg.Level)
	if !ok {
		return nil, fmt.Errorf("unknown log level: %q", cfg.Level)
	}
	w.Root.SetLevel(level)

	setupSubLoggers(w.Root)

	return w, nil
}

// setupSubLoggers hands each package a logger tagged with its subsystem code.
func setupSubLoggers(root *HandlerSet) {
	sub := func(tag string) btclogv2.Logger {
		return btclogv2.NewSLogger(root.SubSystem(tag))
	}

	actor.UseLogger(sub(actor.Subsystem))
	client.UseLogger(sub(client.Subsystem))
	live.UseLogger(sub(live.Subsystem))
	poll.UseLogger(sub(poll.Subsystem))
	mapper.UseLogger(sub(mapper.Subsystem))
	session.UseLogger(sub(session.Subsystem))
	notifications.UseLogger(sub(notifications.Subsystem))
	gateway.UseLogger(sub(gateway.Subsystem))
}
