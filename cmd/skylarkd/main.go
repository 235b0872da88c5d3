// skylarkd is the connector daemon: it signs in with the account's cookie
// file, runs the session controller against the platform, and serves the
// websocket gateway host processes attach to.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roasbeef/skylark/internal/build"
	"github.com/roasbeef/skylark/internal/client"
	"github.com/roasbeef/skylark/internal/gateway"
	"github.com/roasbeef/skylark/internal/live"
	"github.com/roasbeef/skylark/internal/model"
	"github.com/roasbeef/skylark/internal/notifications"
	"github.com/roasbeef/skylark/internal/session"
)

var (
	configPath  string
	listenAddr  string
	cookiesPath string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "skylarkd",
	Short: "Skylark platform connector daemon",
	Long: `skylarkd connects one account to the platform's private web API
and bridges it to host processes over a local websocket gateway: direct
messages, the notifications feed, typing activity and live updates.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}

		// Flags override the merged file and env configuration.
		if listenAddr != "" {
			cfg.Listen = listenAddr
		}
		if cookiesPath != "" {
			cfg.Cookies = cookiesPath
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "",
		"Path to TOML config file (default: ~/.skylark/skylark.toml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&listenAddr, "listen", "",
		"Gateway bind address (default: 127.0.0.1:9390)",
	)
	rootCmd.PersistentFlags().StringVar(
		&cookiesPath, "cookies", "",
		"Path to the account cookie file",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "loglevel", "",
		"Log level: trace, debug, info, warn, error, critical, off",
	)
}

func run(ctx context.Context, cfg *Config) error {
	logCfg := build.DefaultLogConfig(cfg.Log.Dir)
	logCfg.Level = cfg.Log.Level
	logCfg.NoFile = cfg.Log.NoFile

	logWriter, err := build.InitLogging(logCfg)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logWriter.Close()

	cookies, err := loadCookies(cfg.Cookies)
	if err != nil {
		return err
	}

	api, err := client.New(client.Config{})
	if err != nil {
		return err
	}
	if err := api.Authorize(cookies); err != nil {
		return fmt.Errorf("authorizing: %w", err)
	}

	ctx, stop := signal.NotifyContext(
		ctx, os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	sess := session.Start(session.Config{
		API:       api,
		Transport: live.NewTransport(api),
		PollShortInterval: time.Duration(
			cfg.Poll.ShortIntervalSecs,
		) * time.Second,
		PollLongInterval: time.Duration(
			cfg.Poll.LongIntervalSecs,
		) * time.Second,
	})
	defer sess.Dispose(context.Background())

	// The hub is created after subscribing, once the account identity is
	// known, so the event handler indirects through an atomic pointer.
	var hubPtr atomic.Pointer[gateway.Hub]
	onEvents := func(events []model.Event) {
		if hub := hubPtr.Load(); hub != nil {
			hub.BroadcastEvents(events)
		}
	}

	user, err := sess.SubscribeToEvents(ctx, onEvents)
	if err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}

	hub := gateway.NewHub(gateway.Config{
		Connector:   sess,
		CurrentUser: user,
	})
	hubPtr.Store(hub)
	go hub.Run()
	defer hub.Stop()

	if cfg.Notifications.Enabled {
		engine := notifications.NewEngine(notifications.Config{
			API:         api,
			CurrentUser: user,
			OnEvent:     onEvents,
			PollInterval: time.Duration(
				cfg.Notifications.PollIntervalSecs,
			) * time.Second,
		})
		engine.Start(ctx)
		defer engine.Dispose()

		// Surface the synthetic notifications thread alongside the
		// DM inbox.
		go func() {
			thread, err := engine.Thread(ctx)
			if err != nil {
				return
			}

			onEvents([]model.Event{&model.ThreadUpsert{
				Threads: []model.Thread{thread},
			}})
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", hub.Handler())

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("gateway server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
