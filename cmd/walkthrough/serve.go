package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/livetemplate/walkthrough/internal/config"
	"github.com/livetemplate/walkthrough/internal/logging"
	"github.com/livetemplate/walkthrough/internal/metrics"
	"github.com/livetemplate/walkthrough/internal/server"
	"github.com/livetemplate/walkthrough/internal/session"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [directory]",
	Short: "Start the tutorial server",
	Long: `Serves every markdown page under the directory (or the built-in tutorial)
with live widgets. Edits to the pages reload connected browsers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "", "Host to listen on")
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on")
	serveCmd.Flags().Bool("debug", false, "Enable debug logging")
	serveCmd.Flags().String("store", "", "Session store: memory or redis")
	serveCmd.Flags().String("redis-addr", "", "Redis address for the redis session store")
	serveCmd.Flags().String("isolation", "", "Live block failure isolation: block or page")
	serveCmd.Flags().Bool("no-reload", false, "Disable reloading on content changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	src, err := resolveContent(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, src)
	if err != nil {
		return err
	}

	var o config.Overrides
	o.Host, _ = cmd.Flags().GetString("host")
	o.Port, _ = cmd.Flags().GetInt("port")
	o.Debug, _ = cmd.Flags().GetBool("debug")
	o.Store, _ = cmd.Flags().GetString("store")
	o.RedisAddr, _ = cmd.Flags().GetString("redis-addr")
	o.Isolation, _ = cmd.Flags().GetString("isolation")
	o.NoReload, _ = cmd.Flags().GetBool("no-reload")
	if err := cfg.Apply(o); err != nil {
		return err
	}

	// The config file's level applies unless --log-level was given.
	if !cmd.Flags().Changed("log-level") {
		level, err := logging.ParseLevel(cfg.Server.LogLevel)
		if err != nil {
			return err
		}
		logger = logging.New(level)
	}

	store, err := newStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithConfig(cfg),
		server.WithLogger(logger),
		server.WithRegistry(newRegistry()),
		server.WithSessions(session.NewManager(store, session.WithLogger(logger))),
	}
	if cfg.Features.Metrics {
		opts = append(opts, server.WithMetrics(metrics.New()))
	}
	if src.dir != "" {
		opts = append(opts, server.WithRootDir(src.dir))
	}

	srv, err := server.New(src.fsys, opts...)
	if err != nil {
		store.Close()
		return err
	}
	defer srv.Close()

	if err := srv.Discover(); err != nil {
		// Broken pages are skipped; the rest are still served.
		logger.Warn("some pages failed to parse", "error", err)
	}
	if len(srv.Routes()) == 0 {
		return fmt.Errorf("no pages found in %s", src)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Serving: %s\n\nPages:\n", src)
	for _, route := range srv.Routes() {
		fmt.Fprintf(out, "  %-30s %s\n", route.Pattern, route.FilePath)
	}

	if cfg.Features.HotReload && src.dir != "" {
		if err := srv.EnableWatch(); err != nil {
			return fmt.Errorf("failed to enable watch mode: %w", err)
		}
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Fprintf(out, "\nServer running at http://%s\nPress Ctrl+C to stop\n", httpSrv.Addr)
		serverErrors <- httpSrv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpSrv.Shutdown(ctx); err != nil {
			logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
			return httpSrv.Close()
		}
		fmt.Fprintln(out, "Server stopped")
		return nil
	}
}

// newStore opens the configured session store. Redis is pinged so a bad
// address fails at startup rather than on the first interaction.
func newStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.GetSessionStore() {
	case config.StoreRedis:
		rs := session.NewRedisStore(
			cfg.Sessions.Redis.Addr,
			cfg.GetRedisPassword(),
			cfg.Sessions.Redis.DB,
			session.WithTTL(cfg.GetSessionTTL()),
			session.WithPrefix(cfg.GetRedisPrefix()),
		)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			rs.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Sessions.Redis.Addr, err)
		}
		logger.Info("using redis session store", "addr", cfg.Sessions.Redis.Addr)
		return rs, nil
	default:
		return session.NewMemoryStore(session.WithMemoryTTL(cfg.GetSessionTTL())), nil
	}
}
