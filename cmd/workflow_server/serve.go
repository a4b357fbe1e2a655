package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/hiring-workflow/internal/notify"
	"github.com/jonathan/hiring-workflow/internal/server"
	"github.com/jonathan/hiring-workflow/internal/server/ratelimit"
	"github.com/jonathan/hiring-workflow/internal/templates"
	"github.com/spf13/cobra"
)

var (
	servePort    int
	serveMigrate bool
	serveNoSweep bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server exposing the workflow API. A background sweeper sends
deadline warnings every sweep_interval.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply the database schema before serving")
	serveCmd.Flags().BoolVar(&serveNoSweep, "no-sweep", false, "Disable the in-process deadline sweeper")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Port = servePort
	}
	jwtCfg, err := cfg.JWT()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	if serveMigrate {
		if err := migrateBackend(ctx, b); err != nil {
			return err
		}
	}
	if err := b.applySeed(ctx); err != nil {
		return err
	}

	catalog, err := templates.Builtin()
	if err != nil {
		return fmt.Errorf("failed to load feedback templates: %w", err)
	}

	var limitStore ratelimit.Store
	if rs := ratelimit.NewRedisStore(b.redis, "ratelimit"); rs != nil {
		limitStore = rs
	}

	dispatcher := b.dispatcher()
	srv, err := server.New(server.Config{Port: cfg.Port}, server.Deps{
		Workflow:  b.service(dispatcher),
		Directory: b.store,
		Inbox:     notify.NewInbox(b.store),
		Templates: catalog,
		JWT:       server.NewJWTService(jwtCfg),
		Limiter:   ratelimit.NewLimiter(ratelimit.FromConfig(cfg), limitStore, logger),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	sweepDone := make(chan struct{})
	if serveNoSweep {
		close(sweepDone)
	} else {
		go func() {
			defer close(sweepDone)
			logger.Info("deadline sweeper started", slog.Duration("interval", cfg.SweepInterval.Std()))
			b.sweeper(dispatcher).Run(ctx, cfg.SweepInterval.Std())
		}()
	}

	err = srv.Start(ctx)
	stop()
	<-sweepDone
	return err
}

// migrateBackend applies the schema; the in-memory store needs none.
func migrateBackend(ctx context.Context, b *backend) error {
	m, ok := b.store.(interface{ Migrate(context.Context) error })
	if !ok {
		b.logger.Info("in-memory store, nothing to migrate")
		return nil
	}
	if err := m.Migrate(ctx); err != nil {
		return err
	}
	b.logger.Info("schema applied")
	return nil
}
