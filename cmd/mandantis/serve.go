package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mandantis/mandantis/internal/api"
	"github.com/mandantis/mandantis/internal/audit"
	"github.com/mandantis/mandantis/internal/auth"
	"github.com/mandantis/mandantis/internal/config"
	"github.com/mandantis/mandantis/internal/crypto"
	"github.com/mandantis/mandantis/internal/metrics"
	"github.com/mandantis/mandantis/internal/ratelimit"
	"github.com/mandantis/mandantis/internal/submission"
	"github.com/mandantis/mandantis/internal/tenant"
	"github.com/mandantis/mandantis/internal/ui"
	"github.com/mandantis/mandantis/internal/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Mandantis portal server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	settingsCipher, err := crypto.NewCipher(cfg.Security.SettingsKey)
	if err != nil {
		return err
	}

	m := metrics.New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
		stat := pool.Stat()
		return stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns()
	})

	orgStore := tenant.NewStore(pool, settingsCipher)
	userStore := user.NewStore(pool)
	submissionStore := submission.NewStore(pool)

	resolver := tenant.NewResolver(orgStore, cfg.Demo.Enabled)
	issuer := auth.NewIssuer(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL, cfg.IsProduction())
	limiter := ratelimit.NewLoginLimiter(cfg.LoginLimit.MaxAttempts, cfg.LoginLimit.Window)
	recorder := audit.NewRecorder(m.IncAuditWriteFailure)

	router := api.NewRouter(api.RouterDeps{
		Orgs:        orgStore,
		Users:       userStore,
		Submissions: submissionStore,
		Resolver:    resolver,
		Issuer:      issuer,
		Limiter:     limiter,
		Recorder:    recorder,
		Pool:        pool,
		Metrics:     m,
		UI:          ui.Handler(),

		AllowedOrigins: cfg.CSRF.AllowedOrigins,
		ResetTokenTTL:  cfg.Auth.ResetTokenTTL,
		ExposeErrors:   !cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
