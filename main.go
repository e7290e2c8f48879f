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

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"salepage/cms/backend"
	"salepage/cms/config"
	"salepage/cms/database"
	"salepage/cms/handlers"
	"salepage/cms/logging"
	"salepage/cms/middleware"
	"salepage/cms/models"
	"salepage/cms/routes"
	"salepage/cms/session"
	"salepage/cms/stats"
	"salepage/cms/store"
	"salepage/cms/utils"
)

var version = "dev"

const sweepInterval = time.Minute

var (
	envFile string
	port    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cms",
		Short:         "Salepage seller back-office",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServer,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default is ./.env when present)")
	rootCmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on, overrides PORT")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the back-office HTTP server",
		RunE:  runServer,
	}
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on, overrides PORT")

	rootCmd.AddCommand(serveCmd, operatorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if port != "" {
		cfg.Port = port
	}

	logger := logging.New(cfg.AppEnv)
	if cfg.Release() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := backend.New(backend.Config{BaseURL: cfg.BackendURL, Timeout: cfg.BackendTimeout})
	if err != nil {
		return err
	}

	var authenticator session.Authenticator = client
	if cfg.AuthProvider == config.AuthLocal {
		dbClient, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL database: %w", err)
		}
		defer dbClient.Close()
		authenticator = store.NewOperatorStore(dbClient.DB)
	}

	var (
		source stats.Source = client
		sink   handlers.EventSink
	)
	if cfg.ClickHouseEnabled() {
		chClient, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize ClickHouse database: %w", err)
		}
		defer chClient.Close()
		events := store.NewEventStore(chClient, logger)
		sink = events
		if cfg.StatsSource == config.StatsClickHouse {
			source = events
		}
	}

	registry := session.NewRegistry(session.GateConfig{
		LoginPath:   routes.LoginPath,
		LandingPath: routes.LandingPath,
	}, cfg.SessionTTL, utils.GenerateSessionID)

	router, dashboard := handlers.NewRouter(handlers.RouterConfig{
		Logger:   logger,
		Table:    routes.DefaultTable(),
		Registry: registry,
		Session: middleware.SessionConfig{
			Secret: []byte(cfg.JWTSecret),
			TTL:    cfg.SessionTTL,
			Secure: cfg.Release(),
		},
		FEOrigin: cfg.FEOrigin,
		Login: &session.LoginFlow{
			Authenticator: authenticator,
			OperatorRole:  cfg.OperatorRole,
			Logger:        logger,
		},
		Stats:        source,
		StatsTimeout: cfg.StatsTimeout,
		Backend:      client,
		Events:       sink,
		IngestAPIKey: cfg.IngestAPIKey,
		Version:      version,
	})

	go sweepSessions(ctx, registry, dashboard, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("auth", cfg.AuthProvider).
			Str("stats", cfg.StatsSource).
			Msg("back-office server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server exiting")
	return nil
}

// sweepSessions drops idle sessions and the statistics loaders they owned.
func sweepSessions(ctx context.Context, registry *session.Registry, dashboard *handlers.DashboardHandlers, logger zerolog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			expired := registry.Sweep(now)
			pruned := dashboard.Prune(registry.Contains)
			if expired > 0 || pruned > 0 {
				logger.Debug().Int("sessions", expired).Int("loaders", pruned).Msg("swept idle sessions")
			}
		}
	}
}

func operatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage local back-office operators",
	}

	var req models.CreateOperatorRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an operator for AUTH_PROVIDER=local",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := binding.Validator.ValidateStruct(&req); err != nil {
				return fmt.Errorf("invalid operator: %w", err)
			}
			dbURL, err := config.DatabaseURL(envFile)
			if err != nil {
				return err
			}

			logger := logging.New(os.Getenv("APP_ENV"))
			dbClient, err := database.NewPostgresDB(cmd.Context(), dbURL, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize PostgreSQL database: %w", err)
			}
			defer dbClient.Close()

			hash, err := store.HashPassword(req.Password)
			if err != nil {
				return err
			}
			op, err := store.NewOperatorStore(dbClient.DB).CreateOperator(cmd.Context(), req.Username, hash, req.Role)
			if err != nil {
				return err
			}
			logger.Info().Int("id", op.ID).Str("username", op.Username).Str("role", op.Role).Msg("operator created")
			return nil
		},
	}
	create.Flags().StringVar(&req.Username, "username", "", "Operator username")
	create.Flags().StringVar(&req.Password, "password", "", "Operator password, at least 8 characters")
	create.Flags().StringVar(&req.Role, "role", "USER", "Operator role, must match OPERATOR_ROLE to log in")

	cmd.AddCommand(create)
	return cmd
}
