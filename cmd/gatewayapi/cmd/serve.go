package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"

	"github.com/GoliathLabs/applica/internal/auth"
	"github.com/GoliathLabs/applica/internal/directory"
	"github.com/GoliathLabs/applica/internal/logging"
	"github.com/GoliathLabs/applica/internal/ratelimit"
	"github.com/GoliathLabs/applica/internal/server"
	"github.com/GoliathLabs/applica/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP server",
	Long:  `Starts the HTTP server with the login, verify and health endpoints behind the request guards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New(os.Stderr, cfg.Debug)
		logging.SetDefault(logger)

		warnings, err := cfg.Validate()
		for _, w := range warnings {
			logger.Warn(w)
		}
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithEntry(ctx, logrus.NewEntry(logger))

		shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Observability, cfg.Environment, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(flushCtx); err != nil {
				logger.WithError(err).Warn("telemetry shutdown failed")
			}
		}()

		metrics, err := telemetry.NewMetrics()
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}

		dirClient := directory.NewClient(cfg.LDAP)
		issuer := auth.NewTokenIssuer(cfg.JWT.Secret, nil)
		gateway := auth.NewGateway(dirClient, issuer, cfg.LDAP.LeaderGroupDN, auth.WithMetrics(metrics))

		limiter, err := ratelimit.New(ratelimit.Options{
			Window:        cfg.RateLimit.Window,
			Max:           cfg.RateLimit.Max,
			MaxEntries:    cfg.RateLimit.MaxEntries,
			SweepInterval: cfg.RateLimit.SweepInterval,
			Metrics:       metrics,
		})
		if err != nil {
			return fmt.Errorf("failed to create rate limiter: %w", err)
		}
		rules, err := ratelimit.ParseRoutes(cfg.RateLimit.Routes)
		if err != nil {
			return fmt.Errorf("invalid rate limit routes: %w", err)
		}

		validator, err := server.NewLoginValidator()
		if err != nil {
			return fmt.Errorf("failed to compile login schema: %w", err)
		}

		router := server.NewRouter(server.RouterOptions{
			Cfg:            cfg,
			Logger:         logger,
			Login:          gateway,
			LoginValidator: validator,
			Issuer:         issuer,
			Limiter:        limiter,
			RateLimitRules: rules,
			Metrics:        metrics,
		})

		supervisor := suture.New("gatewayapi", suture.Spec{
			EventHook: func(e suture.Event) {
				logger.WithFields(logrus.Fields(e.Map())).Warn(e.String())
			},
		})
		supervisor.Add(server.NewHTTPService(cfg.ServerAddr, router))
		supervisor.Add(limiter)

		logger.WithFields(logrus.Fields{
			"addr":        cfg.ServerAddr,
			"environment": cfg.Environment,
			"api_prefix":  cfg.APIPrefix,
			"rate_limits": len(rules),
		}).Info("gateway starting")

		err = supervisor.Serve(ctx)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			logger.Info("gateway stopped")
			return nil
		}
		return err
	},
}
