package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-workflow/internal/api/http"
	"github.com/spec-kit/helpdesk-workflow/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-workflow/internal/auth"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			rt, err := bootstrap(ctx, bootstrapOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			app := newApp(rt)
			go func() {
				if err := app.Listen(rt.cfg.App.Addr()); err != nil {
					rt.logger.Fatal("fiber listen", zap.Error(err))
				}
			}()

			waitForShutdown(rt.logger)
			return app.Shutdown()
		},
	}
}

func newApp(rt *runtime) *fiber.App {
	app := fiber.New(fiber.Config{AppName: rt.cfg.App.Name})
	httptransport.RegisterMiddlewares(app, rt.logger, rt.metrics, rt.cfg.App.RequestTimeout())

	deps := map[string]handlers.Pinger{}
	if rt.pg.PoolHandle() != nil {
		deps["postgres"] = rt.pg
	} else {
		deps["postgres"] = nil
	}
	if rt.redis.Enabled() {
		deps["redis"] = rt.redis
	} else {
		deps["redis"] = nil
	}

	tokens := auth.NewTokenManager(rt.cfg.Auth)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(rt.cfg.App.Name, rt.cfg.App.Version, deps, rt.metrics),
		Workflow: handlers.NewWorkflowHandler(rt.graph),
		Tickets: handlers.NewTicketsHandler(handlers.TicketsDependencies{
			Workflow:   rt.workflow,
			Assignment: rt.assignment,
			History:    rt.history,
			Retry: handlers.RetryPolicy{
				MaxRetries: rt.cfg.Workflow.RetryMax,
				Base:       rt.cfg.Workflow.RetryBase(),
			},
		}),
		Stats:          handlers.NewStatsHandler(rt.stats),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return app
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
