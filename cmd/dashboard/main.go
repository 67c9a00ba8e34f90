package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/apiclient"
	"github.com/spec-kit/ticket-dashboard/internal/config"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/observability"
	"github.com/spec-kit/ticket-dashboard/internal/web"
)

func main() {
	flags := pflag.NewFlagSet("dashboard", pflag.ExitOnError)
	envFile := flags.String("env-file", "", "dotenv file to load before reading the environment")
	groupsFile := flags.String("groups", "", "YAML group catalog (overrides GROUPS_FILE)")
	apiBaseURL := flags.String("api-base-url", "", "ticket API base URL (overrides API_BASE_URL)")
	_ = flags.Parse(os.Args[1:])

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *groupsFile != "" {
		cfg.Dashboard.GroupsFile = *groupsFile
	}
	if *apiBaseURL != "" {
		cfg.Dashboard.APIBaseURL = *apiBaseURL
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics("ticket_dashboard")

	groups, err := config.LoadGroups(cfg.Dashboard.GroupsFile)
	if err != nil {
		logger.Fatal("failed to load groups", zap.Error(err))
	}

	client, err := apiclient.New(apiclient.Config{BaseURL: cfg.Dashboard.APIBaseURL}, logger, metrics)
	if err != nil {
		logger.Fatal("failed to init api client", zap.Error(err))
	}

	app, sessions, err := web.NewApp(web.Options{
		AppName:        "ticket-dashboard",
		Client:         client,
		Groups:         domain.NewGroupCatalog(groups),
		PerPage:        cfg.Dashboard.PerPage,
		SessionTTL:     cfg.Dashboard.SessionTTL(),
		SecureCookies:  cfg.Dashboard.SecureCookies,
		RequestTimeout: cfg.App.RequestTimeout(),
		Logger:         logger,
		Metrics:        metrics,
	})
	if err != nil {
		logger.Fatal("failed to build dashboard", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sessions.Run(ctx, cfg.Dashboard.ReapInterval())

	go func() {
		logger.Info("dashboard listening", zap.String("addr", cfg.Dashboard.Addr()), zap.String("api", cfg.Dashboard.APIBaseURL))
		if err := app.Listen(cfg.Dashboard.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
