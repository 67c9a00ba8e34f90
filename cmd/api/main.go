package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/analysis"
	httptransport "github.com/spec-kit/ticket-dashboard/internal/api/http"
	"github.com/spec-kit/ticket-dashboard/internal/api/http/handlers"
	"github.com/spec-kit/ticket-dashboard/internal/auth"
	"github.com/spec-kit/ticket-dashboard/internal/config"
	"github.com/spec-kit/ticket-dashboard/internal/events"
	"github.com/spec-kit/ticket-dashboard/internal/helpdesk"
	"github.com/spec-kit/ticket-dashboard/internal/observability"
	"github.com/spec-kit/ticket-dashboard/internal/persistence"
	"github.com/spec-kit/ticket-dashboard/internal/repository"
	"github.com/spec-kit/ticket-dashboard/internal/service"
	"github.com/spec-kit/ticket-dashboard/internal/worker"
	"github.com/spec-kit/ticket-dashboard/migrations"
)

const queueBuffer = 100

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "token":
			os.Exit(runToken(os.Args[2:]))
		case "hash-secret":
			os.Exit(runHashSecret(os.Args[2:]))
		}
	}

	flags := pflag.NewFlagSet("api", pflag.ExitOnError)
	envFile := flags.String("env-file", "", "dotenv file to load before reading the environment")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(envFiles(*envFile)...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics("ticket_gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !cfg.Helpdesk.Configured() {
		logger.Fatal("FRESHSERVICE_API_KEY is required")
	}
	upstream, err := helpdesk.New(helpdesk.Config{
		BaseURL: cfg.Helpdesk.BaseURL,
		APIKey:  cfg.Helpdesk.APIKey,
		Timeout: cfg.Helpdesk.Timeout(),
	}, logger, metrics)
	if err != nil {
		logger.Fatal("failed to init helpdesk client", zap.Error(err))
	}

	analyzer := analysis.New(analysis.Config{
		APIURL:    cfg.AI.APIURL,
		APIKey:    cfg.AI.APIKey,
		Model:     cfg.AI.Model,
		MaxTokens: cfg.AI.MaxTokens,
	}, logger, metrics)
	if !analyzer.Configured() {
		logger.Warn("AI_API_KEY not set; analysis endpoints will return 503")
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, migrations.FS, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		analyses    repository.AnalysisRepository
		historyRepo repository.TicketHistoryRepository
	)
	if pg.Enabled() {
		analyses = repository.NewAnalysisRepository(pg.Pool)
		historyRepo = repository.NewTicketHistoryRepository(pg.Pool)
	}
	cache := repository.NewTicketCache(redis.Client, cfg.Cache.TTL(), logger)

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, metrics, service.NotificationConfig{
		SlackWebhookURL: cfg.Slack.WebhookURL,
		HelpdeskDomain:  cfg.Helpdesk.Domain,
	})
	worker.StartNotificationWorker(notificationService, logger)
	historyService := service.NewHistoryService(historyRepo, dispatcher, logger)
	historyService.RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		Helpdesk:   upstream,
		Analyzer:   analyzer,
		Cache:      cache,
		Analyses:   analyses,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	queue := worker.NewAnalysisQueue(ticketService, cfg.Polling.Workers, queueBuffer, logger)
	queue.Start(ctx)

	if cfg.Polling.Enabled {
		poller := worker.NewPoller(upstream, queue, cfg.Polling.GroupIDs, cfg.Polling.Interval(), logger, nil)
		go poller.Run(ctx)
	}

	var tokens *auth.TokenManager
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	}
	authMiddleware := auth.NewAuthMiddleware(tokens, cfg.Auth.Required, logger)
	webhookGuard := auth.NewWebhookGuard(cfg.Auth.WebhookSecretHash, logger)
	if !webhookGuard.Enabled() {
		logger.Warn("WEBHOOK_SECRET_HASH not set; webhook endpoints are unauthenticated")
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Dependency{
			"postgres": pg,
			"redis":    redis,
		}),
		Tickets: handlers.NewTicketsHandler(ticketService, historyService),
		Webhooks: handlers.NewWebhooksHandler(ticketService, queue, dispatcher, handlers.WebhookConfig{
			MonitoredGroups: cfg.Polling.GroupIDs,
			SlackConfigured: notificationService.Enabled(),
		}, logger),
		AuthMiddleware: authMiddleware,
		WebhookGuard:   webhookGuard,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	queue.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

// runToken mints a bearer token for a dashboard or script.
func runToken(args []string) int {
	flags := pflag.NewFlagSet("token", pflag.ExitOnError)
	envFile := flags.String("env-file", "", "dotenv file to load before reading the environment")
	subject := flags.String("subject", "dashboard", "token subject")
	scopes := flags.StringSlice("scopes", nil, "scopes to grant (default: all)")
	_ = flags.Parse(args)

	cfg, err := config.Load(envFiles(*envFile)...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "AUTH_JWT_SECRET is not set")
		return 1
	}

	granted := make([]auth.Scope, 0, len(*scopes))
	for _, s := range *scopes {
		if s = strings.TrimSpace(s); s != "" {
			granted = append(granted, auth.Scope(s))
		}
	}
	token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes).GenerateToken(*subject, granted...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		return 1
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
	return 0
}

// runHashSecret prints the bcrypt hash to put in WEBHOOK_SECRET_HASH.
func runHashSecret(args []string) int {
	flags := pflag.NewFlagSet("hash-secret", pflag.ExitOnError)
	secret := flags.String("secret", "", "webhook shared secret")
	_ = flags.Parse(args)

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "--secret is required")
		return 1
	}
	hash, err := auth.HashPassword(*secret, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash secret: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}

func envFiles(path string) []string {
	if path == "" {
		return nil
	}
	return []string{path}
}
