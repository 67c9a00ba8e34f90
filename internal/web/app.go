// Package web serves the ticket dashboard as server rendered HTML.
package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/apiclient"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/observability"
	"github.com/spec-kit/ticket-dashboard/internal/view"
)

// Options configures the dashboard application.
type Options struct {
	AppName        string
	Client         *apiclient.Client
	Groups         *domain.GroupCatalog
	PerPage        int
	SessionTTL     time.Duration
	SecureCookies  bool
	RequestTimeout time.Duration
	Sender         view.ReplySender
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Now            func() time.Time
}

// NewApp builds the Fiber app and the session manager backing it.
func NewApp(opts Options) (*fiber.App, *SessionManager, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}

	renderer, err := NewRenderer()
	if err != nil {
		return nil, nil, err
	}

	sessions := NewSessionManager(SessionDeps{
		Client:  opts.Client,
		Groups:  opts.Groups,
		PerPage: opts.PerPage,
		Sender:  opts.Sender,
		Logger:  opts.Logger,
		Now:     opts.Now,
	}, opts.SessionTTL, opts.SecureCookies)

	app := fiber.New(fiber.Config{
		AppName:               opts.AppName,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, renderer, opts.Logger, opts.Metrics, opts.RequestTimeout)
	RegisterRoutes(app, NewHandler(sessions, renderer, opts.Client, opts.Logger), opts.Metrics)
	return app, sessions, nil
}
