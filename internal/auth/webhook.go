package auth

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

// WebhookSecretHeader carries the shared secret configured in the helpdesk
// automation.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookGuard checks the shared secret against a bcrypt hash. With an empty
// hash every request is accepted.
type WebhookGuard struct {
	hash   string
	logger *zap.Logger
}

// NewWebhookGuard builds a guard for the given bcrypt hash.
func NewWebhookGuard(hash string, logger *zap.Logger) *WebhookGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookGuard{hash: hash, logger: logger.Named("webhook_guard")}
}

// Enabled reports whether a secret is enforced.
func (g *WebhookGuard) Enabled() bool {
	return g.hash != ""
}

// Handle rejects requests whose secret does not match.
func (g *WebhookGuard) Handle(c *fiber.Ctx) error {
	if !g.Enabled() {
		return c.Next()
	}
	secret := c.Get(WebhookSecretHeader)
	if secret == "" {
		return apperrors.NewUnauthorized("missing webhook secret")
	}
	if err := ComparePassword(g.hash, secret); err != nil {
		g.logger.Warn("webhook secret mismatch", zap.String("ip", c.IP()))
		return apperrors.NewUnauthorized("invalid webhook secret")
	}
	return c.Next()
}
