package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Subject   string
	Scopes    []Scope
	Anonymous bool
}

// AuthMiddleware validates bearer tokens.
type AuthMiddleware struct {
	tokens   *TokenManager
	required bool
	logger   *zap.Logger
}

// NewAuthMiddleware constructs middleware. When required is false, requests
// without an Authorization header pass as anonymous; a header that is present
// must still carry a valid token.
func NewAuthMiddleware(tokens *TokenManager, required bool, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, required: required, logger: logger.Named("auth")}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		if m.required {
			return apperrors.NewUnauthorized("missing authorization header")
		}
		c.Locals(principalKey, &Principal{Anonymous: true})
		return c.Next()
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return apperrors.NewUnauthorized("invalid authorization header")
	}
	if m.tokens == nil {
		return apperrors.NewUnauthorized("token authentication not configured")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		m.logger.Debug("token rejected", zap.Error(err))
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, &Principal{Subject: claims.Subject, Scopes: claims.Scopes})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
