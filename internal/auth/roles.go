package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Scope grants access to a slice of the gateway API.
type Scope string

const (
	ScopeTicketsRead    Scope = "tickets:read"
	ScopeTicketsAnalyze Scope = "tickets:analyze"
	ScopeAdmin          Scope = "admin"
)

// AllScopes lists every known scope.
func AllScopes() []Scope {
	return []Scope{ScopeTicketsRead, ScopeTicketsAnalyze, ScopeAdmin}
}

// Has reports whether the principal holds scope. Anonymous principals, which
// only exist when authentication is optional, hold every scope.
func (p *Principal) Has(scope Scope) bool {
	if p == nil {
		return false
	}
	if p.Anonymous {
		return true
	}
	for _, s := range p.Scopes {
		if s == scope || s == ScopeAdmin {
			return true
		}
	}
	return false
}

// RequireScope rejects callers without the scope.
func RequireScope(scope Scope) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || !principal.Has(scope) {
			return fiber.NewError(http.StatusForbidden, "missing scope "+string(scope))
		}
		return c.Next()
	}
}
