package account

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dhanvantari/dhanvantari/internal/platform/auth"
)

type ctxKey struct{}

func WithAccount(ctx context.Context, a *Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the caller's account, or nil for anonymous requests.
func FromContext(ctx context.Context) *Account {
	a, _ := ctx.Value(ctxKey{}).(*Account)
	return a
}

// Resolve maps the authenticated subject to an account row and stores it
// on the request context. The stored role then replaces the token roles
// for RequireRole checks. Anonymous requests pass through untouched.
func Resolve(svc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			sub := auth.SubjectFromContext(ctx)
			if sub == "" {
				return next(c)
			}

			a, err := svc.Ensure(ctx, sub, auth.EmailFromContext(ctx), auth.NameFromContext(ctx), auth.RolesFromContext(ctx))
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("subject", sub).Msg("resolve account")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "account lookup failed")
			}

			ctx = WithAccount(ctx, a)
			ctx = auth.WithRoles(ctx, []string{a.Role})
			ctx = zerolog.Ctx(ctx).With().Str("account_id", a.ID.String()).Logger().WithContext(ctx)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
