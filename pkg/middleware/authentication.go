package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/reqctx"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const verifyTimeout = 5 * time.Second

// TokenVerifier checks a raw bearer token. *oidc.IDTokenVerifier satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

type OperatorClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// IssuerVerifier runs OIDC discovery against the issuer on the first request
// and caches the resulting verifier. A failed discovery is retried on the next request.
type IssuerVerifier struct {
	issuer   string
	clientID string

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

func NewIssuerVerifier(issuer, clientID string) *IssuerVerifier {
	return &IssuerVerifier{issuer: issuer, clientID: clientID}
}

func (v *IssuerVerifier) Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error) {
	v.mu.Lock()
	if v.verifier == nil {
		provider, err := oidc.NewProvider(ctx, v.issuer)
		if err != nil {
			v.mu.Unlock()
			return nil, fmt.Errorf("oidc discovery failed for %s: %w", v.issuer, err)
		}
		v.verifier = provider.Verifier(&oidc.Config{ClientID: v.clientID})
	}
	verifier := v.verifier
	v.mu.Unlock()

	return verifier.Verify(ctx, rawIDToken)
}

// Authentication requires a valid bearer token and records the operator on the request context.
func Authentication(logger ectologger.Logger, verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracing.StartSpan(c.Request().Context(), "middleware.Authentication")
			defer span.End()

			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				logger.WithContext(ctx).Warn("request is missing bearer token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer")
			}

			verifyCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
			defer cancel()

			idToken, err := verifier.Verify(verifyCtx, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("token is invalid")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			var claims OperatorClaims
			if err := idToken.Claims(&claims); err != nil {
				logger.WithContext(ctx).WithError(err).Warn("failed to parse claims")
				return echo.NewHTTPError(http.StatusUnauthorized, "cannot parse claims")
			}

			operator := claims.Email
			if operator == "" {
				operator = claims.Sub
			}
			ctx = reqctx.SetOperator(ctx, operator)

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
