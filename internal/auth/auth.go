// Package auth turns bearer tokens into an explicit domain.Actor. Handlers
// read the actor from the request context and pass it into the core
// operations; nothing below the HTTP layer reads ambient identity.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ignite/affiliate-ledger/internal/config"
	"github.com/ignite/affiliate-ledger/internal/domain"
	"github.com/ignite/affiliate-ledger/internal/pkg/httputil"
	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
)

// Dev headers, honoured only when AuthConfig.DevHeaders is set.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

type contextKey struct{}

// Claims is the token payload. Subject is the actor id.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthManager verifies HS256 bearer tokens.
type AuthManager struct {
	secret     []byte
	issuer     string
	devHeaders bool
	now        func() time.Time
}

// NewAuthManager creates a manager from the auth config.
func NewAuthManager(cfg config.AuthConfig) *AuthManager {
	if cfg.DevHeaders {
		logger.Warn("[Auth] dev identity headers enabled; do not use in production")
	}
	return &AuthManager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		devHeaders: cfg.DevHeaders,
		now:        time.Now,
	}
}

// IssueToken signs a token for an actor. Used by tooling and tests.
func (am *AuthManager) IssueToken(actor domain.Actor, ttl time.Duration) (string, error) {
	now := am.now()
	claims := Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    am.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(am.secret)
}

// ParseToken verifies a token and returns its actor.
func (am *AuthManager) ParseToken(raw string) (domain.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return am.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(am.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(am.now),
	)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return actorFrom(claims.Subject, claims.Role)
}

func actorFrom(id string, role domain.Role) (domain.Actor, error) {
	if id == "" {
		return domain.Actor{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	switch role {
	case domain.RolePromoter, domain.RoleAdmin, domain.RoleFinance, domain.RoleSuperAdmin:
	default:
		return domain.Actor{}, fmt.Errorf("%w: unknown role %q", domain.ErrUnauthorized, role)
	}
	return domain.Actor{ID: id, Role: role}, nil
}

// actorFromRequest resolves the caller. A request with no credentials
// yields the anonymous actor and no error.
func (am *AuthManager) actorFromRequest(r *http.Request) (domain.Actor, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return domain.Actor{}, fmt.Errorf("%w: expected a bearer token", domain.ErrUnauthorized)
		}
		return am.ParseToken(strings.TrimSpace(raw))
	}
	if am.devHeaders {
		if id := r.Header.Get(HeaderActorID); id != "" {
			return actorFrom(id, domain.Role(r.Header.Get(HeaderActorRole)))
		}
	}
	return domain.Actor{}, nil
}

// RequireAuth is middleware that rejects requests without a valid actor.
func (am *AuthManager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := am.actorFromRequest(r)
		if err == nil && actor.Anonymous() {
			err = domain.ErrUnauthorized
		}
		if err != nil {
			logger.Debug("[Auth] rejected request", "path", r.URL.Path, "error", err)
			httputil.Unauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// Optional attaches an actor when credentials are present and valid, and
// lets anonymous requests through.
func (am *AuthManager) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := am.actorFromRequest(r)
		if err != nil {
			httputil.Unauthorized(w, "invalid credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// WithActor stores actor in ctx.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFromContext returns the request's actor, anonymous if none.
func ActorFromContext(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(contextKey{}).(domain.Actor)
	return actor
}
