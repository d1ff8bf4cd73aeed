package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"bookmyfaculty/internal/config"
	"bookmyfaculty/internal/domain"
	"bookmyfaculty/internal/models"
)

type contextKey string

const actorContextKey contextKey = "actor"

const apiKeyHeaderDefault = "x-api-key"

var (
	errMissingAPIKey = errors.New("missing api key header")
	errInvalidAPIKey = errors.New("invalid api key")
	errRateLimited   = errors.New("rate limit exceeded")
)

// HTTPAuth resolves the API key header to an authenticated actor and
// enforces the per-key rate limit. Identity is whatever the key mapping
// in config says it is; the core trusts it as given.
type HTTPAuth struct {
	cfg          config.APIConfig
	clientsByKey map[string]config.APIClientKey
	limiter      domain.RateLimitRepository
}

func NewHTTPAuth(cfg config.APIConfig, limiter domain.RateLimitRepository) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clientsByKey: m, limiter: limiter}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if a.cfg.Auth.Enabled {
			actor, err := a.authenticate(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			ctx = context.WithValue(ctx, actorContextKey, actor)
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *HTTPAuth) authenticate(r *http.Request) (models.Actor, error) {
	apiKey := strings.TrimSpace(r.Header.Get(a.headerName()))
	if apiKey == "" {
		return models.Actor{}, errMissingAPIKey
	}

	// Constant-time scan so a miss costs the same as a hit.
	var matched *config.APIClientKey
	for i := range a.cfg.Auth.APIKeys {
		k := &a.cfg.Auth.APIKeys[i]
		if subtle.ConstantTimeCompare([]byte(k.Key), []byte(apiKey)) == 1 {
			matched = k
		}
	}
	if matched == nil {
		return models.Actor{}, errInvalidAPIKey
	}

	return models.Actor{ID: matched.ActorID, Role: matched.Role}, nil
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.limiter == nil || a.cfg.RateLimit.Requests <= 0 {
		return nil
	}

	allowed, err := a.limiter.Allow(r.Context(), a.clientKey(r), a.cfg.RateLimit.Requests, a.cfg.RateLimit.Window())
	if err != nil {
		// Rate limiting is protective, not load-bearing; fail open.
		return nil
	}
	if !allowed {
		return errRateLimited
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.headerName())); apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (a *HTTPAuth) headerName() string {
	h := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if h == "" {
		h = apiKeyHeaderDefault
	}
	return h
}

// ActorFromContext returns the authenticated actor, or false when auth
// is disabled and no identity was attached.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(models.Actor)
	return actor, ok
}
