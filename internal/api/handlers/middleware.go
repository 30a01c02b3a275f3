package handlers

import (
	"botdesk/internal/auth"
	"botdesk/internal/config"
	"botdesk/internal/logger"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// CORS answers preflight requests and sets the allow headers on every response
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if allowedOrigin != "*" {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request, at a level chosen by status class
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		// the session middleware runs further down and attaches the identity to its own request copy
		var identity auth.Identity
		next.ServeHTTP(ww, r.WithContext(withIdentitySink(r.Context(), &identity)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"latency":    time.Since(start).String(),
			"bytes":      ww.BytesWritten(),
			"request_id": middleware.GetReqID(r.Context()),
			"client_ip":  clientIP(r),
		}
		if identity.UserID != "" {
			fields["user_id"] = identity.UserID
		}

		entry := logger.Log.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("HTTP Request")
		case status >= 400:
			entry.Warn("HTTP Request")
		default:
			entry.Info("HTTP Request")
		}
	})
}

// RateLimit limits the auth routes per client IP with a fixed one-minute window
func RateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return passThrough
	}
	return rateLimit(cfg.RequestsPerMinute, func(r *http.Request) string {
		return "ip:" + clientIP(r)
	})
}

// WebhookRateLimit limits inbound chat events per bot. Platform deliveries share a few
// egress addresses, so they get their own counters instead of the per-IP ones.
// It must run after routing so the botId parameter is resolved.
func WebhookRateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return passThrough
	}
	return rateLimit(cfg.WebhookPerBotPerMinute, func(r *http.Request) string {
		return "bot:" + chi.URLParam(r, "botId")
	})
}

func passThrough(next http.Handler) http.Handler { return next }

func rateLimit(perMinute int, key func(*http.Request) string) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return passThrough
	}

	rate := limiter.Rate{
		Period: time.Minute,
		Limit:  int64(perMinute),
	}
	rateLimiter := limiter.New(memory.NewStore(), rate)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lctx, err := rateLimiter.Get(r.Context(), key(r))
			if err != nil {
				logger.Log.WithError(err).Error("Rate limit check failed")
				sendError(w, http.StatusInternalServerError, "Failed to check rate limit", CodeInternal, nil)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", lctx.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", lctx.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", lctx.Reset))

			if lctx.Reached {
				sendError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.", CodeRateLimited, nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type identitySinkKey struct{}

func withIdentitySink(ctx context.Context, sink *auth.Identity) context.Context {
	return context.WithValue(ctx, identitySinkKey{}, sink)
}

// recordIdentity copies the authenticated caller into the request logger's sink
func recordIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sink, ok := r.Context().Value(identitySinkKey{}).(*auth.Identity); ok {
			if id, ok := auth.IdentityFromContext(r.Context()); ok {
				*sink = id
			}
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
