package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/paydesk/reconciler/internal/observability"
)

// SecurityHeaders sets baseline security headers for all responses.
func (h *Handlers) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Cross-Origin-Opener-Policy", "same-origin")
		headers.Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// AllowedOrigins answers CORS preflights for the storefront origins in ALLOWED_ORIGINS
// and blocks state-changing browser requests from any other origin. Requests without
// an Origin header are server-to-server and pass through.
func (h *Handlers) AllowedOrigins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		meter := observability.MeterFromContext(r.Context())
		meter.SetAttributes(attribute.String("component", "security.cors"))

		allowed := h.originAllowed(origin)
		if allowed {
			headers := w.Header()
			headers.Set("Access-Control-Allow-Origin", origin)
			headers.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !allowed {
				meter.Count("security.cors.blocked", 1, sentry.WithAttributes(attribute.String("reason", "preflight")))
				w.WriteHeader(http.StatusForbidden)
				return
			}
			headers := w.Header()
			headers.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			headers.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			headers.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !allowed && requestMutatesState(r.Method) {
			meter.Count("security.cors.blocked", 1, sentry.WithAttributes(attribute.String("reason", "invalid_origin")))
			h.loggerFromContext(r.Context()).Warn("blocked state-changing request from unknown origin", "origin", origin, "method", r.Method, "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestMutatesState(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func (h *Handlers) originAllowed(origin string) bool {
	key := normalizeOrigin(origin)
	if key == "" {
		return false
	}
	_, ok := h.allowedOrigins[key]
	return ok
}

func originSet(origins []string) map[string]struct{} {
	set := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		if key := normalizeOrigin(origin); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

// normalizeOrigin reduces a URL to lower-cased scheme://host[:port].
func normalizeOrigin(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Scheme + "://" + parsed.Host)
}
