package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// hstsValue is sent only over TLS.
const hstsValue = "max-age=63072000; includeSubDomains"

// reportCSP admits the Plotly bundle the chart specs render with, and the
// websocket event stream.
var reportCSP = []string{
	"default-src 'self'",
	"script-src 'self' 'unsafe-inline' https://cdn.plot.ly",
	"style-src 'self' 'unsafe-inline'",
	"img-src 'self' data: blob:",
	"connect-src 'self' ws: wss:",
	"frame-ancestors 'none'",
	"base-uri 'self'",
	"form-action 'self'",
}

// devCSP lets a dashboard served from another local port load and connect.
var devCSP = []string{
	"default-src 'self'",
	"script-src 'self' 'unsafe-inline' *",
	"style-src 'self' 'unsafe-inline' *",
	"img-src * data: blob:",
	"connect-src *",
}

// SecurityHeaders sets browser hardening headers on every response except
// websocket upgrades. dev relaxes the content security policy.
func SecurityHeaders(dev bool) func(next http.Handler) http.Handler {
	csp := reportCSP
	if dev {
		csp = devCSP
	}
	fixed := [][2]string{
		{"Content-Security-Policy", strings.Join(csp, "; ")},
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"Permissions-Policy", "camera=(), geolocation=(), microphone=(), payment=(), usb=()"},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			for _, kv := range fixed {
				h.Set(kv[0], kv[1])
			}
			if r.TLS != nil {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuditLog records a mutating request, such as deleting an upload, with
// its outcome. Install it on the route so the upload id is resolved.
func AuditLog(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.LogAttrs(r.Context(), slog.LevelInfo, "audit",
				slog.String("method", r.Method),
				slog.String("route", routePattern(r)),
				slog.String("upload_id", chi.URLParam(r, "id")),
				slog.Int("status", status),
				slog.String("client", clientKey(r)),
				slog.String("request_id", GetReqID(r.Context())),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
