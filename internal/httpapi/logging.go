package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger used by the HTTP layer. Silent until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l.With().Str("component", "http").Logger() }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

var defaultLogLevel = LevelInfo

// SetRequestLogLevel sets the default per-request log level.
func SetRequestLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// processTimeWriter stamps X-Process-Time on the first header write.
type processTimeWriter struct {
	http.ResponseWriter
	start       time.Time
	wroteHeader bool
}

func (pw *processTimeWriter) WriteHeader(code int) {
	if !pw.wroteHeader {
		pw.wroteHeader = true
		pw.Header().Set("X-Process-Time", formatSeconds(time.Since(pw.start)))
	}
	pw.ResponseWriter.WriteHeader(code)
}

func (pw *processTimeWriter) Write(b []byte) (int, error) {
	if !pw.wroteHeader {
		pw.WriteHeader(http.StatusOK)
	}
	return pw.ResponseWriter.Write(b)
}

func (pw *processTimeWriter) Unwrap() http.ResponseWriter { return pw.ResponseWriter }

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// RequestLogger logs request start and completion and sets X-Process-Time.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		rid := middleware.GetReqID(r.Context())
		if lvl >= LevelInfo {
			ev := zlog.Info().Str("method", r.Method).Str("path", r.URL.Path).Str("request_id", rid)
			if lvl >= LevelDebug {
				ev = ev.Str("remote", r.RemoteAddr).Int64("content_length", r.ContentLength).Str("content_type", r.Header.Get("Content-Type"))
			}
			ev.Msg("request started")
		}

		pw := &processTimeWriter{ResponseWriter: w, start: start}
		ww := middleware.NewWrapResponseWriter(pw, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if lvl >= LevelInfo || (lvl >= LevelError && status >= http.StatusInternalServerError) {
			zlog.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", rid).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Str("duration", formatSeconds(time.Since(start))+"s").
				Msg("request completed")
		}
	})
}
