package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LookupFunc resolves an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// applyEnv overlays environment values onto s. Unset or blank variables are
// skipped; malformed values are collected and returned together.
func applyEnv(s *Settings, lookup LookupFunc) error {
	var errs []error
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
				return
			}
			*dst = n
		}
	}
	secs := func(key string, apply func(float64)) {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				errs = append(errs, fmt.Errorf("%s: invalid number of seconds %q", key, v))
				return
			}
			apply(f)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := parseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("HTTP_ADDR", &s.Addr)
	str("VLM_BASE_URL", &s.VLMBaseURL)
	str("VLM_MODEL_NAME", &s.VLMModelName)
	str("VLM_API_KEY", &s.VLMAPIKey)
	secs("VLM_TIMEOUT", func(f float64) { s.VLMTimeout = seconds(f) })
	integer("VLM_MAX_RETRIES", &s.VLMMaxRetries)
	integer("MAX_CONCURRENT_REQUESTS", &s.MaxConcurrentRequests)
	secs("QUEUE_TIMEOUT", func(f float64) { s.QueueTimeout = seconds(f) })
	boolean("VLM_DETECT_MIME", &s.DetectMIME)
	secs("REQUEST_TIMEOUT", func(f float64) { s.RequestTimeout = seconds(f) })
	var uploadMB int
	integer("MAX_UPLOAD_MB", &uploadMB)
	if uploadMB != 0 {
		s.MaxUploadBytes = int64(uploadMB) << 20
	}
	if v, ok := get("CORS_ALLOWED_ORIGINS"); ok {
		s.CORSAllowedOrigins = SplitCSV(v)
	}
	str("LOG_LEVEL", &s.LogLevel)
	boolean("LOG_JSON", &s.LogJSON)
	str("NATS_URL", &s.NATSURL)
	str("NATS_SUBJECT", &s.NATSSubject)
	str("NATS_QUEUE", &s.NATSQueue)

	return errors.Join(errs...)
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

// SplitCSV splits a comma separated list, trimming blanks and dropping empties.
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
