package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

// Defaults applied when neither the config file nor the environment sets a value.
const (
	DefaultAddr                  = ":8000"
	DefaultVLMBaseURL            = "http://localhost:8001/v1"
	DefaultVLMModelName          = "Qwen/Qwen2-VL-7B-Instruct"
	DefaultVLMAPIKey             = "EMPTY"
	DefaultVLMTimeout            = 120 * time.Second
	DefaultVLMMaxRetries         = 2
	DefaultMaxConcurrentRequests = 10
	DefaultMaxUploadBytes        = 20 << 20
	DefaultLogLevel              = "INFO"
	DefaultNATSSubject           = "vlmcheck.verify"
	DefaultNATSQueue             = "vlmcheck"
)

// Settings is the resolved runtime configuration. Treat it as read-only
// once returned by a Provider.
type Settings struct {
	Addr string

	VLMBaseURL    string
	VLMModelName  string
	VLMAPIKey     string
	VLMTimeout    time.Duration
	VLMMaxRetries int

	MaxConcurrentRequests int
	// QueueTimeout bounds the wait for an admission slot; zero waits indefinitely.
	QueueTimeout time.Duration
	DetectMIME   bool
	// RequestTimeout bounds a whole verification on the HTTP and NATS
	// transports; zero disables it.
	RequestTimeout time.Duration

	MaxUploadBytes     int64
	CORSAllowedOrigins []string

	LogLevel string
	LogJSON  bool

	NATSURL     string
	NATSSubject string
	NATSQueue   string
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Addr:                  DefaultAddr,
		VLMBaseURL:            DefaultVLMBaseURL,
		VLMModelName:          DefaultVLMModelName,
		VLMAPIKey:             DefaultVLMAPIKey,
		VLMTimeout:            DefaultVLMTimeout,
		VLMMaxRetries:         DefaultVLMMaxRetries,
		MaxConcurrentRequests: DefaultMaxConcurrentRequests,
		MaxUploadBytes:        DefaultMaxUploadBytes,
		CORSAllowedOrigins:    []string{"*"},
		LogLevel:              DefaultLogLevel,
		NATSSubject:           DefaultNATSSubject,
		NATSQueue:             DefaultNATSQueue,
	}
}

// Validate reports every setting that cannot be used to start the service.
func (s Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.VLMBaseURL) == "" {
		errs = append(errs, errors.New("VLM_BASE_URL must not be empty"))
	} else if u, err := url.Parse(s.VLMBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("VLM_BASE_URL %q is not an absolute URL", s.VLMBaseURL))
	}
	if strings.TrimSpace(s.VLMModelName) == "" {
		errs = append(errs, errors.New("VLM_MODEL_NAME must not be empty"))
	}
	if s.VLMTimeout <= 0 {
		errs = append(errs, fmt.Errorf("VLM_TIMEOUT must be positive, got %s", s.VLMTimeout))
	}
	if s.VLMMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("VLM_MAX_RETRIES must be >= 0, got %d", s.VLMMaxRetries))
	}
	if s.MaxConcurrentRequests < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_REQUESTS must be >= 1, got %d", s.MaxConcurrentRequests))
	}
	if s.QueueTimeout < 0 {
		errs = append(errs, fmt.Errorf("QUEUE_TIMEOUT must be >= 0, got %s", s.QueueTimeout))
	}
	if s.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be >= 0, got %s", s.RequestTimeout))
	}
	if s.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be positive"))
	}
	return errors.Join(errs...)
}

// clone returns a copy that shares no slices with s.
func (s Settings) clone() Settings {
	s.CORSAllowedOrigins = append([]string(nil), s.CORSAllowedOrigins...)
	return s
}

// seconds converts fractional seconds to a Duration.
func seconds(f float64) time.Duration {
	return time.Duration(math.Round(f * float64(time.Second)))
}
