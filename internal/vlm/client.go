package vlm

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 8 * time.Second
)

// Config holds the upstream endpoint and the retry budget.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds a single attempt; zero disables the per-attempt deadline.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries     int
	ConnectTimeout time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// HTTPClient overrides the pooled client built by New.
	HTTPClient *http.Client
}

// Client is a shared, read-only handle to the upstream chat-completions API.
type Client struct {
	api        openai.Client
	httpClient *http.Client
	cfg        Config
	log        zerolog.Logger
}

// New constructs a Client with its own pooled HTTP transport.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = defaultMaxBackoff
		if cfg.MaxBackoff < cfg.InitialBackoff {
			cfg.MaxBackoff = cfg.InitialBackoff
		}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	cli := cfg.HTTPClient
	if cli == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   32,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		// Deadlines travel on the request context; see attempt.
		cli = &http.Client{Transport: tr, Timeout: 0}
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "EMPTY"
	}
	api := openai.NewClient(
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"),
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cli),
		// Retries are ours so that only transient failures are retried.
		option.WithMaxRetries(0),
	)
	return &Client{
		api:        api,
		httpClient: cli,
		cfg:        cfg,
		log:        logger.With().Str("component", "vlm").Str("base_url", cfg.BaseURL).Logger(),
	}
}

// Complete sends req and returns the raw text of the first choice.
// Transient failures are retried up to MaxRetries times with exponential
// backoff. Failures are *UnavailableError, *ProtocolError or the context
// error of ctx.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	params, opts := chatParams(req)
	attempts := c.cfg.MaxRetries + 1
	backoff := c.cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
			if next := backoff * 2; next <= c.cfg.MaxBackoff {
				backoff = next
			} else {
				backoff = c.cfg.MaxBackoff
			}
		}

		start := time.Now()
		text, err := c.attempt(ctx, params, opts)
		upstreamAttemptDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			upstreamAttemptsTotal.WithLabelValues(resultOK).Inc()
			if attempt > 1 {
				c.log.Info().Int("attempt", attempt).Msg("upstream call succeeded after retry")
			}
			return text, nil
		}
		if ctx.Err() != nil {
			upstreamAttemptsTotal.WithLabelValues(resultCanceled).Inc()
			return "", ctx.Err()
		}
		if !isTransient(err) {
			upstreamAttemptsTotal.WithLabelValues(resultProtocol).Inc()
			c.log.Error().Err(err).Int("attempt", attempt).Msg("upstream protocol error")
			return "", &ProtocolError{Err: err}
		}
		upstreamAttemptsTotal.WithLabelValues(resultTransient).Inc()
		c.log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", attempts).Msg("transient upstream error")
		lastErr = err
	}
	return "", &UnavailableError{Attempts: attempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, params openai.ChatCompletionNewParams, opts []option.RequestOption) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	resp, err := c.api.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	return content, nil
}

// Ping lists the upstream models; used for readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.Models.List(ctx)
	return err
}

// Close releases pooled connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	c.log.Info().Msg("vlm client closed")
	return nil
}

// isTransient reports failures worth retrying: connection and timeout
// errors, and the HTTP statuses servers use for overload or restarts.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		code := apiErr.StatusCode
		return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
