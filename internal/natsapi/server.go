// Package natsapi exposes verification as NATS request/reply on a queue
// group, so several instances can share one subject.
package natsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"vlmcheck/internal/verifier"
	"vlmcheck/pkg/types"
)

// Verifier is the subset of *verifier.Verifier used here.
type Verifier interface {
	Verify(ctx context.Context, image io.Reader, task string) (types.VerificationResponse, error)
}

// Config holds the connection and subscription settings.
type Config struct {
	URL     string
	Subject string
	Queue   string
	// RequestTimeout bounds one verification; zero disables it.
	RequestTimeout time.Duration
	// DrainTimeout bounds Close.
	DrainTimeout time.Duration
}

// Server answers verification requests received over NATS.
type Server struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	svc    Verifier
	cfg    Config
	log    zerolog.Logger
	closed chan struct{}
	wg     sync.WaitGroup
}

// Connect dials the NATS server. Reconnects are handled by the client.
func Connect(cfg Config, svc Verifier, logger zerolog.Logger) (*Server, error) {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		log:    logger.With().Str("component", "nats").Logger(),
		closed: make(chan struct{}),
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name("vlmcheck"),
		nats.MaxReconnects(-1),
		nats.DrainTimeout(cfg.DrainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.log.Warn().Err(err).Msg("disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			s.log.Info().Str("url", c.ConnectedUrl()).Msg("reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) { close(s.closed) }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	s.conn = conn
	return s, nil
}

// Start subscribes on the configured subject and queue group. Each message is
// handled on its own goroutine; the verifier's gate bounds concurrency.
// Work derives from ctx, so canceling it aborts in-flight verifications;
// call Shutdown first to let them finish.
func (s *Server) Start(ctx context.Context) error {
	sub, err := s.conn.QueueSubscribe(s.cfg.Subject, s.cfg.Queue, func(msg *nats.Msg) {
		if msg.Reply == "" {
			s.log.Warn().Str("subject", msg.Subject).Msg("dropping request without reply subject")
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			reply := s.process(ctx, msg.Data)
			if err := msg.Respond(reply); err != nil {
				s.log.Error().Err(err).Msg("failed to send reply")
			}
		}()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.cfg.Subject, err)
	}
	s.sub = sub
	s.log.Info().Str("subject", s.cfg.Subject).Str("queue", s.cfg.Queue).Msg("NATS service started")
	return nil
}

// Shutdown stops taking requests and lets in-flight handlers send their
// replies before the connection is drained. Handlers still running when ctx
// ends are abandoned and ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.sub != nil {
		if err = s.sub.Drain(); err == nil {
			err = s.waitHandlers(ctx)
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("in-flight requests did not finish before shutdown")
		}
	}
	if derr := s.conn.Drain(); derr != nil {
		s.conn.Close()
		if err == nil {
			err = derr
		}
	}
	select {
	case <-s.closed:
	case <-ctx.Done():
		s.conn.Close()
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// Close is Shutdown bounded by the configured drain timeout.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DrainTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// waitHandlers waits until the drained subscription has delivered its last
// message, so no further handlers start, and then for running handlers.
func (s *Server) waitHandlers(ctx context.Context) error {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for s.sub.IsValid() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// process handles one request payload and returns the encoded reply.
func (s *Server) process(ctx context.Context, data []byte) []byte {
	var req types.VerifyJSONRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return encodeError(http.StatusBadRequest, "invalid JSON body")
	}
	img, err := verifier.DecodeImageBase64(req.ImageBase64)
	if err != nil {
		return encodeError(http.StatusBadRequest, "image_base64 is not valid base64")
	}

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	resp, err := s.svc.Verify(ctx, bytes.NewReader(img), req.TaskDescription)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return encodeError(http.StatusServiceUnavailable, "server is shutting down")
		}
		return encodeError(verifier.StatusCode(err), verifier.PublicMessage(err))
	}
	b, _ := json.Marshal(types.VerifyReply{Result: &resp})
	return b
}

func encodeError(status int, msg string) []byte {
	b, _ := json.Marshal(types.VerifyReply{Error: &types.ErrorResponse{Error: msg, Code: status}})
	return b
}
