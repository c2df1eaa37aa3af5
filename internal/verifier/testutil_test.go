package verifier

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"vlmcheck/internal/vlm"
)

// fakeClient is a ModelClient recording requests and concurrency.
type fakeClient struct {
	mu    sync.Mutex
	reqs  []vlm.CompletionRequest
	reply string
	err   error
	delay time.Duration
	// hold, when set, blocks every call until closed.
	hold chan struct{}

	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeClient) Complete(ctx context.Context, req vlm.CompletionRequest) (string, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	reply, err, delay, hold := f.reply, f.err, f.delay, f.hold
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, err
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *fakeClient) set(reply string, err error) {
	f.mu.Lock()
	f.reply, f.err = reply, err
	f.mu.Unlock()
}

// pingClient adds Ping to fakeClient.
type pingClient struct {
	fakeClient
	pingErr error
}

func (p *pingClient) Ping(context.Context) error { return p.pingErr }

func newTestVerifier(c ModelClient, cfg Config) *Verifier {
	if cfg.Model == "" {
		cfg.Model = "test-model"
	}
	return New(c, cfg, zerolog.New(io.Discard))
}

var (
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
)
