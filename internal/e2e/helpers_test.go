package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vlmcheck/internal/httpapi"
	"vlmcheck/internal/verifier"
	"vlmcheck/internal/vlm"
)

// upstream is a fake OpenAI-compatible VLM server.
type upstream struct {
	mu      sync.Mutex
	content string
	status  int
	delay   time.Duration
	bodies  []map[string]any

	hits     atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
}

func (u *upstream) set(content string, status int) {
	u.mu.Lock()
	u.content, u.status = content, status
	u.mu.Unlock()
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/v1/models" {
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"test-model","object":"model","created":1,"owned_by":"test"}]}`))
		return
	}
	u.hits.Add(1)
	n := u.inflight.Add(1)
	defer u.inflight.Add(-1)
	for {
		p := u.peak.Load()
		if n <= p || u.peak.CompareAndSwap(p, n) {
			break
		}
	}

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	u.mu.Lock()
	u.bodies = append(u.bodies, body)
	content, status, delay := u.content, u.status, u.delay
	u.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-e2e",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
}

type stackConfig struct {
	retries       int
	timeout       time.Duration
	maxConcurrent int
	queueTimeout  time.Duration
}

// newStack wires the real client, verifier and HTTP API against u.
func newStack(t *testing.T, u *upstream, cfg stackConfig) (*httptest.Server, *verifier.Verifier) {
	t.Helper()
	up := httptest.NewServer(u)
	t.Cleanup(up.Close)

	log := zerolog.New(io.Discard)
	client := vlm.New(vlm.Config{
		BaseURL:        up.URL + "/v1",
		Timeout:        cfg.timeout,
		MaxRetries:     cfg.retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, log)
	t.Cleanup(func() { _ = client.Close() })

	v := verifier.New(client, verifier.Config{
		Model:         "test-model",
		MaxConcurrent: cfg.maxConcurrent,
		QueueTimeout:  cfg.queueTimeout,
	}, log)
	srv := httptest.NewServer(httpapi.NewMux(v))
	t.Cleanup(srv.Close)
	return srv, v
}

func postVerify(t *testing.T, url string, image []byte, task string) (*http.Response, []byte) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "img.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write(image)
	_ = mw.WriteField("task_description", task)
	_ = mw.Close()

	resp, err := http.Post(url+"/api/v1/verify", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

var testImage = []byte("\xff\xd8\xff\xe0\x00\x10JFIF-e2e")
