package vlm

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// completionBody builds a minimal chat.completion reply.
func completionBody(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return b
}

// fakeUpstream serves /v1/chat/completions with handler and counts hits.
func fakeUpstream(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"test-model","object":"model","created":0,"owned_by":"test"}]}`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, &hits
}

func testClient(baseURL string, timeout time.Duration, retries int) *Client {
	return New(Config{
		BaseURL:        baseURL + "/v1",
		Timeout:        timeout,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, zerolog.Nop())
}

func testRequest() CompletionRequest {
	return CompletionRequest{
		Model: "test-model",
		Messages: []Message{{Parts: []Part{
			TextPart("is there a cat?"),
			ImagePart("data:image/jpeg;base64,AAEC"),
		}}},
		Schema: &Schema{Name: "answer", Definition: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"match": map[string]any{"type": "boolean"}},
			"required":             []any{"match"},
			"additionalProperties": false,
		}},
		Temperature: 0.1,
		MaxTokens:   512,
	}
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func TestComplete_SendsMultimodalStructuredRequest(t *testing.T) {
	var got map[string]any
	ts, hits := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer EMPTY" {
			t.Errorf("authorization=%q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeJSON(w, http.StatusOK, completionBody(`{"match": true, "reason": "cat"}`))
	})
	c := testClient(ts.URL, 2*time.Second, 2)
	defer c.Close()

	text, err := c.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != `{"match": true, "reason": "cat"}` {
		t.Fatalf("text=%q", text)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits=%d", hits.Load())
	}
	if got["model"] != "test-model" || got["temperature"] != 0.1 || got["max_tokens"] != float64(512) {
		t.Fatalf("unexpected sampling fields: %v", got)
	}
	rf, _ := got["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Fatalf("response_format=%v", got["response_format"])
	}
	if _, ok := got["guided_json"].(map[string]any); !ok {
		t.Fatalf("guided_json missing: %v", got)
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages=%v", got["messages"])
	}
	msg := msgs[0].(map[string]any)
	parts, _ := msg["content"].([]any)
	if msg["role"] != "user" || len(parts) != 2 {
		t.Fatalf("message=%v", msg)
	}
	img := parts[1].(map[string]any)
	url := img["image_url"].(map[string]any)["url"]
	if img["type"] != "image_url" || url != "data:image/jpeg;base64,AAEC" {
		t.Fatalf("image part=%v", img)
	}
}

func TestComplete_TimeoutExhaustsRetries(t *testing.T) {
	ts, hits := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	c := testClient(ts.URL, 30*time.Millisecond, 2)

	_, err := c.Complete(context.Background(), testRequest())
	if !IsUnavailable(err) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	var ue *UnavailableError
	if !errors.As(err, &ue) || ue.Attempts != 3 {
		t.Fatalf("attempts=%+v", ue)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected retries+1=3 attempts upstream, got %d", hits.Load())
	}
}

type refusingTransport struct{ calls atomic.Int32 }

func (rt *refusingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	rt.calls.Add(1)
	return nil, &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
}

func TestComplete_ConnectionRefused(t *testing.T) {
	rt := &refusingTransport{}
	c := New(Config{
		BaseURL:        "http://127.0.0.1:1/v1",
		Timeout:        time.Second,
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		HTTPClient:     &http.Client{Transport: rt},
	}, zerolog.Nop())

	_, err := c.Complete(context.Background(), testRequest())
	if !IsUnavailable(err) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if !errors.Is(err, syscall.ECONNREFUSED) {
		t.Fatalf("cause not preserved: %v", err)
	}
	if rt.calls.Load() != 2 {
		t.Fatalf("attempts=%d, want 2", rt.calls.Load())
	}
}

func TestComplete_ServerErrorsAreRetried(t *testing.T) {
	ts, hits := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, []byte(`{"error":{"message":"loading"}}`))
	})
	c := testClient(ts.URL, time.Second, 2)
	_, err := c.Complete(context.Background(), testRequest())
	if !IsUnavailable(err) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits=%d", hits.Load())
	}
}

func TestComplete_RecoversAfterTransientFailure(t *testing.T) {
	var n atomic.Int32
	ts, hits := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			writeJSON(w, http.StatusBadGateway, []byte(`{"error":{"message":"bad gateway"}}`))
			return
		}
		writeJSON(w, http.StatusOK, completionBody(`{"match": false, "reason": "none"}`))
	})
	c := testClient(ts.URL, time.Second, 2)
	text, err := c.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.Contains(text, `"match": false`) || hits.Load() != 2 {
		t.Fatalf("text=%q hits=%d", text, hits.Load())
	}
}

func TestComplete_ProtocolErrorsAreNotRetried(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"bad request": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, []byte(`{"error":{"message":"invalid schema"}}`))
		},
		"no choices": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
		},
		"empty content": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, completionBody(""))
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []byte(`not-json`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			ts, hits := fakeUpstream(t, h)
			c := testClient(ts.URL, time.Second, 2)
			_, err := c.Complete(context.Background(), testRequest())
			if !IsProtocol(err) {
				t.Fatalf("expected ProtocolError, got %v", err)
			}
			if IsUnavailable(err) {
				t.Fatalf("protocol error misclassified as unavailable")
			}
			if hits.Load() != 1 {
				t.Fatalf("hits=%d, want 1", hits.Load())
			}
		})
	}
}

func TestComplete_EmptyChoicesSentinel(t *testing.T) {
	ts, _ := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	})
	_, err := testClient(ts.URL, time.Second, 0).Complete(context.Background(), testRequest())
	if !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
}

func TestComplete_CallerCancellation(t *testing.T) {
	ts, _ := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	c := testClient(ts.URL, 5*time.Second, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, testRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected caller deadline, got %v", err)
	}
	if IsUnavailable(err) || IsProtocol(err) {
		t.Fatalf("caller cancellation must not be classified: %v", err)
	}
}

func TestPing(t *testing.T) {
	ts, _ := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	if err := testClient(ts.URL, time.Second, 0).Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	if isTransient(nil) {
		t.Fatalf("nil is not transient")
	}
	if !isTransient(context.DeadlineExceeded) {
		t.Fatalf("deadline should be transient")
	}
	if isTransient(ErrEmptyContent) {
		t.Fatalf("empty content must not be transient")
	}
}
