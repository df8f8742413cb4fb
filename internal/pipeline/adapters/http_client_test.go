package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/novelvideo/internal/pipeline/pipeerr"
)

type echoReq struct {
	Text string `json:"text"`
}

type echoResp struct {
	Text string `json:"text"`
}

func TestPostJSONSucceedsOnFirstTry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req echoReq
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(echoResp{Text: req.Text + "-ok"})
	}))
	defer srv.Close()

	c := newHTTPClient(nil, srv.URL, "", time.Second, 3, "test")
	var out echoResp
	if err := c.postJSON(context.Background(), "/v1/echo", echoReq{Text: "hi"}, &out, 0); err != nil {
		t.Fatalf("postJSON: %v", err)
	}
	if out.Text != "hi-ok" {
		t.Fatalf("out.Text = %q, want %q", out.Text, "hi-ok")
	}
}

func TestPostJSONRetriesOn500ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
			return
		}
		json.NewEncoder(w).Encode(echoResp{Text: "recovered"})
	}))
	defer srv.Close()

	c := newHTTPClient(nil, srv.URL, "", time.Second, 5, "test")
	var out echoResp
	if err := c.postJSON(context.Background(), "/v1/echo", echoReq{Text: "hi"}, &out, 0); err != nil {
		t.Fatalf("postJSON: %v", err)
	}
	if out.Text != "recovered" {
		t.Fatalf("out.Text = %q, want %q", out.Text, "recovered")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestPostJSONStopsRetryingOn400(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	c := newHTTPClient(nil, srv.URL, "", time.Second, 5, "test")
	var out echoResp
	err := c.postJSON(context.Background(), "/v1/echo", echoReq{Text: "hi"}, &out, 0)
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on a fatal status)", calls)
	}
	kind, ok := pipeerr.KindOf(err)
	if !ok || kind != pipeerr.KindExternalService {
		t.Fatalf("kind = %v, ok = %v, want ExternalServiceError", kind, ok)
	}
}

func TestPostJSONExhaustsRetriesOnPersistent429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	c := newHTTPClient(nil, srv.URL, "", time.Second, 2, "test")
	var out echoResp
	err := c.postJSON(context.Background(), "/v1/echo", echoReq{Text: "hi"}, &out, 0)
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (maxRetries attempts exhausted)", calls)
	}
}

func TestPostJSONPerCallMaxRetriesOverridesClientDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newHTTPClient(nil, srv.URL, "", time.Second, 5, "test")
	var out echoResp
	err := c.postJSON(context.Background(), "/v1/echo", echoReq{Text: "hi"}, &out, 1)
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (per-call override of 1 attempt)", calls)
	}
}

func TestPostJSONMapsCancelledContextToCancelledKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		json.NewEncoder(w).Encode(echoResp{})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newHTTPClient(nil, srv.URL, "", time.Second, 1, "test")
	var out echoResp
	err := c.postJSON(ctx, "/v1/echo", echoReq{Text: "hi"}, &out, 0)
	if err == nil {
		t.Fatal("expected an error")
	}
	kind, ok := pipeerr.KindOf(err)
	if !ok || kind != pipeerr.KindCancelled {
		t.Fatalf("kind = %v, ok = %v, want Cancelled", kind, ok)
	}
}

func TestWithRateLimitThrottlesRequestRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(echoResp{Text: "ok"})
	}))
	defer srv.Close()

	c := newHTTPClient(nil, srv.URL, "", time.Second, 1, "test").withRateLimit(5)
	var out echoResp
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := c.postJSON(context.Background(), "/v1/echo", echoReq{Text: "hi"}, &out, 0); err != nil {
			t.Fatalf("postJSON[%d]: %v", i, err)
		}
	}
	// 3 requests at 5/s with burst 1 cannot all complete instantly; the
	// second and third each wait out part of the token refill interval.
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Fatalf("elapsed = %v, expected rate limiting to introduce a delay", elapsed)
	}
}

func TestWithRateLimitZeroLeavesClientUnlimited(t *testing.T) {
	c := newHTTPClient(nil, "http://example.invalid", "", time.Second, 1, "test").withRateLimit(0)
	if c.limiter != nil {
		t.Fatal("expected a non-positive rate to leave the limiter unset")
	}
}

func TestIsRetryableHTTPStatusClassification(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tc := range cases {
		if got := isRetryableHTTPStatus(tc.code); got != tc.want {
			t.Errorf("isRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}
