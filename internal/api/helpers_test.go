package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/quill/internal/generate"
	"github.com/kalambet/quill/internal/metrics"
	"github.com/kalambet/quill/internal/profile"
	"github.com/kalambet/quill/internal/proxy"
	"github.com/kalambet/quill/internal/storage"
	"github.com/kalambet/quill/internal/training"
)

const testToken = "test-token-12345"

// newTestDeps wires real services over an in-memory store. When upstream is
// nil the proxy has no API key, so generations fall back.
func newTestDeps(t *testing.T, upstream http.HandlerFunc) Deps {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	client := proxy.NewClient("", "")
	if upstream != nil {
		srv := httptest.NewServer(upstream)
		t.Cleanup(srv.Close)
		client = proxy.NewClient("test-key", srv.URL)
	}

	mgr := profile.NewManager(store)
	m := metrics.New()
	worker := training.NewWorker(store, mgr, 0, 0)
	worker.SetRecorder(m)
	gen := generate.NewService(mgr, client, store, generate.Options{Model: "test/model"})
	gen.SetRecorder(m)

	return Deps{
		Store:      store,
		Profile:    mgr,
		Trainer:    worker,
		Generator:  gen,
		Proxy:      client,
		Metrics:    m,
		MaxSamples: 5,
		Token:      testToken,
	}
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
