package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	executor "github.com/fedgw/gateway/internal/executor"
	reqid "github.com/fedgw/gateway/internal/reqid"
	schema "github.com/fedgw/gateway/internal/schema"
	supergraph "github.com/fedgw/gateway/internal/supergraph"
	"google.golang.org/grpc/metadata"
)

const testHelloSDL = `
directive @join__graph(name: String!, url: String!) repeatable on SCHEMA
directive @join__type(graph: String!, key: String, resolvable: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: String!, requires: String, provides: String, override: String, external: Boolean) repeatable on FIELD_DEFINITION

schema @join__graph(name: "svc", url: "http://svc.internal") {
  query: Query
}

type Query {
  hello: String @join__field(graph: "svc")
}
`

// captureRuntime records the context each dispatched partition ran under and
// returns a fixed response, standing in for a real subgraphclient.Client.
type captureRuntime struct {
	data map[string]any
	ctx  context.Context
}

func (r *captureRuntime) ExecutePartition(ctx context.Context, req executor.SubgraphRequest) (executor.SubgraphResponse, error) {
	r.ctx = ctx
	return executor.SubgraphResponse{Data: r.data}, nil
}

func newTestHandler(t *testing.T, rt *captureRuntime, opts ...Option) (*Handler, *schema.Schema) {
	t.Helper()
	doc, err := supergraph.Parse(testHelloSDL)
	if err != nil {
		t.Fatalf("supergraph.Parse: %v", err)
	}
	sch, err := schema.BuildFromSupergraph(doc)
	if err != nil {
		t.Fatalf("schema.BuildFromSupergraph: %v", err)
	}
	coord := executor.NewCoordinator(sch, rt)
	h, err := New(coord, sch, opts...)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return h, sch
}

func TestForwardedHeaders(t *testing.T) {
	rt := &captureRuntime{data: map[string]any{"hello": "world"}}
	h, _ := newTestHandler(t, rt, WithMetadataHeaders("X-Test"))

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test", "abc")
	req.Header.Set("X-Other", "nope")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	captured, _ := metadata.FromOutgoingContext(rt.ctx)
	if captured == nil || captured.Get("x-test")[0] != "abc" || len(captured.Get("x-other")) > 0 {
		t.Fatalf("metadata not propagated correctly: %v", captured)
	}
}

func TestForwardedHeadersDefaultEmpty(t *testing.T) {
	rt := &captureRuntime{data: map[string]any{"hello": "world"}}
	h, _ := newTestHandler(t, rt)

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test", "abc")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	captured, _ := metadata.FromOutgoingContext(rt.ctx)
	if captured != nil && len(captured.Get("x-test")) > 0 {
		t.Fatalf("header should not be forwarded by default: %v", captured)
	}
}

func TestCORSAndPreflight(t *testing.T) {
	rt := &captureRuntime{data: map[string]any{"hello": "world"}}
	h, _ := newTestHandler(t, rt, WithCORS("*"))

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	pre := httptest.NewRequest("OPTIONS", "/", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	if pw.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", pw.Code)
	}
	if pw.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight missing CORS header")
	}
	if pw.Header().Get("Access-Control-Allow-Headers") != "X-Test" {
		t.Fatalf("preflight missing allow headers")
	}
}

func TestMaxBodyBytes(t *testing.T) {
	rt := &captureRuntime{data: map[string]any{"hello": "world"}}
	h, _ := newTestHandler(t, rt, WithMaxBodyBytes(10))

	body := bytes.NewBufferString(`{"query":"1234567890"}`)
	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	rt := &captureRuntime{data: map[string]any{"hello": "world"}}
	h, _ := newTestHandler(t, rt)

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	capturedID, ok := reqid.FromContext(rt.ctx)
	if !ok || capturedID == 0 {
		t.Fatalf("missing request id in context")
	}
	capturedMD, _ := metadata.FromOutgoingContext(rt.ctx)
	if got := capturedMD.Get("graphql-request-id"); len(got) == 0 || got[0] != strconv.FormatInt(capturedID, 10) {
		t.Fatalf("metadata mismatch: %v id %d", capturedMD, capturedID)
	}
}
