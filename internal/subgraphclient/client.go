// Package subgraphclient is the gateway's default executor.Runtime: it
// renders each dispatched SubgraphRequest over HTTP as a POST of
// {query, variables}, one resty.Client and golang.org/x/time/rate limiter
// per subgraph, with retries bounded by resty's own backoff.
package subgraphclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/fedgw/gateway/internal/events"
	"github.com/fedgw/gateway/internal/eventbus"
	"github.com/fedgw/gateway/internal/executor"
	"github.com/fedgw/gateway/internal/headerrules"
	"github.com/fedgw/gateway/internal/reqid"
	"github.com/fedgw/gateway/internal/schema"
	"google.golang.org/grpc/metadata"
)

// RateLimit bounds how many requests per second a subgraph's endpoint will
// accept, with a burst allowance on top.
type RateLimit struct {
	RPS   float64
	Burst int
}

// Config tunes the HTTP client built for every subgraph endpoint.
type Config struct {
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	DefaultRate  RateLimit
	// PerSubgraphRate overrides DefaultRate for specific subgraphs, keyed
	// by subgraph name as declared in the supergraph's @join__graph.
	PerSubgraphRate map[string]RateLimit
}

func defaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		RetryCount:   2,
		RetryWait:    100 * time.Millisecond,
		RetryMaxWait: 2 * time.Second,
		DefaultRate:  RateLimit{RPS: 50, Burst: 50},
	}
}

// Client dispatches query partitions to their owning subgraph over HTTP. It
// implements executor.Runtime.
type Client struct {
	schema    *schema.Schema
	endpoints map[schema.SubgraphID]*subgraphEndpoint
}

type subgraphEndpoint struct {
	name    string
	url     string
	http    *resty.Client
	limiter *rate.Limiter
	headers *headerrules.RuleSet
}

var _ executor.Runtime = (*Client)(nil)

// New builds one HTTP client and rate limiter per subgraph declared in s.
func New(s *schema.Schema, cfg Config) *Client {
	cfg = mergeDefaults(cfg)
	c := &Client{schema: s, endpoints: map[schema.SubgraphID]*subgraphEndpoint{}}
	for _, id := range s.Subgraphs() {
		if s.SubgraphKind(id) != schema.SubgraphGraphQL {
			// Virtual subgraphs (introspection, extension-backed resolvers)
			// are never dispatched here — a composite Runtime upstream
			// intercepts them before Client.ExecutePartition ever sees them.
			continue
		}
		name := s.SubgraphName(id)
		limit := cfg.DefaultRate
		if override, ok := cfg.PerSubgraphRate[name]; ok {
			limit = override
		}
		c.endpoints[id] = &subgraphEndpoint{
			name: name,
			url:  s.SubgraphURL(id),
			http: resty.New().
				SetTimeout(cfg.Timeout).
				SetRetryCount(cfg.RetryCount).
				SetRetryWaitTime(cfg.RetryWait).
				SetRetryMaxWaitTime(cfg.RetryMaxWait).
				AddRetryCondition(func(r *resty.Response, err error) bool {
					return err != nil || r.StatusCode() >= 500
				}),
			limiter: rate.NewLimiter(rate.Limit(limit.RPS), limit.Burst),
			headers: headerrules.Compile(s.SubgraphHeaderRules(id)),
		}
	}
	return c
}

func mergeDefaults(cfg Config) Config {
	d := defaultConfig()
	if cfg.Timeout > 0 {
		d.Timeout = cfg.Timeout
	}
	if cfg.RetryCount > 0 {
		d.RetryCount = cfg.RetryCount
	}
	if cfg.RetryWait > 0 {
		d.RetryWait = cfg.RetryWait
	}
	if cfg.RetryMaxWait > 0 {
		d.RetryMaxWait = cfg.RetryMaxWait
	}
	if cfg.DefaultRate.RPS > 0 {
		d.DefaultRate = cfg.DefaultRate
	}
	if cfg.PerSubgraphRate != nil {
		d.PerSubgraphRate = cfg.PerSubgraphRate
	}
	return d
}

type graphqlRequestBody struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponseBody struct {
	Data   map[string]any     `json:"data"`
	Errors []graphqlWireError `json:"errors,omitempty"`
}

type graphqlWireError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// ExecutePartition renders req as a standard GraphQL-over-HTTP POST against
// the owning subgraph's endpoint.
func (c *Client) ExecutePartition(ctx context.Context, req executor.SubgraphRequest) (executor.SubgraphResponse, error) {
	ep, ok := c.endpoints[req.Subgraph]
	if !ok {
		return executor.SubgraphResponse{}, fmt.Errorf("subgraphclient: no endpoint registered for subgraph %q", c.schema.SubgraphName(req.Subgraph))
	}
	if err := ep.limiter.Wait(ctx); err != nil {
		return executor.SubgraphResponse{}, fmt.Errorf("subgraphclient: rate limit wait for %s: %w", ep.name, err)
	}

	variables := req.Variables
	if req.Representations != nil {
		variables = map[string]any{"representations": req.Representations}
	}
	body := graphqlRequestBody{Query: req.Document, Variables: variables}

	start := time.Now()
	eventbus.Publish(ctx, events.SubgraphRequestStart{Subgraph: ep.name, URL: ep.url, Entity: req.Representations != nil})

	var wire graphqlResponseBody
	r := ep.http.R().SetContext(ctx).SetHeader("Content-Type", "application/json").SetBody(body).SetResult(&wire)
	if id, ok := reqid.FromContext(ctx); ok {
		r.SetHeader("X-Request-Id", fmt.Sprintf("%d", id))
	}
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		for k, v := range ep.headers.Apply(http.Header(md)) {
			for _, val := range v {
				r.Header.Add(k, val)
			}
		}
	}
	resp, err := r.Post(ep.url)

	eventbus.Publish(ctx, events.SubgraphRequestFinish{Subgraph: ep.name, URL: ep.url, Status: statusOf(resp), Err: err, Duration: time.Since(start)})

	if err != nil {
		return executor.SubgraphResponse{}, fmt.Errorf("subgraphclient: request to %s: %w", ep.name, err)
	}
	if resp.IsError() {
		return executor.SubgraphResponse{}, fmt.Errorf("subgraphclient: %s returned status %d", ep.name, resp.StatusCode())
	}

	var out executor.SubgraphResponse
	if len(wire.Errors) > 0 {
		out.Errors = make([]executor.GraphQLError, len(wire.Errors))
		for i, e := range wire.Errors {
			out.Errors[i] = executor.GraphQLError{Message: e.Message, Path: pathFromWire(e.Path)}
		}
	}

	if req.Representations != nil {
		entities, _ := wire.Data["_entities"].([]any)
		out.List = entities
		return out, nil
	}
	out.Data = wire.Data
	return out, nil
}

func statusOf(r *resty.Response) int {
	if r == nil {
		return 0
	}
	return r.StatusCode()
}

func pathFromWire(raw []any) executor.Path {
	if len(raw) == 0 {
		return nil
	}
	p := make(executor.Path, len(raw))
	for i, elem := range raw {
		switch v := elem.(type) {
		case float64:
			p[i] = int(v)
		default:
			p[i] = elem
		}
	}
	return p
}
