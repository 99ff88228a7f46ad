// Package config loads and validates the gateway's declarative YAML
// configuration document (spec.md §6.1): the supergraph source, per-subgraph
// transport settings, the header rule engine, and the guardrail sections
// (trusted documents, operation limits, APQ, batching, complexity control,
// telemetry). It deliberately has no generic validation library in its
// stack — the teacher repo doesn't carry one either — so Validate is a small
// set of hand-written checks in the teacher's terse-error style.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fedgw/gateway/internal/schema"
	"github.com/fedgw/gateway/internal/subgraphclient"
)

// Config is the root of the gateway configuration document.
type Config struct {
	Graph        GraphConfig              `yaml:"graph"`
	Gateway      GatewayConfig            `yaml:"gateway"`
	Subgraphs    map[string]SubgraphConfig `yaml:"subgraphs"`
	Headers      []HeaderRule             `yaml:"headers"`
	Authn        AuthenticationConfig     `yaml:"authentication"`
	Trusted      TrustedDocumentsConfig   `yaml:"trusted_documents"`
	Limits       OperationLimitsConfig    `yaml:"operation_limits"`
	MaxDocBytes  int64                    `yaml:"executable_document_limit"`
	APQ          APQConfig                `yaml:"apq"`
	Batching     BatchingConfig           `yaml:"batching"`
	Websockets   WebsocketsConfig         `yaml:"websockets"`
	Complexity   ComplexityConfig         `yaml:"complexity_control"`
	Telemetry    TelemetryConfig          `yaml:"telemetry"`

	// Extensions maps a linked extension's name (the `@link`ed name
	// referenced by `@extension__link` in the supergraph SDL) to the gRPC
	// endpoint serving its ResolverExtension/AuthorizationExtension RPCs
	// (SPEC_FULL.md §6.3.1). Not part of spec.md's enumerated config
	// sections; added because internal/extrt and internal/grpctp need a
	// concrete address to dial.
	Extensions map[string]ExtensionConfig `yaml:"extensions"`
}

// ExtensionConfig names where a linked extension's gRPC service lives.
type ExtensionConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// GraphConfig controls how the supergraph SDL is loaded and how its
// introspection/contract surface behaves.
type GraphConfig struct {
	// SDLPath is a path to the composed supergraph SDL file. Exactly one of
	// SDLPath/SDLInline must be set.
	SDLPath   string `yaml:"sdl_path"`
	SDLInline string `yaml:"sdl_inline"`

	IntrospectionEnabled bool   `yaml:"introspection_enabled"`
	ContractsCacheSize   int    `yaml:"contracts_cache_size"`
	DefaultContractKey   string `yaml:"default_key"`
}

// GatewayConfig holds process-wide HTTP server and default transport
// settings, mirroring internal/server.Options and subgraphclient.Config.
type GatewayConfig struct {
	Addr            string        `yaml:"addr"`
	Timeout         time.Duration `yaml:"timeout"`
	RetryCount      int           `yaml:"retry_count"`
	RetryWait       time.Duration `yaml:"retry_wait"`
	RetryMaxWait    time.Duration `yaml:"retry_max_wait"`
	Pretty          bool          `yaml:"pretty"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	GraphiQL        bool          `yaml:"graphiql"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	MetadataHeaders []string      `yaml:"metadata_headers"`
}

// SubgraphConfig overrides per-subgraph transport behavior. URL is normally
// inherited from the supergraph SDL's @join__graph url; a non-empty URL here
// overrides it (e.g. pointing a subgraph at a local sidecar). Timeout and
// RetryCount are parsed but not applied: every subgraph client uses the
// gateway-level timeout and retry count (see SubgraphClientConfig).
type SubgraphConfig struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
	RateRPS    float64       `yaml:"rate_rps"`
	RateBurst  int           `yaml:"rate_burst"`
	Headers    []HeaderRule  `yaml:"headers"`
}

// HeaderRule is the YAML-facing mirror of schema.HeaderRule. It exists
// separately so the wire format's `forward`/`insert`/`remove`/
// `rename_duplicate` kind names (spec.md §6.1) don't leak schema's internal
// uint8 HeaderRuleKind into the config document.
type HeaderRule struct {
	Kind    string `yaml:"kind"`
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Default string `yaml:"default"`
	Rename  string `yaml:"rename"`
	Value   string `yaml:"value"`
}

func (r HeaderRule) compile() (schema.HeaderRule, error) {
	var kind schema.HeaderRuleKind
	switch r.Kind {
	case "forward":
		kind = schema.HeaderForward
	case "insert":
		kind = schema.HeaderInsert
	case "remove":
		kind = schema.HeaderRemove
	case "rename_duplicate":
		kind = schema.HeaderRenameDuplicate
	default:
		return schema.HeaderRule{}, fmt.Errorf("config: unknown header rule kind %q", r.Kind)
	}
	if r.Name == "" && r.Pattern == "" {
		return schema.HeaderRule{}, fmt.Errorf("config: header rule needs a name or a pattern")
	}
	return schema.HeaderRule{
		Kind:    kind,
		Name:    r.Name,
		Pattern: r.Pattern,
		Default: r.Default,
		Rename:  r.Rename,
		Value:   r.Value,
	}, nil
}

func compileHeaderRules(rules []HeaderRule) ([]schema.HeaderRule, error) {
	out := make([]schema.HeaderRule, 0, len(rules))
	for i, r := range rules {
		cr, err := r.compile()
		if err != nil {
			return nil, fmt.Errorf("config: headers[%d]: %w", i, err)
		}
		out = append(out, cr)
	}
	return out, nil
}

// AuthenticationConfig controls the default authentication decision when no
// provider claims a request, and which metadata endpoints stay public.
type AuthenticationConfig struct {
	Default          string   `yaml:"default"` // "deny" | "grant"
	Providers        []string `yaml:"providers"`
	PublicMetadataEndpoints []string `yaml:"public_metadata_endpoints"`
}

// TrustedDocumentsConfig gates operations by a pre-registered document id
// instead of accepting arbitrary query text.
type TrustedDocumentsConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Enforced          bool   `yaml:"enforced"`
	BypassHeaderName  string `yaml:"bypass_header_name"`
	BypassHeaderValue string `yaml:"bypass_header_value"`

	LogDocumentIDUnknown          string `yaml:"document_id_unknown"`
	LogDocumentIDAndQueryMismatch string `yaml:"document_id_and_query_mismatch"`
	LogInlineDocumentUnknown      string `yaml:"inline_document_unknown"`
}

// OperationLimitsConfig bounds the shape of an accepted operation document.
type OperationLimitsConfig struct {
	MaxDepth      int `yaml:"depth"`
	MaxAliases    int `yaml:"aliases"`
	MaxRootFields int `yaml:"root_fields"`
	MaxComplexity int `yaml:"complexity"`
}

// APQConfig enables automatic persisted queries.
type APQConfig struct {
	Enabled bool `yaml:"enabled"`
}

// BatchingConfig enables array-of-operations request batching.
type BatchingConfig struct {
	Enabled  bool `yaml:"enabled"`
	MaxBatch int  `yaml:"max_batch"`
}

// WebsocketsConfig controls graphql-ws transport behavior.
type WebsocketsConfig struct {
	ForwardConnectionInitPayload bool `yaml:"forward_connection_init_payload"`
}

// ComplexityConfig enables static query-cost estimation ahead of planning.
type ComplexityConfig struct {
	Enabled   bool `yaml:"enabled"`
	MaxCost   int  `yaml:"max_cost"`
	ScalarCost int `yaml:"scalar_cost"`
}

// TelemetryConfig controls what observability data the gateway exports.
type TelemetryConfig struct {
	OTLPEndpoint string          `yaml:"otlp_endpoint"`
	ServiceName  string          `yaml:"service_name"`
	Exporters    ExportersConfig `yaml:"exporters"`
}

type ExportersConfig struct {
	// ResponseExtension is reserved for a future per-partition timing export
	// into the response's top-level `extensions` object. Not yet read by
	// internal/executor — see DESIGN.md.
	ResponseExtension bool `yaml:"response_extension"`
}

// Load reads and parses the YAML document at path, applies defaults, and
// validates it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes raw YAML bytes into a Config, applies defaults, and
// validates it.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Gateway.Addr == "" {
		c.Gateway.Addr = ":4000"
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = 10 * time.Second
	}
	if c.Authn.Default == "" {
		c.Authn.Default = "deny"
	}
	if c.Graph.ContractsCacheSize == 0 {
		c.Graph.ContractsCacheSize = 32
	}
	if c.Batching.Enabled && c.Batching.MaxBatch == 0 {
		c.Batching.MaxBatch = 10
	}
}

// Validate checks the document for internally-inconsistent or missing
// required fields. It does not touch the filesystem or network.
func (c *Config) Validate() error {
	if c.Graph.SDLPath == "" && c.Graph.SDLInline == "" {
		return fmt.Errorf("config: graph.sdl_path or graph.sdl_inline is required")
	}
	if c.Graph.SDLPath != "" && c.Graph.SDLInline != "" {
		return fmt.Errorf("config: graph.sdl_path and graph.sdl_inline are mutually exclusive")
	}
	if c.Authn.Default != "deny" && c.Authn.Default != "grant" {
		return fmt.Errorf("config: authentication.default must be %q or %q, got %q", "deny", "grant", c.Authn.Default)
	}
	if _, err := compileHeaderRules(c.Headers); err != nil {
		return err
	}
	for name, sg := range c.Subgraphs {
		if _, err := compileHeaderRules(sg.Headers); err != nil {
			return fmt.Errorf("config: subgraphs.%s: %w", name, err)
		}
		if sg.RateRPS < 0 {
			return fmt.Errorf("config: subgraphs.%s.rate_rps must not be negative", name)
		}
	}
	if c.MaxDocBytes < 0 {
		return fmt.Errorf("config: executable_document_limit must not be negative")
	}
	if c.Trusted.Enabled && c.Trusted.BypassHeaderName != "" && c.Trusted.BypassHeaderValue == "" {
		return fmt.Errorf("config: trusted_documents.bypass_header_value is required when bypass_header_name is set")
	}
	for name, ext := range c.Extensions {
		if ext.Endpoint == "" {
			return fmt.Errorf("config: extensions.%s.endpoint is required", name)
		}
	}
	return nil
}

// ExtensionEndpoints returns the extension-name-to-endpoint map in the shape
// grpctp.NewStaticEndpoints expects. internal/extrt's Transport dials by the
// fully-qualified gRPC service name a method descriptor reports; lacking a
// real descriptor source here, the extension's configured name doubles as
// that key (see DESIGN.md).
func (c *Config) ExtensionEndpoints() map[string][]string {
	out := make(map[string][]string, len(c.Extensions))
	for name, ext := range c.Extensions {
		out[name] = []string{ext.Endpoint}
	}
	return out
}

// SDL returns the supergraph SDL source, reading it from GraphConfig.SDLPath
// if that was used.
func (c *Config) SDL() (string, error) {
	if c.Graph.SDLInline != "" {
		return c.Graph.SDLInline, nil
	}
	b, err := os.ReadFile(c.Graph.SDLPath)
	if err != nil {
		return "", fmt.Errorf("config: reading supergraph sdl %s: %w", c.Graph.SDLPath, err)
	}
	return string(b), nil
}

// ApplySubgraphOverrides installs every subgraphs.<name> override onto sch:
// header rules via schema.SetSubgraphHeaderRules (falling back to the global
// `headers` section for any subgraph with no override of its own —
// global-then-override rather than merge), and URL via
// schema.SetSubgraphURL when the subgraph config names one.
func (c *Config) ApplySubgraphOverrides(sch *schema.Schema) error {
	globalRules, err := compileHeaderRules(c.Headers)
	if err != nil {
		return err
	}
	for _, id := range sch.Subgraphs() {
		name := sch.SubgraphName(id)
		sg, ok := c.Subgraphs[name]
		if !ok || len(sg.Headers) == 0 {
			sch.SetSubgraphHeaderRules(id, globalRules)
		} else {
			rules, err := compileHeaderRules(sg.Headers)
			if err != nil {
				return fmt.Errorf("config: subgraphs.%s: %w", name, err)
			}
			sch.SetSubgraphHeaderRules(id, rules)
		}
		if ok && sg.URL != "" {
			sch.SetSubgraphURL(id, sg.URL)
		}
	}
	return nil
}

// SubgraphClientConfig builds the subgraphclient.Config this document
// describes: timeout and retry count come from the gateway section for
// every subgraph, and only rate_rps/rate_burst are applied per subgraph. A
// subgraph's own timeout and retry_count values are not carried over.
func (c *Config) SubgraphClientConfig() subgraphclient.Config {
	cfg := subgraphclient.Config{
		Timeout:     c.Gateway.Timeout,
		RetryCount:  c.Gateway.RetryCount,
		DefaultRate: subgraphclient.RateLimit{RPS: 50, Burst: 50},
	}
	if len(c.Subgraphs) > 0 {
		cfg.PerSubgraphRate = make(map[string]subgraphclient.RateLimit, len(c.Subgraphs))
	}
	for name, sg := range c.Subgraphs {
		if sg.RateRPS > 0 {
			cfg.PerSubgraphRate[name] = subgraphclient.RateLimit{RPS: sg.RateRPS, Burst: sg.RateBurst}
		}
	}
	return cfg
}
