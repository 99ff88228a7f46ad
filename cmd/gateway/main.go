// Command gateway runs the federated GraphQL gateway: it loads a composed
// supergraph SDL and a YAML gateway configuration document, wires the
// subgraph transport, the optional extension/authorization bridge, and the
// HTTP server, then serves /graphql until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fedgw/gateway/internal/config"
	"github.com/fedgw/gateway/internal/eventbus"
	"github.com/fedgw/gateway/internal/executor"
	"github.com/fedgw/gateway/internal/extrt"
	"github.com/fedgw/gateway/internal/grpctp"
	"github.com/fedgw/gateway/internal/introspection"
	"github.com/fedgw/gateway/internal/opcache"
	"github.com/fedgw/gateway/internal/otel"
	"github.com/fedgw/gateway/internal/schema"
	"github.com/fedgw/gateway/internal/server"
	"github.com/fedgw/gateway/internal/subgraphclient"
	"github.com/fedgw/gateway/internal/supergraph"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	configPath := fs.String("config", "gateway.yaml", "path to the gateway YAML configuration document")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sdl, err := cfg.SDL()
	if err != nil {
		return err
	}
	doc, err := supergraph.Parse(sdl)
	if err != nil {
		return fmt.Errorf("parse supergraph sdl: %w", err)
	}
	sch, err := schema.BuildFromSupergraph(doc)
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	if err := cfg.ApplySubgraphOverrides(sch); err != nil {
		return fmt.Errorf("apply subgraph config: %w", err)
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	subClient := subgraphclient.New(sch, cfg.SubgraphClientConfig())
	rt := introspection.NewDispatcher(sch, subClient)

	coord := executor.NewCoordinator(sch, rt)
	if len(cfg.Extensions) > 0 {
		transport := grpctp.New(grpctp.WithProvider(grpctp.NewStaticEndpoints(cfg.ExtensionEndpoints())))
		coord.Authz = extrt.NewBridge(extrt.StaticRegistry{}, transport)
	}

	var sopts []server.Option
	if cfg.Gateway.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if cfg.Gateway.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(cfg.Gateway.Timeout))
	}
	if cfg.Gateway.MaxBodyBytes > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(cfg.Gateway.MaxBodyBytes))
	}
	if len(cfg.Gateway.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Gateway.CORSOrigins...))
	}
	if len(cfg.Gateway.MetadataHeaders) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(cfg.Gateway.MetadataHeaders...))
	}
	sopts = append(sopts, server.WithGraphiQL(cfg.Graph.IntrospectionEnabled))
	sopts = append(sopts, server.WithOpCache(opcache.New(cfg.Graph.ContractsCacheSize, sdl)))

	h, err := server.New(coord, sch, sopts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)

	srv := &http.Server{Addr: cfg.Gateway.Addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("gateway listening on %s", cfg.Gateway.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		log.Print("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.Timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
