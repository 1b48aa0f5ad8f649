// Command lmlangd runs the graphlang HTTP facade: it exposes every
// program currently known to its store over the edit/simulate/query/
// autonomy surface implemented by the httpapi package.
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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/lmlang/graphlang/emit"
	"github.com/lmlang/graphlang/httpapi"
	"github.com/lmlang/graphlang/metrics"
	"github.com/lmlang/graphlang/store"
)

func main() {
	addr := flag.String("addr", ":8080", "address the HTTP API listens on")
	storeKind := flag.String("store", "memory", "graph persistence backend: memory, sqlite, or mysql")
	sqlitePath := flag.String("sqlite-path", "lmlang.db", "SQLite database path, used when -store=sqlite")
	mysqlDSN := flag.String("mysql-dsn", "", "MySQL DSN, required when -store=mysql")
	otelEndpoint := flag.String("otel-endpoint", "", "OTLP/HTTP trace collector endpoint; tracing is disabled when empty")
	metricsAddr := flag.String("metrics-addr", ":9090", "address the Prometheus /metrics endpoint listens on")
	maxRecursionDepth := flag.Int("max-recursion-depth", 256, "interpreter call-stack depth limit")
	replayLimit := flag.Int("replay-limit", 0, "propagation events processed per flush before a loop is reported, 0 for the default (1024)")
	autonomyPlanRate := flag.Float64("autonomy-plan-rate", 1, "autonomy plan submissions allowed per second, per server")
	autonomyPlanBurst := flag.Int("autonomy-plan-burst", 5, "autonomy plan submission burst size")
	flag.Parse()

	graphStore, err := openStore(*storeKind, *sqlitePath, *mysqlDSN)
	if err != nil {
		log.Fatalf("lmlangd: %v", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.New(registry)

	emitter, shutdownTracing, err := buildEmitter(*otelEndpoint)
	if err != nil {
		log.Fatalf("lmlangd: %v", err)
	}
	defer shutdownTracing(context.Background())

	srv := httpapi.NewServer(httpapi.Config{
		Store:             graphStore,
		Emitter:           emitter,
		Metrics:           collector,
		MaxRecursionDepth: *maxRecursionDepth,
		ReplayLimit:       *replayLimit,
		AutonomyPlanRate:  rate.Limit(*autonomyPlanRate),
		AutonomyPlanBurst: *autonomyPlanBurst,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := srv.LoadExisting(ctx); err != nil {
		cancel()
		log.Fatalf("lmlangd: loading existing programs: %v", err)
	}
	cancel()

	metricsServer := &http.Server{Addr: *metricsAddr, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("lmlangd: metrics server: %v", err)
		}
	}()

	serveErrs := make(chan error, 1)
	go func() { serveErrs <- srv.ListenAndServe(*addr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErrs:
		if err != nil {
			log.Fatalf("lmlangd: %v", err)
		}
	case <-sigCh:
		log.Print("lmlangd: shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("lmlangd: http server shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("lmlangd: metrics server shutdown: %v", err)
	}
}

func openStore(kind, sqlitePath, mysqlDSN string) (store.GraphStore, error) {
	switch kind {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(sqlitePath)
	case "mysql":
		if mysqlDSN == "" {
			return nil, fmt.Errorf("-mysql-dsn is required when -store=mysql")
		}
		return store.NewMySQLStore(mysqlDSN)
	default:
		return nil, fmt.Errorf("unknown -store %q: want memory, sqlite, or mysql", kind)
	}
}

// buildEmitter wires tracing the way graphlang/emit's own OTelEmitter
// doc comment shows application code doing it: build a TracerProvider
// with an OTLP/HTTP batch exporter, register it globally, and hand a
// named tracer to emit.NewOTelEmitter. With no endpoint configured it
// falls back to the log emitter every other ambient path in this
// module defaults to.
func buildEmitter(endpoint string) (emit.Emitter, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if endpoint == "" {
		return emit.NewLogEmitter(os.Stdout, true), noop, nil
	}

	exporter, err := otlptracehttp.New(context.Background(), otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, noop, fmt.Errorf("building OTLP exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return emit.NewOTelEmitter(tp.Tracer("lmlangd")), tp.Shutdown, nil
}
