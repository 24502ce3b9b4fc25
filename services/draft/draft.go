// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package draft provides the core drafting service for AleutianDraft.
//
// This package contains the main Service type that coordinates all
// components of the document-editing backend: HTTP routing, the document
// store, snapshot history, generation-task tracking transports, the
// bulk-fix resolver, and observability infrastructure.
//
// # Architecture
//
// The service owns one document store and hands every request-scoped
// dependency to the handlers through routes.Config:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                         Service                              │
//	│  ┌──────────┐ ┌───────────┐ ┌──────────────┐ ┌───────────┐  │
//	│  │ document │ │ snapshot  │ │  tracksync   │ │  bulkfix  │  │
//	│  │  store   │ │   logs    │ │ push + poll  │ │ resolver  │  │
//	│  └──────────┘ └───────────┘ └──────────────┘ └───────────┘  │
//	│        │            │              │               │        │
//	│        └────────────┴──────┬───────┴───────────────┘        │
//	│                            ▼                                │
//	│                     gin router (/v1)                        │
//	└─────────────────────────────────────────────────────────────┘
//
// # Usage
//
//	cfg := draft.Config{Port: 12220, GeneratorURL: "http://gen:12230/api/v1/generation"}
//	svc, err := draft.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package draft

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianDraft/services/draft/bulkfix"
	"github.com/AleutianAI/AleutianDraft/services/draft/document"
	"github.com/AleutianAI/AleutianDraft/services/draft/generator"
	"github.com/AleutianAI/AleutianDraft/services/draft/observability"
	"github.com/AleutianAI/AleutianDraft/services/draft/routes"
	"github.com/AleutianAI/AleutianDraft/services/draft/search"
	"github.com/AleutianAI/AleutianDraft/services/draft/snapshot"
	"github.com/AleutianAI/AleutianDraft/services/draft/tracksync"
	"github.com/AleutianAI/AleutianDraft/services/llm"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the draft service.
//
// # Description
//
// Service abstracts the drafting-backend lifecycle, enabling testing and
// alternative implementations. Only essential lifecycle methods are
// exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
//
// # Assumptions
//
//   - Service is fully initialized before Run() is called
//   - Run() is called at most once per Service instance
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	//
	// # Outputs
	//
	//   - error: Non-nil if the server fails to start or encounters a
	//     fatal error
	Run() error

	// Router returns the underlying Gin engine for testing.
	//
	// # Outputs
	//
	//   - *gin.Engine: The configured router with all routes registered
	//
	// # Limitations
	//
	//   - Should not be used to modify routes after construction
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds draft service configuration options.
//
// # Description
//
// Config centralizes all configuration for the drafting backend. Values
// can be populated from environment variables, config files, or
// programmatically for testing. All fields have defaults applied by
// New(); the zero Config yields a runnable in-memory service.
//
// # Examples
//
//	// Minimal config (in-memory snapshots, local LLM)
//	cfg := Config{GeneratorURL: "http://gen:12230/api/v1/generation"}
//
//	// Durable snapshots with a GCS archive mirror
//	cfg := Config{
//	    GeneratorURL:     "http://gen:12230/api/v1/generation",
//	    SnapshotDir:      "/var/lib/aleutiandraft/snapshots",
//	    GCSArchiveBucket: "aleutian-draft-archive",
//	}
type Config struct {
	// Port is the HTTP server port. Default: 12220
	Port int

	// Version is the server version reported on /health and checked by
	// the draftctl compatibility gate. Default: "dev"
	Version string

	// APIKey protects the /v1 surface. Empty (the default) disables
	// authentication for single-user local deployments.
	APIKey string

	// GeneratorURL is the generation backend's REST root. The push and
	// poll transports derive their endpoints from it.
	// Default: "http://aleutian-generation:12230/api/v1/generation"
	GeneratorURL string

	// PollInterval is the poll fallback's re-query cadence.
	// Default: 2 seconds
	PollInterval time.Duration

	// LLMBackend specifies the bulk-fix resolver's LLM provider.
	// Valid values: "local", "openai", "ollama", "claude", "anthropic"
	// Default: "local"
	LLMBackend string

	// PromptDir optionally holds resolver prompt template overrides,
	// hot-reloaded on change. Empty uses the compiled-in templates.
	PromptDir string

	// ResolverCallsPerMinute paces resolver calls during bulk-fix
	// batches. Zero or less disables pacing.
	ResolverCallsPerMinute float64

	// ResolverBurst is the pacer's burst allowance. Zero derives it
	// from the sustained rate.
	ResolverBurst int

	// ContextRadius bounds the plain-text window handed to resolvers,
	// in characters on each side of the occurrence.
	// Default: 200
	ContextRadius int

	// SnapshotDir enables durable snapshot history in BadgerDB under
	// the given directory, one database per document. Empty keeps
	// history in memory for the session only.
	SnapshotDir string

	// SnapshotSyncWrites makes Badger fsync each commit.
	// Default: false
	SnapshotSyncWrites bool

	// GCSArchiveBucket optionally mirrors every snapshot commit to a
	// GCS bucket. Empty disables archiving.
	GCSArchiveBucket string

	// GCSArchivePrefix prefixes archived object names.
	// Default: "snapshots"
	GCSArchivePrefix string

	// GCSKeyPath is an optional service-account key file for the
	// archive sink. Empty uses ambient credentials.
	GCSKeyPath string

	// WeaviateURL is the related-clause search index URL.
	// If empty, search runs in lightweight mode (endpoint returns 503).
	// Example: "http://localhost:8080"
	WeaviateURL string

	// InfluxURL optionally mirrors bulk-fix telemetry to InfluxDB.
	// Empty disables the sink. Token, org, and bucket must accompany it.
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "aleutian-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus /metrics endpoint.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service coordinates:
//   - HTTP routing via Gin
//   - The serialized document store
//   - Per-document snapshot history (memory or Badger, optional GCS mirror)
//   - Generation backend client plus push/poll tracking transports
//   - The LLM-backed bulk-fix resolver with hot-reloaded prompts
//   - OpenTelemetry tracing and Prometheus metrics
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config Config
	router *gin.Engine

	store     *document.Store
	logs      snapshot.LogProvider
	genClient *generator.Client
	push      tracksync.PushTransport
	poll      tracksync.PollTransport

	llmClient llm.LLMClient
	prompts   *bulkfix.PromptStore
	resolver  *bulkfix.LLMResolver
	pacer     bulkfix.Pacer
	observer  bulkfix.Observer

	weaviateClient *weaviate.Client
	index          *search.Index

	// Owned resources released by cleanup, nil when not configured.
	badgerLogs        *snapshot.BadgerLogs
	archivingLogs     *snapshot.ArchivingLogs
	archiveSink       *snapshot.GCSArchiveSink
	influx            *observability.InfluxObserver
	promptsCancel     context.CancelFunc
	telemetryShutdown func(context.Context) error
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new draft Service with the given configuration.
//
// # Description
//
// New initializes all service components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing and metric export
//  3. Initializes Prometheus metrics
//  4. Creates the Weaviate search index if a URL is provided
//  5. Builds snapshot history (memory or Badger, optional GCS mirror)
//  6. Creates the generation backend client and both track transports
//  7. Creates the LLM client and bulk-fix resolver
//  8. Sets up HTTP routes
//
// Optional subsystems that fail to initialize (Weaviate, Influx) are
// skipped with a warning; everything else is fatal.
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run draft service
//   - error: Non-nil if initialization fails
//
// # Examples
//
//	cfg := Config{Port: 12220, LLMBackend: "ollama"}
//	svc, err := New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
//
// # Assumptions
//
//   - Environment variables are set for the chosen LLM provider
//   - Network is available for external service connections
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	// Initialize OpenTelemetry tracing and metric export
	shutdown, err := s.initTelemetry()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.telemetryShutdown = shutdown

	// Initialize Prometheus metrics
	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for draft service")
	}

	// Initialize Weaviate-backed search index (optional)
	if err := s.initSearch(); err != nil {
		slog.Warn("Search index initialization failed, running in lightweight mode",
			"error", err)
		// Not fatal - continue without related-clause search
	}

	// Initialize snapshot history
	if err := s.initSnapshots(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize snapshot history: %w", err)
	}

	// Initialize generation backend client and track transports
	if err := s.initGenerator(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize generator client: %w", err)
	}

	// Initialize the bulk-fix resolver stack
	if err := s.initResolver(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize fix resolver: %w", err)
	}

	// Initialize bulk-fix observers (metrics always, Influx optional)
	s.initObservers()

	s.store = document.NewStore()

	// Setup HTTP router
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
//
// # Description
//
// Starts the Gin HTTP server on the configured port. This method blocks
// until the server stops due to error or shutdown signal. Cleanup is
// automatic on return.
//
// # Outputs
//
//   - error: Non-nil if the server fails to start or encounters a
//     fatal error
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting draft server",
		"port", s.config.Port,
		"version", s.config.Version)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
//
// # Inputs
//
//   - cfg: User-provided configuration
//
// # Outputs
//
//   - Config: Configuration with defaults applied
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12220
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.GeneratorURL == "" {
		cfg.GeneratorURL = "http://aleutian-generation:12230/api/v1/generation"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = tracksync.DefaultPollInterval
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "local"
	}
	if cfg.ContextRadius <= 0 {
		cfg.ContextRadius = bulkfix.DefaultContextRadius
	}
	if cfg.GCSArchivePrefix == "" {
		cfg.GCSArchivePrefix = "snapshots"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	// EnableMetrics defaults to true (zero value is false, so we need explicit check)
	// We'll handle this by always enabling unless explicitly disabled via a setter
	cfg.EnableMetrics = true

	return cfg
}

// initTelemetry initializes OpenTelemetry tracing and metric export.
//
// # Description
//
// Builds the telemetry configuration from service config and the
// standard OTEL_* environment variables, then delegates to the
// observability package. The default trace path sends spans to the
// configured OTLP collector; the default metric path bridges OTel
// instruments into the Prometheus /metrics endpoint.
//
// # Outputs
//
//   - func(context.Context) error: Shutdown function flushing exporters
//   - error: Non-nil if telemetry setup fails
func (s *service) initTelemetry() (func(context.Context) error, error) {
	tcfg := observability.DefaultTelemetryConfig()
	tcfg.ServiceVersion = s.config.Version
	tcfg.OTLPEndpoint = s.config.OTelEndpoint
	if !s.config.EnableMetrics {
		tcfg.MetricExporter = "none"
	}

	return observability.InitTelemetry(context.Background(), tcfg)
}

// initSearch initializes the Weaviate-backed related-clause index.
//
// # Description
//
// Creates the Weaviate client and ensures the clause schema exists.
// Returns nil without an index when no URL is configured; the search
// endpoint then reports lightweight mode.
//
// # Outputs
//
//   - error: Non-nil if a configured index fails to initialize
func (s *service) initSearch() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("Weaviate URL not configured, related-clause search disabled")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}

	s.weaviateClient, err = weaviate.NewClient(clientConf)
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	idx, err := search.NewIndex(s.weaviateClient)
	if err != nil {
		return err
	}
	if err := idx.EnsureSchema(context.Background()); err != nil {
		return fmt.Errorf("failed to ensure clause schema: %w", err)
	}

	s.index = idx
	slog.Info("Related-clause search index initialized", "url", weaviateURL)
	return nil
}

// initSnapshots builds the per-document snapshot history.
//
// # Description
//
// In-memory by default; SnapshotDir switches to Badger-backed history
// that survives restarts. When an archive bucket is configured every
// commit is additionally mirrored to GCS in the background.
//
// # Outputs
//
//   - error: Non-nil if the durable store or archive sink cannot open
func (s *service) initSnapshots() error {
	var provider snapshot.LogProvider

	if s.config.SnapshotDir != "" {
		badgerLogs, err := snapshot.NewBadgerLogs(
			s.config.SnapshotDir, s.config.SnapshotSyncWrites, slog.Default())
		if err != nil {
			return err
		}
		s.badgerLogs = badgerLogs
		provider = badgerLogs
		slog.Info("Snapshot history is durable", "dir", s.config.SnapshotDir)
	} else {
		provider = snapshot.NewMemoryLogs()
		slog.Info("Snapshot history is in-memory for this session")
	}

	if s.config.GCSArchiveBucket != "" {
		sink, err := snapshot.NewGCSArchiveSink(context.Background(),
			s.config.GCSArchiveBucket, s.config.GCSArchivePrefix, s.config.GCSKeyPath)
		if err != nil {
			return fmt.Errorf("failed to create snapshot archive sink: %w", err)
		}
		s.archiveSink = sink
		s.archivingLogs = snapshot.NewArchivingLogs(provider, sink, slog.Default())
		provider = s.archivingLogs
		slog.Info("Snapshot archiving enabled",
			"bucket", s.config.GCSArchiveBucket,
			"prefix", s.config.GCSArchivePrefix)
	}

	s.logs = provider
	return nil
}

// initGenerator creates the generation backend client and the push and
// poll transports that share its base URL.
func (s *service) initGenerator() error {
	client, err := generator.NewClient(generator.Config{
		BaseURL: s.config.GeneratorURL,
		Logger:  slog.Default(),
	})
	if err != nil {
		return err
	}
	s.genClient = client

	push, err := tracksync.NewWebSocketTransport(tracksync.WebSocketConfig{
		BaseURL: client.BaseURL(),
		Logger:  slog.Default(),
	})
	if err != nil {
		return err
	}
	s.push = push

	poll, err := tracksync.NewHTTPPollTransport(tracksync.HTTPPollConfig{
		BaseURL: client.BaseURL(),
		Logger:  slog.Default(),
	})
	if err != nil {
		return err
	}
	s.poll = poll

	slog.Info("Generation backend configured", "url", client.BaseURL())
	return nil
}

// initLLMClient initializes the resolver's LLM provider client.
//
// # Limitations
//
//   - Only supports: local, openai, ollama, claude/anthropic
//
// # Assumptions
//
//   - Required environment variables are set for the chosen provider
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "local":
		s.llmClient, err = llm.NewLocalLlamaCppClient()
		slog.Info("Using Local Llama.cpp LLM backend")
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	case "claude", "anthropic":
		s.llmClient, err = llm.NewAnthropicClient()
		slog.Info("Using Anthropic (Claude) LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to local", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewLocalLlamaCppClient()
	}

	return err
}

// initResolver builds the bulk-fix resolver stack: prompt store with
// hot reload, LLM client, resolver, and pacer.
func (s *service) initResolver() error {
	prompts, err := bulkfix.NewPromptStore(s.config.PromptDir, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create prompt store: %w", err)
	}
	s.prompts = prompts

	if s.config.PromptDir != "" {
		watchCtx, cancel := context.WithCancel(context.Background())
		s.promptsCancel = cancel
		go prompts.Start(watchCtx)
	}

	if err := s.initLLMClient(); err != nil {
		return err
	}

	resolver, err := bulkfix.NewLLMResolver(bulkfix.LLMResolverConfig{
		Client:  s.llmClient,
		Prompts: prompts,
		Logger:  slog.Default(),
	})
	if err != nil {
		return err
	}
	s.resolver = resolver

	if s.config.ResolverCallsPerMinute > 0 {
		s.pacer = bulkfix.NewTokenBucketPacer(
			s.config.ResolverCallsPerMinute, s.config.ResolverBurst)
		slog.Info("Resolver pacing enabled",
			"calls_per_minute", s.config.ResolverCallsPerMinute)
	} else {
		s.pacer = bulkfix.NopPacer{}
	}

	return nil
}

// initObservers assembles the bulk-fix observer chain.
//
// # Description
//
// The Prometheus observer is always present when metrics are enabled.
// An InfluxDB sink is added when configured; its failure is logged and
// skipped, never fatal.
func (s *service) initObservers() {
	var observers observability.FanoutObserver

	if s.config.EnableMetrics {
		if m := observability.DefaultMetrics; m != nil {
			observers = append(observers, observability.NewMetricsObserver(m))
		}
	}

	if s.config.InfluxURL != "" {
		influx, err := observability.NewInfluxObserver(observability.InfluxConfig{
			URL:    s.config.InfluxURL,
			Token:  s.config.InfluxToken,
			Org:    s.config.InfluxOrg,
			Bucket: s.config.InfluxBucket,
		}, slog.Default())
		if err != nil {
			slog.Warn("Influx telemetry sink initialization failed, continuing without it",
				"error", err)
		} else {
			s.influx = influx
			observers = append(observers, influx)
			slog.Info("Influx edit-telemetry sink enabled", "url", s.config.InfluxURL)
		}
	}

	switch len(observers) {
	case 0:
		s.observer = nil
	case 1:
		s.observer = observers[0]
	default:
		s.observer = observers
	}
}

// initRouter sets up the Gin HTTP router with all routes.
//
// # Assumptions
//
//   - All dependencies (store, logs, transports, resolver) are initialized
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("draft-service"))

	if s.config.EnableMetrics {
		httpMetrics, err := observability.NewHTTPMetrics(otel.Meter("aleutian.draft"))
		if err != nil {
			slog.Warn("HTTP metrics initialization failed, continuing without them",
				"error", err)
		} else {
			s.router.Use(observability.HTTPMetricsMiddleware(httpMetrics))
		}
	}

	routes.SetupRoutes(s.router, routes.Config{
		Store:         s.store,
		Logs:          s.logs,
		Generator:     s.genClient,
		Push:          s.push,
		Poll:          s.poll,
		Binder:        s.resolver,
		Index:         s.index,
		Pacer:         s.pacer,
		Observer:      s.observer,
		ContextRadius: s.config.ContextRadius,
		PollInterval:  s.config.PollInterval,
		APIKey:        s.config.APIKey,
		Version:       s.config.Version,
		EnableMetrics: s.config.EnableMetrics,
		Logger:        slog.Default(),
	})
}

// cleanup releases all resources held by the service.
//
// # Description
//
// Called when Run() exits or on initialization failure. Stops the
// prompt watcher, drains pending snapshot archives, closes the durable
// snapshot store and telemetry sinks, and flushes the telemetry stack.
func (s *service) cleanup() {
	if s.promptsCancel != nil {
		s.promptsCancel()
	}
	if s.prompts != nil {
		if err := s.prompts.Stop(); err != nil {
			slog.Warn("Prompt watcher stop error", "error", err)
		}
	}

	// Drain in-flight archive uploads before the stores close.
	if s.archivingLogs != nil {
		s.archivingLogs.Wait()
	}
	if s.archiveSink != nil {
		if err := s.archiveSink.Close(); err != nil {
			slog.Warn("Snapshot archive sink close error", "error", err)
		}
	}
	if s.badgerLogs != nil {
		if err := s.badgerLogs.Close(); err != nil {
			slog.Warn("Snapshot store close error", "error", err)
		}
	}

	if s.influx != nil {
		s.influx.Close()
	}

	if s.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		if err := s.telemetryShutdown(ctx); err != nil {
			slog.Warn("Telemetry shutdown error", "error", err)
		}
		cancel()
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
