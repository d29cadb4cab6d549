// Package main is the CLI entry point for the LangBot gateway: a
// multi-platform chatbot pipeline connecting messaging platforms to LLM
// providers, with retrieval-augmented generation and a plugin RPC
// runtime (spec.md OVERVIEW).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/langbot-app/LangBot/internal/config"
	"github.com/langbot-app/LangBot/internal/llm"
	"github.com/langbot-app/LangBot/internal/pipeline"
	"github.com/langbot-app/LangBot/internal/platform"
	"github.com/langbot-app/LangBot/internal/platform/webchat"
	"github.com/langbot-app/LangBot/internal/pluginrpc"
	"github.com/langbot-app/LangBot/internal/query"
	"github.com/langbot-app/LangBot/internal/rag"
	"github.com/langbot-app/LangBot/internal/ratelimit"
	"github.com/langbot-app/LangBot/internal/session"
	"github.com/langbot-app/LangBot/internal/stages"
	"github.com/langbot-app/LangBot/internal/vectordb"
	"github.com/langbot-app/LangBot/pkg/models"
)

var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "LangBot multi-platform chatbot gateway",
		Long:  "Routes messages between chat platforms and LLM providers through a configurable pipeline.",
	}
	cmd.AddCommand(buildServeCmd(), buildVersionCmd())
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func buildServeCmd() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		Long: `Start the gateway server:

1. Load configuration from the specified file
2. Initialize the query pool, session manager, and pipeline registry
3. Start the WebChat adapter and the bot webhook dispatcher
4. Serve HTTP until SIGINT/SIGTERM`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "gateway.yaml", "path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("gateway: load config: %w", err)
	}

	runtime, err := buildRuntime(cfg, logger)
	if err != nil {
		return fmt.Errorf("gateway: build runtime: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: runtime.mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway: listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("gateway: shutting down")
	case err := <-errCh:
		return fmt.Errorf("gateway: server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// wiredRuntime bundles the fully assembled gateway dependencies.
type wiredRuntime struct {
	mux *http.ServeMux
}

func buildRuntime(cfg *config.RootConfig, logger *slog.Logger) (*wiredRuntime, error) {
	pool := query.NewPool()

	sessions := session.NewManager(buildConversationFactory(cfg, logger))

	rlConfig := ratelimit.Config{RequestsPerSecond: cfg.Pipeline.RateLimit.RequestsPerSecond, BurstSize: cfg.Pipeline.RateLimit.BurstSize}
	limiter := ratelimit.NewTokenBucketAlgorithm(rlConfig)

	connector := pluginrpc.NewConnector(pluginrpc.NewHTTPTransport(cfg.Plugins.RPCAddress))

	vdb, backendName, err := buildVectorDBManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("gateway: build vector database manager: %w", err)
	}
	if defaultVDB, ok := vdb.Default(); ok {
		logger.Info("gateway: vector database ready", "backend", backendName, "capabilities", defaultVDB.GetCapabilities())
	}

	knowledge, err := buildKnowledgeManager(cfg, connector, logger)
	if err != nil {
		return nil, fmt.Errorf("gateway: build knowledge-base manager: %w", err)
	}

	modelResolver, err := buildModelResolver(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("gateway: build model registry: %w", err)
	}
	groupRespondMatchers := buildGroupRespondMatchers(cfg.Pipeline.Trigger.GroupRespondRules, cfg.Bot.AccountID)

	registry := pipeline.NewRegistry()
	replyResolver := buildReplyResolver()
	registerStages(registry, sessions, limiter, connector, pool, replyResolver, knowledge, modelResolver, groupRespondMatchers)

	runtimePipeline, err := buildRuntimePipeline(registry, &cfg.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("gateway: build runtime pipeline: %w", err)
	}
	runtime := pipeline.NewRuntime(cfg.Pipeline.Concurrency, nil, logger)

	botRegistry := platform.NewRegistry()
	debugHub := webchat.NewDebugHub(logger)
	webchatAdapter := webchat.New(debugHub)
	webchatAdapter.RegisterListener(dispatchListener(pool, runtime, runtimePipeline, webchatAdapter, &cfg.Pipeline, logger))
	botRegistry.Add("webchat-default", webchatAdapter, nil)

	dispatcher := platform.NewDispatcher(botRegistry, logger)

	// webchatAdapters keys the WebChat debug HTTP/WS surfaces by pipeline
	// uuid (spec.md §6 "POST /api/v1/pipelines/{pipeline_uuid}/..."); a
	// deployment with one default pipeline gets one entry today, but the
	// routing itself is already pipeline-uuid-addressed.
	webchatAdapters := map[string]*webchat.Adapter{runtimePipeline.Entity.UUID: webchatAdapter}
	webchatRouter := webchat.NewRouter(webchatAdapters, logger)
	debugHub.SetAdapters(webchatAdapters)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/bots/", dispatcher)
	mux.Handle("/api/v1/pipelines/", webchatPipelinesHandler(webchatRouter, debugHub))

	return &wiredRuntime{mux: mux}, nil
}

// webchatPipelinesHandler routes "/api/v1/pipelines/{uuid}/chat/ws" to
// the WebSocket debug hub and everything else under the same prefix
// (chat/send, chat/messages/{t}, chat/reset/{t}) to the HTTP router.
func webchatPipelinesHandler(router *webchat.Router, hub *webchat.DebugHub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/chat/ws") {
			hub.ServeHTTP(w, r)
			return
		}
		router.ServeHTTP(w, r)
	})
}

// buildConversationFactory returns the ConversationFactory the session
// manager allocates new conversations with: Redis-backed when
// database.redis-addr is configured (spec.md §5 "a multi-process
// deployment shares ... state"), otherwise an in-process counter.
func buildConversationFactory(cfg *config.RootConfig, logger *slog.Logger) session.ConversationFactory {
	if cfg.Database.RedisAddr == "" {
		return func() (*session.Conversation, error) {
			return &session.Conversation{UUID: fmt.Sprintf("conv-%d", time.Now().UnixNano())}, nil
		}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Database.RedisAddr})
	store := session.NewRedisStore(client, 0, "")
	logger.Info("gateway: using redis-backed conversation store", "addr", cfg.Database.RedisAddr)
	return func() (*session.Conversation, error) {
		return store.NewConversation(context.Background())
	}
}

// buildVectorDBManager constructs the vector-database manager per
// spec.md §4.1 with a single backend selected by
// database.vector-db-backend: in-memory by default, or pgvector.
func buildVectorDBManager(cfg *config.RootConfig) (*vectordb.Manager, string, error) {
	backend := cfg.Database.VectorDBBackend
	if backend == "" {
		backend = "memory"
	}

	factory := func(bc vectordb.BackendConfig) (vectordb.VectorDatabase, error) {
		switch bc.Type {
		case "memory":
			return vectordb.NewMemory(), nil
		case "pgvector":
			if cfg.Database.DSN == "" {
				return nil, fmt.Errorf("vectordb: pgvector backend requires database.dsn")
			}
			db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
			if err != nil {
				return nil, fmt.Errorf("vectordb: connect postgres: %w", err)
			}
			return vectordb.NewPgvector(db), nil
		default:
			return nil, fmt.Errorf("vectordb: unknown backend %q", bc.Type)
		}
	}

	mgr, err := vectordb.NewManager(vectordb.Config{Use: backend}, factory)
	return mgr, backend, err
}

// buildKnowledgeManager wires the RAG knowledge-base manager (C3) over a
// GORM-backed Store, filesystem Blobs, and the plugin connector's own
// list_rag_engines verb for PluginLookup. It returns (nil, nil) when no
// database DSN is configured: a deployment without a relational store
// runs without knowledge bases rather than failing startup, matching
// spec.md §8 "Retriever with zero providers -> returns [] without
// error" in spirit.
func buildKnowledgeManager(cfg *config.RootConfig, connector *pluginrpc.Connector, logger *slog.Logger) (stages.KnowledgeRetriever, error) {
	if cfg.Database.DSN == "" {
		logger.Info("gateway: no database.dsn configured, knowledge-base manager disabled")
		return nil, nil
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := rag.NewGormStore(db)
	if err != nil {
		return nil, err
	}

	blobRoot := cfg.Database.BlobRoot
	if blobRoot == "" {
		blobRoot = "./kb-blobs"
	}
	blobs, err := rag.NewFSBlobs(blobRoot)
	if err != nil {
		return nil, err
	}

	var tasks *asynq.Client
	if cfg.Database.RedisAddr != "" {
		tasks = asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Database.RedisAddr})
	}

	plugins := rag.NewConnectorPluginLookup(connector)
	return rag.NewManager(store, blobs, plugins, connector, tasks), nil
}

// replyStageName is the terminal stage every loaded pipeline runs last,
// user notices included (spec.md §4.8 SendResponseBackStage).
const replyStageName = "SendResponseBack"

func registerStages(registry *pipeline.Registry, sessions *session.Manager, limiter ratelimit.Algorithm, connector *pluginrpc.Connector, pool *query.Pool, replyResolver func(query.Adapter) (stages.ReplyAdapter, bool), knowledge stages.KnowledgeRetriever, modelResolver stages.ModelResolver, groupRespondMatchers []stages.RuleMatcher) {
	registry.MustRegister("BanSessionCheck", func(map[string]any) (pipeline.Stage, error) {
		return stages.NewBanSessionCheckStage(), nil
	})
	registry.MustRegister("RateLimit", func(cfg map[string]any) (pipeline.Stage, error) {
		return stages.NewRateLimit(limiter), nil
	})
	registry.MustRegister("GroupRespondRuleCheck", func(map[string]any) (pipeline.Stage, error) {
		return stages.NewGroupRespondRuleCheckStage(groupRespondMatchers), nil
	})
	registry.MustRegister("PreProcessor", func(map[string]any) (pipeline.Stage, error) {
		return stages.NewPreProcessor(sessions, nil, nil, nil), nil
	})
	registry.MustRegister("Process", func(map[string]any) (pipeline.Stage, error) {
		return stages.NewProcessStage(modelResolver, nil, connector, pool).WithKnowledge(knowledge), nil
	})
	registry.MustRegister("LongTextProcessor", func(map[string]any) (pipeline.Stage, error) {
		return stages.NewLongTextStage("gateway", "Assistant"), nil
	})
	registry.MustRegister(replyStageName, func(map[string]any) (pipeline.Stage, error) {
		return stages.NewSendResponseBackStage(replyResolver), nil
	})
}

// buildRuntimePipeline instantiates the fixed stage order against the
// loaded registry and wraps it in a RuntimePipeline whose reply stage is
// always SendResponseBack (spec.md §4.7 stage list, §4.8 terminal reply).
func buildRuntimePipeline(registry *pipeline.Registry, cfg *models.PipelineConfig) (*pipeline.RuntimePipeline, error) {
	order := []string{"BanSessionCheck", "RateLimit", "GroupRespondRuleCheck", "PreProcessor", "Process", "LongTextProcessor", replyStageName}

	containers := make([]pipeline.StageContainer, 0, len(order))
	for _, name := range order {
		stage, err := registry.Build(name, nil)
		if err != nil {
			return nil, err
		}
		containers = append(containers, pipeline.StageContainer{InstName: name, Stage: stage})
	}

	return &pipeline.RuntimePipeline{
		Entity:          pipeline.PipelineEntity{UUID: "default"},
		StageContainers: containers,
		ReplyStageName:  replyStageName,
	}, nil
}

// buildReplyResolver adapts a query.Adapter down to stages.ReplyAdapter
// by type-asserting against platform.Adapter, bridging its
// event-shaped ReplyMessage signature to the query-shaped one
// SendResponseBackStage expects.
func buildReplyResolver() func(query.Adapter) (stages.ReplyAdapter, bool) {
	return func(a query.Adapter) (stages.ReplyAdapter, bool) {
		pa, ok := a.(platform.Adapter)
		if !ok {
			return nil, false
		}
		return platformReplyBridge{adapter: pa}, true
	}
}

// platformReplyBridge adapts platform.Adapter.ReplyMessage(ctx, event,
// chain) to the stages.ReplyAdapter(ctx, *query.Query, chain) shape,
// round-tripping through the query's retained MessageEvent.
type platformReplyBridge struct {
	adapter platform.Adapter
}

func (b platformReplyBridge) ReplyMessage(ctx context.Context, q *query.Query, chain models.MessageChain) error {
	return b.adapter.ReplyMessage(ctx, q.MessageEvent, chain)
}

// dispatchListener builds the platform.EventListener that turns an
// inbound Event into a registered Query and runs it through rt against
// p, releasing the query from the pool when the run completes
// (spec.md §4.6 ingress, §5 pipeline run). Admission is gated by
// rt.TryAcquire: once the configured concurrency.pipeline depth is
// saturated, the event is rejected with pipeline.ErrQueueFull instead of
// being queued, which the HTTP-facing ingress points turn into a
// 429-equivalent response (spec.md §5 backpressure).
func dispatchListener(pool *query.Pool, rt *pipeline.Runtime, p *pipeline.RuntimePipeline, adapter platform.Adapter, cfg *models.PipelineConfig, logger *slog.Logger) platform.EventListener {
	return func(ctx context.Context, event models.Event) error {
		release, ok := rt.TryAcquire()
		if !ok {
			logger.Warn("gateway: pipeline concurrency saturated, rejecting query", "launcher_type", event.LauncherType(), "launcher_id", event.LauncherID())
			return pipeline.ErrQueueFull
		}
		defer release()

		q := &query.Query{
			LauncherType:   event.LauncherType(),
			LauncherID:     event.LauncherID(),
			SenderID:       event.Sender.ID,
			Adapter:        adapter,
			MessageEvent:   event,
			MessageChain:   event.MessageChain,
			PipelineUUID:   p.Entity.UUID,
			PipelineConfig: cfg,
			Variables:      query.NewVariables(),
		}
		pool.Register(q)
		defer pool.Remove(q.QueryID)

		if _, err := rt.Run(ctx, p, q); err != nil {
			logger.Error("gateway: pipeline run failed", "query_id", q.QueryID, "error", err)
		}
		return nil
	}
}

// buildModelResolver builds the production ModelResolver off
// cfg.Models (spec.md §4.1 "Model UUID resolution" — "a models: config
// section mapping a uuid to provider+credentials"). An empty list still
// starts the gateway, since a deployment may run pipelines with no LLM
// stage configured yet; the resulting resolver fails loudly, naming the
// uuid, the first time a query actually needs a model.
func buildModelResolver(cfg *config.RootConfig, logger *slog.Logger) (stages.ModelResolver, error) {
	if len(cfg.Models) == 0 {
		logger.Warn("gateway: no models configured, every Process stage invocation will fail")
		return func(modelUUID string) (llm.Model, llm.Requester, error) {
			return llm.Model{}, nil, fmt.Errorf("gateway: no models configured (requested %q)", modelUUID)
		}, nil
	}

	reg, err := llm.NewRegistry(cfg.Models)
	if err != nil {
		return nil, err
	}
	logger.Info("gateway: model registry ready", "models", len(cfg.Models))
	return reg.Resolve, nil
}

// buildGroupRespondMatchers interprets trigger.group-respond-rules into
// a RuleMatcher list (spec.md §4.7 GroupRespondRuleCheckStage). The list
// follows Go map iteration order, so the order of the matchers is not
// defined.
// Each entry's "type" selects the matcher; "at-mention" also needs
// botAccountID, "prefix" needs a "prefix" string. An empty/unconfigured
// rule set still defaults to a single at-mention matcher rather than an
// empty list, since an empty matcher list makes every GroupMessage fall
// through to the stage's no-match INTERRUPT and silently disables group
// chat entirely.
func buildGroupRespondMatchers(rules map[string]map[string]any, botAccountID string) []stages.RuleMatcher {
	if len(rules) == 0 {
		return []stages.RuleMatcher{stages.AtMentionMatcher{BotAccountID: botAccountID}}
	}

	matchers := make([]stages.RuleMatcher, 0, len(rules))
	for _, rule := range rules {
		switch fmt.Sprint(rule["type"]) {
		case "at-all":
			matchers = append(matchers, stages.AtAllMatcher{})
		case "prefix":
			prefix, _ := rule["prefix"].(string)
			matchers = append(matchers, stages.PrefixMatcher{Prefix: prefix})
		default: // "at-mention" and unrecognized types default to at-mention
			matchers = append(matchers, stages.AtMentionMatcher{BotAccountID: botAccountID})
		}
	}
	return matchers
}
