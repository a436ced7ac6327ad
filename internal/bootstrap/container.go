package bootstrap

import (
	"context"
	"log"

	"docqa-be/internal/config"
	"docqa-be/internal/controller"
	"docqa-be/internal/handler"
	"docqa-be/internal/pkg/logger"
	"docqa-be/internal/pkg/serverutils"
	"docqa-be/internal/repository/unitofwork"
	"docqa-be/internal/service"
	"docqa-be/internal/websocket"
	"docqa-be/pkg/embedding"
	"docqa-be/pkg/llm/factory"
	pktNats "docqa-be/pkg/nats"
	"docqa-be/pkg/rag/chunker"
	"docqa-be/pkg/rag/engine"
	"docqa-be/pkg/rag/prompt"
	"docqa-be/pkg/rag/scope"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	QAController       controller.IQAController
	DocumentController controller.IDocumentController

	// Background Services (Exposed for main.go to run)
	ConsumerService     service.IConsumerService
	NotificationService *service.NotificationService
	KeepAliveService    service.IKeepAliveService

	// WebSockets
	SocketHandler *handler.SocketHandler
	WebSocketHub  *websocket.Hub

	Engine *engine.Engine
	Logger logger.ILogger

	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	rdb     *redis.Client
	pubSub  *gochannel.GoChannel
}

// NewContainer wires every dependency. The hub runs until ctx ends.
func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) *Container {
	if err := serverutils.SetJwtSecret(cfg.Auth.JwtSecret); err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.IsProduction())
	store := service.NewRecordStore(uowFactory)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Model backends
	var embeddingProvider embedding.EmbeddingProvider
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.EmbeddingBaseURL, cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingTimeout)
	default:
		log.Fatalf("[FATAL] Unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}
	if cfg.Rag.EmbedCacheTTL > 0 {
		embeddingProvider = embedding.NewCachedProvider(embeddingProvider, cfg.Ai.EmbeddingModel, cfg.Rag.EmbedCacheTTL)
	}
	log.Printf("[INFO] Using Embedding Provider: %s (%s)", cfg.Ai.EmbeddingProvider, cfg.Ai.EmbeddingModel)

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Ai.LLMTimeout,
		sysLogger,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Query engine
	qaEngine := engine.New(
		scope.NewResolver(store),
		chunker.New(chunker.Config{
			Strategy:          cfg.Rag.ChunkStrategy,
			MaxTokensPerChunk: cfg.Rag.MaxTokensPerChunk,
			CharsPerToken:     cfg.Rag.CharsPerToken,
			LinesPerChunk:     cfg.Rag.LinesPerChunk,
			LinesOverlap:      cfg.Rag.LinesOverlap,
		}),
		embeddingProvider,
		llmProvider,
		prompt.NewBuilder(cfg.Rag.MaxContextChars),
		engine.Config{
			TopK:             cfg.Rag.TopK,
			EmbedConcurrency: cfg.Rag.EmbedConcurrency,
		},
		sysLogger,
	)

	// 5. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.HubLogFilePath)
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run(ctx)

	// 6. Services
	// Nil pointers must not reach the interfaces as typed nils.
	var eventPub service.EventPublisher
	if natsPub != nil {
		eventPub = natsPub
	}
	var eventSub service.EventSubscriber
	if natsSub != nil {
		eventSub = natsSub
	}
	notificationService := service.NewNotificationService(eventPub, eventSub, wsHub, wsLogger)

	publisherService := service.NewPublisherService(cfg.Rag.PrepareTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, cfg.Rag.PrepareTopic, notificationService, sysLogger)

	preparationService := service.NewPreparationService(
		store,
		qaEngine,
		publisherService,
		cfg.Rag.PrepareTopK,
		cfg.Rag.CoordinatorTTL,
		cfg.Rag.TopicWriteTimeout,
		sysLogger,
	)
	qaService := service.NewQAService(qaEngine, preparationService, sysLogger)
	documentService := service.NewDocumentService(store, qaEngine, sysLogger)

	keepAliveTargets := map[string]service.Pinger{"llm": llmProvider}
	if pinger, ok := embeddingProvider.(embedding.Pinger); ok {
		keepAliveTargets["embedding"] = pinger
	}
	keepAliveService := service.NewKeepAliveService(keepAliveTargets, cfg.Rag.KeepAliveInterval, sysLogger)

	// 7. Controllers
	return &Container{
		QAController:       controller.NewQAController(qaService),
		DocumentController: controller.NewDocumentController(documentService, preparationService),

		ConsumerService:     consumerService,
		NotificationService: notificationService,
		KeepAliveService:    keepAliveService,

		SocketHandler: handler.NewSocketHandler(qaService, wsHub, wsLogger),
		WebSocketHub:  wsHub,

		Engine: qaEngine,
		Logger: sysLogger,

		natsPub: natsPub,
		natsSub: natsSub,
		rdb:     rdb,
		pubSub:  pubSub,
	}
}

// Close releases broker connections. The hub stops with the context passed
// to NewContainer.
func (c *Container) Close() {
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if err := c.pubSub.Close(); err != nil {
		log.Printf("[WARN] Failed to close event bus: %v", err)
	}
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			log.Printf("[WARN] Failed to close Redis: %v", err)
		}
	}
	_ = c.Logger.Sync()
}
