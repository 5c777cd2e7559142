package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ai-digest-bot/internal/config"
	"ai-digest-bot/internal/controller"
	"ai-digest-bot/internal/entity"
	"ai-digest-bot/internal/mapper"
	"ai-digest-bot/internal/pkg/logger"
	"ai-digest-bot/internal/repository/contract"
	"ai-digest-bot/internal/repository/implementation"
	"ai-digest-bot/internal/repository/memory"
	"ai-digest-bot/internal/runlock"
	"ai-digest-bot/internal/scheduler"
	"ai-digest-bot/internal/service"
	"ai-digest-bot/pkg/database"
	"ai-digest-bot/pkg/delivery"
	"ai-digest-bot/pkg/events"
	"ai-digest-bot/pkg/llm"
	"ai-digest-bot/pkg/llm/factory"
	"ai-digest-bot/pkg/store"

	pktNats "ai-digest-bot/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const module = "Bootstrap"

const (
	runHistoryCapacity = 500
	chatDurableName    = "digestbot-chat"
)

type Container struct {
	Config *config.Config
	Logger logger.ILogger

	// Controllers
	PipelineController controller.IPipelineController
	ChatController     controller.IChatController
	HealthController   controller.IHealthController

	// Services
	DigestService   service.IDigestService
	ChatService     service.IChatService
	RunService      service.IRunService
	ConsumerService service.IConsumerService
	Scheduler       *scheduler.Scheduler
	Bus             *service.TriggerBus

	db         *gorm.DB
	rdb        *redis.Client
	natsConn   *pktNats.Conn
	subscriber *pktNats.Subscriber
	chatMapper *mapper.ChatMapper
}

// NewContainer wires every component. Optional infrastructure (Postgres,
// Redis, NATS) that is unset or unreachable degrades to in-process
// equivalents with a warning; only configuration and model setup errors
// are returned.
func NewContainer(cfg *config.Config, log logger.ILogger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log, chatMapper: mapper.NewChatMapper()}

	// 1. Model
	var synthesizer *llm.Synthesizer
	if needsModel(cfg) {
		baseURL := cfg.LLM.BaseURL
		if cfg.LLM.Provider == "ollama" {
			baseURL = cfg.LLM.OllamaBaseURL
		}
		provider, err := factory.NewLLMProvider(cfg.LLM.Provider, cfg.LLM.Model, baseURL, cfg.LLM.APIKey)
		if err != nil {
			return nil, fmt.Errorf("init llm provider: %w", err)
		}
		synthesizer = llm.NewSynthesizer(provider, cfg.Timeouts.LLM)
		log.Info(module, "LLM provider ready", map[string]interface{}{"provider": cfg.LLM.Provider, "model": cfg.LLM.Model})
	}

	// 2. Infrastructure
	runRepo := c.initRunRepository()
	locker := c.initLocker()
	c.initNats()

	var mailSender delivery.MailSender
	if cfg.SMTP.Host != "" {
		mailSender = delivery.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Email, cfg.SMTP.Password)
	}

	// 3. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	c.Bus = service.NewTriggerBus(pubSub)

	// 4. Services
	pipelines, err := service.BuildPipelines(cfg, &http.Client{Timeout: cfg.Timeouts.Feed}, mailSender)
	if err != nil {
		return nil, err
	}

	digestOpts := service.DigestOptions{
		FeedTimeout:     cfg.Timeouts.Feed,
		DeliveryRetries: cfg.Digest.DeliveryRetries,
		DeliveryTimeout: cfg.Timeouts.Delivery,
	}
	var replier service.Replier
	var typing service.TypingNotifier
	if c.natsConn != nil {
		digestOpts.Publisher = pktNats.NewPublisher(c.natsConn)
		gateway := pktNats.NewGateway(c.natsConn)
		replier, typing = gateway, gateway
	}

	c.DigestService = service.NewDigestService(
		pipelines,
		synthesizer,
		locker,
		runRepo,
		memory.NewWindowRepository[string](service.SeenWindowCapacity),
		log,
		digestOpts,
	)
	c.RunService = service.NewRunService(runRepo)

	if cfg.Chat.Enabled {
		c.ChatService = service.NewChatService(
			synthesizer,
			memory.NewWindowRepository[store.Turn](2*cfg.Chat.MaxTurns),
			typing,
			log,
			service.ChatOptions{
				AllowedChannelID: cfg.Chat.AllowedChannelID,
				ResetCommand:     cfg.Chat.ResetCommand,
				MaxTurns:         cfg.Chat.MaxTurns,
				MaxOutputTokens:  cfg.Chat.MaxOutputTokens,
				ReplyCharLimit:   cfg.Digest.TransportCharLimit,
			},
		)
	}

	c.ConsumerService = service.NewConsumerService(pubSub, c.DigestService, c.ChatService, replier, log)

	c.Scheduler, err = scheduler.New(cfg.Pipelines, c.Bus, log)
	if err != nil {
		return nil, err
	}

	// 5. Controllers
	c.PipelineController = controller.NewPipelineController(c.DigestService, c.RunService)
	if c.ChatService != nil {
		c.ChatController = controller.NewChatController(c.ChatService)
	}
	c.HealthController = controller.NewHealthController(c.healthChecks())

	return c, nil
}

func needsModel(cfg *config.Config) bool {
	if cfg.Chat.Enabled {
		return true
	}
	for _, p := range cfg.Pipelines {
		if p.Synthesize {
			return true
		}
	}
	return false
}

func (c *Container) initRunRepository() contract.PipelineRunRepository {
	cfg := c.Config
	if cfg.App.DatabaseURL == "" {
		return memory.NewPipelineRunRepository(runHistoryCapacity)
	}

	db, err := database.NewGormDBFromDSN(cfg.App.DatabaseURL, cfg.IsProduction())
	if err == nil {
		err = database.Migrate(db, &entity.PipelineRun{})
	}
	if err != nil {
		c.Logger.Warn(module, "Database unavailable, keeping run history in memory", map[string]interface{}{"error": err.Error()})
		return memory.NewPipelineRunRepository(runHistoryCapacity)
	}
	c.db = db
	return implementation.NewPipelineRunRepository(db)
}

func (c *Container) initLocker() runlock.Locker {
	local := runlock.NewMemoryLocker()
	if c.Config.App.RedisURL == "" {
		return local
	}

	opt, err := redis.ParseURL(c.Config.App.RedisURL)
	if err != nil {
		opt = &redis.Options{Addr: c.Config.App.RedisURL}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		c.Logger.Warn(module, "Redis unavailable, run lock is process-local", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return local
	}

	c.rdb = rdb
	return runlock.Chain{local, runlock.NewRedisLocker(rdb)}
}

func (c *Container) initNats() {
	if c.Config.App.NatsURL == "" {
		return
	}
	conn, err := pktNats.Connect(c.Config.App.NatsURL)
	if err != nil {
		c.Logger.Warn(module, "NATS unavailable, chat gateway disabled", map[string]interface{}{"error": err.Error()})
		return
	}
	c.natsConn = conn
}

func (c *Container) healthChecks() map[string]controller.HealthCheck {
	return map[string]controller.HealthCheck{
		"nats":     func() bool { return c.natsConn != nil },
		"redis":    func() bool { return c.rdb != nil },
		"database": func() bool { return c.db != nil },
	}
}

// Start launches the consumer, the chat gateway subscription and the
// scheduler, in that order, so no early tick is dropped.
func (c *Container) Start(ctx context.Context) error {
	if err := c.ConsumerService.Consume(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	if c.natsConn != nil && c.ChatService != nil {
		c.subscriber = pktNats.NewSubscriber(c.natsConn)
		err := c.subscriber.SubscribeChat(ctx, chatDurableName, func(_ context.Context, msg events.ChatMessage) error {
			return c.Bus.PublishMessage(c.chatMapper.EventToInbound(msg))
		})
		if err != nil {
			c.Logger.Warn(module, "Chat gateway subscription failed", map[string]interface{}{"error": err.Error()})
		}
	}

	c.Scheduler.Start()
	return nil
}

// Shutdown stops triggers first, lets in-flight runs finish within ctx,
// then closes infrastructure.
func (c *Container) Shutdown(ctx context.Context) {
	c.Scheduler.Stop(ctx)
	if c.subscriber != nil {
		c.subscriber.Stop()
	}

	done := make(chan struct{})
	go func() {
		c.ConsumerService.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.Logger.Warn(module, "Shutdown deadline reached with runs in flight", nil)
	}

	if err := c.Bus.Close(); err != nil {
		c.Logger.Warn(module, "Failed to close trigger bus", map[string]interface{}{"error": err.Error()})
	}
	if c.natsConn != nil {
		c.natsConn.Close()
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	if c.db != nil {
		_ = database.Close(c.db)
	}
}
