package bootstrap

import (
	"context"
	"log"

	"learnlink-be/internal/config"
	"learnlink-be/internal/controller"
	"learnlink-be/internal/handler"
	"learnlink-be/internal/pkg/logger"
	"learnlink-be/internal/repository/memory"
	"learnlink-be/internal/service"
	"learnlink-be/internal/upstream"
	"learnlink-be/internal/websocket"
	"learnlink-be/pkg/cache"
	"learnlink-be/pkg/events"
	"learnlink-be/pkg/invalidation"
	pktNats "learnlink-be/pkg/nats"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

type Container struct {
	// Controllers
	NetworkController   controller.INetworkController
	DashboardController controller.IDashboardController
	SessionController   controller.ISessionController

	// Live channel
	LiveHandler  *handler.LiveHandler
	WebSocketHub *websocket.Hub

	// Background
	InvalidationService service.IInvalidationService

	Config *config.Config
	Logger logger.ILogger

	networkViews   *memory.SessionRepository[*service.NetworkView]
	dashboardViews *memory.SessionRepository[*service.DashboardView]
	bus            *invalidation.Bus
	natsConn       *nats.Conn
	natsSub        *pktNats.Subscriber
	rdb            *redis.Client
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	liveLogger := logger.NewIsolatedLogger(cfg.App.LiveLogFilePath)

	// 2. Infrastructure
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	var store cache.Store
	if cfg.Cache.Backend == "redis" && rdb != nil {
		store = cache.NewRedisStore(rdb, cfg.Cache.RedisPrefix, cfg.Cache.DefaultTTL)
		log.Printf("[INFO] Cache backend: redis (prefix %s)", cfg.Cache.RedisPrefix)
	} else {
		store = cache.NewMemoryStore(cfg.Cache.DefaultTTL)
		log.Printf("[INFO] Cache backend: memory")
	}

	var (
		natsConn *nats.Conn
		natsPub  *pktNats.Publisher
		natsSub  *pktNats.Subscriber
	)
	if cfg.App.NatsURL != "" {
		nc, err := pktNats.Connect(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] %v. Events stay local", err)
		} else {
			natsConn = nc
			if natsPub, err = pktNats.NewPublisher(nc, sysLogger); err != nil {
				log.Printf("[WARN] Failed to create NATS Publisher: %v", err)
			}
			if natsSub, err = pktNats.NewSubscriber(nc, sysLogger); err != nil {
				log.Printf("[WARN] Failed to create NATS Subscriber: %v", err)
			}
		}
	}

	wsHub := websocket.NewHub(rdb, liveLogger)
	bus := invalidation.NewBus(sysLogger)
	api := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)

	networkViews := memory.NewSessionRepository[*service.NetworkView](cfg.Session.IdleTTL)
	dashboardViews := memory.NewSessionRepository[*service.DashboardView](cfg.Session.IdleTTL)

	// 3. Services
	// The refresher map is filled once the view services exist.
	refreshers := make(map[string]service.LiveRefresher, 2)
	flight := &singleflight.Group{}
	fence := cache.NewFence()
	invalidationService := service.NewInvalidationService(bus, store, fence, flight, refreshers, wsHub, sysLogger)

	var publisher events.Publisher = events.PublisherFunc(invalidationService.HandleEvent)
	if natsPub != nil && natsSub != nil {
		publisher = natsPub
	}

	deps := service.ViewDeps{
		Store:  store,
		Flight: flight,
		Fence:  fence,
		Events: publisher,
		Live:   wsHub,
		Logger: sysLogger,
		Config: cfg,
	}

	networkService := service.NewNetworkService(api, networkViews, deps)
	dashboardService := service.NewDashboardService(api, dashboardViews, deps)
	sessionService := service.NewSessionService(networkViews, dashboardViews, store, sysLogger)
	refreshers[service.ViewNetwork] = networkService
	refreshers[service.ViewDashboard] = dashboardService

	// 4. Controllers
	return &Container{
		NetworkController:   controller.NewNetworkController(networkService, cfg.Upstream.Timeout),
		DashboardController: controller.NewDashboardController(dashboardService, cfg.Upstream.Timeout),
		SessionController:   controller.NewSessionController(sessionService),

		LiveHandler:  handler.NewLiveHandler(wsHub, publisher, cfg.Auth.JwtSecret, cfg.App.Environment != "production", liveLogger),
		WebSocketHub: wsHub,

		InvalidationService: invalidationService,

		Config: cfg,
		Logger: sysLogger,

		networkViews:   networkViews,
		dashboardViews: dashboardViews,
		bus:            bus,
		natsConn:       natsConn,
		natsSub:        natsSub,
		rdb:            rdb,
	}
}

// Start launches the background workers. It returns once they are
// subscribed; they stop when ctx ends.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if err := c.InvalidationService.Start(ctx); err != nil {
		return err
	}

	if c.natsSub != nil {
		// Every instance needs every event, so each one gets its own durable.
		durable := "learnlink-" + uuid.NewString()
		if err := c.natsSub.Subscribe(ctx, pktNats.Subject(">"), durable, c.InvalidationService.HandleEvent); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the connections and open views held by the container.
func (c *Container) Close() {
	c.networkViews.Flush()
	c.dashboardViews.Flush()

	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsConn != nil {
		c.natsConn.Drain()
	}
	if err := c.bus.Close(); err != nil {
		c.Logger.Warn("Container", "Failed to close invalidation bus", map[string]interface{}{"error": err.Error()})
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
}
