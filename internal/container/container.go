// Package container is the composition root: configuration goes in, a
// running service comes out. All wiring between infrastructure, use cases,
// and the HTTP layer happens here and only here, so swapping an
// implementation never touches more than this package.
package container

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	natsio "github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Haleralex/walletledger/internal/adapters/http"
	"github.com/Haleralex/walletledger/internal/application/ports"
	"github.com/Haleralex/walletledger/internal/application/usecases/transfer"
	"github.com/Haleralex/walletledger/internal/application/usecases/wallet"
	"github.com/Haleralex/walletledger/internal/config"
	rediscache "github.com/Haleralex/walletledger/internal/infrastructure/cache/redis"
	"github.com/Haleralex/walletledger/internal/infrastructure/messaging/nats"
	"github.com/Haleralex/walletledger/internal/infrastructure/persistence/postgres"
	"github.com/Haleralex/walletledger/internal/pkg/logger"
	"github.com/Haleralex/walletledger/internal/pkg/telemetry"
)

// ============================================
// Container
// ============================================

// Container owns every dependency of the service and its lifecycle:
// creation in Initialize, access through getters, teardown in Shutdown.
type Container struct {
	config *config.Config
	logger *slog.Logger

	// Infrastructure
	pool        *pgxpool.Pool
	redisClient *goredis.Client
	cacheStore  ports.CacheStore

	// Repositories
	walletRepo ports.WalletRepository
	logRepo    ports.TransactionLogRepository
	outboxRepo *postgres.OutboxRepository

	// Unit of Work
	uow ports.UnitOfWork

	// Event Publisher (the outbox; the relay drains it to NATS)
	eventPublisher ports.EventPublisher

	// Messaging
	natsConn    *natsio.Conn
	relay       *nats.OutboxRelay
	relayCancel context.CancelFunc

	// Telemetry
	telemetryShutdown telemetry.ShutdownFunc

	// Use Cases
	transferUC     *transfer.TransferUseCase
	getHistoryUC   *transfer.GetHistoryUseCase
	createWalletUC *wallet.CreateWalletUseCase
	getBalanceUC   *wallet.GetBalanceUseCase

	// HTTP
	httpServer *http.Server
}

// New creates a container for the given configuration. Nothing is connected
// until Initialize runs.
func New(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// ============================================
// Initialization
// ============================================

// Initialize connects every dependency in order. On error the container is
// left partially initialized; call Shutdown to release whatever came up.
func (c *Container) Initialize(ctx context.Context) error {
	c.logger = c.initLogger()
	c.logger.Info("Initializing application container...")

	// 1. Telemetry first, so the rest of the startup can be traced.
	if err := c.initTelemetry(ctx); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// 2. Database
	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database connected")

	// 3. Cache. Required at startup: the transfer pipeline needs a cache
	// store even though it tolerates the cache failing later.
	if err := c.initCache(ctx); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	c.logger.Info("Cache connected")

	// 4. Repositories
	c.initRepositories()
	c.logger.Info("Repositories initialized")

	// 5. Messaging (optional, config-gated)
	if err := c.initMessaging(); err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	// 6. Use Cases
	c.initUseCases()
	c.logger.Info("Use cases initialized")

	// 7. HTTP Server
	c.initHTTPServer()
	c.logger.Info("HTTP server initialized")

	c.logger.Info("Container initialization complete")
	return nil
}

// initLogger builds the structured logger and installs it as the default.
func (c *Container) initLogger() *slog.Logger {
	var output io.Writer = os.Stdout
	if c.config.Log.Output == "stderr" {
		output = os.Stderr
	}

	return logger.Setup(&logger.Config{
		Level:     c.config.Log.Level,
		Format:    c.config.Log.Format,
		Output:    output,
		AddSource: c.config.App.Debug,
	})
}

// initTelemetry installs the global tracer provider when an OTLP endpoint
// is configured.
func (c *Container) initTelemetry(ctx context.Context) error {
	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       c.config.Telemetry.OTLPEndpoint,
		ServiceName:    c.config.Telemetry.ServiceName,
		ServiceVersion: c.config.App.Version,
		Environment:    c.config.App.Environment,
		SampleRatio:    c.config.Telemetry.SampleRatio,
	})
	if err != nil {
		return err
	}
	c.telemetryShutdown = shutdown

	if c.config.Telemetry.Enabled() {
		c.logger.Info("Tracing enabled",
			slog.String("endpoint", c.config.Telemetry.OTLPEndpoint),
			slog.Float64("sample_ratio", c.config.Telemetry.SampleRatio),
		)
	}
	return nil
}

// initDatabase opens the pgx pool and verifies connectivity.
func (c *Container) initDatabase(ctx context.Context) error {
	pool, err := postgres.NewConnectionPool(ctx, postgres.Config{
		Host:            c.config.Database.Host,
		Port:            c.config.Database.Port,
		Database:        c.config.Database.Name,
		User:            c.config.Database.User,
		Password:        c.config.Database.Password,
		SSLMode:         c.config.Database.SSLMode,
		MaxConns:        c.config.Database.PoolMax,
		MinConns:        c.config.Database.PoolMin,
		MaxConnLifetime: c.config.Database.MaxConnLifetime,
		MaxConnIdleTime: c.config.Database.IdleTimeout(),
		ConnectTimeout:  c.config.Database.AcquireTimeout(),
	})
	if err != nil {
		return err
	}

	c.pool = pool
	return nil
}

// initCache connects the Redis client and wraps it in the cache store.
func (c *Container) initCache(ctx context.Context) error {
	cfg := rediscache.DefaultConfig()
	cfg.Host = c.config.Cache.Host
	cfg.Port = strconv.Itoa(c.config.Cache.Port)
	cfg.Password = c.config.Cache.Password
	cfg.DB = c.config.Cache.DB
	cfg.KeyPrefix = c.config.Cache.KeyPrefix

	client, err := rediscache.NewClient(ctx, cfg)
	if err != nil {
		return err
	}

	c.redisClient = client
	c.cacheStore = rediscache.NewStore(client, cfg.KeyPrefix)
	return nil
}

// initRepositories builds the persistence layer over the pool.
func (c *Container) initRepositories() {
	c.walletRepo = postgres.NewWalletRepository(c.pool)
	c.logRepo = postgres.NewTransactionLogRepository(c.pool)
	c.outboxRepo = postgres.NewOutboxRepository(c.pool)

	// Unit of Work
	c.uow = postgres.NewUnitOfWork(c.pool)

	// Events are published to the outbox inside the caller's transaction;
	// the relay moves them to the broker afterwards.
	c.eventPublisher = c.outboxRepo
}

// initMessaging connects NATS and prepares the outbox relay. With no broker
// URL configured events simply accumulate in the outbox.
func (c *Container) initMessaging() error {
	if !c.config.NATS.Enabled() {
		c.logger.Info("NATS disabled, outbox relay not started")
		return nil
	}

	natsCfg := nats.DefaultConfig()
	natsCfg.URL = c.config.NATS.URL
	natsCfg.ClientName = c.config.App.Name
	natsCfg.SubjectPrefix = c.config.NATS.SubjectPrefix

	conn, err := nats.Connect(natsCfg, c.logger)
	if err != nil {
		return err
	}

	c.natsConn = conn
	c.relay = nats.NewOutboxRelay(
		c.outboxRepo,
		c.uow,
		nats.NewPublisher(conn, natsCfg.SubjectPrefix),
		nats.DefaultRelayConfig(),
		c.logger,
	)

	c.logger.Info("NATS connected",
		slog.String("url", c.config.NATS.URL),
		slog.String("subject_prefix", natsCfg.SubjectPrefix),
	)
	return nil
}

// initUseCases builds the application layer.
func (c *Container) initUseCases() {
	idempotency := transfer.IdempotencyConfig{
		ResultTTL:      c.config.Cache.IdempotencyExpiry(),
		LockTTL:        c.config.Cache.LockExpiry(),
		LockRetries:    c.config.Cache.LockRetries,
		LockRetryDelay: c.config.Cache.LockRetryDelay(),
	}

	c.transferUC = transfer.NewTransferUseCase(
		c.walletRepo,
		c.logRepo,
		c.cacheStore,
		c.eventPublisher,
		c.uow,
		idempotency,
		c.logger,
	)
	c.getHistoryUC = transfer.NewGetHistoryUseCase(c.logRepo)

	c.createWalletUC = wallet.NewCreateWalletUseCase(c.walletRepo, c.eventPublisher, c.uow)
	c.getBalanceUC = wallet.NewGetBalanceUseCase(c.walletRepo)
}

// initHTTPServer assembles the router and the server around it.
func (c *Container) initHTTPServer() {
	routerConfig := &http.RouterConfig{
		Logger:         c.logger,
		Pool:           c.pool,
		Cache:          c.cacheStore,
		Version:        c.config.App.Version,
		BuildTime:      c.config.App.BuildTime,
		Environment:    c.config.App.Environment,
		AllowedOrigins: c.config.CORS.AllowedOrigins,
		TracingEnabled: c.config.Telemetry.Enabled(),
	}

	router := http.NewRouterBuilder(routerConfig).
		WithTransferUseCases(&http.TransferUseCases{
			Transfer: c.transferUC,
		}).
		WithWalletUseCases(&http.WalletUseCases{
			CreateWallet: c.createWalletUC,
			GetBalance:   c.getBalanceUC,
			GetHistory:   c.getHistoryUC,
		}).
		Build()

	serverConfig := &http.ServerConfig{
		Host:            c.config.Server.Host,
		Port:            strconv.Itoa(c.config.Server.Port),
		ReadTimeout:     c.config.Server.ReadTimeout,
		WriteTimeout:    c.config.Server.WriteTimeout,
		IdleTimeout:     c.config.Server.IdleTimeout,
		ShutdownTimeout: c.config.Server.ShutdownTimeout,
		Logger:          c.logger,
	}

	c.httpServer = http.NewServer(serverConfig, router)
}

// ============================================
// Getters
// ============================================

// Config returns the configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Pool returns the database connection pool.
func (c *Container) Pool() *pgxpool.Pool {
	return c.pool
}

// CacheStore returns the cache store.
func (c *Container) CacheStore() ports.CacheStore {
	return c.cacheStore
}

// HTTPServer returns the HTTP server.
func (c *Container) HTTPServer() *http.Server {
	return c.httpServer
}

// WalletRepository returns the wallet repository.
func (c *Container) WalletRepository() ports.WalletRepository {
	return c.walletRepo
}

// TransactionLogRepository returns the transaction log repository.
func (c *Container) TransactionLogRepository() ports.TransactionLogRepository {
	return c.logRepo
}

// OutboxRepository returns the outbox repository.
func (c *Container) OutboxRepository() *postgres.OutboxRepository {
	return c.outboxRepo
}

// UnitOfWork returns the unit of work.
func (c *Container) UnitOfWork() ports.UnitOfWork {
	return c.uow
}

// EventPublisher returns the event publisher.
func (c *Container) EventPublisher() ports.EventPublisher {
	return c.eventPublisher
}

// TransferUseCase returns the transfer use case.
func (c *Container) TransferUseCase() *transfer.TransferUseCase {
	return c.transferUC
}

// GetHistoryUseCase returns the history listing use case.
func (c *Container) GetHistoryUseCase() *transfer.GetHistoryUseCase {
	return c.getHistoryUC
}

// CreateWalletUseCase returns the wallet provisioning use case.
func (c *Container) CreateWalletUseCase() *wallet.CreateWalletUseCase {
	return c.createWalletUC
}

// GetBalanceUseCase returns the balance query use case.
func (c *Container) GetBalanceUseCase() *wallet.GetBalanceUseCase {
	return c.getBalanceUC
}

// ============================================
// Run
// ============================================

// Run starts the outbox relay and serves HTTP until a shutdown signal
// arrives. The relay is stopped before Run returns; connection teardown
// stays with Shutdown.
func (c *Container) Run() error {
	c.logger.Info("Starting wallet ledger service",
		slog.String("version", c.config.App.Version),
		slog.String("environment", c.config.App.Environment),
		slog.String("address", c.config.Server.Address()),
	)

	if c.relay != nil {
		var relayCtx context.Context
		relayCtx, c.relayCancel = context.WithCancel(context.Background())
		go c.relay.Run(relayCtx)
	}

	err := c.httpServer.Run()

	if c.relayCancel != nil {
		c.relayCancel()
		c.relay.Stop()
	}

	return err
}

// ============================================
// Shutdown
// ============================================

// Shutdown releases every component in reverse initialization order. Safe
// to call on a partially initialized container.
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	var errs []error

	// 1. HTTP server stops accepting requests.
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	// 2. Outbox relay (idempotent; Run already stops it on signal exit).
	if c.relay != nil {
		if c.relayCancel != nil {
			c.relayCancel()
		}
		c.relay.Stop()
	}

	// 3. NATS, draining buffered publishes.
	if c.natsConn != nil {
		if err := c.natsConn.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("NATS drain: %w", err))
		}
	}

	// 4. Redis.
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	// 5. Database, giving in-flight transactions time to finish.
	if c.pool != nil {
		done := make(chan struct{})
		go func() {
			c.pool.Close()
			close(done)
		}()

		select {
		case <-done:
			c.logger.Info("Database connection closed")
		case <-ctx.Done():
			c.logger.Warn("Database close timeout")
		}
	}

	// 6. Flush buffered spans last so the shutdown itself is traceable.
	if c.telemetryShutdown != nil {
		if err := c.telemetryShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.logger.Info("Container shutdown complete")
	return nil
}

// ============================================
// Builder
// ============================================

// ContainerBuilder assembles a container with externally supplied
// components, skipping the corresponding connection steps. Tests use it to
// inject a pool or cache store that already exists.
type ContainerBuilder struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	cacheStore     ports.CacheStore
	eventPublisher ports.EventPublisher
}

// NewBuilder creates a builder over the configuration.
func NewBuilder(cfg *config.Config) *ContainerBuilder {
	return &ContainerBuilder{
		cfg: cfg,
	}
}

// WithLogger sets a custom logger.
func (b *ContainerBuilder) WithLogger(logger *slog.Logger) *ContainerBuilder {
	b.logger = logger
	return b
}

// WithPool sets an established connection pool.
func (b *ContainerBuilder) WithPool(pool *pgxpool.Pool) *ContainerBuilder {
	b.pool = pool
	return b
}

// WithCacheStore sets a custom cache store.
func (b *ContainerBuilder) WithCacheStore(store ports.CacheStore) *ContainerBuilder {
	b.cacheStore = store
	return b
}

// WithEventPublisher sets a custom event publisher.
func (b *ContainerBuilder) WithEventPublisher(ep ports.EventPublisher) *ContainerBuilder {
	b.eventPublisher = ep
	return b
}

// Build assembles the container, connecting only what was not supplied.
// Telemetry and messaging remain config-gated.
func (b *ContainerBuilder) Build(ctx context.Context) (*Container, error) {
	c := New(b.cfg)

	if b.logger != nil {
		c.logger = b.logger
	} else {
		c.logger = c.initLogger()
	}

	if err := c.initTelemetry(ctx); err != nil {
		return nil, err
	}

	if b.pool != nil {
		c.pool = b.pool
	} else {
		if err := c.initDatabase(ctx); err != nil {
			return nil, err
		}
	}

	if b.cacheStore != nil {
		c.cacheStore = b.cacheStore
	} else {
		if err := c.initCache(ctx); err != nil {
			return nil, err
		}
	}

	c.initRepositories()

	if b.eventPublisher != nil {
		c.eventPublisher = b.eventPublisher
	}

	if err := c.initMessaging(); err != nil {
		return nil, err
	}

	c.initUseCases()
	c.initHTTPServer()

	return c, nil
}
