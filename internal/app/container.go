package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/lock"
	"github.com/felixgeelhaar/teamflow/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/commands"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/jobs"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/queries"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/services"
	"github.com/felixgeelhaar/teamflow/internal/workload/infrastructure/notify"
	"github.com/felixgeelhaar/teamflow/internal/workload/infrastructure/projects"
	"github.com/felixgeelhaar/teamflow/pkg/config"
	"github.com/felixgeelhaar/teamflow/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics observability.Metrics
	Health  *observability.HealthRegistry

	// Database
	DBConn   database.Connection
	DBDriver database.Driver
	Repos    *Repositories

	// Redis (nil when not configured)
	RedisClient *redis.Client
	Locker      lock.Locker

	// Publishers
	EventPublisher eventbus.Publisher
	Notifier       notify.Notifier

	// Upstream
	ProjectsClient *projects.Client
	SkillTable     services.SkillTable

	// Command handlers
	SyncTeamDataHandler        *commands.SyncTeamDataHandler
	CalculateCapacityHandler   *commands.CalculateCapacityHandler
	AggregatePrioritiesHandler *commands.AggregatePrioritiesHandler
	DetectOverloadHandler      *commands.DetectOverloadHandler

	// Query handlers
	MatchCandidatesHandler *queries.MatchCandidatesHandler
	ListCapacityHandler    *queries.ListCapacityHandler
	ListPrioritiesHandler  *queries.ListPrioritiesHandler
	GetTeamHealthHandler   *queries.GetTeamHealthHandler

	// Jobs
	Pipeline *jobs.Pipeline
	Invoker  *jobs.Invoker
}

// NewContainer creates and wires all dependencies. Redis and RabbitMQ are
// optional in development and local mode; without them locks and published
// alerts stay in process.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
	}

	if err := c.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := c.initRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initPublisher(); err != nil {
		c.Close()
		return nil, err
	}

	skills := services.DefaultSkillTable()
	if cfg.SkillTablePath != "" {
		loaded, err := services.LoadSkillTable(cfg.SkillTablePath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to load skill table: %w", err)
		}
		skills = loaded
	}
	c.SkillTable = skills

	tokens, err := c.tokenProvider(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.ProjectsClient = projects.NewClient(projects.Config{
		BaseURL:        cfg.ProjectsAPIURL,
		AuthScheme:     cfg.ProjectsAuthScheme,
		RequestTimeout: cfg.ProjectsRequestTimeout,
		MaxRetries:     cfg.ProjectsMaxRetries,
		Metrics:        c.Metrics,
	}, tokens, logger)

	c.Notifier = c.buildNotifier()
	c.wireHandlers()

	logger.Info("container initialized",
		"driver", c.DBDriver,
		"redis", c.RedisClient != nil,
		"notifier", fmt.Sprintf("%T", c.Notifier),
	)
	return c, nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	cfg := c.Config
	dbCfg := database.Config{URL: cfg.DatabaseURL, SQLitePath: cfg.SQLitePath}
	if cfg.IsSQLite() {
		dbCfg.Driver = database.DriverSQLite
	} else {
		dbCfg.Driver = database.DriverPostgres
	}

	conn, err := database.NewConnection(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if err := migrations.Run(ctx, conn); err != nil {
		conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repos, err := NewRepositoryFactory(conn).Build()
	if err != nil {
		conn.Close()
		return err
	}

	c.DBConn = conn
	c.DBDriver = conn.Driver()
	c.Repos = repos
	c.Health.Register("database", observability.DatabaseHealthChecker(conn.Ping))
	c.Logger.Info("connected to database", "driver", c.DBDriver)
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	cfg := c.Config
	c.Locker = lock.NewMemoryLocker()
	if cfg.RedisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		if !cfg.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, member locks will stay in process", "error", err)
		return nil
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		if !cfg.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, member locks will stay in process", "error", err)
		return nil
	}

	c.RedisClient = client
	c.Locker = lock.NewRedisLocker(client, "")
	c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) initPublisher() error {
	cfg := c.Config
	if cfg.RabbitMQURL == "" {
		c.EventPublisher = eventbus.NewMemoryPublisher()
		return nil
	}

	publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, "", c.Logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			return err
		}
		c.Logger.Warn("RabbitMQ not available, alerts will not be published to the broker", "error", err)
		c.EventPublisher = eventbus.NewMemoryPublisher()
		return nil
	}

	c.EventPublisher = publisher
	c.Health.Register("rabbitmq", observability.RabbitMQHealthChecker(publisher.Check))
	return nil
}

func (c *Container) tokenProvider(ctx context.Context) (projects.TokenProvider, error) {
	cfg := c.Config
	if !cfg.UsesOAuth() {
		return projects.StaticTokenProvider(cfg.ProjectsAccessToken), nil
	}

	provider, err := projects.NewOAuthTokenProvider(context.WithoutCancel(ctx), projects.OAuthConfig{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		TokenURL:     cfg.OAuthTokenURL,
		RefreshToken: cfg.OAuthRefreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure oauth: %w", err)
	}
	if c.RedisClient == nil {
		return provider, nil
	}
	cache := projects.NewRedisTokenCache(c.RedisClient, "", provider)
	if cfg.TokenEncryptionKey != "" {
		sealer, err := crypto.NewSealer(cfg.TokenEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid token encryption key: %w", err)
		}
		cache.WithSealer(sealer)
	} else if !cfg.IsDevelopment() {
		c.Logger.Warn("TOKEN_ENCRYPTION_KEY not set, access tokens are cached in Redis unencrypted")
	}
	return cache, nil
}

// buildNotifier fans out to every configured transport and falls back to
// logging when none is.
func (c *Container) buildNotifier() notify.Notifier {
	var targets notify.Multi
	if c.Config.NotifyWebhookURL != "" {
		targets = append(targets, notify.NewWebhookNotifier(c.Config.NotifyWebhookURL, &http.Client{}))
	}
	if c.Config.NotifyBroker {
		targets = append(targets, notify.NewBrokerNotifier(c.EventPublisher))
	}

	switch len(targets) {
	case 0:
		return notify.NewLogNotifier(c.Logger)
	case 1:
		return targets[0]
	default:
		return targets
	}
}

func (c *Container) wireHandlers() {
	cfg := c.Config
	r := c.Repos
	logger := c.Logger

	c.SyncTeamDataHandler = commands.NewSyncTeamDataHandler(c.ProjectsClient, r.Members, r.Tasks, r.SyncState, cfg.SyncBatchSize, logger)
	c.DetectOverloadHandler = commands.NewDetectOverloadHandler(r.Settings, c.Notifier, logger)
	c.CalculateCapacityHandler = commands.NewCalculateCapacityHandler(
		r.Members, r.Tasks, r.Capacity, r.Settings, c.DetectOverloadHandler, c.Locker,
		cfg.DefaultMaxCapacityBase, cfg.AggregationConcurrency, logger,
	)
	c.AggregatePrioritiesHandler = commands.NewAggregatePrioritiesHandler(
		r.Members, r.Tasks, r.Priorities, services.NewUrgencyEngine(services.DefaultUrgencyEngineConfig()), c.Locker,
		cfg.PriorityTopN, cfg.AggregationConcurrency, logger,
	)

	c.MatchCandidatesHandler = queries.NewMatchCandidatesHandler(r.Members, r.Capacity, c.SkillTable, nil, logger)
	c.ListCapacityHandler = queries.NewListCapacityHandler(r.Capacity, r.Members)
	c.ListPrioritiesHandler = queries.NewListPrioritiesHandler(r.Priorities)
	c.GetTeamHealthHandler = queries.NewGetTeamHealthHandler(c.ListCapacityHandler)

	c.Pipeline = &jobs.Pipeline{
		Sync:       c.SyncTeamDataHandler,
		Capacity:   c.CalculateCapacityHandler,
		Priorities: c.AggregatePrioritiesHandler,
		Overload:   c.DetectOverloadHandler,
		Match:      c.MatchCandidatesHandler,
		Metrics:    c.Metrics,
	}
	c.Invoker = jobs.NewInvoker(logger, c.Metrics)
}

// Schedules returns the recurring jobs the worker runs.
func (c *Container) Schedules() []jobs.Schedule {
	return []jobs.Schedule{
		{Job: c.Pipeline.SyncJob(), Interval: c.Config.SyncInterval, Payload: []byte(`{"incremental":true}`), RunOnStart: true},
		{Job: c.Pipeline.CapacityJob(), Interval: c.Config.CapacityInterval},
		{Job: c.Pipeline.PrioritiesJob(), Interval: c.Config.PriorityInterval},
	}
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DBDriver)
		}
	}
}
