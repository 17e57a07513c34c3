package container

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/mautops/approval-router/internal/api"
	"github.com/mautops/approval-router/internal/auth"
	"github.com/mautops/approval-router/internal/config"
	"github.com/mautops/approval-router/internal/database"
	"github.com/mautops/approval-router/internal/integration"
	"github.com/mautops/approval-router/internal/metrics"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/service"
	"github.com/mautops/approval-router/internal/websocket"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// 启动时重新投递的未完成通知数量上限
	resumeNotificationLimit = 500
	metricsInterval         = 30 * time.Second
	permissionCacheTTL      = time.Minute
	adminRealmRole          = "approval-admin"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、服务、客户端等
type Container struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *gorm.DB
	redis  redis.UniversalClient

	hub      *websocket.Hub
	stream   *integration.StreamBroker
	notifier *integration.Notifier
	engine   *workflow.Engine

	fgaClient     *auth.OpenFGAClient
	permission    auth.PermissionChecker
	authenticator auth.Authenticator
	rateLimiter   *api.RateLimiter

	auditService      service.AuditLogService
	caseService       service.CaseService
	workflowService   service.WorkflowService
	typeService       service.ApprovalTypeService
	queryService      service.QueryService
	statisticsService service.StatisticsService
	backupService     *service.BackupService

	backupScheduler *service.BackupScheduler
	collector       *metrics.Collector
	started         bool
}

// Option 容器选项
type Option func(*Container)

// WithDB 使用已有数据库连接,测试时注入内存数据库
func WithDB(db *gorm.DB) Option {
	return func(c *Container) { c.db = db }
}

// WithLogger 使用指定日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件,后台任务由 Start 启动
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	c := &Container{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		logger, err := api.NewLoggerFromConfig(&cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		c.logger = logger
	}

	// 1. 数据库,重试 3 次,初始间隔 1 秒,指数退避
	if c.db == nil {
		db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		c.db = db
	}
	if err := database.Migrate(c.db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	// 兜底审批人必须存在,否则解析失败时的通知没有接收人
	if err := database.SeedAdmin(c.db, cfg.Workflow.DefaultApproverID); err != nil {
		return nil, fmt.Errorf("failed to seed default approver: %w", err)
	}

	// 2. 审批单并发锁
	locker, err := c.newLocker()
	if err != nil {
		c.Close()
		return nil, err
	}

	// 3. 通知推送: WebSocket、SSE 和 webhook
	c.hub = websocket.NewHub()
	c.stream = integration.NewStreamBroker()
	c.notifier = integration.NewNotifier(c.db, cfg.Notification, c.logger, c.hub, c.stream)

	// 4. 流转引擎
	directory := integration.NewDirectory(c.db)
	resolver := workflow.NewResolver(directory, cfg.Workflow.DefaultApproverID, c.logger)
	c.auditService = service.NewAuditLogService(repository.NewAuditLogRepository(c.db))
	c.engine = workflow.NewEngine(c.db, resolver, directory, locker, c.notifier, c.auditService, c.logger)

	// 5. 业务服务
	c.caseService = service.NewCaseService(c.engine, c.db)
	c.workflowService = service.NewWorkflowService(c.db, directory, c.auditService, cfg.Workflow.TemplateCacheTTL, c.logger)
	c.typeService = service.NewApprovalTypeService(c.db, c.auditService, c.logger)
	c.queryService = service.NewQueryService(c.db)
	c.statisticsService = service.NewStatisticsService(c.db)
	c.backupService = service.NewBackupService(c.db, cfg.Backup.Dir, c.logger)
	c.backupScheduler = service.NewBackupScheduler(c.backupService, cfg.Backup.Interval, cfg.Backup.Keep, c.logger)

	// 6. 认证与鉴权
	if err := c.initAuth(); err != nil {
		c.Close()
		return nil, err
	}
	c.rateLimiter = api.NewRateLimiter(cfg.RateLimit.Enabled, cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	c.collector = metrics.NewCollector(c.db, metricsInterval)

	return c, nil
}

// newLocker 按配置创建审批单锁
func (c *Container) newLocker() (workflow.CaseLocker, error) {
	if c.cfg.Lock.Backend != "redis" {
		return workflow.NewMemoryLocker(), nil
	}

	c.redis = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{c.cfg.Lock.RedisAddr},
		Password: c.cfg.Lock.RedisPassword,
		DB:       c.cfg.Lock.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	return workflow.NewRedisLocker(c.redis, c.cfg.Lock.TTL, c.logger), nil
}

// initAuth 初始化认证器和权限检查
func (c *Container) initAuth() error {
	switch c.cfg.Auth.Mode {
	case "keycloak":
		kc := c.cfg.Auth.Keycloak
		c.authenticator = auth.NewKeycloakTokenValidator(kc.Issuer, kc.JWKSURL, kc.UserIDClaim)
	default:
		c.logger.Warn("header authentication enabled, do not use in production")
		c.authenticator = auth.HeaderAuthenticator{}
	}

	if !c.cfg.OpenFGA.Enabled {
		c.permission = auth.RoleChecker{
			AdminRole: adminRealmRole,
			AdminIDs:  []int64{c.cfg.Workflow.DefaultApproverID},
		}
		return nil
	}

	// 重试 3 次,初始间隔 1 秒,指数退避
	fgaClient, err := auth.NewOpenFGAClientWithRetry(c.cfg.OpenFGA.APIURL, c.cfg.OpenFGA.StoreID, c.cfg.OpenFGA.ModelID, 3, time.Second)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenFGA client: %w", err)
	}
	c.fgaClient = fgaClient
	c.permission = auth.NewCachedChecker(fgaClient, auth.NewPermissionCache(permissionCacheTTL))
	return nil
}

// Start 启动后台任务,并重新投递上次退出时未完成的通知
func (c *Container) Start(ctx context.Context) {
	c.started = true
	go c.hub.Run()
	c.collector.Start()
	c.backupScheduler.Start(ctx)

	resumed, err := c.notifier.ResumePending(ctx, resumeNotificationLimit)
	if err != nil {
		c.logger.WithError(err).Warn("failed to resume pending notifications")
	} else if resumed > 0 {
		c.logger.WithField("count", resumed).Info("pending notifications resumed")
	}
}

// Router 构建 HTTP 路由
func (c *Container) Router() *gin.Engine {
	checkers := map[string]api.HealthChecker{}
	if c.fgaClient != nil {
		checkers["openfga"] = c.fgaClient
	}
	if c.redis != nil {
		checkers["redis"] = redisHealth{c.redis}
	}

	return api.SetupRoutes(api.RouterOptions{
		Config:        c.cfg,
		Logger:        c.logger,
		Authenticator: c.authenticator,
		Permission:    c.permission,
		RateLimiter:   c.rateLimiter,
		SLAAlerts:     api.NewSLAAlertManager(),
		Hub:           c.hub,
		Stream:        c.stream,
	}, api.Controllers{
		Case:         api.NewCaseController(c.caseService, c.queryService),
		Workflow:     api.NewWorkflowController(c.workflowService),
		ApprovalType: api.NewApprovalTypeController(c.typeService),
		Dashboard:    api.NewDashboardController(c.statisticsService),
		Backup:       api.NewBackupController(c.backupService),
		AuditLog:     api.NewAuditLogController(c.auditService),
		Health:       api.NewHealthController(c.db, checkers),
	})
}

// ApplyConfig 应用热加载的配置
func (c *Container) ApplyConfig(cfg *config.Config) {
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		c.logger.SetLevel(level)
	}
	c.rateLimiter.Update(cfg.RateLimit.Enabled, cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

// redisHealth Redis 健康检查
type redisHealth struct {
	client redis.UniversalClient
}

func (h redisHealth) CheckHealth(ctx context.Context) bool {
	return h.client.Ping(ctx).Err() == nil
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Engine 获取流转引擎
func (c *Container) Engine() *workflow.Engine {
	return c.engine
}

// BackupService 获取备份服务
func (c *Container) BackupService() *service.BackupService {
	return c.backupService
}

// OpenFGAClient 获取 OpenFGA 客户端,未启用时为 nil
func (c *Container) OpenFGAClient() *auth.OpenFGAClient {
	return c.fgaClient
}

// Close 关闭容器,按依赖的反向顺序释放资源
func (c *Container) Close() error {
	if c.started {
		c.backupScheduler.Stop()
		c.collector.Stop()
	}
	if c.notifier != nil {
		c.notifier.Stop()
	}
	if c.hub != nil {
		c.hub.Stop()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.WithError(err).Warn("failed to close redis client")
		}
	}
	return database.Close(c.db)
}
