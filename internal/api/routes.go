package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	_ "github.com/mautops/approval-router/docs" // swagger 文档
	"github.com/mautops/approval-router/internal/auth"
	"github.com/mautops/approval-router/internal/config"
	"github.com/mautops/approval-router/internal/integration"
	"github.com/mautops/approval-router/internal/websocket"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Controllers 全部业务控制器
type Controllers struct {
	Case         *CaseController
	Workflow     *WorkflowController
	ApprovalType *ApprovalTypeController
	Dashboard    *DashboardController
	Backup       *BackupController
	AuditLog     *AuditLogController
	Health       *HealthController
}

// RouterOptions 路由依赖
type RouterOptions struct {
	Config        *config.Config
	Logger        logrus.FieldLogger
	Authenticator auth.Authenticator
	// Permission 管理接口的权限检查
	Permission  auth.PermissionChecker
	RateLimiter *RateLimiter
	SLAAlerts   *SLAAlertManager
	Hub         *websocket.Hub
	Stream      *integration.StreamBroker
}

// SetupRoutes 配置路由
func SetupRoutes(opts RouterOptions, ctrl Controllers) *gin.Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Authenticator == nil {
		opts.Authenticator = auth.HeaderAuthenticator{}
	}
	if opts.Permission == nil {
		opts.Permission = auth.RoleChecker{AdminIDs: []int64{cfg.Workflow.DefaultApproverID}}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(I18nMiddleware())
	router.Use(RequestLogMiddleware(opts.Logger))
	router.Use(SecurityHeadersMiddleware(config.IsProduction(cfg)))
	router.Use(CORSMiddleware(cfg.CORS))
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware(cfg.Tracing.ServiceName))
	}
	router.Use(ErrorHandlerMiddleware())

	// 运维接口不做认证和限流
	if ctrl.Health != nil {
		router.GET("/health", ctrl.Health.Check)
	}
	router.GET("/metrics", MetricsHandler())
	router.GET("/version", VersionHandler)

	swaggerHost := cfg.Server.Host
	if swaggerHost == "0.0.0.0" || swaggerHost == "" {
		swaggerHost = "localhost"
	}
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL(fmt.Sprintf("http://%s:%d/swagger/doc.json", swaggerHost, cfg.Server.Port)),
	))

	authenticated := auth.Middleware(opts.Authenticator)

	// 浏览器无法为 WebSocket/EventSource 设置请求头,认证器支持查询参数
	if opts.Hub != nil {
		router.GET("/ws/notifications", authenticated, websocket.NotificationHandler(opts.Hub))
	}
	if opts.Stream != nil {
		router.GET("/sse/notifications", authenticated, SSEHandler(opts.Stream))
	}

	v1 := router.Group("/api/v1")
	v1.Use(VersionMiddleware())
	if opts.RateLimiter != nil {
		v1.Use(opts.RateLimiter.Middleware())
	}
	v1.Use(SLAMonitorMiddleware(DefaultSLAConfig(), opts.SLAAlerts))
	v1.Use(authenticated)

	admin := auth.RequirePermission(opts.Permission, auth.RelationAdmin, auth.ObjectTypeSystem, auth.SystemObjectID)

	if c := ctrl.Case; c != nil {
		cases := v1.Group("/cases")
		{
			cases.POST("", c.Create)
			cases.GET("", admin, c.Search)
			// 静态路径与 /:id 并存,gin 优先匹配静态路径
			cases.GET("/mine", c.ListMine)
			cases.GET("/todo", c.ListTodo)
			cases.GET("/export", c.Export)
			cases.GET("/:id", c.Get)
			cases.GET("/:id/history", c.History)
			cases.POST("/:id/approve", c.Approve)
			cases.POST("/:id/reject", c.Reject)
			cases.POST("/:id/withdraw", c.Withdraw)
		}
		v1.POST("/attachments", c.RegisterAttachment)
	}

	if c := ctrl.AuditLog; c != nil {
		v1.GET("/cases/:id/audit", admin, c.CaseLogs)
		logs := v1.Group("/audit-logs", admin)
		{
			logs.GET("", c.List)
			logs.GET("/statistics", c.Statistics)
		}
	}

	if c := ctrl.Dashboard; c != nil {
		dashboard := v1.Group("/dashboard")
		{
			dashboard.GET("/statistics", c.Statistics)
			dashboard.GET("/activities", c.Activities)
			dashboard.GET("/overview", admin, c.Overview)
		}
	}

	// 模板读取对所有登录用户开放,发起审批前需要选择类型
	if c := ctrl.Workflow; c != nil {
		workflows := v1.Group("/workflows")
		{
			workflows.GET("", c.List)
			workflows.GET("/:id", c.Get)
			workflows.POST("", admin, c.Create)
			workflows.PUT("/:id", admin, c.Update)
			workflows.PUT("/:id/status", admin, c.UpdateStatus)
			workflows.DELETE("/:id", admin, c.Delete)
		}
	}

	if c := ctrl.ApprovalType; c != nil {
		types := v1.Group("/approval-types")
		{
			types.GET("", c.List)
			types.GET("/:id", c.Get)
			types.POST("", admin, c.Create)
			types.PUT("/:id", admin, c.Update)
			types.PUT("/:id/status", admin, c.UpdateStatus)
			types.DELETE("/:id", admin, c.Delete)
		}
	}

	if c := ctrl.Backup; c != nil {
		backups := v1.Group("/backups", admin)
		{
			backups.POST("", c.CreateBackup)
			backups.GET("", c.ListBackups)
			backups.POST("/:filename/restore", c.RestoreBackup)
			backups.DELETE("/:filename", c.DeleteBackup)
		}
		templates := v1.Group("/templates", admin)
		{
			templates.GET("/export", c.Export)
			templates.POST("/import", c.Import)
		}
	}

	// 未匹配的路由返回 JSON 而不是 HTML
	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, T(c, "error.route_not_found"), c.Request.URL.Path)
	})

	return router
}
