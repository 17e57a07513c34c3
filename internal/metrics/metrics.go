package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 审批单创建数
	casesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_cases_created_total",
			Help: "Total number of approval cases created",
		},
		[]string{"type_code"},
	)

	// 审批操作数
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_decisions_total",
			Help: "Total number of approval decisions",
		},
		[]string{"action"}, // approve, reject, withdraw
	)

	// 审批人解析兜底次数
	resolverFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_resolver_fallbacks_total",
			Help: "Number of approver resolutions that fell back to the default administrator",
		},
		[]string{"role"},
	)

	// 通知投递结果
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_notifications_total",
			Help: "Number of notifications by delivery result",
		},
		[]string{"result"}, // queued, delivered, failed, dropped
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 响应时间超出 SLA 的请求数
	slaViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_sla_violations_total",
			Help: "Number of API requests slower than their SLA",
		},
		[]string{"operation"},
	)

	// 审批单状态分布
	casesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "approval_cases_by_status",
			Help: "Number of approval cases by status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(casesCreatedTotal)
	prometheus.MustRegister(decisionsTotal)
	prometheus.MustRegister(resolverFallbacksTotal)
	prometheus.MustRegister(notificationsTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(casesByStatus)
	prometheus.MustRegister(slaViolationsTotal)

	// Go 运行时指标可能已被默认注册,忽略重复注册错误
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordCaseCreated 记录审批单创建
func RecordCaseCreated(typeCode string) {
	casesCreatedTotal.WithLabelValues(typeCode).Inc()
}

// RecordDecision 记录审批操作
func RecordDecision(action string) {
	decisionsTotal.WithLabelValues(action).Inc()
}

// RecordResolverFallback 记录审批人解析兜底
func RecordResolverFallback(role string) {
	resolverFallbacksTotal.WithLabelValues(role).Inc()
}

// RecordNotification 记录通知投递结果
func RecordNotification(result string) {
	notificationsTotal.WithLabelValues(result).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateCasesByStatus 更新审批单状态分布指标
func UpdateCasesByStatus(status string, count float64) {
	casesByStatus.WithLabelValues(status).Set(count)
}

// RecordSLAViolation 记录 SLA 超时
func RecordSLAViolation(operation string) {
	slaViolationsTotal.WithLabelValues(operation).Inc()
}
