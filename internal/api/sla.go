package api

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/approval-router/internal/metrics"
)

// SLA 监控的操作类型
const (
	OperationCaseCreation  = "case_creation"
	OperationCaseDecision  = "case_decision"
	OperationCaseQuery     = "case_query"
	OperationWorkflowQuery = "workflow_query"
	operationUnknown       = "unknown"
)

// SLAConfig SLA 配置
type SLAConfig struct {
	CaseCreationMaxTime  time.Duration // 发起审批最大响应时间
	CaseDecisionMaxTime  time.Duration // 审批、驳回、撤回最大响应时间
	CaseQueryMaxTime     time.Duration // 审批单查询最大响应时间
	WorkflowQueryMaxTime time.Duration // 工作流模板查询最大响应时间
}

// DefaultSLAConfig 返回默认 SLA 配置
func DefaultSLAConfig() *SLAConfig {
	return &SLAConfig{
		CaseCreationMaxTime:  1 * time.Second,
		CaseDecisionMaxTime:  2 * time.Second,
		CaseQueryMaxTime:     500 * time.Millisecond,
		WorkflowQueryMaxTime: 500 * time.Millisecond,
	}
}

// getOperation 根据路由模板和方法判断操作类型
func getOperation(c *gin.Context) string {
	method := c.Request.Method
	path := c.FullPath()

	switch {
	case path == "/api/v1/cases" && method == "POST":
		return OperationCaseCreation
	case strings.HasPrefix(path, "/api/v1/cases/:id/") && method == "POST":
		return OperationCaseDecision
	case strings.HasPrefix(path, "/api/v1/cases") && method == "GET":
		return OperationCaseQuery
	case strings.HasPrefix(path, "/api/v1/workflows") && method == "GET":
		return OperationWorkflowQuery
	}
	return operationUnknown
}

// expectedDuration 获取期望的响应时间,0 表示不检查
func (c *SLAConfig) expectedDuration(operation string) time.Duration {
	switch operation {
	case OperationCaseCreation:
		return c.CaseCreationMaxTime
	case OperationCaseDecision:
		return c.CaseDecisionMaxTime
	case OperationCaseQuery:
		return c.CaseQueryMaxTime
	case OperationWorkflowQuery:
		return c.WorkflowQueryMaxTime
	}
	return 0
}

// CheckSLA 检查 SLA
func CheckSLA(operation string, duration time.Duration, config *SLAConfig) bool {
	expected := config.expectedDuration(operation)
	return expected == 0 || duration <= expected
}

// SLAViolation SLA 违反记录
type SLAViolation struct {
	Operation string
	Duration  time.Duration
	Expected  time.Duration
	Timestamp time.Time
	Path      string
	Method    string
}

// SLAAlertManager SLA 告警管理器
// 每个操作累计违反次数达到阈值时触发回调并清零
type SLAAlertManager struct {
	violations     map[string][]SLAViolation
	thresholds     map[string]int
	alertCallbacks []func(string, []SLAViolation)
	mu             sync.Mutex
}

// NewSLAAlertManager 创建 SLA 告警管理器
func NewSLAAlertManager() *SLAAlertManager {
	return &SLAAlertManager{
		violations: make(map[string][]SLAViolation),
		thresholds: make(map[string]int),
	}
}

// RecordViolation 记录 SLA 违反
func (m *SLAAlertManager) RecordViolation(violation SLAViolation) {
	m.mu.Lock()
	op := violation.Operation
	m.violations[op] = append(m.violations[op], violation)

	threshold := m.thresholds[op]
	if threshold <= 0 || len(m.violations[op]) < threshold {
		m.mu.Unlock()
		return
	}
	batch := m.violations[op]
	m.violations[op] = nil
	callbacks := append(([]func(string, []SLAViolation))(nil), m.alertCallbacks...)
	m.mu.Unlock()

	for _, callback := range callbacks {
		callback(op, batch)
	}
}

// SetAlertThreshold 设置告警阈值
func (m *SLAAlertManager) SetAlertThreshold(operation string, threshold int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds[operation] = threshold
}

// OnAlert 注册告警回调
func (m *SLAAlertManager) OnAlert(callback func(string, []SLAViolation)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertCallbacks = append(m.alertCallbacks, callback)
}

// GetViolations 获取尚未触发告警的违反记录
func (m *SLAAlertManager) GetViolations(operation string) []SLAViolation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SLAViolation(nil), m.violations[operation]...)
}

// SLAMonitorMiddleware SLA 监控中间件,alertManager 可以为 nil
// 响应头必须在写出响应前设置,所以超时只记录指标和告警
func SLAMonitorMiddleware(config *SLAConfig, alertManager *SLAAlertManager) gin.HandlerFunc {
	if config == nil {
		config = DefaultSLAConfig()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		operation := getOperation(c)
		duration := time.Since(start)
		if CheckSLA(operation, duration, config) {
			return
		}

		metrics.RecordSLAViolation(operation)
		if alertManager != nil {
			alertManager.RecordViolation(SLAViolation{
				Operation: operation,
				Duration:  duration,
				Expected:  config.expectedDuration(operation),
				Timestamp: time.Now(),
				Path:      c.Request.URL.Path,
				Method:    c.Request.Method,
			})
		}
	}
}
