package container_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mautops/approval-router/internal/container"
	"github.com/mautops/approval-router/internal/config"
	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContainer(t *testing.T) *container.Container {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Backup.Dir = t.TempDir()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c, err := container.NewContainer(cfg, container.WithDB(testutil.NewDB(t)), container.WithLogger(logger))
	require.NoError(t, err)
	return c
}

// TestNewContainer 测试依赖组装与默认审批人初始化
func TestNewContainer(t *testing.T) {
	c := newContainer(t)
	defer c.Close()

	assert.NotNil(t, c.Engine())
	assert.NotNil(t, c.BackupService())
	assert.Nil(t, c.OpenFGAClient())

	var admin model.UserModel
	require.NoError(t, c.DB().First(&admin, c.Config().Workflow.DefaultApproverID).Error)
}

// TestContainer_Router 测试完整路由可以处理请求
func TestContainer_Router(t *testing.T) {
	c := newContainer(t)
	c.Start(context.Background())
	defer c.Close()

	router := c.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// 默认审批人拥有管理权限
	body := `{"code":"LEAVE","name":"请假"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/approval-types", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/approval-types", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "2")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// TestContainer_ApplyConfig 测试热加载调整日志级别与限流
func TestContainer_ApplyConfig(t *testing.T) {
	c := newContainer(t)
	defer c.Close()
	router := c.Router()

	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	c.ApplyConfig(cfg)
	assert.Equal(t, logrus.ErrorLevel, c.Logger().GetLevel())

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cases/mine", nil)
		req.Header.Set("X-User-ID", "1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

// TestNewContainer_InvalidLock 测试 Redis 不可用时初始化失败
func TestNewContainer_InvalidLock(t *testing.T) {
	cfg := config.Default()
	cfg.Lock.Backend = "redis"
	cfg.Lock.RedisAddr = "127.0.0.1:1"
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	_, err := container.NewContainer(cfg, container.WithDB(testutil.NewDB(t)), container.WithLogger(logger))
	assert.Error(t, err)
}
