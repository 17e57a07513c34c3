package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mautops/approval-router/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault 测试默认配置
func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, int64(1), cfg.Workflow.DefaultApproverID)
	assert.Equal(t, 5*time.Minute, cfg.Workflow.TemplateCacheTTL)
	assert.Equal(t, "memory", cfg.Lock.Backend)
	assert.Equal(t, 1000, cfg.Notification.QueueSize)
	assert.NoError(t, cfg.Validate())
}

// TestLoad_FromFile 测试从配置文件加载
func TestLoad_FromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
database:
  driver: sqlite
  sqlite_path: /tmp/approval.db
workflow:
  default_approver_id: 7
  template_cache_ttl: 30s
lock:
  backend: redis
  redis_addr: redis:6379
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, int64(7), cfg.Workflow.DefaultApproverID)
	assert.Equal(t, 30*time.Second, cfg.Workflow.TemplateCacheTTL)
	assert.Equal(t, "redis", cfg.Lock.Backend)
	assert.Equal(t, "redis:6379", cfg.Lock.RedisAddr)
}

// TestLoad_EnvironmentVariables 测试环境变量覆盖
func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "9191")
	t.Setenv("APP_DATABASE_HOST", "db.example.com")
	t.Setenv("APP_WORKFLOW_DEFAULT_APPROVER_ID", "99")
	t.Setenv("APP_NOTIFICATION_WEBHOOK_URL", "https://hooks.example.com/approval")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, int64(99), cfg.Workflow.DefaultApproverID)
	assert.Equal(t, "https://hooks.example.com/approval", cfg.Notification.WebhookURL)
}

// TestLoad_InvalidValues 测试非法配置被拒绝
func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown driver", "database:\n  driver: mysql\n"},
		{"unknown auth mode", "auth:\n  mode: basic\n"},
		{"unknown lock backend", "lock:\n  backend: etcd\n"},
		{"non positive admin", "workflow:\n  default_approver_id: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.content), 0644))

			_, err := config.Load(configPath)
			assert.Error(t, err)
		})
	}
}

// TestIsProduction 测试生产环境判断
func TestIsProduction(t *testing.T) {
	assert.False(t, config.IsProduction(nil))
	assert.False(t, config.IsProduction(&config.Config{Env: "development"}))
	assert.True(t, config.IsProduction(&config.Config{Env: "production"}))
}

// TestConfigWatcher_ReloadsLogLevel 测试配置热加载只更新可变更的配置项
func TestConfigWatcher_ReloadsLogLevel(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 8080\nlog:\n  level: info\n"), 0644))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)

	watcher := config.NewConfigWatcher(cfg, configPath, nil)
	var mu sync.Mutex
	var reloaded *config.Config
	watcher.OnConfigChange(func(c *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		reloaded = c
	})
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 9999\nlog:\n  level: error\n"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloaded != nil && reloaded.Log.Level == "error"
	}, 3*time.Second, 50*time.Millisecond)

	// 端口不支持热更新
	assert.Equal(t, 8080, watcher.GetConfig().Server.Port)
}
