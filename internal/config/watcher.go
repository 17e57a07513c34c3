package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ConfigWatcher 配置热加载
// 只有日志级别和限流参数支持运行时变更,其余配置需要重启进程
type ConfigWatcher struct {
	config    *Config
	viper     *viper.Viper
	logger    logrus.FieldLogger
	callbacks []func(*Config)
	mu        sync.RWMutex
	stopped   bool
	stopMu    sync.RWMutex
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(cfg *Config, configPath string, logger logrus.FieldLogger) *ConfigWatcher {
	v := viper.New()
	v.SetConfigFile(configPath)
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &ConfigWatcher{
		config:    cfg,
		viper:     v,
		logger:    logger,
		callbacks: make([]func(*Config), 0),
	}
}

// OnConfigChange 注册配置变更回调
func (w *ConfigWatcher) OnConfigChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 启动配置监听
func (w *ConfigWatcher) Start() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	w.viper.WatchConfig()
	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.stopMu.RLock()
		stopped := w.stopped
		w.stopMu.RUnlock()
		if stopped {
			return
		}

		w.mu.RLock()
		merged := *w.config
		w.mu.RUnlock()

		var reloaded Config
		if err := w.viper.Unmarshal(&reloaded); err != nil {
			w.logger.WithError(err).WithField("file", e.Name).Warn("failed to reload config")
			return
		}
		merged.Log.Level = reloaded.Log.Level
		merged.RateLimit = reloaded.RateLimit

		w.mu.Lock()
		w.config = &merged
		callbacks := make([]func(*Config), len(w.callbacks))
		copy(callbacks, w.callbacks)
		w.mu.Unlock()

		w.logger.WithField("file", e.Name).Info("config reloaded")

		// 在锁外执行回调,避免回调中读取配置时死锁
		for _, callback := range callbacks {
			callback(&merged)
		}
	})

	return nil
}

// Stop 停止配置监听
func (w *ConfigWatcher) Stop() {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	w.stopped = true
}

// GetConfig 获取当前配置
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}
