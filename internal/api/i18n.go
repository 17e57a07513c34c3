package api

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// I18nManager 国际化管理器
type I18nManager struct {
	mu       sync.RWMutex
	messages map[string]map[string]string // lang -> key -> message
}

var defaultI18nManager *I18nManager

func init() {
	defaultI18nManager = NewI18nManager()
	defaultI18nManager.LoadMessages("en", map[string]string{
		"error.not_found":       "Resource not found",
		"error.unauthorized":    "Unauthorized",
		"error.forbidden":       "Forbidden",
		"error.bad_request":     "Bad request",
		"error.invalid_state":   "Operation not allowed in current state",
		"error.internal_error":  "Internal server error",
		"error.route_not_found": "Route not found",
		"error.rate_limited":    "Too many requests",
		"success.created":       "Created successfully",
		"success.updated":       "Updated successfully",
		"success.deleted":       "Deleted successfully",
	})
	defaultI18nManager.LoadMessages("zh", map[string]string{
		"error.not_found":       "资源未找到",
		"error.unauthorized":    "未授权",
		"error.forbidden":       "禁止访问",
		"error.bad_request":     "请求错误",
		"error.invalid_state":   "当前状态不允许该操作",
		"error.internal_error":  "服务器内部错误",
		"error.route_not_found": "路由不存在",
		"error.rate_limited":    "请求过于频繁",
		"success.created":       "创建成功",
		"success.updated":       "更新成功",
		"success.deleted":       "删除成功",
	})
}

// NewI18nManager 创建国际化管理器
func NewI18nManager() *I18nManager {
	return &I18nManager{
		messages: make(map[string]map[string]string),
	}
}

// LoadMessages 加载语言消息
func (m *I18nManager) LoadMessages(lang string, messages map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[lang] = messages
}

// Translate 翻译消息,找不到时回退到英文,再找不到返回 key
func (m *I18nManager) Translate(lang, key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if message, ok := m.messages[lang][key]; ok {
		return message
	}
	if message, ok := m.messages["en"][key]; ok {
		return message
	}
	return key
}

// I18nMiddleware 国际化中间件
// 语言优先取 lang 查询参数,其次取 Accept-Language
func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := "en"
		if queryLang := c.Query("lang"); queryLang != "" {
			lang = normalizeLanguage(queryLang)
		} else if headerLang := c.GetHeader("Accept-Language"); headerLang != "" {
			lang = parseAcceptLanguage(headerLang)
		}

		c.Set("language", lang)
		c.Next()
	}
}

// GetLanguage 从上下文获取语言
func GetLanguage(c *gin.Context) string {
	if lang := c.GetString("language"); lang != "" {
		return lang
	}
	return "en"
}

// T 翻译消息
func T(c *gin.Context, key string) string {
	return defaultI18nManager.Translate(GetLanguage(c), key)
}

// normalizeLanguage 规范化语言代码,zh-CN/zh-TW 等统一为 zh
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	switch {
	case strings.HasPrefix(lang, "zh"):
		return "zh"
	case strings.HasPrefix(lang, "en"):
		return "en"
	}
	return lang
}

// parseAcceptLanguage 解析 Accept-Language: zh-CN,zh;q=0.9,en;q=0.8,只取第一个
func parseAcceptLanguage(header string) string {
	lang, _, _ := strings.Cut(header, ",")
	lang, _, _ = strings.Cut(lang, ";")
	if lang = strings.TrimSpace(lang); lang == "" {
		return "en"
	}
	return normalizeLanguage(lang)
}
