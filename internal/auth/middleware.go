package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRoles    = "roles"
)

// ErrMissingCredentials 请求中没有携带凭证
var ErrMissingCredentials = errors.New("missing credentials")

// Identity 已认证的调用方
type Identity struct {
	UserID   int64
	Username string
	Name     string
	Roles    []string
}

// Authenticator 从请求中解析调用方身份
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// HeaderAuthenticator 信任 X-User-ID 请求头,仅用于本地开发和测试
type HeaderAuthenticator struct{}

// Authenticate 读取 X-User-ID 请求头,WebSocket/SSE 请求可以使用 user_id 查询参数
func (HeaderAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		raw = r.URL.Query().Get("user_id")
	}
	if raw == "" {
		return nil, ErrMissingCredentials
	}
	userID, err := ParseUserID(raw)
	if err != nil {
		return nil, err
	}
	var roles []string
	if h := r.Header.Get("X-User-Roles"); h != "" {
		for _, role := range strings.Split(h, ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
	}
	return &Identity{UserID: userID, Roles: roles}, nil
}

// bearerToken 从 Authorization 头读取 token,浏览器 WebSocket/EventSource 无法设置请求头时使用 token 查询参数
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// Middleware 认证中间件,认证成功后将用户信息写入 gin 上下文
func Middleware(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authenticator.Authenticate(c.Request)
		if err != nil {
			message := "invalid credentials"
			if errors.Is(err, ErrMissingCredentials) {
				message = "missing authorization"
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": message,
				"detail":  err.Error(),
			})
			c.Abort()
			return
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextUsername, identity.Username)
		c.Set(ContextRoles, identity.Roles)
		ctx := WithUserID(c.Request.Context(), identity.UserID)
		c.Request = c.Request.WithContext(WithRoles(ctx, identity.Roles))

		c.Next()
	}
}

type userIDKey struct{}

// WithUserID 将用户 ID 写入 context
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext 从 context 读取用户 ID
func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey{}).(int64)
	return userID, ok && userID > 0
}
