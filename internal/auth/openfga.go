package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openfga/go-sdk/client"
	"github.com/openfga/go-sdk/credentials"
)

// 权限对象
const (
	ObjectTypeSystem = "system"
	SystemObjectID   = "approval"
	RelationAdmin    = "admin"
)

// PermissionChecker 权限检查
type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID int64, relation, objectType, objectID string) (bool, error)
}

// OpenFGAClient OpenFGA 客户端
type OpenFGAClient struct {
	client  *client.OpenFgaClient
	storeID string
	modelID string
}

// NewOpenFGAClient 创建 OpenFGA 客户端
func NewOpenFGAClient(apiURL string, storeID string, modelID string) (*OpenFGAClient, error) {
	configuration := client.ClientConfiguration{
		ApiUrl:               apiURL,
		StoreId:              storeID,
		AuthorizationModelId: modelID,
		Credentials: &credentials.Credentials{
			Method: credentials.CredentialsMethodNone,
		},
	}

	fgaClient, err := client.NewSdkClient(&configuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenFGA client: %w", err)
	}

	return &OpenFGAClient{
		client:  fgaClient,
		storeID: storeID,
		modelID: modelID,
	}, nil
}

func fgaUser(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// CheckPermission 检查权限
func (c *OpenFGAClient) CheckPermission(ctx context.Context, userID int64, relation, objectType, objectID string) (bool, error) {
	body := client.ClientCheckRequest{
		User:     fgaUser(userID),
		Relation: relation,
		Object:   fmt.Sprintf("%s:%s", objectType, objectID),
	}

	response, err := c.client.Check(ctx).Body(body).Execute()
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}

	return response.GetAllowed(), nil
}

// SetRelation 设置权限关系
func (c *OpenFGAClient) SetRelation(ctx context.Context, userID int64, relation, objectType, objectID string) error {
	body := client.ClientWriteRequest{
		Writes: []client.ClientTupleKey{
			{
				User:     fgaUser(userID),
				Relation: relation,
				Object:   fmt.Sprintf("%s:%s", objectType, objectID),
			},
		},
	}

	if _, err := c.client.Write(ctx).Body(body).Execute(); err != nil {
		return fmt.Errorf("failed to set relation: %w", err)
	}
	return nil
}

// NewOpenFGAClientWithRetry 带重试的 OpenFGA 客户端创建
func NewOpenFGAClientWithRetry(apiURL string, storeID string, modelID string, maxRetries int, retryInterval time.Duration) (*OpenFGAClient, error) {
	var err error

	for i := 0; i < maxRetries; i++ {
		var fgaClient *OpenFGAClient
		fgaClient, err = NewOpenFGAClient(apiURL, storeID, modelID)
		if err == nil {
			if fgaClient.CheckHealth(context.Background()) {
				return fgaClient, nil
			}
			err = fmt.Errorf("openfga at %s is not reachable", apiURL)
		}

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2
		}
	}

	return nil, fmt.Errorf("failed to create OpenFGA client after %d retries: %w", maxRetries, err)
}

// CheckHealth 检查 OpenFGA 连接健康状态
func (c *OpenFGAClient) CheckHealth(ctx context.Context) bool {
	if c == nil || c.client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.Read(ctx).Execute()
	return err == nil
}

// RoleChecker 未启用 OpenFGA 时按 realm 角色或固定管理员判断
type RoleChecker struct {
	AdminRole string
	AdminIDs  []int64
}

// CheckPermission 只支持系统管理员关系
func (r RoleChecker) CheckPermission(ctx context.Context, userID int64, relation, objectType, objectID string) (bool, error) {
	if relation != RelationAdmin || objectType != ObjectTypeSystem {
		return false, nil
	}
	for _, id := range r.AdminIDs {
		if id == userID {
			return true, nil
		}
	}
	if r.AdminRole != "" {
		for _, role := range RolesFromContext(ctx) {
			if role == r.AdminRole {
				return true, nil
			}
		}
	}
	return false, nil
}

type rolesKey struct{}

// WithRoles 将调用方角色写入 context
func WithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesKey{}, roles)
}

// RolesFromContext 读取调用方角色
func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesKey{}).([]string)
	return roles
}

// RequirePermission 权限检查中间件,需要在认证中间件之后使用
func RequirePermission(checker PermissionChecker, relation, objectType, objectID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64(ContextUserID)
		if userID <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "unauthorized",
			})
			c.Abort()
			return
		}

		allowed, err := checker.CheckPermission(c.Request.Context(), userID, relation, objectType, objectID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": "permission check failed",
				"detail":  err.Error(),
			})
			c.Abort()
			return
		}

		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{
				"code":    http.StatusForbidden,
				"message": "forbidden",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
