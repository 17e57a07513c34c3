package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthChecker 外部依赖健康检查
type HealthChecker interface {
	CheckHealth(ctx context.Context) bool
}

// HealthController 健康检查控制器
type HealthController struct {
	db       *gorm.DB
	checkers map[string]HealthChecker
}

// NewHealthController 创建健康检查控制器
// checkers 中值为 nil 的依赖视为未配置
func NewHealthController(db *gorm.DB, checkers map[string]HealthChecker) *HealthController {
	return &HealthController{
		db:       db,
		checkers: checkers,
	}
}

// Check 健康检查
// @Summary      健康检查
// @Tags         系统管理
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (c *HealthController) Check(ctx *gin.Context) {
	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	checks := make(map[string]string, len(c.checkers)+1)

	if c.db != nil {
		if err := c.checkDatabase(reqCtx); err != nil {
			status = "unhealthy"
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	for name, checker := range c.checkers {
		switch {
		case checker == nil:
			checks[name] = "not configured"
		case checker.CheckHealth(reqCtx):
			checks[name] = "healthy"
		default:
			status = "unhealthy"
			checks[name] = "unhealthy"
		}
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// checkDatabase 检查数据库连接
func (c *HealthController) checkDatabase(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
