package api

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mautops/approval-router/internal/workflow"
)

// StatusRequest 启用或停用请求
// @Description 1 启用 0 停用
type StatusRequest struct {
	Status *int `json:"status" example:"1" binding:"required,oneof=0 1"`
}

// uintParam 读取路径中的数字 ID
func uintParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondEngineError(ctx, fmt.Errorf("%w: invalid %s", workflow.ErrValidation, name))
		return 0, false
	}
	return uint(id), true
}

// optionalIntQuery 读取可选的整数查询参数
func optionalIntQuery(ctx *gin.Context, name string) (*int, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondEngineError(ctx, fmt.Errorf("%w: %s must be an integer", workflow.ErrValidation, name))
		return nil, false
	}
	return &n, true
}
