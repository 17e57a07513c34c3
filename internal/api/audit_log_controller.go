package api

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mautops/approval-router/internal/service"
	"github.com/mautops/approval-router/internal/workflow"
)

// AuditLogController 操作日志控制器
type AuditLogController struct {
	auditService service.AuditLogService
}

// NewAuditLogController 创建操作日志控制器
func NewAuditLogController(auditService service.AuditLogService) *AuditLogController {
	return &AuditLogController{auditService: auditService}
}

// List 查询操作日志
// @Summary      查询操作日志
// @Description  按操作人或按资源查询,二者必须指定其一
// @Tags         操作日志
// @Produce      json
// @Param        user_id       query int    false "操作人 ID"
// @Param        resource_type query string false "资源类型 case/workflow/approval_type"
// @Param        resource_id   query string false "资源 ID"
// @Param        limit         query int    false "按操作人查询时的数量" default(50)
// @Success      200  {object}  Response{data=[]model.AuditLogModel}
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /audit-logs [get]
// @Security     BearerAuth
func (c *AuditLogController) List(ctx *gin.Context) {
	if resourceType := ctx.Query("resource_type"); resourceType != "" {
		resourceID := ctx.Query("resource_id")
		if resourceID == "" {
			respondEngineError(ctx, fmt.Errorf("%w: resource_id is required with resource_type", workflow.ErrValidation))
			return
		}
		logs, err := c.auditService.ListByResource(ctx.Request.Context(), resourceType, resourceID)
		if err != nil {
			respondEngineError(ctx, err)
			return
		}
		Success(ctx, logs)
		return
	}

	userID, err := strconv.ParseInt(ctx.Query("user_id"), 10, 64)
	if err != nil {
		respondEngineError(ctx, fmt.Errorf("%w: user_id or resource_type is required", workflow.ErrValidation))
		return
	}
	limit, ok := optionalIntQuery(ctx, "limit")
	if !ok {
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}

	logs, err := c.auditService.ListByUser(ctx.Request.Context(), userID, n)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}
	Success(ctx, logs)
}

// CaseLogs 审批单的操作日志
// @Summary      审批单操作日志
// @Tags         操作日志
// @Produce      json
// @Param        id   path      string  true  "审批单 ID"
// @Success      200  {object}  Response{data=[]model.AuditLogModel}
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /cases/{id}/audit [get]
// @Security     BearerAuth
func (c *AuditLogController) CaseLogs(ctx *gin.Context) {
	id, ok := caseID(ctx)
	if !ok {
		return
	}

	logs, err := c.auditService.ListByResource(ctx.Request.Context(), "case", id)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}
	Success(ctx, logs)
}

// Statistics 按操作类型统计
// @Summary      操作日志统计
// @Tags         操作日志
// @Produce      json
// @Param        start_time query string false "起始时间 (RFC3339)"
// @Success      200  {object}  Response{data=[]repository.ActionCount}
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /audit-logs/statistics [get]
// @Security     BearerAuth
func (c *AuditLogController) Statistics(ctx *gin.Context) {
	since, err := parseTime("start_time", ctx.Query("start_time"))
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	counts, err := c.auditService.Statistics(ctx.Request.Context(), since)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}
	Success(ctx, counts)
}
