package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/service"
)

// WorkflowController 工作流模板控制器
type WorkflowController struct {
	workflowService service.WorkflowService
}

// NewWorkflowController 创建工作流模板控制器
func NewWorkflowController(workflowService service.WorkflowService) *WorkflowController {
	return &WorkflowController{workflowService: workflowService}
}

// Create 创建工作流模板
// @Summary      创建工作流模板
// @Tags         工作流模板
// @Accept       json
// @Produce      json
// @Param        request body service.WorkflowRequest true "模板信息"
// @Success      201  {object}  Response{data=service.WorkflowDetail}
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows [post]
// @Security     BearerAuth
func (c *WorkflowController) Create(ctx *gin.Context) {
	var req service.WorkflowRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	detail, err := c.workflowService.Create(ctx.Request.Context(), currentUser(ctx), &req)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Created(ctx, detail)
}

// Get 获取工作流模板
// @Summary      获取工作流模板
// @Tags         工作流模板
// @Produce      json
// @Param        id path int true "模板 ID"
// @Success      200  {object}  Response{data=service.WorkflowDetail}
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id} [get]
// @Security     BearerAuth
func (c *WorkflowController) Get(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	detail, err := c.workflowService.Get(ctx.Request.Context(), id)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, detail)
}

// List 工作流模板列表
// @Summary      工作流模板列表
// @Tags         工作流模板
// @Produce      json
// @Param        type_code query string false "审批类型编码"
// @Param        status query int false "状态"
// @Success      200  {object}  Response{data=[]service.WorkflowSummary}
// @Router       /workflows [get]
// @Security     BearerAuth
func (c *WorkflowController) List(ctx *gin.Context) {
	status, ok := optionalIntQuery(ctx, "status")
	if !ok {
		return
	}

	filter := &repository.WorkflowFilter{Status: status}
	if typeCode := ctx.Query("type_code"); typeCode != "" {
		filter.TypeCode = &typeCode
	}

	workflows, err := c.workflowService.List(ctx.Request.Context(), filter)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, workflows)
}

// Update 更新工作流模板
// @Summary      更新工作流模板
// @Description  节点定义整体替换,已发起的审批单不受影响
// @Tags         工作流模板
// @Accept       json
// @Produce      json
// @Param        id path int true "模板 ID"
// @Param        request body service.WorkflowRequest true "模板信息"
// @Success      200  {object}  Response{data=service.WorkflowDetail}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id} [put]
// @Security     BearerAuth
func (c *WorkflowController) Update(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	var req service.WorkflowRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	detail, err := c.workflowService.Update(ctx.Request.Context(), currentUser(ctx), id, &req)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, detail)
}

// UpdateStatus 启用或停用工作流模板
// @Summary      启用或停用工作流模板
// @Tags         工作流模板
// @Accept       json
// @Produce      json
// @Param        id path int true "模板 ID"
// @Param        request body StatusRequest true "状态"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id}/status [put]
// @Security     BearerAuth
func (c *WorkflowController) UpdateStatus(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	var req StatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	if err := c.workflowService.UpdateStatus(ctx.Request.Context(), currentUser(ctx), id, *req.Status); err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// Delete 删除工作流模板
// @Summary      删除工作流模板
// @Tags         工作流模板
// @Produce      json
// @Param        id path int true "模板 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /workflows/{id} [delete]
// @Security     BearerAuth
func (c *WorkflowController) Delete(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	if err := c.workflowService.Delete(ctx.Request.Context(), currentUser(ctx), id); err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, nil)
}
