package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/approval-router/internal/service"
)

// ApprovalTypeController 审批类型控制器
type ApprovalTypeController struct {
	typeService service.ApprovalTypeService
}

// NewApprovalTypeController 创建审批类型控制器
func NewApprovalTypeController(typeService service.ApprovalTypeService) *ApprovalTypeController {
	return &ApprovalTypeController{typeService: typeService}
}

// Create 创建审批类型
// @Summary      创建审批类型
// @Tags         审批类型
// @Accept       json
// @Produce      json
// @Param        request body service.ApprovalTypeRequest true "审批类型"
// @Success      201  {object}  Response{data=model.ApprovalTypeModel}
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /approval-types [post]
// @Security     BearerAuth
func (c *ApprovalTypeController) Create(ctx *gin.Context) {
	var req service.ApprovalTypeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	t, err := c.typeService.Create(ctx.Request.Context(), currentUser(ctx), &req)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Created(ctx, t)
}

// Get 获取审批类型
// @Summary      获取审批类型
// @Tags         审批类型
// @Produce      json
// @Param        id path int true "审批类型 ID"
// @Success      200  {object}  Response{data=model.ApprovalTypeModel}
// @Failure      404  {object}  ErrorResponse
// @Router       /approval-types/{id} [get]
// @Security     BearerAuth
func (c *ApprovalTypeController) Get(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	t, err := c.typeService.Get(ctx.Request.Context(), id)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, t)
}

// List 审批类型列表,按排序号升序
// @Summary      审批类型列表
// @Tags         审批类型
// @Produce      json
// @Param        status query int false "状态"
// @Success      200  {object}  Response{data=[]model.ApprovalTypeModel}
// @Router       /approval-types [get]
// @Security     BearerAuth
func (c *ApprovalTypeController) List(ctx *gin.Context) {
	status, ok := optionalIntQuery(ctx, "status")
	if !ok {
		return
	}

	types, err := c.typeService.List(ctx.Request.Context(), status)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, types)
}

// Update 更新审批类型
// @Summary      更新审批类型
// @Description  编码不可修改
// @Tags         审批类型
// @Accept       json
// @Produce      json
// @Param        id path int true "审批类型 ID"
// @Param        request body service.ApprovalTypeRequest true "审批类型"
// @Success      200  {object}  Response{data=model.ApprovalTypeModel}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /approval-types/{id} [put]
// @Security     BearerAuth
func (c *ApprovalTypeController) Update(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	var req service.ApprovalTypeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	t, err := c.typeService.Update(ctx.Request.Context(), currentUser(ctx), id, &req)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, t)
}

// UpdateStatus 启用或停用审批类型
// @Summary      启用或停用审批类型
// @Tags         审批类型
// @Accept       json
// @Produce      json
// @Param        id path int true "审批类型 ID"
// @Param        request body StatusRequest true "状态"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /approval-types/{id}/status [put]
// @Security     BearerAuth
func (c *ApprovalTypeController) UpdateStatus(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	var req StatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	if err := c.typeService.UpdateStatus(ctx.Request.Context(), currentUser(ctx), id, *req.Status); err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// Delete 删除审批类型,仍被工作流模板引用时拒绝
// @Summary      删除审批类型
// @Tags         审批类型
// @Produce      json
// @Param        id path int true "审批类型 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /approval-types/{id} [delete]
// @Security     BearerAuth
func (c *ApprovalTypeController) Delete(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}

	if err := c.typeService.Delete(ctx.Request.Context(), currentUser(ctx), id); err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, nil)
}
