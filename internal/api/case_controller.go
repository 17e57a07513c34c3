package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/approval-router/internal/auth"
	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/service"
	"github.com/mautops/approval-router/internal/utils"
	"github.com/mautops/approval-router/internal/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CaseController 审批单控制器
type CaseController struct {
	caseService  service.CaseService
	queryService service.QueryService
}

// NewCaseController 创建审批单控制器
func NewCaseController(caseService service.CaseService, queryService service.QueryService) *CaseController {
	return &CaseController{
		caseService:  caseService,
		queryService: queryService,
	}
}

// caseID 读取并校验路径中的审批单 ID
func caseID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	if err := utils.ValidateCaseID(id); err != nil {
		badRequest(ctx, err)
		return "", false
	}
	return id, true
}

// currentUser 当前登录用户
func currentUser(ctx *gin.Context) int64 {
	return ctx.GetInt64(auth.ContextUserID)
}

// parseStatus 解析可选的 status 查询参数
func parseStatus(ctx *gin.Context) (*model.CaseStatus, error) {
	raw := ctx.Query("status")
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: status must be an integer", workflow.ErrValidation)
	}
	status := model.CaseStatus(n)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %d", workflow.ErrValidation, n)
	}
	return &status, nil
}

// Create 发起审批
// @Summary      发起审批
// @Description  按审批类型匹配启用的工作流模板,生成审批节点并通知第一个审批人
// @Tags         审批单
// @Accept       json
// @Produce      json
// @Param        request body service.CreateCaseRequest true "审批单信息"
// @Success      201  {object}  Response{data=workflow.CaseView}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /cases [post]
// @Security     BearerAuth
func (c *CaseController) Create(ctx *gin.Context) {
	var req service.CreateCaseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	view, err := c.caseService.Create(ctx.Request.Context(), currentUser(ctx), &req)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Created(ctx, view)
}

// Get 获取审批单详情
// @Summary      获取审批单详情
// @Tags         审批单
// @Produce      json
// @Param        id path string true "审批单 ID"
// @Success      200  {object}  Response{data=workflow.CaseView}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /cases/{id} [get]
// @Security     BearerAuth
func (c *CaseController) Get(ctx *gin.Context) {
	id, ok := caseID(ctx)
	if !ok {
		return
	}

	view, err := c.caseService.Get(ctx.Request.Context(), id)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, view)
}

// Approve 审批同意
// @Summary      审批同意
// @Description  当前节点审批人同意,最后一个节点同意后审批单通过
// @Tags         审批单
// @Accept       json
// @Produce      json
// @Param        id path string true "审批单 ID"
// @Param        request body service.DecisionRequest false "审批意见"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /cases/{id}/approve [post]
// @Security     BearerAuth
func (c *CaseController) Approve(ctx *gin.Context) {
	c.decide(ctx, c.caseService.Approve)
}

// Reject 审批驳回
// @Summary      审批驳回
// @Description  当前节点审批人驳回,审批单立即结束
// @Tags         审批单
// @Accept       json
// @Produce      json
// @Param        id path string true "审批单 ID"
// @Param        request body service.DecisionRequest false "审批意见"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /cases/{id}/reject [post]
// @Security     BearerAuth
func (c *CaseController) Reject(ctx *gin.Context) {
	c.decide(ctx, c.caseService.Reject)
}

// decide 同意和驳回共用的处理流程
func (c *CaseController) decide(ctx *gin.Context, fn func(context.Context, string, int64, *service.DecisionRequest) error) {
	id, ok := caseID(ctx)
	if !ok {
		return
	}

	// 审批意见可以不填,请求体为空时不做绑定
	var req service.DecisionRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
	}

	if err := fn(ctx.Request.Context(), id, currentUser(ctx), &req); err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// Withdraw 撤回审批
// @Summary      撤回审批
// @Description  发起人撤回进行中的审批单
// @Tags         审批单
// @Produce      json
// @Param        id path string true "审批单 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /cases/{id}/withdraw [post]
// @Security     BearerAuth
func (c *CaseController) Withdraw(ctx *gin.Context) {
	id, ok := caseID(ctx)
	if !ok {
		return
	}

	if err := c.caseService.Withdraw(ctx.Request.Context(), id, currentUser(ctx)); err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// History 状态变更历史
// @Summary      状态变更历史
// @Tags         审批单
// @Produce      json
// @Param        id path string true "审批单 ID"
// @Success      200  {object}  Response{data=[]workflow.HistoryView}
// @Failure      404  {object}  ErrorResponse
// @Router       /cases/{id}/history [get]
// @Security     BearerAuth
func (c *CaseController) History(ctx *gin.Context) {
	id, ok := caseID(ctx)
	if !ok {
		return
	}

	history, err := c.caseService.History(ctx.Request.Context(), id)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, history)
}

// ListMine 我发起的审批
// @Summary      我发起的审批
// @Tags         审批单
// @Produce      json
// @Param        status query int false "审批单状态"
// @Success      200  {object}  Response{data=[]workflow.CaseView}
// @Router       /cases/mine [get]
// @Security     BearerAuth
func (c *CaseController) ListMine(ctx *gin.Context) {
	status, err := parseStatus(ctx)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	cases, err := c.caseService.ListMine(ctx.Request.Context(), currentUser(ctx), status)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, cases)
}

// ListTodo 我的待办
// @Summary      我的待办
// @Description  当前节点审批人是自己的进行中审批单,紧急程度高的在前
// @Tags         审批单
// @Produce      json
// @Success      200  {object}  Response{data=[]workflow.CaseView}
// @Router       /cases/todo [get]
// @Security     BearerAuth
func (c *CaseController) ListTodo(ctx *gin.Context) {
	cases, err := c.caseService.ListTodo(ctx.Request.Context(), currentUser(ctx))
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, cases)
}

// caseSearchQuery 审批单查询参数
type caseSearchQuery struct {
	TypeCode    string `form:"type_code"`
	InitiatorID int64  `form:"initiator_id" binding:"min=0"`
	StartTime   string `form:"start_time"`
	EndTime     string `form:"end_time"`
	Keyword     string `form:"keyword" binding:"max=100"`
	Page        int    `form:"page" binding:"min=0"`
	PageSize    int    `form:"page_size" binding:"min=0"`
	SortBy      string `form:"sort_by"`
	Order       string `form:"order"`
}

// parseTime 解析 RFC3339 时间,空串返回 nil
func parseTime(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", workflow.ErrValidation, name)
	}
	return &t, nil
}

// Search 审批单查询
// @Summary      审批单查询
// @Description  分页查询审批单,支持多条件过滤和排序
// @Tags         审批单
// @Produce      json
// @Param        type_code query string false "审批类型编码"
// @Param        status query int false "审批单状态"
// @Param        initiator_id query int false "发起人"
// @Param        start_time query string false "创建时间起始 (RFC3339)"
// @Param        end_time query string false "创建时间结束 (RFC3339)"
// @Param        keyword query string false "标题关键字"
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页数量" default(20)
// @Param        sort_by query string false "排序字段" default(created_at)
// @Param        order query string false "排序方向" Enums(asc, desc) default(desc)
// @Success      200  {object}  PaginatedResponse{data=[]workflow.CaseView}
// @Failure      400  {object}  ErrorResponse
// @Router       /cases [get]
// @Security     BearerAuth
func (c *CaseController) Search(ctx *gin.Context) {
	var query caseSearchQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		badRequest(ctx, err)
		return
	}

	status, err := parseStatus(ctx)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}
	start, err := parseTime("start_time", query.StartTime)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}
	end, err := parseTime("end_time", query.EndTime)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	filter := &service.CaseSearchFilter{
		Status:    status,
		StartTime: start,
		EndTime:   end,
		Keyword:   query.Keyword,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		Order:     query.Order,
	}
	if query.TypeCode != "" {
		filter.TypeCode = &query.TypeCode
	}
	if query.InitiatorID > 0 {
		filter.InitiatorID = &query.InitiatorID
	}

	result, err := c.queryService.Search(ctx.Request.Context(), filter)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Paginated(ctx, result.Items, PaginationInfo{
		Page:      result.Pagination.Page,
		PageSize:  result.Pagination.PageSize,
		Total:     result.Pagination.Total,
		TotalPage: result.Pagination.TotalPage,
	})
}

// Export 导出我发起的审批
// @Summary      导出我发起的审批
// @Tags         审批单
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        status query int false "审批单状态"
// @Success      200  {file}  file
// @Router       /cases/export [get]
// @Security     BearerAuth
func (c *CaseController) Export(ctx *gin.Context) {
	status, err := parseStatus(ctx)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	var buf bytes.Buffer
	if err := c.queryService.ExportInitiated(ctx.Request.Context(), currentUser(ctx), status, &buf); err != nil {
		respondEngineError(ctx, err)
		return
	}

	filename := fmt.Sprintf("cases_%s.xlsx", time.Now().Format("20060102_150405"))
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	ctx.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// RegisterAttachment 登记附件
// @Summary      登记附件
// @Description  登记已上传到存储服务的附件,发起审批时通过 attachment_ids 引用
// @Tags         审批单
// @Accept       json
// @Produce      json
// @Param        request body service.RegisterAttachmentRequest true "附件信息"
// @Success      201  {object}  Response{data=workflow.AttachmentView}
// @Failure      400  {object}  ErrorResponse
// @Router       /attachments [post]
// @Security     BearerAuth
func (c *CaseController) RegisterAttachment(ctx *gin.Context) {
	var req service.RegisterAttachmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	view, err := c.caseService.RegisterAttachment(ctx.Request.Context(), currentUser(ctx), &req)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Created(ctx, view)
}
