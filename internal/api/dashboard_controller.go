package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mautops/approval-router/internal/service"
)

const defaultActivityLimit = 10

// DashboardController 首页统计控制器
type DashboardController struct {
	statisticsService service.StatisticsService
}

// NewDashboardController 创建首页统计控制器
func NewDashboardController(statisticsService service.StatisticsService) *DashboardController {
	return &DashboardController{statisticsService: statisticsService}
}

// Statistics 当前用户的审批统计
// @Summary      审批统计
// @Tags         首页
// @Produce      json
// @Success      200  {object}  Response{data=service.DashboardStatistics}
// @Router       /dashboard/statistics [get]
// @Security     BearerAuth
func (c *DashboardController) Statistics(ctx *gin.Context) {
	stats, err := c.statisticsService.GetDashboard(ctx.Request.Context(), currentUser(ctx))
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, stats)
}

// Activities 最近动态
// @Summary      最近动态
// @Tags         首页
// @Produce      json
// @Param        limit query int false "数量,1 到 100" default(10)
// @Success      200  {object}  Response{data=[]service.RecentActivity}
// @Router       /dashboard/activities [get]
// @Security     BearerAuth
func (c *DashboardController) Activities(ctx *gin.Context) {
	limit := defaultActivityLimit
	if raw := ctx.Query("limit"); raw != "" {
		// 非法值按默认数量处理,越界由服务层收敛
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	activities, err := c.statisticsService.GetRecentActivities(ctx.Request.Context(), currentUser(ctx), limit)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, activities)
}

// Overview 全局审批概况
// @Summary      全局审批概况
// @Description  按状态和审批类型统计,以及平均完成时长
// @Tags         首页
// @Produce      json
// @Success      200  {object}  Response{data=service.Overview}
// @Failure      403  {object}  ErrorResponse
// @Router       /dashboard/overview [get]
// @Security     BearerAuth
func (c *DashboardController) Overview(ctx *gin.Context) {
	overview, err := c.statisticsService.GetOverview(ctx.Request.Context())
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, overview)
}
