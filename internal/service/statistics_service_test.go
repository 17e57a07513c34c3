package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStatisticsService 测试仪表盘、最近动态与全局统计
func TestStatisticsService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ids := createCases(t, e, 3)
	require.NoError(t, e.cases.Reject(ctx, ids[0], leaderID, nil))
	require.NoError(t, e.cases.Approve(ctx, ids[1], leaderID, nil))
	require.NoError(t, e.cases.Approve(ctx, ids[1], financeID, nil))

	svc := service.NewStatisticsService(e.db)

	dashboard, err := svc.GetDashboard(ctx, initiatorID)
	require.NoError(t, err)
	assert.Equal(t, &service.DashboardStatistics{
		Pending:           1,
		ApprovedThisMonth: 1,
		RejectedThisMonth: 1,
		TotalThisMonth:    3,
		TodoCount:         0,
	}, dashboard)

	leader, err := svc.GetDashboard(ctx, leaderID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), leader.TodoCount)
	assert.Equal(t, int64(0), leader.TotalThisMonth)

	activities, err := svc.GetRecentActivities(ctx, initiatorID, 10)
	require.NoError(t, err)
	require.Len(t, activities, 3)
	kinds := map[string]string{}
	for _, a := range activities {
		kinds[a.CaseID] = a.ActivityType
		assert.Equal(t, "请假", a.TypeName)
		assert.Equal(t, "刚刚", a.RelativeTime)
	}
	assert.Equal(t, "rejected", kinds[ids[0]])
	assert.Equal(t, "approved", kinds[ids[1]])
	assert.Equal(t, "created", kinds[ids[2]])

	limited, err := svc.GetRecentActivities(ctx, initiatorID, 0)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	overview, err := svc.GetOverview(ctx)
	require.NoError(t, err)
	byStatus := map[model.CaseStatus]int64{}
	for _, row := range overview.ByStatus {
		byStatus[row.Status] = row.Count
		assert.Equal(t, row.Status.Label(), row.Label)
	}
	assert.Equal(t, map[model.CaseStatus]int64{
		model.CaseStatusPending:  1,
		model.CaseStatusApproved: 1,
		model.CaseStatusRejected: 1,
	}, byStatus)
	require.Len(t, overview.ByType, 1)
	assert.Equal(t, service.TypeCount{TypeCode: "LEAVE", Count: 3}, overview.ByType[0])
	assert.GreaterOrEqual(t, overview.AverageCompletionHours, 0.0)
}

// TestStatisticsService_AverageCompletion 测试平均完成时长只统计已结束的审批单
func TestStatisticsService_AverageCompletion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ids := createCases(t, e, 3)
	require.NoError(t, e.cases.Reject(ctx, ids[0], leaderID, nil))
	require.NoError(t, e.cases.Approve(ctx, ids[1], leaderID, nil))
	require.NoError(t, e.cases.Approve(ctx, ids[1], financeID, nil))

	finished := time.Now().Add(-time.Hour).Truncate(time.Second)
	for id, took := range map[string]time.Duration{ids[0]: 2 * time.Hour, ids[1]: 4 * time.Hour} {
		require.NoError(t, e.db.Model(&model.ApprovalCaseModel{}).Where("id = ?", id).Updates(map[string]interface{}{
			"created_at":   finished.Add(-took),
			"completed_at": finished,
		}).Error)
	}

	overview, err := service.NewStatisticsService(e.db).GetOverview(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, overview.AverageCompletionHours, 0.001)
}

// TestStatisticsService_EmptyOverview 测试没有数据时的全局统计
func TestStatisticsService_EmptyOverview(t *testing.T) {
	e := newEnv(t)
	overview, err := service.NewStatisticsService(e.db).GetOverview(context.Background())
	require.NoError(t, err)
	assert.Empty(t, overview.ByStatus)
	assert.NotNil(t, overview.ByType)
	assert.Zero(t, overview.AverageCompletionHours)
}

// TestRelativeTime 测试相对时间描述
func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "刚刚"},
		{5 * time.Minute, "5分钟前"},
		{3 * time.Hour, "3小时前"},
		{49 * time.Hour, "2天前"},
		{65 * 24 * time.Hour, "2个月前"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, service.RelativeTime(now.Add(-tt.ago), now))
		})
	}
}
