package service_test

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/service"
	"github.com/mautops/approval-router/internal/testutil"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAuditLogService_RecordAction 测试审计日志记录请求信息与详情
func TestAuditLogService_RecordAction(t *testing.T) {
	db := testutil.NewDB(t)
	svc := service.NewAuditLogService(repository.NewAuditLogRepository(db))

	ctx := service.WithRequestMeta(context.Background(), service.RequestMeta{
		RequestID: "req-1",
		IP:        "10.0.0.8",
		UserAgent: strings.Repeat("a", 600),
	})
	require.NoError(t, svc.RecordAction(ctx, 7, "approve", "case", "c-1", map[string]interface{}{"stage": 2}))
	require.NoError(t, svc.RecordAction(context.Background(), 7, "withdraw", "case", "c-1", nil))

	logs, err := svc.ListByResource(context.Background(), "case", "c-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)

	approve := logs[0]
	if approve.Action != "approve" {
		approve = logs[1]
	}
	assert.Equal(t, "req-1", approve.RequestID)
	assert.Equal(t, "10.0.0.8", approve.IP)
	assert.Len(t, approve.UserAgent, 500)

	var details map[string]int
	require.NoError(t, json.Unmarshal(approve.Details, &details))
	assert.Equal(t, 2, details["stage"])

	empty, err := svc.ListByResource(context.Background(), "case", "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestAuditLogService_Validation 测试缺少必填字段时拒绝写入
func TestAuditLogService_Validation(t *testing.T) {
	db := testutil.NewDB(t)
	svc := service.NewAuditLogService(repository.NewAuditLogRepository(db))

	assert.Error(t, svc.RecordAction(context.Background(), 0, "approve", "case", "c-1", nil))
	assert.Error(t, svc.RecordAction(context.Background(), 1, "", "case", "c-1", nil))
	assert.Error(t, svc.RecordAction(context.Background(), 1, "approve", "case", "", nil))

	meta := service.RequestMetaFromContext(context.Background())
	assert.Equal(t, service.RequestMeta{}, meta)
}

// TestAuditLogService_ListByUserAndStatistics 测试按操作人查询和按操作类型统计
func TestAuditLogService_ListByUserAndStatistics(t *testing.T) {
	db := testutil.NewDB(t)
	svc := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RecordAction(ctx, 7, "approve", "case", "c-"+strconv.Itoa(i), nil))
	}
	require.NoError(t, svc.RecordAction(ctx, 8, "withdraw", "case", "c-9", nil))

	logs, err := svc.ListByUser(ctx, 7, 2)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	// limit 非正数时使用默认数量
	logs, err = svc.ListByUser(ctx, 7, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	_, err = svc.ListByUser(ctx, 0, 10)
	assert.ErrorIs(t, err, workflow.ErrValidation)

	counts, err := svc.Statistics(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []repository.ActionCount{{Action: "approve", Count: 3}, {Action: "withdraw", Count: 1}}, counts)

	since := time.Now().Add(time.Hour)
	counts, err = svc.Statistics(ctx, &since)
	require.NoError(t, err)
	assert.Empty(t, counts)
}
