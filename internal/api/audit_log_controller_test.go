package api_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAuditLogAPI 测试按审批单、操作人查询操作日志及统计
func TestAuditLogAPI(t *testing.T) {
	s := newServer(t)
	view := s.createCase(t, "年假三天")
	decode(t, s.do(t, http.MethodPost, "/api/v1/cases/"+view.ID+"/approve", leaderID, nil), http.StatusOK, nil)

	// 操作日志只对管理员开放
	decode(t, s.do(t, http.MethodGet, "/api/v1/cases/"+view.ID+"/audit", initiatorID, nil), http.StatusForbidden, nil)
	decode(t, s.do(t, http.MethodGet, "/api/v1/audit-logs?user_id=2", leaderID, nil), http.StatusForbidden, nil)

	var logs []model.AuditLogModel
	decode(t, s.do(t, http.MethodGet, "/api/v1/cases/"+view.ID+"/audit", adminID, nil), http.StatusOK, &logs)
	require.Len(t, logs, 2)
	actions := []string{logs[0].Action, logs[1].Action}
	assert.ElementsMatch(t, []string{"create", "approve"}, actions)

	decode(t, s.do(t, http.MethodGet, "/api/v1/audit-logs?user_id=2", adminID, nil), http.StatusOK, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "approve", logs[0].Action)
	assert.Equal(t, view.ID, logs[0].ResourceID)
	assert.Equal(t, leaderID, logs[0].UserID)

	decode(t, s.do(t, http.MethodGet, "/api/v1/audit-logs?resource_type=case&resource_id="+view.ID, adminID, nil), http.StatusOK, &logs)
	assert.Len(t, logs, 2)

	var counts []repository.ActionCount
	decode(t, s.do(t, http.MethodGet, "/api/v1/audit-logs/statistics", adminID, nil), http.StatusOK, &counts)
	assert.Equal(t, []repository.ActionCount{{Action: "approve", Count: 1}, {Action: "create", Count: 1}}, counts)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	counts = nil
	decode(t, s.do(t, http.MethodGet, "/api/v1/audit-logs/statistics?start_time="+future, adminID, nil), http.StatusOK, &counts)
	assert.Empty(t, counts)
}

// TestAuditLogAPI_Errors 测试操作日志查询参数校验
func TestAuditLogAPI_Errors(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"no filter", "/api/v1/audit-logs"},
		{"resource id missing", "/api/v1/audit-logs?resource_type=case"},
		{"bad user id", "/api/v1/audit-logs?user_id=abc"},
		{"zero user id", "/api/v1/audit-logs?user_id=0"},
		{"bad limit", "/api/v1/audit-logs?user_id=2&limit=x"},
		{"bad start time", "/api/v1/audit-logs/statistics?start_time=yesterday"},
		{"bad case id", "/api/v1/cases/not-a-uuid/audit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decode(t, s.do(t, http.MethodGet, tt.path, adminID, nil), http.StatusBadRequest, nil)
		})
	}
}
