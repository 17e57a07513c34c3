package api_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/service"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// TestCaseAPI_Lifecycle 测试发起、逐级审批直至通过
func TestCaseAPI_Lifecycle(t *testing.T) {
	s := newServer(t)

	view := s.createCase(t, "年假三天")
	assert.Equal(t, model.CaseStatusPending, view.Status)
	require.Len(t, view.Stages, 2)
	assert.Equal(t, leaderID, view.Stages[0].ApproverID)

	var todo []workflow.CaseView
	decode(t, s.do(t, http.MethodGet, "/api/v1/cases/todo", leaderID, nil), http.StatusOK, &todo)
	require.Len(t, todo, 1)
	assert.Equal(t, view.ID, todo[0].ID)

	decode(t, s.do(t, http.MethodPost, "/api/v1/cases/"+view.ID+"/approve", leaderID,
		service.DecisionRequest{Comment: "同意"}), http.StatusOK, nil)
	// 审批意见可以不填
	decode(t, s.do(t, http.MethodPost, "/api/v1/cases/"+view.ID+"/approve", financeID, nil), http.StatusOK, nil)

	var final workflow.CaseView
	decode(t, s.do(t, http.MethodGet, "/api/v1/cases/"+view.ID, initiatorID, nil), http.StatusOK, &final)
	assert.Equal(t, model.CaseStatusApproved, final.Status)
	assert.Nil(t, final.CurrentStageOrder)
	assert.Equal(t, "同意", final.Stages[0].Comment)

	var history []workflow.HistoryView
	decode(t, s.do(t, http.MethodGet, "/api/v1/cases/"+view.ID+"/history", initiatorID, nil), http.StatusOK, &history)
	assert.Len(t, history, 3)

	var mine []workflow.CaseView
	decode(t, s.do(t, http.MethodGet, "/api/v1/cases/mine?status=3", initiatorID, nil), http.StatusOK, &mine)
	assert.Len(t, mine, 1)
}

// TestCaseAPI_RejectAndWithdraw 测试驳回与撤回
func TestCaseAPI_RejectAndWithdraw(t *testing.T) {
	s := newServer(t)

	rejected := s.createCase(t, "报销")
	decode(t, s.do(t, http.MethodPost, "/api/v1/cases/"+rejected.ID+"/reject", leaderID,
		service.DecisionRequest{Comment: "金额不符"}), http.StatusOK, nil)

	withdrawn := s.createCase(t, "调休")
	// 只有发起人可以撤回
	decode(t, s.do(t, http.MethodPost, "/api/v1/cases/"+withdrawn.ID+"/withdraw", leaderID, nil), http.StatusForbidden, nil)
	decode(t, s.do(t, http.MethodPost, "/api/v1/cases/"+withdrawn.ID+"/withdraw", initiatorID, nil), http.StatusOK, nil)

	var view workflow.CaseView
	decode(t, s.do(t, http.MethodGet, "/api/v1/cases/"+withdrawn.ID, initiatorID, nil), http.StatusOK, &view)
	assert.Equal(t, model.CaseStatusWithdrawn, view.Status)

	// 已结束的审批单不能再处理
	decode(t, s.do(t, http.MethodPost, "/api/v1/cases/"+rejected.ID+"/approve", leaderID, nil), http.StatusConflict, nil)
	decode(t, s.do(t, http.MethodPost, "/api/v1/cases/"+withdrawn.ID+"/withdraw", initiatorID, nil), http.StatusConflict, nil)
}

// TestCaseAPI_Errors 测试领域错误到 HTTP 状态码的映射
func TestCaseAPI_Errors(t *testing.T) {
	s := newServer(t)
	view := s.createCase(t, "出差")

	tests := []struct {
		name   string
		method string
		path   string
		user   int64
		body   interface{}
		status int
	}{
		{"missing credentials", http.MethodGet, "/api/v1/cases/mine", 0, nil, http.StatusUnauthorized},
		{"invalid id", http.MethodGet, "/api/v1/cases/abc", initiatorID, nil, http.StatusBadRequest},
		{"unknown case", http.MethodGet, "/api/v1/cases/" + uuid.NewString(), initiatorID, nil, http.StatusNotFound},
		{"unknown type", http.MethodPost, "/api/v1/cases", initiatorID, service.CreateCaseRequest{Title: "x", TypeCode: "NOPE"}, http.StatusNotFound},
		{"missing title", http.MethodPost, "/api/v1/cases", initiatorID, service.CreateCaseRequest{TypeCode: "LEAVE"}, http.StatusBadRequest},
		{"bad priority", http.MethodPost, "/api/v1/cases", initiatorID, service.CreateCaseRequest{Title: "x", TypeCode: "LEAVE", Priority: 5}, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/v1/cases", initiatorID, []byte("{"), http.StatusBadRequest},
		{"not the approver", http.MethodPost, "/api/v1/cases/" + view.ID + "/approve", financeID, nil, http.StatusForbidden},
		{"bad status filter", http.MethodGet, "/api/v1/cases/mine?status=9", initiatorID, nil, http.StatusBadRequest},
		{"non-numeric status", http.MethodGet, "/api/v1/cases/mine?status=x", initiatorID, nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.user, tt.body)
			env := decode(t, w, tt.status, nil)
			assert.Equal(t, tt.status, env.Code)
		})
	}
}

// TestCaseAPI_Search 测试管理员分页查询
func TestCaseAPI_Search(t *testing.T) {
	s := newServer(t)
	for _, title := range []string{"出差北京", "出差上海", "年假"} {
		s.createCase(t, title)
	}

	// 普通用户无权查询全部审批单
	decode(t, s.do(t, http.MethodGet, "/api/v1/cases", initiatorID, nil), http.StatusForbidden, nil)

	var items []workflow.CaseView
	env := decode(t, s.do(t, http.MethodGet, "/api/v1/cases?keyword=出差&page=1&page_size=1", adminID, nil), http.StatusOK, &items)
	assert.Len(t, items, 1)
	assert.Equal(t, int64(2), env.Pagination.Total)
	assert.Equal(t, 2, env.Pagination.TotalPage)

	decode(t, s.do(t, http.MethodGet, "/api/v1/cases?type_code=LEAVE&initiator_id=3&order=asc", adminID, nil), http.StatusOK, &items)
	require.Len(t, items, 3)
	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.Title)
	}
	assert.ElementsMatch(t, []string{"出差北京", "出差上海", "年假"}, titles)

	decode(t, s.do(t, http.MethodGet, "/api/v1/cases?start_time=yesterday", adminID, nil), http.StatusBadRequest, nil)
	decode(t, s.do(t, http.MethodGet, "/api/v1/cases?sort_by=password", adminID, nil), http.StatusBadRequest, nil)
	decode(t, s.do(t, http.MethodGet, "/api/v1/cases?page=-1", adminID, nil), http.StatusBadRequest, nil)
}

// TestCaseAPI_Export 测试导出 Excel
func TestCaseAPI_Export(t *testing.T) {
	s := newServer(t)
	s.createCase(t, "年假")
	s.createCase(t, "病假")

	w := s.do(t, http.MethodGet, "/api/v1/cases/export", initiatorID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("审批单")
	require.NoError(t, err)
	// 表头加两条数据
	assert.Len(t, rows, 3)
}

// TestCaseAPI_Attachments 测试登记附件并在发起时引用
func TestCaseAPI_Attachments(t *testing.T) {
	s := newServer(t)

	var attachment workflow.AttachmentView
	decode(t, s.do(t, http.MethodPost, "/api/v1/attachments", initiatorID, service.RegisterAttachmentRequest{
		OriginalName: "发票.pdf",
		FileSize:     2048,
		MimeType:     "application/pdf",
	}), http.StatusCreated, &attachment)
	assert.NotEmpty(t, attachment.ID)

	var view workflow.CaseView
	decode(t, s.do(t, http.MethodPost, "/api/v1/cases", initiatorID, service.CreateCaseRequest{
		Title:         "差旅报销",
		TypeCode:      "LEAVE",
		AttachmentIDs: []string{attachment.ID},
	}), http.StatusCreated, &view)
	require.Len(t, view.Attachments, 1)
	assert.Equal(t, "发票.pdf", view.Attachments[0].OriginalName)

	decode(t, s.do(t, http.MethodPost, "/api/v1/attachments", initiatorID, service.RegisterAttachmentRequest{}), http.StatusBadRequest, nil)
}

// TestDashboardAPI 测试首页统计
func TestDashboardAPI(t *testing.T) {
	s := newServer(t)
	view := s.createCase(t, "年假")
	s.createCase(t, "病假")
	decode(t, s.do(t, http.MethodPost, "/api/v1/cases/"+view.ID+"/reject", leaderID, nil), http.StatusOK, nil)

	var stats service.DashboardStatistics
	decode(t, s.do(t, http.MethodGet, "/api/v1/dashboard/statistics", initiatorID, nil), http.StatusOK, &stats)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.RejectedThisMonth)
	assert.Equal(t, int64(2), stats.TotalThisMonth)

	decode(t, s.do(t, http.MethodGet, "/api/v1/dashboard/statistics", leaderID, nil), http.StatusOK, &stats)
	assert.Equal(t, int64(1), stats.TodoCount)

	var activities []service.RecentActivity
	decode(t, s.do(t, http.MethodGet, "/api/v1/dashboard/activities?limit=1", initiatorID, nil), http.StatusOK, &activities)
	assert.Len(t, activities, 1)

	decode(t, s.do(t, http.MethodGet, "/api/v1/dashboard/overview", initiatorID, nil), http.StatusForbidden, nil)
	var overview service.Overview
	decode(t, s.do(t, http.MethodGet, "/api/v1/dashboard/overview", adminID, nil), http.StatusOK, &overview)
	assert.NotEmpty(t, overview.ByStatus)
}
