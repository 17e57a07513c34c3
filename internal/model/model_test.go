package model_test

import (
	"testing"

	"github.com/mautops/approval-router/internal/model"
	"github.com/stretchr/testify/assert"
)

// TestCaseStatus 测试审批单状态分类
func TestCaseStatus(t *testing.T) {
	tests := []struct {
		status   model.CaseStatus
		label    string
		active   bool
		terminal bool
	}{
		{model.CaseStatusDraft, "草稿", false, false},
		{model.CaseStatusPending, "待审批", true, false},
		{model.CaseStatusInProgress, "审批中", true, false},
		{model.CaseStatusApproved, "已通过", false, true},
		{model.CaseStatusRejected, "已拒绝", false, true},
		{model.CaseStatusWithdrawn, "已撤回", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.label, tt.status.Label())
			assert.Equal(t, tt.active, tt.status.Active())
			assert.Equal(t, tt.terminal, tt.status.Terminal())
			assert.True(t, tt.status.Valid())
		})
	}

	unknown := model.CaseStatus(42)
	assert.False(t, unknown.Valid())
	assert.Equal(t, "未知", unknown.Label())
}

// TestApprovalCaseModel_Validate 测试审批单模型验证
func TestApprovalCaseModel_Validate(t *testing.T) {
	valid := func() *model.ApprovalCaseModel {
		return &model.ApprovalCaseModel{
			ID:          "case-1",
			Title:       "请假",
			TypeCode:    "LEAVE",
			InitiatorID: 1,
			Status:      model.CaseStatusPending,
		}
	}
	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(m *model.ApprovalCaseModel)
	}{
		{"missing id", func(m *model.ApprovalCaseModel) { m.ID = "" }},
		{"missing title", func(m *model.ApprovalCaseModel) { m.Title = "" }},
		{"missing type", func(m *model.ApprovalCaseModel) { m.TypeCode = "" }},
		{"missing initiator", func(m *model.ApprovalCaseModel) { m.InitiatorID = 0 }},
		{"invalid status", func(m *model.ApprovalCaseModel) { m.Status = 99 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(m)
			assert.Error(t, m.Validate())
		})
	}
}

// TestNotificationModel_ValidateDefaults 测试通知默认类型与状态
func TestNotificationModel_ValidateDefaults(t *testing.T) {
	n := &model.NotificationModel{ID: "n-1", UserID: 3, Title: "hi"}
	assert.NoError(t, n.Validate())
	assert.Equal(t, model.NotificationTypeApproval, n.Type)
	assert.Equal(t, model.DeliveryPending, n.Status)

	assert.Error(t, (&model.NotificationModel{ID: "n-2", Title: "hi"}).Validate())
}

// TestOtherModels_Validate 测试其余模型验证
func TestOtherModels_Validate(t *testing.T) {
	assert.Error(t, (&model.ApprovalTypeModel{Code: "A", Name: "a", Status: 3}).Validate())
	assert.NoError(t, (&model.ApprovalTypeModel{Code: "A", Name: "a", Status: model.StatusEnabled}).Validate())
	assert.Error(t, (&model.WorkflowTemplateModel{Name: "wf"}).Validate())
	assert.Error(t, (&model.AttachmentModel{ID: "a", OriginalName: "x", FileSize: -1}).Validate())
	assert.Error(t, (&model.StateHistoryModel{ID: "h", CaseID: "c", ToStatus: model.CaseStatusApproved}).Validate())

	user := &model.UserModel{Username: "zhangsan"}
	assert.Equal(t, "zhangsan", user.DisplayName())
	user.Nickname = "张三"
	assert.Equal(t, "张三", user.DisplayName())
}
