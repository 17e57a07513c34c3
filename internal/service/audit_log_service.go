package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/workflow"
	"gorm.io/datatypes"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	workflow.AuditRecorder
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]*model.AuditLogModel, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.AuditLogModel, error)
	Statistics(ctx context.Context, since *time.Time) ([]repository.ActionCount, error)
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type requestMetaKey struct{}

// RequestMeta 审计需要的请求信息
type RequestMeta struct {
	RequestID string
	IP        string
	UserAgent string
}

// WithRequestMeta 将请求信息写入 context
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext 读取请求信息,没有时返回零值
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{auditRepo: auditRepo}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	userID int64,
	action string,
	resourceType string,
	resourceID string,
	details map[string]interface{},
) error {
	var detailsJSON datatypes.JSON
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
		detailsJSON = raw
	}

	meta := RequestMetaFromContext(ctx)
	auditLog := &model.AuditLogModel{
		ID:           uuid.NewString(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    meta.RequestID,
		IP:           meta.IP,
		UserAgent:    truncate(meta.UserAgent, 500),
		Details:      detailsJSON,
		CreatedAt:    time.Now(),
	}
	if err := auditLog.Validate(); err != nil {
		return err
	}

	return s.auditRepo.Save(ctx, auditLog)
}

// ListByResource 查询资源的审计日志
func (s *auditLogService) ListByResource(ctx context.Context, resourceType, resourceID string) ([]*model.AuditLogModel, error) {
	logs, err := s.auditRepo.FindByResource(ctx, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

// ListByUser 查询用户最近的操作记录
func (s *auditLogService) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.AuditLogModel, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user_id must be positive", workflow.ErrValidation)
	}
	switch {
	case limit <= 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}
	logs, err := s.auditRepo.FindByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

// Statistics 按操作类型统计审计日志
func (s *auditLogService) Statistics(ctx context.Context, since *time.Time) ([]repository.ActionCount, error) {
	counts, err := s.auditRepo.CountByAction(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit logs: %w", err)
	}
	return counts, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
