package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/mautops/approval-router/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Resolver 将审批人声明解析为具体用户
type Resolver struct {
	directory       Directory
	defaultApprover int64
	logger          logrus.FieldLogger
}

// NewResolver 创建审批人解析器
// defaultApprover 是部门无负责人或岗位无人时的兜底管理员
func NewResolver(directory Directory, defaultApprover int64, logger logrus.FieldLogger) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{
		directory:       directory,
		defaultApprover: defaultApprover,
		logger:          logger,
	}
}

// DefaultApprover 兜底管理员 ID
func (r *Resolver) DefaultApprover() int64 {
	return r.defaultApprover
}

// Resolve 解析审批人
// 目录中缺少对应数据时退回兜底管理员,不返回错误;只有目录查询本身失败才返回错误
func (r *Resolver) Resolve(ctx context.Context, role ApproverRole, initiatorID int64) (int64, error) {
	switch role := role.(type) {
	case FixedUser:
		return role.UserID, nil
	case DepartmentHeadOfInitiator:
		return r.resolveDepartmentHead(ctx, role, initiatorID)
	case Position:
		return r.resolvePosition(ctx, role, initiatorID)
	default:
		return 0, fmt.Errorf("%w: unsupported approver role %T", ErrValidation, role)
	}
}

func (r *Resolver) resolveDepartmentHead(ctx context.Context, role DepartmentHeadOfInitiator, initiatorID int64) (int64, error) {
	user, err := r.directory.GetUser(ctx, initiatorID)
	if errors.Is(err, ErrNotFound) {
		return r.fallback(role, initiatorID, "initiator not found"), nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load initiator %d: %w", initiatorID, err)
	}
	if user.DepartmentID == nil {
		return r.fallback(role, initiatorID, "initiator has no department"), nil
	}

	dept, err := r.directory.GetDepartment(ctx, *user.DepartmentID)
	if errors.Is(err, ErrNotFound) {
		return r.fallback(role, initiatorID, "department not found"), nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load department %d: %w", *user.DepartmentID, err)
	}
	if dept.LeaderID == nil || *dept.LeaderID <= 0 {
		return r.fallback(role, initiatorID, "department has no leader"), nil
	}
	return *dept.LeaderID, nil
}

func (r *Resolver) resolvePosition(ctx context.Context, role Position, initiatorID int64) (int64, error) {
	holder, err := r.directory.GetPrimaryPositionHolder(ctx, role.PositionID)
	if errors.Is(err, ErrNotFound) {
		return r.fallback(role, initiatorID, "position has no holder"), nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load holder of position %d: %w", role.PositionID, err)
	}
	return holder, nil
}

// fallback 退回兜底管理员并留下诊断
func (r *Resolver) fallback(role ApproverRole, initiatorID int64, reason string) int64 {
	r.logger.WithFields(logrus.Fields{
		"role":         role.Kind(),
		"initiator_id": initiatorID,
		"reason":       reason,
		"approver_id":  r.defaultApprover,
	}).Warn("approver resolution fell back to default administrator")
	metrics.RecordResolverFallback(role.Kind())
	return r.defaultApprover
}
