package workflow

import (
	"fmt"

	"github.com/mautops/approval-router/internal/model"
)

// ApproverRole 节点审批人声明,只有本包内的类型可以实现
type ApproverRole interface {
	// Kind 持久化时的类型标识
	Kind() string
	approverRole()
}

// FixedUser 指定用户审批
type FixedUser struct {
	UserID int64
}

// Position 由岗位持有人审批,多人持有时优先主岗
type Position struct {
	PositionID int64
}

// DepartmentHeadOfInitiator 由发起人所在部门负责人审批
type DepartmentHeadOfInitiator struct{}

func (FixedUser) Kind() string                 { return model.ApproverTypeUser }
func (Position) Kind() string                  { return model.ApproverTypePosition }
func (DepartmentHeadOfInitiator) Kind() string { return model.ApproverTypeDepartmentHead }

func (FixedUser) approverRole()                 {}
func (Position) approverRole()                  {}
func (DepartmentHeadOfInitiator) approverRole() {}

// EncodeRole 将审批人声明转换为 (类型, 引用 ID) 两列
func EncodeRole(role ApproverRole) (string, int64) {
	switch r := role.(type) {
	case FixedUser:
		return r.Kind(), r.UserID
	case Position:
		return r.Kind(), r.PositionID
	case DepartmentHeadOfInitiator:
		return r.Kind(), 0
	default:
		return "", 0
	}
}

// DecodeRole 从持久化的 (类型, 引用 ID) 还原审批人声明
func DecodeRole(kind string, ref int64) (ApproverRole, error) {
	var role ApproverRole
	switch kind {
	case model.ApproverTypeUser:
		role = FixedUser{UserID: ref}
	case model.ApproverTypePosition:
		role = Position{PositionID: ref}
	case model.ApproverTypeDepartmentHead:
		role = DepartmentHeadOfInitiator{}
	default:
		return nil, fmt.Errorf("%w: unknown approver type %q", ErrValidation, kind)
	}
	if err := ValidateRole(role); err != nil {
		return nil, err
	}
	return role, nil
}

// ValidateRole 检查审批人声明的引用是否完整
func ValidateRole(role ApproverRole) error {
	switch r := role.(type) {
	case FixedUser:
		if r.UserID <= 0 {
			return fmt.Errorf("%w: approver user id must be positive", ErrValidation)
		}
	case Position:
		if r.PositionID <= 0 {
			return fmt.Errorf("%w: position id must be positive", ErrValidation)
		}
	case DepartmentHeadOfInitiator:
	default:
		return fmt.Errorf("%w: unsupported approver role %T", ErrValidation, role)
	}
	return nil
}

// StageRole 读取节点定义上的审批人声明
func StageRole(def *model.StageDefinitionModel) (ApproverRole, error) {
	return DecodeRole(def.ApproverType, def.ApproverRef)
}
