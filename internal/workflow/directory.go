package workflow

import "context"

// User 目录中的用户
type User struct {
	ID           int64
	Nickname     string
	DepartmentID *int64
}

// Department 目录中的部门
type Department struct {
	ID       int64
	Name     string
	LeaderID *int64
}

// Directory 用户、部门、岗位的只读查询
// 记录不存在时返回 ErrNotFound
type Directory interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	GetDepartment(ctx context.Context, id int64) (*Department, error)
	GetPrimaryPositionHolder(ctx context.Context, positionID int64) (int64, error)
}
