package auth

// GetPermissionModel 获取 OpenFGA 权限模型定义
// 流程模板和审批类型的管理需要 system:approval 的 admin 关系
func GetPermissionModel() string {
	return `model
  schema 1.1

type user

type system
  relations
    define admin: [user]`
}
