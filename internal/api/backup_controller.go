package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/approval-router/internal/service"
	"github.com/mautops/approval-router/internal/workflow"
)

// 导入文件大小上限
const maxBundleSize = 4 << 20

// BackupController 模板备份控制器
type BackupController struct {
	backupService *service.BackupService
}

// NewBackupController 创建备份控制器
func NewBackupController(backupService *service.BackupService) *BackupController {
	return &BackupController{
		backupService: backupService,
	}
}

// CreateBackup 创建备份
// @Summary      创建模板备份
// @Description  将审批类型和工作流模板导出为 YAML 文件保存到备份目录
// @Tags         系统管理
// @Produce      json
// @Success      201  {object}  Response{data=service.BackupInfo}
// @Failure      500  {object}  ErrorResponse
// @Router       /backups [post]
// @Security     BearerAuth
func (c *BackupController) CreateBackup(ctx *gin.Context) {
	info, err := c.backupService.CreateBackup(ctx.Request.Context())
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Created(ctx, info)
}

// ListBackups 列出所有备份
// @Summary      列出所有备份
// @Tags         系统管理
// @Produce      json
// @Success      200  {object}  Response{data=[]service.BackupInfo}
// @Failure      500  {object}  ErrorResponse
// @Router       /backups [get]
// @Security     BearerAuth
func (c *BackupController) ListBackups(ctx *gin.Context) {
	backups, err := c.backupService.ListBackups(ctx.Request.Context())
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, backups)
}

// RestoreBackup 恢复备份
// @Summary      从备份恢复模板
// @Description  审批类型按编码合并,工作流模板按类型和名称合并
// @Tags         系统管理
// @Produce      json
// @Param        filename path string true "备份文件名"
// @Success      200  {object}  Response{data=service.ImportResult}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /backups/{filename}/restore [post]
// @Security     BearerAuth
func (c *BackupController) RestoreBackup(ctx *gin.Context) {
	result, err := c.backupService.RestoreBackup(ctx.Request.Context(), currentUser(ctx), ctx.Param("filename"))
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, result)
}

// DeleteBackup 删除备份
// @Summary      删除备份
// @Tags         系统管理
// @Produce      json
// @Param        filename path string true "备份文件名"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /backups/{filename} [delete]
// @Security     BearerAuth
func (c *BackupController) DeleteBackup(ctx *gin.Context) {
	if err := c.backupService.DeleteBackup(ctx.Request.Context(), ctx.Param("filename")); err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// Export 下载当前模板
// @Summary      导出模板
// @Tags         系统管理
// @Produce      application/x-yaml
// @Success      200  {file}  file
// @Router       /templates/export [get]
// @Security     BearerAuth
func (c *BackupController) Export(ctx *gin.Context) {
	bundle, err := c.backupService.Export(ctx.Request.Context())
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	filename := fmt.Sprintf("templates_%s.yaml", time.Now().Format("20060102_150405"))
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	ctx.Header("Content-Type", "application/x-yaml")
	ctx.Status(http.StatusOK)
	if err := service.WriteBundle(ctx.Writer, bundle); err != nil {
		_ = ctx.Error(err)
	}
}

// Import 导入模板
// @Summary      导入模板
// @Description  请求体为 YAML 格式的模板备份
// @Tags         系统管理
// @Accept       application/x-yaml
// @Produce      json
// @Success      200  {object}  Response{data=service.ImportResult}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /templates/import [post]
// @Security     BearerAuth
func (c *BackupController) Import(ctx *gin.Context) {
	body := http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxBundleSize)
	bundle, err := service.ReadBundle(body)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}
	if len(bundle.ApprovalTypes) == 0 && len(bundle.Workflows) == 0 {
		respondEngineError(ctx, fmt.Errorf("%w: empty bundle", workflow.ErrValidation))
		return
	}

	result, err := c.backupService.Import(ctx.Request.Context(), currentUser(ctx), bundle)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	Success(ctx, result)
}
