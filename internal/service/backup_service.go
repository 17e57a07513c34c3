package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/mautops/approval-router/internal/workflow"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

const (
	bundleVersion = 1
	backupPrefix  = "templates_"
	backupExt     = ".yaml"
)

// TemplateBundle 审批类型与工作流模板的备份内容
type TemplateBundle struct {
	Version       int                `yaml:"version"`
	ExportedAt    time.Time          `yaml:"exported_at"`
	ApprovalTypes []ApprovalTypeSpec `yaml:"approval_types"`
	Workflows     []WorkflowSpec     `yaml:"workflows"`
}

// ApprovalTypeSpec 备份中的审批类型
type ApprovalTypeSpec struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Icon        string `yaml:"icon,omitempty"`
	Color       string `yaml:"color,omitempty"`
	SortOrder   int    `yaml:"sort_order"`
	Status      int    `yaml:"status"`
}

// WorkflowSpec 备份中的工作流模板
type WorkflowSpec struct {
	Name        string      `yaml:"name"`
	TypeCode    string      `yaml:"type_code"`
	Description string      `yaml:"description,omitempty"`
	Status      int         `yaml:"status"`
	Stages      []StageSpec `yaml:"stages"`
}

// StageSpec 备份中的节点定义
type StageSpec struct {
	Order        int    `yaml:"order"`
	Name         string `yaml:"name"`
	ApproverType string `yaml:"approver_type"`
	ApproverRef  int64  `yaml:"approver_ref,omitempty"`
}

// BackupInfo 备份信息
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ImportResult 导入结果
type ImportResult struct {
	TypesCreated     int `json:"types_created"`
	TypesUpdated     int `json:"types_updated"`
	WorkflowsCreated int `json:"workflows_created"`
	WorkflowsUpdated int `json:"workflows_updated"`
}

// BackupService 模板备份服务
type BackupService struct {
	tx        repository.TransactionManager
	types     repository.ApprovalTypeRepository
	workflows repository.WorkflowRepository
	backupDir string
	logger    logrus.FieldLogger
}

// NewBackupService 创建备份服务
func NewBackupService(db *gorm.DB, backupDir string, logger logrus.FieldLogger) *BackupService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		logger.WithError(err).WithField("dir", backupDir).Warn("failed to create backup directory, using temp dir")
		backupDir = os.TempDir()
	}

	return &BackupService{
		tx:        repository.NewTransactionManager(db),
		types:     repository.NewApprovalTypeRepository(db),
		workflows: repository.NewWorkflowRepository(db),
		backupDir: backupDir,
		logger:    logger.WithField("component", "backup"),
	}
}

// BackupDir 获取备份目录
func (s *BackupService) BackupDir() string {
	return s.backupDir
}

// Export 导出全部审批类型与工作流模板
func (s *BackupService) Export(ctx context.Context) (*TemplateBundle, error) {
	types, err := s.types.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval types: %w", err)
	}
	workflows, err := s.workflows.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	bundle := &TemplateBundle{
		Version:       bundleVersion,
		ExportedAt:    time.Now().UTC(),
		ApprovalTypes: make([]ApprovalTypeSpec, 0, len(types)),
		Workflows:     make([]WorkflowSpec, 0, len(workflows)),
	}
	for _, t := range types {
		bundle.ApprovalTypes = append(bundle.ApprovalTypes, ApprovalTypeSpec{
			Code:        t.Code,
			Name:        t.Name,
			Description: t.Description,
			Icon:        t.Icon,
			Color:       t.Color,
			SortOrder:   t.SortOrder,
			Status:      t.Status,
		})
	}
	for _, summary := range workflows {
		wf, err := s.workflows.FindByID(ctx, summary.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %d: %w", summary.ID, err)
		}
		spec := WorkflowSpec{
			Name:        wf.Name,
			TypeCode:    wf.TypeCode,
			Description: wf.Description,
			Status:      wf.Status,
			Stages:      make([]StageSpec, 0, len(wf.Stages)),
		}
		for _, stage := range wf.Stages {
			spec.Stages = append(spec.Stages, StageSpec{
				Order:        stage.StageOrder,
				Name:         stage.Name,
				ApproverType: stage.ApproverType,
				ApproverRef:  stage.ApproverRef,
			})
		}
		bundle.Workflows = append(bundle.Workflows, spec)
	}
	return bundle, nil
}

// WriteBundle 以 YAML 输出备份内容
func WriteBundle(w io.Writer, bundle *TemplateBundle) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(bundle); err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	return enc.Close()
}

// ReadBundle 解析 YAML 备份内容
func ReadBundle(r io.Reader) (*TemplateBundle, error) {
	var bundle TemplateBundle
	if err := yaml.NewDecoder(r).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("%w: invalid bundle: %v", workflow.ErrValidation, err)
	}
	if bundle.Version != bundleVersion {
		return nil, fmt.Errorf("%w: unsupported bundle version %d", workflow.ErrValidation, bundle.Version)
	}
	return &bundle, nil
}

// CreateBackup 导出模板并写入备份目录
func (s *BackupService) CreateBackup(ctx context.Context) (*BackupInfo, error) {
	bundle, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}

	filename := backupPrefix + time.Now().Format("20060102_150405.000000000") + backupExt
	path := filepath.Join(s.backupDir, filename)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup file: %w", err)
	}
	if err := WriteBundle(file, bundle); err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close backup file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup file: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"file":      filename,
		"types":     len(bundle.ApprovalTypes),
		"workflows": len(bundle.Workflows),
	}).Info("template backup created")

	return &BackupInfo{
		Filename:  filename,
		Path:      path,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}, nil
}

// ListBackups 列出所有备份,最新的在前
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isBackupFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Filename:  entry.Name(),
			Path:      filepath.Join(s.backupDir, entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	// 文件名包含时间戳,按文件名倒序即按时间倒序
	sort.Slice(backups, func(i, j int) bool { return backups[i].Filename > backups[j].Filename })
	return backups, nil
}

// backupPath 校验文件名并返回备份目录内的路径
func (s *BackupService) backupPath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || !isBackupFile(filename) {
		return "", fmt.Errorf("%w: invalid backup filename %q", workflow.ErrValidation, filename)
	}
	path := filepath.Join(s.backupDir, filename)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("backup %s %w", filename, workflow.ErrNotFound)
		}
		return "", fmt.Errorf("failed to stat backup: %w", err)
	}
	return path, nil
}

// DeleteBackup 删除备份
func (s *BackupService) DeleteBackup(ctx context.Context, filename string) error {
	path, err := s.backupPath(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	return nil
}

// RestoreBackup 从备份文件导入模板
func (s *BackupService) RestoreBackup(ctx context.Context, userID int64, filename string) (*ImportResult, error) {
	path, err := s.backupPath(filename)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer file.Close()

	bundle, err := ReadBundle(file)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, userID, bundle)
}

// Import 导入模板: 审批类型按 code 合并,工作流模板按 (类型, 名称) 合并,节点定义整体替换
func (s *BackupService) Import(ctx context.Context, userID int64, bundle *TemplateBundle) (*ImportResult, error) {
	for i, spec := range bundle.Workflows {
		if err := ValidateStages(stageRequests(spec.Stages)); err != nil {
			return nil, fmt.Errorf("workflow %d (%s): %w", i, spec.Name, err)
		}
	}

	result := &ImportResult{}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := time.Now()
		for _, spec := range bundle.ApprovalTypes {
			created, err := s.importType(txCtx, spec, now)
			if err != nil {
				return err
			}
			if created {
				result.TypesCreated++
			} else {
				result.TypesUpdated++
			}
		}
		for _, spec := range bundle.Workflows {
			created, err := s.importWorkflow(txCtx, userID, spec, now)
			if err != nil {
				return err
			}
			if created {
				result.WorkflowsCreated++
			} else {
				result.WorkflowsUpdated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"types_created":     result.TypesCreated,
		"types_updated":     result.TypesUpdated,
		"workflows_created": result.WorkflowsCreated,
		"workflows_updated": result.WorkflowsUpdated,
	}).Info("template bundle imported")
	return result, nil
}

func (s *BackupService) importType(ctx context.Context, spec ApprovalTypeSpec, now time.Time) (bool, error) {
	t := &model.ApprovalTypeModel{
		Code:        strings.TrimSpace(spec.Code),
		Name:        spec.Name,
		Description: spec.Description,
		Icon:        spec.Icon,
		Color:       spec.Color,
		SortOrder:   spec.SortOrder,
		Status:      spec.Status,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return false, fmt.Errorf("%w: approval type %q: %v", workflow.ErrValidation, spec.Code, err)
	}

	existing, err := s.types.FindByCode(ctx, t.Code)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		t.CreatedAt = now
		if err := s.types.Create(ctx, t); err != nil {
			return false, fmt.Errorf("failed to create approval type %s: %w", t.Code, err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("failed to load approval type %s: %w", t.Code, err)
	}

	t.ID = existing.ID
	if err := s.types.Update(ctx, t); err != nil {
		return false, fmt.Errorf("failed to update approval type %s: %w", t.Code, err)
	}
	if existing.Status != t.Status {
		if err := s.types.UpdateStatus(ctx, t.ID, t.Status); err != nil {
			return false, fmt.Errorf("failed to update approval type %s status: %w", t.Code, err)
		}
	}
	return false, nil
}

func (s *BackupService) importWorkflow(ctx context.Context, userID int64, spec WorkflowSpec, now time.Time) (bool, error) {
	if _, err := s.types.FindByCode(ctx, spec.TypeCode); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: %s", workflow.ErrTypeNotFound, spec.TypeCode)
		}
		return false, fmt.Errorf("failed to load approval type: %w", err)
	}
	if spec.Status != model.StatusEnabled && spec.Status != model.StatusDisabled {
		return false, fmt.Errorf("%w: workflow %q has invalid status %d", workflow.ErrValidation, spec.Name, spec.Status)
	}

	stages := toStageModels(stageRequests(spec.Stages), now)

	typeCode := spec.TypeCode
	existing, err := s.workflows.List(ctx, &repository.WorkflowFilter{TypeCode: &typeCode})
	if err != nil {
		return false, fmt.Errorf("failed to list workflows: %w", err)
	}
	for _, wf := range existing {
		if wf.Name != spec.Name {
			continue
		}
		wf.Description = spec.Description
		wf.UpdatedAt = now
		if err := s.workflows.Update(ctx, wf); err != nil {
			return false, fmt.Errorf("failed to update workflow %s: %w", spec.Name, err)
		}
		if err := s.workflows.ReplaceStages(ctx, wf.ID, stages); err != nil {
			return false, fmt.Errorf("failed to replace stages of %s: %w", spec.Name, err)
		}
		if err := s.workflows.UpdateStatus(ctx, wf.ID, spec.Status); err != nil {
			return false, fmt.Errorf("failed to update workflow %s status: %w", spec.Name, err)
		}
		return false, nil
	}

	wf := &model.WorkflowTemplateModel{
		Name:        spec.Name,
		TypeCode:    spec.TypeCode,
		Description: spec.Description,
		Status:      spec.Status,
		CreatedBy:   userID,
		Stages:      stages,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := wf.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}
	if err := s.workflows.Create(ctx, wf); err != nil {
		return false, fmt.Errorf("failed to create workflow %s: %w", spec.Name, err)
	}
	return true, nil
}

func stageRequests(stages []StageSpec) []StageRequest {
	out := make([]StageRequest, 0, len(stages))
	for _, stage := range stages {
		out = append(out, StageRequest{
			Name:         stage.Name,
			StageOrder:   stage.Order,
			ApproverType: stage.ApproverType,
			ApproverRef:  stage.ApproverRef,
		})
	}
	return out
}

// CleanupOldBackups 只保留最新的 keep 个备份
func (s *BackupService) CleanupOldBackups(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, backup := range backups[min(keep, len(backups)):] {
		if err := os.Remove(backup.Path); err != nil {
			s.logger.WithError(err).WithField("file", backup.Filename).Warn("failed to delete old backup")
			continue
		}
		removed++
	}
	return removed, nil
}

// isBackupFile 检查是否是模板备份文件
func isBackupFile(filename string) bool {
	return strings.HasPrefix(filename, backupPrefix) && strings.HasSuffix(filename, backupExt)
}
