package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mautops/approval-router/internal/model"
	"github.com/mautops/approval-router/internal/repository"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const maxTitleLength = 200

// 审计动作
const (
	ActionCreate   = "create"
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionWithdraw = "withdraw"
)

// CreateRequest 创建审批单参数
type CreateRequest struct {
	Title         string
	TypeCode      string
	Content       string
	Priority      int
	Deadline      *time.Time
	AttachmentIDs []string
}

// Validate 校验创建参数
func (r *CreateRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.TypeCode = strings.TrimSpace(r.TypeCode)
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(r.Title) > maxTitleLength {
		return fmt.Errorf("%w: title must not exceed %d characters", ErrValidation, maxTitleLength)
	}
	if r.TypeCode == "" {
		return fmt.Errorf("%w: type code is required", ErrValidation)
	}
	if r.Priority < model.PriorityNormal || r.Priority > model.PriorityVeryUrgent {
		return fmt.Errorf("%w: priority must be between %d and %d", ErrValidation, model.PriorityNormal, model.PriorityVeryUrgent)
	}
	return nil
}

// Engine 审批单流转状态机
type Engine struct {
	tx          repository.TransactionManager
	cases       repository.CaseRepository
	stages      repository.StageRepository
	attachments repository.AttachmentRepository
	workflows   repository.WorkflowRepository
	types       repository.ApprovalTypeRepository
	history     repository.StateHistoryRepository
	resolver    *Resolver
	directory   Directory
	locker      CaseLocker
	notifier    Notifier
	audit       AuditRecorder
	logger      logrus.FieldLogger
	tracer      trace.Tracer
}

// NewEngine 创建流转引擎
// notifier、audit、locker、logger 为空时分别使用日志通知、空审计、进程内锁和标准日志
func NewEngine(
	db *gorm.DB,
	resolver *Resolver,
	directory Directory,
	locker CaseLocker,
	notifier Notifier,
	audit AuditRecorder,
	logger logrus.FieldLogger,
) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &Engine{
		tx:          repository.NewTransactionManager(db),
		cases:       repository.NewCaseRepository(db),
		stages:      repository.NewStageRepository(db),
		attachments: repository.NewAttachmentRepository(db),
		workflows:   repository.NewWorkflowRepository(db),
		types:       repository.NewApprovalTypeRepository(db),
		history:     repository.NewStateHistoryRepository(db),
		resolver:    resolver,
		directory:   directory,
		locker:      locker,
		notifier:    notifier,
		audit:       audit,
		logger:      logger.WithField("component", "workflow"),
		tracer:      otel.Tracer("github.com/mautops/approval-router/internal/workflow"),
	}
}

// Create 创建审批单
// 每个节点的审批人在创建时一次性解析并固化到节点实例上
func (e *Engine) Create(ctx context.Context, req CreateRequest, initiatorID int64) (view *CaseView, err error) {
	ctx, span := e.tracer.Start(ctx, "workflow.Create", trace.WithAttributes(
		attribute.String("approval.type_code", req.TypeCode),
		attribute.Int64("approval.initiator_id", initiatorID),
	))
	defer func() { endSpan(span, err) }()

	if initiatorID <= 0 {
		return nil, fmt.Errorf("%w: initiator is required", ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// 1. 审批类型必须存在且启用
	typ, err := e.types.FindByCode(ctx, req.TypeCode)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !typ.Enabled()) {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotFound, req.TypeCode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load approval type: %w", err)
	}

	// 2. 查找类型绑定的启用模板
	wf, err := e.workflows.FindEnabledByTypeCode(ctx, req.TypeCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: type %s", ErrWorkflowNotFound, req.TypeCode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow template: %w", err)
	}
	if len(wf.Stages) == 0 {
		return nil, fmt.Errorf("%w: workflow %d", ErrWorkflowEmpty, wf.ID)
	}

	// 3. 物化节点实例
	caseID := uuid.NewString()
	now := time.Now()
	stages, err := e.materialize(ctx, wf, caseID, initiatorID, now)
	if err != nil {
		return nil, err
	}

	c := &model.ApprovalCaseModel{
		ID:                caseID,
		Title:             req.Title,
		TypeCode:          req.TypeCode,
		Content:           req.Content,
		InitiatorID:       initiatorID,
		Priority:          req.Priority,
		Deadline:          req.Deadline,
		Status:            model.CaseStatusPending,
		CurrentStageOrder: stages[0].StageOrder,
		WorkflowID:        wf.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	attachmentIDs := uniqueIDs(req.AttachmentIDs)

	// 4. 审批单、节点实例、附件关联在同一事务中写入
	err = e.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := e.cases.Create(txCtx, c); err != nil {
			return fmt.Errorf("failed to save case: %w", err)
		}
		if err := e.stages.CreateBatch(txCtx, stages); err != nil {
			return fmt.Errorf("failed to save stages: %w", err)
		}
		linked, err := e.attachments.LinkToCase(txCtx, caseID, attachmentIDs)
		if err != nil {
			return fmt.Errorf("failed to link attachments: %w", err)
		}
		if linked != int64(len(attachmentIDs)) {
			return fmt.Errorf("%w: attachment not found or already linked", ErrValidation)
		}
		return e.recordTransition(txCtx, c, model.CaseStatusDraft, initiatorID, ActionCreate)
	})
	if err != nil {
		return nil, err
	}

	// 5. 通知第一个节点的审批人
	nickname := e.displayName(ctx, initiatorID)
	e.notify(ctx, Notification{
		RecipientID: stages[0].ApproverID,
		Title:       "您有一条新的审批待处理",
		Body:        fmt.Sprintf("%s 提交了%s，等待您审批", nickname, typ.Name),
		CaseID:      caseID,
	})
	e.recordAudit(ctx, initiatorID, ActionCreate, caseID, map[string]interface{}{
		"title":       c.Title,
		"type_code":   c.TypeCode,
		"workflow_id": wf.ID,
		"stages":      len(stages),
	})

	e.logger.WithFields(logrus.Fields{
		"case_id":      caseID,
		"type_code":    c.TypeCode,
		"initiator_id": initiatorID,
	}).Info("approval case created")

	return e.GetCase(ctx, caseID)
}

// materialize 按模板节点定义生成节点实例,解析结果此后不再变化
func (e *Engine) materialize(ctx context.Context, wf *model.WorkflowTemplateModel, caseID string, initiatorID int64, now time.Time) ([]*model.StageInstanceModel, error) {
	stages := make([]*model.StageInstanceModel, 0, len(wf.Stages))
	for i := range wf.Stages {
		def := &wf.Stages[i]
		role, err := StageRole(def)
		if err != nil {
			return nil, fmt.Errorf("workflow %d stage %d: %w", wf.ID, def.StageOrder, err)
		}
		approverID, err := e.resolver.Resolve(ctx, role, initiatorID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve approver for stage %d: %w", def.StageOrder, err)
		}
		stages = append(stages, &model.StageInstanceModel{
			CaseID:     caseID,
			Name:       def.Name,
			ApproverID: approverID,
			StageOrder: def.StageOrder,
			Status:     model.StageStatusPending,
			CreatedAt:  now,
		})
	}
	return stages, nil
}

// decision 事务提交后需要发送的通知
type decision struct {
	notifications []Notification
	details       map[string]interface{}
}

// Decide 审批当前节点
// 同一审批单的并发调用按审批单串行执行,后到的调用会看到已处理的节点并返回 ErrInvalidState
func (e *Engine) Decide(ctx context.Context, caseID string, actorID int64, approved bool, comment string) (err error) {
	action := ActionReject
	if approved {
		action = ActionApprove
	}
	ctx, span := e.tracer.Start(ctx, "workflow.Decide", trace.WithAttributes(
		attribute.String("approval.case_id", caseID),
		attribute.Int64("approval.actor_id", actorID),
		attribute.String("approval.action", action),
	))
	defer func() { endSpan(span, err) }()

	// 目录查询放在事务外,事务内只使用事务连接
	actorName := e.displayName(ctx, actorID)

	unlock, err := e.locker.Lock(ctx, caseID)
	if err != nil {
		return fmt.Errorf("failed to lock case %s: %w", caseID, err)
	}
	defer unlock()

	var result decision
	err = e.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// 1. 加锁读取审批单
		c, err := e.loadForUpdate(txCtx, caseID)
		if err != nil {
			return err
		}

		// 2. 只有流转中的审批单可以审批
		if !c.Status.Active() {
			return fmt.Errorf("%w: case %s is %s", ErrInvalidState, caseID, c.Status.Label())
		}

		// 3. 当前节点
		stage, err := e.stages.FindByCaseAndOrder(txCtx, caseID, c.CurrentStageOrder)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: case %s has no stage %d", ErrInvalidState, caseID, c.CurrentStageOrder)
		}
		if err != nil {
			return fmt.Errorf("failed to load current stage: %w", err)
		}

		// 4. 只认节点上固化的审批人
		if stage.ApproverID != actorID {
			return fmt.Errorf("%w: user %d is not the approver of stage %d", ErrForbidden, actorID, stage.StageOrder)
		}

		// 5. 记录节点结果,已处理的节点不会被再次更新
		now := time.Now()
		stageStatus := model.StageStatusRejected
		if approved {
			stageStatus = model.StageStatusApproved
		}
		updated, err := e.stages.Decide(txCtx, stage.ID, stageStatus, comment, now)
		if err != nil {
			return fmt.Errorf("failed to update stage: %w", err)
		}
		if !updated {
			return fmt.Errorf("%w: stage %d already decided", ErrInvalidState, stage.StageOrder)
		}

		from := c.Status
		c.UpdatedAt = now
		result.details = map[string]interface{}{
			"stage_order": stage.StageOrder,
			"stage_name":  stage.Name,
			"comment":     comment,
		}

		if !approved {
			// 6. 驳回直接结束
			c.Status = model.CaseStatusRejected
			c.CompletedAt = &now
			body := fmt.Sprintf("%s 被 %s 拒绝", c.Title, actorName)
			if comment != "" {
				body += "，原因：" + comment
			}
			result.notifications = append(result.notifications, Notification{
				RecipientID: c.InitiatorID,
				Title:       "您的审批已被拒绝",
				Body:        body,
				CaseID:      caseID,
			})
		} else {
			// 7. 流转到下一节点或全部通过
			next, err := e.stages.FindByCaseAndOrder(txCtx, caseID, c.CurrentStageOrder+1)
			switch {
			case err == nil:
				c.Status = model.CaseStatusInProgress
				c.CurrentStageOrder = next.StageOrder
				result.notifications = append(result.notifications, Notification{
					RecipientID: next.ApproverID,
					Title:       "您有一条新的审批待处理",
					Body:        c.Title + " 已流转到您，请及时处理",
					CaseID:      caseID,
				})
			case errors.Is(err, gorm.ErrRecordNotFound):
				c.Status = model.CaseStatusApproved
				c.CompletedAt = &now
				result.notifications = append(result.notifications, Notification{
					RecipientID: c.InitiatorID,
					Title:       "您的审批已全部通过",
					Body:        c.Title + " 已通过所有审批节点",
					CaseID:      caseID,
				})
			default:
				return fmt.Errorf("failed to load next stage: %w", err)
			}
		}

		if err := e.cases.UpdateProgress(txCtx, c); err != nil {
			return fmt.Errorf("failed to update case: %w", err)
		}
		return e.recordTransition(txCtx, c, from, actorID, action)
	})
	if err != nil {
		return err
	}

	for _, n := range result.notifications {
		e.notify(ctx, n)
	}
	e.recordAudit(ctx, actorID, action, caseID, result.details)

	e.logger.WithFields(logrus.Fields{
		"case_id":  caseID,
		"actor_id": actorID,
		"action":   action,
	}).Info("approval decision recorded")

	return nil
}

// Withdraw 发起人撤回审批单
func (e *Engine) Withdraw(ctx context.Context, caseID string, actorID int64) (err error) {
	ctx, span := e.tracer.Start(ctx, "workflow.Withdraw", trace.WithAttributes(
		attribute.String("approval.case_id", caseID),
		attribute.Int64("approval.actor_id", actorID),
	))
	defer func() { endSpan(span, err) }()

	actorName := e.displayName(ctx, actorID)

	unlock, err := e.locker.Lock(ctx, caseID)
	if err != nil {
		return fmt.Errorf("failed to lock case %s: %w", caseID, err)
	}
	defer unlock()

	var notifications []Notification
	err = e.tx.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := e.loadForUpdate(txCtx, caseID)
		if err != nil {
			return err
		}
		if c.InitiatorID != actorID {
			return fmt.Errorf("%w: only the initiator can withdraw case %s", ErrForbidden, caseID)
		}
		if !c.Status.Active() {
			return fmt.Errorf("%w: case %s is %s", ErrInvalidState, caseID, c.Status.Label())
		}

		pending, err := e.stages.ListPendingByCase(txCtx, caseID)
		if err != nil {
			return fmt.Errorf("failed to load pending stages: %w", err)
		}

		from := c.Status
		now := time.Now()
		c.Status = model.CaseStatusWithdrawn
		c.UpdatedAt = now
		c.CompletedAt = &now
		if err := e.cases.UpdateProgress(txCtx, c); err != nil {
			return fmt.Errorf("failed to update case: %w", err)
		}

		body := fmt.Sprintf("%s 撤回了审批：%s", actorName, c.Title)
		for _, stage := range pending {
			notifications = append(notifications, Notification{
				RecipientID: stage.ApproverID,
				Title:       "审批已被发起人撤回",
				Body:        body,
				CaseID:      caseID,
			})
		}

		return e.recordTransition(txCtx, c, from, actorID, ActionWithdraw)
	})
	if err != nil {
		return err
	}

	for _, n := range notifications {
		e.notify(ctx, n)
	}
	e.recordAudit(ctx, actorID, ActionWithdraw, caseID, nil)

	e.logger.WithFields(logrus.Fields{
		"case_id":  caseID,
		"actor_id": actorID,
	}).Info("approval case withdrawn")

	return nil
}

// GetCase 查询审批单详情,包含节点与附件
func (e *Engine) GetCase(ctx context.Context, caseID string) (*CaseView, error) {
	c, err := e.cases.FindDetail(ctx, caseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("case %s %w", caseID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load case: %w", err)
	}
	return NewCaseView(c), nil
}

// ListInitiated 查询用户发起的审批单,status 为空时返回全部
func (e *Engine) ListInitiated(ctx context.Context, userID int64, status *model.CaseStatus) ([]*CaseView, error) {
	cases, err := e.cases.ListByInitiator(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list initiated cases: %w", err)
	}
	return newCaseViews(cases), nil
}

// ListPendingFor 查询等待用户审批的审批单
func (e *Engine) ListPendingFor(ctx context.Context, userID int64) ([]*CaseView, error) {
	cases, err := e.cases.ListPendingFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending cases: %w", err)
	}
	return newCaseViews(cases), nil
}

// History 查询审批单状态变更记录
func (e *Engine) History(ctx context.Context, caseID string) ([]HistoryView, error) {
	if _, err := e.cases.FindByID(ctx, caseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("case %s %w", caseID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load case: %w", err)
	}

	rows, err := e.history.FindByCaseID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load case history: %w", err)
	}
	views := make([]HistoryView, 0, len(rows))
	for _, row := range rows {
		views = append(views, HistoryView{
			FromStatus: row.FromStatus,
			ToStatus:   row.ToStatus,
			StageOrder: row.StageOrder,
			Reason:     row.Reason,
			Operator:   row.Operator,
			CreatedAt:  row.CreatedAt,
		})
	}
	return views, nil
}

func (e *Engine) loadForUpdate(ctx context.Context, caseID string) (*model.ApprovalCaseModel, error) {
	c, err := e.cases.FindByIDForUpdate(ctx, caseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("case %s %w", caseID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load case: %w", err)
	}
	return c, nil
}

func (e *Engine) recordTransition(ctx context.Context, c *model.ApprovalCaseModel, from model.CaseStatus, operator int64, reason string) error {
	err := e.history.Save(ctx, &model.StateHistoryModel{
		ID:         uuid.NewString(),
		CaseID:     c.ID,
		FromStatus: from,
		ToStatus:   c.Status,
		StageOrder: c.CurrentStageOrder,
		Reason:     reason,
		Operator:   operator,
		CreatedAt:  c.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to record state history: %w", err)
	}
	return nil
}

// displayName 通知文案中的用户名称,目录查不到时使用用户 ID
func (e *Engine) displayName(ctx context.Context, userID int64) string {
	if e.directory != nil {
		if user, err := e.directory.GetUser(ctx, userID); err == nil && user.Nickname != "" {
			return user.Nickname
		}
	}
	return fmt.Sprintf("用户%d", userID)
}

// notify 事务提交后调用,通知失败不影响流转结果
func (e *Engine) notify(ctx context.Context, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("case_id", n.CaseID).Errorf("notifier panicked: %v", r)
		}
	}()
	e.notifier.Notify(context.WithoutCancel(ctx), n)
}

func (e *Engine) recordAudit(ctx context.Context, actorID int64, action, caseID string, details map[string]interface{}) {
	if err := e.audit.RecordAction(context.WithoutCancel(ctx), actorID, action, "case", caseID, details); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"case_id": caseID,
			"action":  action,
		}).Warn("failed to record audit log")
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
