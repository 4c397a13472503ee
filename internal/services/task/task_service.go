package task

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/taskerin/taskerin-backend/internal/apperrors"
	"github.com/taskerin/taskerin-backend/internal/cache"
	"github.com/taskerin/taskerin-backend/internal/guard"
	"github.com/taskerin/taskerin-backend/internal/models"
	"github.com/taskerin/taskerin-backend/internal/notify"
	"github.com/taskerin/taskerin-backend/internal/realtime"
	"github.com/taskerin/taskerin-backend/internal/services/wallet"
)

type TaskService struct {
	DB     *gorm.DB
	Wallet *wallet.WalletService
	Events *cache.Publisher
	Hub    *realtime.Hub
	Email  notify.EmailSender
}

func NewTaskService(db *gorm.DB, w *wallet.WalletService, events *cache.Publisher, hub *realtime.Hub, email notify.EmailSender) *TaskService {
	return &TaskService{DB: db, Wallet: w, Events: events, Hub: hub, Email: email}
}

type CreateTaskInput struct {
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Priority     string            `json:"priority"`
	BudgetAmount int64             `json:"budget_amount"`
	BudgetType   models.BudgetType `json:"budget_type"`
	Category     string            `json:"category"`
	Location     string            `json:"location"`
	Deadline     *time.Time        `json:"deadline"`
	Attachments  datatypes.JSON    `json:"attachments"`
}

type UpdateTaskInput struct {
	Title        *string            `json:"title"`
	Description  *string            `json:"description"`
	Priority     *string            `json:"priority"`
	BudgetAmount *int64             `json:"budget_amount"`
	BudgetType   *models.BudgetType `json:"budget_type"`
	Category     *string            `json:"category"`
	Location     *string            `json:"location"`
	Deadline     *time.Time         `json:"deadline"`
	Attachments  *datatypes.JSON    `json:"attachments"`
}

type ListFilter struct {
	Status     string
	Category   string
	OwnerID    *uuid.UUID
	AssigneeID *uuid.UUID
	Search     string
	Page       int
	Limit      int
}

func validateCreate(in CreateTaskInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return apperrors.Validation("title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return apperrors.Validation("description is required")
	}
	if in.BudgetAmount <= 0 {
		return apperrors.Validation("budget amount must be greater than zero")
	}
	if in.BudgetType != "" && in.BudgetType != models.BudgetFixed && in.BudgetType != models.BudgetHourly {
		return apperrors.Validation("budget type must be %q or %q", models.BudgetFixed, models.BudgetHourly)
	}
	if in.Deadline != nil && in.Deadline.Before(time.Now()) {
		return apperrors.Validation("deadline must be in the future")
	}
	return nil
}

func (s *TaskService) Create(ctx context.Context, ownerID uuid.UUID, in CreateTaskInput) (*models.Task, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	task := models.Task{
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Status:       models.TaskStatusOpen,
		Priority:     in.Priority,
		BudgetAmount: in.BudgetAmount,
		BudgetType:   in.BudgetType,
		Category:     in.Category,
		Location:     in.Location,
		Deadline:     in.Deadline,
		Attachments:  in.Attachments,
		OwnerID:      ownerID,
	}
	if task.Priority == "" {
		task.Priority = "normal"
	}
	if task.BudgetType == "" {
		task.BudgetType = models.BudgetFixed
	}

	if err := s.DB.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, err
	}

	s.emitTaskChanged(ctx, &task, "task_created")
	return &task, nil
}

func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := s.DB.WithContext(ctx).
		Preload("Owner").
		Preload("Assignee").
		Preload("Bids").
		First(&task, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("task %s not found", id)
		}
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) List(ctx context.Context, f ListFilter) ([]models.Task, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Task{})

	if f.Status != "" {
		if !models.ValidTaskStatus(models.TaskStatus(f.Status)) {
			return nil, 0, apperrors.Validation("unknown status %q", f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.OwnerID != nil {
		q = q.Where("owner_id = ?", *f.OwnerID)
	}
	if f.AssigneeID != nil {
		q = q.Where("assignee_id = ?", *f.AssigneeID)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("title LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var tasks []models.Task
	err := q.Preload("Owner").Preload("Assignee").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (s *TaskService) Update(ctx context.Context, actorID, taskID uuid.UUID, in UpdateTaskInput) (*models.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !guard.IsOwner(task, actorID) {
		return nil, apperrors.Authorization("only the task owner can edit the task")
	}
	if task.Status != models.TaskStatusOpen {
		return nil, apperrors.Validation("only open tasks can be edited")
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, apperrors.Validation("title is required")
		}
		updates["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			return nil, apperrors.Validation("description is required")
		}
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		updates["priority"] = *in.Priority
	}
	if in.BudgetAmount != nil {
		if *in.BudgetAmount <= 0 {
			return nil, apperrors.Validation("budget amount must be greater than zero")
		}
		updates["budget_amount"] = *in.BudgetAmount
	}
	if in.BudgetType != nil {
		if *in.BudgetType != models.BudgetFixed && *in.BudgetType != models.BudgetHourly {
			return nil, apperrors.Validation("budget type must be %q or %q", models.BudgetFixed, models.BudgetHourly)
		}
		updates["budget_type"] = *in.BudgetType
	}
	if in.Category != nil {
		updates["category"] = *in.Category
	}
	if in.Location != nil {
		updates["location"] = *in.Location
	}
	if in.Deadline != nil {
		if in.Deadline.Before(time.Now()) {
			return nil, apperrors.Validation("deadline must be in the future")
		}
		updates["deadline"] = *in.Deadline
	}
	if in.Attachments != nil {
		updates["attachments"] = *in.Attachments
	}
	if len(updates) == 0 {
		return task, nil
	}

	// Edits race against assignment: require the task to still be open.
	result := s.DB.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status = ?", task.ID, models.TaskStatusOpen).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.Conflict("task was modified concurrently")
	}

	updated, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.emitTaskChanged(ctx, updated, "task_updated")
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, actorID, taskID uuid.UUID) error {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return err
	}
	if !guard.IsOwner(task, actorID) {
		return apperrors.Authorization("only the task owner can delete the task")
	}
	if task.Status != models.TaskStatusOpen {
		return apperrors.Validation("only open tasks can be deleted")
	}

	result := s.DB.WithContext(ctx).
		Where("id = ? AND status = ?", task.ID, models.TaskStatusOpen).
		Delete(&models.Task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Conflict("task was modified concurrently")
	}

	s.emitTaskChanged(ctx, task, "task_deleted")
	return nil
}

// Assign sets the assignee, moves the task to in_progress and holds the
// budget in escrow, all in one transaction. The conditional UPDATE on the
// current status makes sure two concurrent assigns cannot both win.
func (s *TaskService) Assign(ctx context.Context, actorID, taskID, assigneeID uuid.UUID) (*models.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !guard.IsOwner(task, actorID) {
		return nil, apperrors.Authorization("only the task owner can assign the task")
	}
	if task.Status != models.TaskStatusOpen {
		return nil, apperrors.Validation("only open tasks can be assigned")
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Task{}).
			Where("id = ? AND status = ?", task.ID, models.TaskStatusOpen).
			Updates(map[string]interface{}{
				"status":      models.TaskStatusInProgress,
				"assignee_id": assigneeID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.Conflict("task %s was assigned concurrently", task.ID)
		}
		if s.Wallet != nil {
			return s.Wallet.HoldEscrow(tx, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.emitTaskChanged(ctx, updated, "task_assigned")
	return updated, nil
}

// RequestTransition moves the task along the lifecycle table. The actor must
// be a participant (owner or assignee) of the task.
func (s *TaskService) RequestTransition(ctx context.Context, actorID, taskID uuid.UUID, target models.TaskStatus, note string) (*models.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !guard.IsParticipant(task, actorID) {
		return nil, apperrors.Authorization("only the task owner or assignee can change the task status")
	}
	// Completing or cancelling settles the escrow, so those targets belong to
	// the owner alone. The assignee can still raise a dispute.
	if (target == models.TaskStatusCompleted || target == models.TaskStatusCancelled) && !guard.IsOwner(task, actorID) {
		return nil, apperrors.Authorization("only the task owner can %s the task", verbFor(target))
	}
	if !models.ValidTaskStatus(target) {
		return nil, apperrors.Validation("unknown status %q", target)
	}
	if !guard.CanTransition(task, actorID, target) {
		return nil, apperrors.Validation("Cannot transition from %s to %s", strings.ToUpper(string(task.Status)), strings.ToUpper(string(target)))
	}
	if target == models.TaskStatusCompleted && task.AssigneeID == nil {
		return nil, apperrors.Validation("task has no assignee")
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyStatus(tx, task, target, note)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.emitTaskChanged(ctx, updated, "task_status_changed")
	return updated, nil
}

func verbFor(target models.TaskStatus) string {
	if target == models.TaskStatusCompleted {
		return "complete"
	}
	return "cancel"
}

// Complete marks an in_progress task completed and releases escrow to the
// assignee.
func (s *TaskService) Complete(ctx context.Context, actorID, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !guard.IsOwner(task, actorID) {
		return nil, apperrors.Authorization("only the task owner can complete the task")
	}
	if task.Status != models.TaskStatusInProgress {
		return nil, apperrors.Validation("Cannot transition from %s to COMPLETED", strings.ToUpper(string(task.Status)))
	}
	if task.AssigneeID == nil {
		return nil, apperrors.Validation("task has no assignee")
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyStatus(tx, task, models.TaskStatusCompleted, "")
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.emitTaskChanged(ctx, updated, "task_completed")
	s.sendCompletionEmail(ctx, updated)
	return updated, nil
}

// Cancel is the owner's shortcut for cancelling an open or in_progress task.
func (s *TaskService) Cancel(ctx context.Context, actorID, taskID uuid.UUID, note string) (*models.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !guard.IsOwner(task, actorID) {
		return nil, apperrors.Authorization("only the task owner can cancel the task")
	}
	if task.Status != models.TaskStatusOpen && task.Status != models.TaskStatusInProgress {
		return nil, apperrors.Validation("Cannot transition from %s to CANCELLED", strings.ToUpper(string(task.Status)))
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyStatus(tx, task, models.TaskStatusCancelled, note)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.emitTaskChanged(ctx, updated, "task_cancelled")
	return updated, nil
}

// applyStatus performs the conditional status UPDATE plus its side effects.
// task carries the status the caller observed; if another writer got there
// first the update matches zero rows and the caller gets a ConflictError.
func (s *TaskService) applyStatus(tx *gorm.DB, task *models.Task, target models.TaskStatus, note string) error {
	now := time.Now()
	updates := map[string]interface{}{"status": target}
	if note != "" {
		updates["status_note"] = note
	}

	switch target {
	case models.TaskStatusCompleted:
		updates["completed_at"] = now
	case models.TaskStatusCancelled:
		updates["cancelled_at"] = now
		updates["assignee_id"] = nil
	}
	// completed_at marks a completed task only; leaving completed clears it.
	if task.Status == models.TaskStatusCompleted && target != models.TaskStatusCompleted {
		updates["completed_at"] = nil
	}

	result := tx.Model(&models.Task{}).
		Where("id = ? AND status = ?", task.ID, task.Status).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Conflict("task %s was modified concurrently", task.ID)
	}

	if s.Wallet == nil {
		return nil
	}
	switch target {
	case models.TaskStatusCompleted:
		return s.Wallet.ReleaseEscrow(tx, task)
	case models.TaskStatusCancelled:
		return s.Wallet.RefundEscrow(tx, task)
	}
	return nil
}

func (s *TaskService) load(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := s.DB.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("task %s not found", id)
		}
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) emitTaskChanged(ctx context.Context, task *models.Task, event string) {
	if s.Events != nil {
		s.Events.TaskChanged(ctx, task.ID)
	}
	if s.Hub != nil {
		s.Hub.SendToTask(task.OwnerID, task.AssigneeID, map[string]interface{}{
			"type":    event,
			"task_id": task.ID.String(),
		})
	}
}

func (s *TaskService) sendCompletionEmail(ctx context.Context, task *models.Task) {
	if s.Email == nil || task.AssigneeID == nil {
		return
	}
	var assignee models.User
	if err := s.DB.WithContext(ctx).First(&assignee, "id = ?", *task.AssigneeID).Error; err != nil {
		log.Printf("Failed to load assignee for completion email: %v", err)
		return
	}
	subject := fmt.Sprintf("Task %q completed", task.Title)
	body := fmt.Sprintf("The task %q has been marked completed and your payout is on its way to your balance.", task.Title)
	if err := s.Email.SendEmail(ctx, assignee.Email, subject, body); err != nil {
		log.Printf("Failed to send completion email for task %s: %v", task.ID, err)
	}
}
