package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"        // Menunggu penawaran
	TaskStatusAccepted   TaskStatus = "accepted"    // Penawaran diterima, belum mulai
	TaskStatusInProgress TaskStatus = "in_progress" // Sedang dikerjakan
	TaskStatusCompleted  TaskStatus = "completed"   // Selesai
	TaskStatusCancelled  TaskStatus = "cancelled"   // Dibatalkan
	TaskStatusDisputed   TaskStatus = "disputed"    // Dalam sengketa
)

type BudgetType string

const (
	BudgetFixed  BudgetType = "fixed"
	BudgetHourly BudgetType = "hourly"
)

// taskTransitions is the single source of truth for legal status moves.
// Cancelled is terminal; completed can only be reopened as a dispute.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusOpen:       {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusAccepted:   {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusCancelled, TaskStatusDisputed},
	TaskStatusCompleted:  {TaskStatusDisputed},
	TaskStatusCancelled:  {},
	TaskStatusDisputed:   {TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to TaskStatus) bool {
	for _, allowed := range taskTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal next statuses for a given status.
func AllowedTransitions(from TaskStatus) []TaskStatus {
	return taskTransitions[from]
}

func ValidTaskStatus(s TaskStatus) bool {
	_, ok := taskTransitions[s]
	return ok
}

type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text;not null" json:"description"`
	Status      TaskStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	Priority    string     `gorm:"type:varchar(20);default:'normal'" json:"priority"`

	BudgetAmount int64      `json:"budget_amount"`
	BudgetType   BudgetType `gorm:"type:varchar(20);default:'fixed'" json:"budget_type"`

	Category string     `gorm:"type:varchar(80);index" json:"category"`
	Location string     `gorm:"type:varchar(160)" json:"location"`
	Deadline *time.Time `json:"deadline,omitempty"`

	Attachments datatypes.JSON `json:"attachments,omitempty"` // [{url, name}, ...]

	OwnerID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_id"`
	AssigneeID *uuid.UUID `gorm:"type:uuid;index" json:"assignee_id,omitempty"`

	StatusNote  string     `gorm:"type:text" json:"status_note"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner    *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Assignee *User `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Bids     []Bid `gorm:"foreignKey:TaskID" json:"bids,omitempty"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}
