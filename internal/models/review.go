package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Review struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID   uuid.UUID `gorm:"type:uuid;index;unique" json:"task_id"`
	OwnerID  uuid.UUID `gorm:"type:uuid;index" json:"owner_id"`
	TaskerID uuid.UUID `gorm:"type:uuid;index" json:"tasker_id"`

	Rating  int    `gorm:"not null" json:"rating"` // 1-5
	Comment string `gorm:"type:text" json:"comment"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Task   *Task `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	Owner  *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Tasker *User `gorm:"foreignKey:TaskerID" json:"tasker,omitempty"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
