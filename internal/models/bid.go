package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusRejected  BidStatus = "rejected"
	BidStatusWithdrawn BidStatus = "withdrawn"
)

type Bid struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID   uuid.UUID `gorm:"type:uuid;not null;index" json:"task_id"`
	BidderID uuid.UUID `gorm:"type:uuid;not null;index" json:"bidder_id"`

	Amount  int64     `gorm:"not null" json:"amount"`
	Message string    `gorm:"type:text" json:"message"`
	Status  BidStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	CreatedAt time.Time `json:"submitted_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Task   *Task `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	Bidder *User `gorm:"foreignKey:BidderID" json:"bidder,omitempty"`
}

func (b *Bid) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}
