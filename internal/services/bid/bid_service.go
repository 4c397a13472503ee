package bid

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskerin/taskerin-backend/internal/apperrors"
	"github.com/taskerin/taskerin-backend/internal/cache"
	"github.com/taskerin/taskerin-backend/internal/guard"
	"github.com/taskerin/taskerin-backend/internal/models"
	"github.com/taskerin/taskerin-backend/internal/realtime"
	"github.com/taskerin/taskerin-backend/internal/services/wallet"
)

type BidService struct {
	DB     *gorm.DB
	Wallet *wallet.WalletService
	Events *cache.Publisher
	Hub    *realtime.Hub
}

func NewBidService(db *gorm.DB, w *wallet.WalletService, events *cache.Publisher, hub *realtime.Hub) *BidService {
	return &BidService{DB: db, Wallet: w, Events: events, Hub: hub}
}

type PlaceBidInput struct {
	Amount  int64  `json:"amount"`
	Message string `json:"message"`
}

func (s *BidService) PlaceBid(ctx context.Context, bidderID, taskID uuid.UUID, in PlaceBidInput) (*models.Bid, error) {
	if in.Amount <= 0 {
		return nil, apperrors.Validation("bid amount must be greater than zero")
	}

	var task models.Task
	if err := s.DB.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("task %s not found", taskID)
		}
		return nil, err
	}
	if task.Status != models.TaskStatusOpen {
		return nil, apperrors.Validation("bids can only be placed on open tasks")
	}
	if guard.IsOwner(&task, bidderID) {
		return nil, apperrors.Validation("you cannot bid on your own task")
	}

	var existing int64
	err := s.DB.WithContext(ctx).Model(&models.Bid{}).
		Where("task_id = ? AND bidder_id = ? AND status = ?", taskID, bidderID, models.BidStatusPending).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, apperrors.Conflict("you already have a pending bid on this task")
	}

	bid := models.Bid{
		TaskID:   taskID,
		BidderID: bidderID,
		Amount:   in.Amount,
		Message:  strings.TrimSpace(in.Message),
		Status:   models.BidStatusPending,
	}
	if err := s.DB.WithContext(ctx).Create(&bid).Error; err != nil {
		return nil, err
	}

	if s.Hub != nil {
		s.Hub.SendToUser(task.OwnerID, map[string]interface{}{
			"type":    "bid_placed",
			"task_id": taskID.String(),
			"bid_id":  bid.ID.String(),
		})
	}
	return &bid, nil
}

func (s *BidService) Withdraw(ctx context.Context, bidderID, bidID uuid.UUID) error {
	var bid models.Bid
	if err := s.DB.WithContext(ctx).First(&bid, "id = ?", bidID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.NotFound("bid %s not found", bidID)
		}
		return err
	}
	if bid.BidderID != bidderID {
		return apperrors.Authorization("only the bidder can withdraw a bid")
	}
	if bid.Status != models.BidStatusPending {
		return apperrors.Validation("only pending bids can be withdrawn")
	}

	result := s.DB.WithContext(ctx).Model(&models.Bid{}).
		Where("id = ? AND status = ?", bid.ID, models.BidStatusPending).
		Update("status", models.BidStatusWithdrawn)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Conflict("bid was modified concurrently")
	}
	return nil
}

func (s *BidService) ListForTask(ctx context.Context, actorID, taskID uuid.UUID) ([]models.Bid, error) {
	var task models.Task
	if err := s.DB.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("task %s not found", taskID)
		}
		return nil, err
	}
	if !guard.IsOwner(&task, actorID) {
		return nil, apperrors.Authorization("only the task owner can list bids")
	}

	var bids []models.Bid
	err := s.DB.WithContext(ctx).
		Preload("Bidder").
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&bids).Error
	return bids, err
}

func (s *BidService) ListMine(ctx context.Context, bidderID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := s.DB.WithContext(ctx).
		Preload("Task").
		Where("bidder_id = ?", bidderID).
		Order("created_at DESC").
		Find(&bids).Error
	return bids, err
}

// Accept marks the bid accepted, assigns the task to the bidder and holds the
// budget in escrow in one transaction. The conditional status UPDATE on the
// task is what keeps two concurrent accepts from both winning. Other pending
// bids are left as they are; they become moot once the task leaves open.
func (s *BidService) Accept(ctx context.Context, actorID, bidID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	if err := s.DB.WithContext(ctx).Preload("Task").First(&bid, "id = ?", bidID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("bid %s not found", bidID)
		}
		return nil, err
	}
	task := bid.Task
	if task == nil {
		return nil, apperrors.NotFound("task %s not found", bid.TaskID)
	}
	if !guard.IsOwner(task, actorID) {
		return nil, apperrors.Authorization("only the task owner can accept a bid")
	}
	if bid.Status != models.BidStatusPending {
		return nil, apperrors.Validation("only pending bids can be accepted")
	}
	if task.Status != models.TaskStatusOpen {
		return nil, apperrors.Validation("bids can only be accepted on open tasks")
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Task{}).
			Where("id = ? AND status = ?", task.ID, models.TaskStatusOpen).
			Updates(map[string]interface{}{
				"status":      models.TaskStatusInProgress,
				"assignee_id": bid.BidderID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.Conflict("task %s was assigned concurrently", task.ID)
		}

		result = tx.Model(&models.Bid{}).
			Where("id = ? AND status = ?", bid.ID, models.BidStatusPending).
			Update("status", models.BidStatusAccepted)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.Conflict("bid was modified concurrently")
		}
		if s.Wallet != nil {
			return s.Wallet.HoldEscrow(tx, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Events != nil {
		s.Events.TaskChanged(ctx, task.ID)
	}
	if s.Hub != nil {
		s.Hub.SendToTask(task.OwnerID, &bid.BidderID, map[string]interface{}{
			"type":    "bid_accepted",
			"task_id": task.ID.String(),
			"bid_id":  bid.ID.String(),
		})
	}

	bid.Status = models.BidStatusAccepted
	return &bid, nil
}

func (s *BidService) Reject(ctx context.Context, actorID, bidID uuid.UUID) error {
	var bid models.Bid
	if err := s.DB.WithContext(ctx).Preload("Task").First(&bid, "id = ?", bidID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.NotFound("bid %s not found", bidID)
		}
		return err
	}
	if bid.Task == nil || !guard.IsOwner(bid.Task, actorID) {
		return apperrors.Authorization("only the task owner can reject a bid")
	}
	if bid.Status != models.BidStatusPending {
		return apperrors.Validation("only pending bids can be rejected")
	}

	result := s.DB.WithContext(ctx).Model(&models.Bid{}).
		Where("id = ? AND status = ?", bid.ID, models.BidStatusPending).
		Update("status", models.BidStatusRejected)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Conflict("bid was modified concurrently")
	}
	return nil
}
