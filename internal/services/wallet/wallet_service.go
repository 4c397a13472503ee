package wallet

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskerin/taskerin-backend/internal/apperrors"
	"github.com/taskerin/taskerin-backend/internal/models"
)

// platformFeePercent is withheld from the budget when escrow is released to
// the tasker.
const platformFeePercent = 10

type WalletService struct {
	DB *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{DB: db}
}

// CreditTasker adds funds to the tasker's balance and creates a ledger entry.
// This should be called within a DB transaction.
func (s *WalletService) CreditTasker(tx *gorm.DB, userID uuid.UUID, amount int64, referenceID uuid.UUID, description string) error {
	if amount <= 0 {
		return apperrors.Validation("amount to credit must be greater than zero")
	}

	result := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("user %s not found", userID)
	}

	ledger := models.WalletTransaction{
		UserID:      userID,
		Amount:      amount,
		Type:        models.WalletTrxCredit,
		Description: description,
		ReferenceID: &referenceID,
	}
	return tx.Create(&ledger).Error
}

// CreditOwner returns funds to the task owner (e.g., for refunds) and creates
// a ledger entry. This should be called within a DB transaction.
func (s *WalletService) CreditOwner(tx *gorm.DB, userID uuid.UUID, amount int64, referenceID uuid.UUID, description string) error {
	if amount <= 0 {
		return apperrors.Validation("amount to credit must be greater than zero")
	}

	result := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("user %s not found", userID)
	}

	ledger := models.WalletTransaction{
		UserID:      userID,
		Amount:      amount,
		Type:        models.WalletTrxRefund,
		Description: description,
		ReferenceID: &referenceID,
	}
	return tx.Create(&ledger).Error
}

// DebitOwner deducts funds from the task owner's balance and creates a ledger
// entry. This should be called within a DB transaction.
func (s *WalletService) DebitOwner(tx *gorm.DB, userID uuid.UUID, amount int64, referenceID uuid.UUID, description string) error {
	if amount <= 0 {
		return apperrors.Validation("amount to debit must be greater than zero")
	}

	var user models.User
	if err := tx.Set("gorm:query_option", "FOR UPDATE").First(&user, "id = ?", userID).Error; err != nil {
		return err
	}
	if user.Balance < amount {
		return apperrors.Conflict("insufficient balance")
	}

	result := tx.Model(&models.User{}).
		Where("id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.Conflict("insufficient balance")
	}

	ledger := models.WalletTransaction{
		UserID:      userID,
		Amount:      amount,
		Type:        models.WalletTrxDebit,
		Description: description,
		ReferenceID: &referenceID,
	}
	return tx.Create(&ledger).Error
}

// HoldEscrow debits the owner for the full budget when the task is assigned.
// A second hold for the same task is a no-op, so assignment paths that race
// the ledger stay idempotent.
func (s *WalletService) HoldEscrow(tx *gorm.DB, task *models.Task) error {
	held, err := s.ledgerCount(tx, task.ID, models.WalletTrxDebit)
	if err != nil {
		return err
	}
	if held > 0 {
		return nil
	}
	desc := fmt.Sprintf("Escrow hold for task %q", task.Title)
	return s.DebitOwner(tx, task.OwnerID, task.BudgetAmount, task.ID, desc)
}

// ReleaseEscrow pays the assignee the budget minus the platform fee. The
// credit-ledger lookup keeps a completed -> disputed -> completed round trip
// from paying twice.
func (s *WalletService) ReleaseEscrow(tx *gorm.DB, task *models.Task) error {
	if task.AssigneeID == nil {
		return nil
	}
	paid, err := s.ledgerCount(tx, task.ID, models.WalletTrxCredit)
	if err != nil {
		return err
	}
	if paid > 0 {
		return nil
	}
	net := task.BudgetAmount - task.BudgetAmount*platformFeePercent/100
	desc := fmt.Sprintf("Payout for task %q", task.Title)
	return s.CreditTasker(tx, *task.AssigneeID, net, task.ID, desc)
}

// RefundEscrow returns the held budget to the owner on cancellation. Nothing
// happens when no hold exists or when the escrow was already settled by a
// payout or an earlier refund.
func (s *WalletService) RefundEscrow(tx *gorm.DB, task *models.Task) error {
	held, err := s.ledgerCount(tx, task.ID, models.WalletTrxDebit)
	if err != nil {
		return err
	}
	if held == 0 {
		return nil
	}

	var settled int64
	err = tx.Model(&models.WalletTransaction{}).
		Where("reference_id = ? AND type IN ?", task.ID,
			[]models.WalletTrxType{models.WalletTrxCredit, models.WalletTrxRefund}).
		Count(&settled).Error
	if err != nil {
		return err
	}
	if settled > 0 {
		return nil
	}

	desc := fmt.Sprintf("Escrow refund for task %q", task.Title)
	return s.CreditOwner(tx, task.OwnerID, task.BudgetAmount, task.ID, desc)
}

func (s *WalletService) ledgerCount(tx *gorm.DB, referenceID uuid.UUID, trxType models.WalletTrxType) (int64, error) {
	var n int64
	err := tx.Model(&models.WalletTransaction{}).
		Where("reference_id = ? AND type = ?", referenceID, trxType).
		Count(&n).Error
	return n, err
}
