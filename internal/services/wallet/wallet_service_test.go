package wallet

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/taskerin/taskerin-backend/internal/apperrors"
	"github.com/taskerin/taskerin-backend/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(&models.User{}, &models.WalletTransaction{}, &models.DocumentVerification{})
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	return db
}

func createUser(t *testing.T, db *gorm.DB, balance int64) models.User {
	u := models.User{
		Name:     "Wallet User",
		Email:    fmt.Sprintf("%s@example.com", uuid.NewString()),
		Password: "hashed",
		Role:     models.RoleTasker,
		IsActive: true,
		Balance:  balance,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func TestCreditTaskerWritesLedger(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	u := createUser(t, db, 0)
	ref := uuid.New()

	require.NoError(t, svc.CreditTasker(db, u.ID, 9000, ref, "Payout for task"))

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", u.ID).Error)
	assert.Equal(t, int64(9000), stored.Balance)

	var trx models.WalletTransaction
	require.NoError(t, db.First(&trx, "user_id = ?", u.ID).Error)
	assert.Equal(t, models.WalletTrxCredit, trx.Type)
	require.NotNil(t, trx.ReferenceID)
	assert.Equal(t, ref, *trx.ReferenceID)
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	u := createUser(t, db, 0)

	err := svc.CreditTasker(db, u.ID, 0, uuid.New(), "nothing")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	err = svc.CreditOwner(db, u.ID, -10, uuid.New(), "nothing")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestCreditUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)

	err := svc.CreditTasker(db, uuid.New(), 100, uuid.New(), "ghost")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestDebitOwnerGuardsBalance(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	u := createUser(t, db, 500)
	ref := uuid.New()

	err := svc.DebitOwner(db, u.ID, 600, ref, "escrow hold")
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	require.NoError(t, svc.DebitOwner(db, u.ID, 500, ref, "escrow hold"))

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", u.ID).Error)
	assert.Equal(t, int64(0), stored.Balance)

	var trx models.WalletTransaction
	require.NoError(t, db.First(&trx, "user_id = ?", u.ID).Error)
	assert.Equal(t, models.WalletTrxDebit, trx.Type)
}

func TestCreditOwnerUsesRefundType(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	u := createUser(t, db, 0)

	require.NoError(t, svc.CreditOwner(db, u.ID, 250, uuid.New(), "refund after cancellation"))

	var trx models.WalletTransaction
	require.NoError(t, db.First(&trx, "user_id = ?", u.ID).Error)
	assert.Equal(t, models.WalletTrxRefund, trx.Type)
}

func escrowTask(owner, assignee *models.User, budget int64) *models.Task {
	task := &models.Task{
		Title:        "Mount a TV",
		Description:  "Bracket provided",
		Status:       models.TaskStatusInProgress,
		BudgetAmount: budget,
		BudgetType:   models.BudgetFixed,
		OwnerID:      owner.ID,
	}
	task.ID = uuid.New()
	if assignee != nil {
		task.AssigneeID = &assignee.ID
	}
	return task
}

func TestHoldEscrowIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	owner := createUser(t, db, 1000)
	tasker := createUser(t, db, 0)
	task := escrowTask(&owner, &tasker, 1000)

	require.NoError(t, svc.HoldEscrow(db, task))
	require.NoError(t, svc.HoldEscrow(db, task))

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", owner.ID).Error)
	assert.Equal(t, int64(0), stored.Balance)

	var debits int64
	require.NoError(t, db.Model(&models.WalletTransaction{}).
		Where("reference_id = ? AND type = ?", task.ID, models.WalletTrxDebit).
		Count(&debits).Error)
	assert.Equal(t, int64(1), debits)
}

func TestReleaseEscrowTakesFeeOnce(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	owner := createUser(t, db, 1000)
	tasker := createUser(t, db, 0)
	task := escrowTask(&owner, &tasker, 1000)

	require.NoError(t, svc.HoldEscrow(db, task))
	require.NoError(t, svc.ReleaseEscrow(db, task))
	require.NoError(t, svc.ReleaseEscrow(db, task))

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", tasker.ID).Error)
	assert.Equal(t, int64(900), stored.Balance) // 1000 minus 10% fee
}

func TestReleaseEscrowWithoutAssignee(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	owner := createUser(t, db, 1000)
	task := escrowTask(&owner, nil, 1000)

	require.NoError(t, svc.ReleaseEscrow(db, task))

	var ledger int64
	require.NoError(t, db.Model(&models.WalletTransaction{}).
		Where("reference_id = ?", task.ID).Count(&ledger).Error)
	assert.Equal(t, int64(0), ledger)
}

func TestRefundEscrowOnlySettlesOnce(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	owner := createUser(t, db, 1000)
	tasker := createUser(t, db, 0)
	task := escrowTask(&owner, &tasker, 1000)

	// No hold yet: nothing to refund.
	require.NoError(t, svc.RefundEscrow(db, task))
	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", owner.ID).Error)
	assert.Equal(t, int64(1000), stored.Balance)

	require.NoError(t, svc.HoldEscrow(db, task))
	require.NoError(t, svc.RefundEscrow(db, task))
	require.NoError(t, db.First(&stored, "id = ?", owner.ID).Error)
	assert.Equal(t, int64(1000), stored.Balance)

	// A second refund finds the escrow settled.
	require.NoError(t, svc.RefundEscrow(db, task))
	require.NoError(t, db.First(&stored, "id = ?", owner.ID).Error)
	assert.Equal(t, int64(1000), stored.Balance)
}

func TestRefundEscrowSkipsAfterPayout(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWalletService(db)
	owner := createUser(t, db, 1000)
	tasker := createUser(t, db, 0)
	task := escrowTask(&owner, &tasker, 1000)

	require.NoError(t, svc.HoldEscrow(db, task))
	require.NoError(t, svc.ReleaseEscrow(db, task))
	require.NoError(t, svc.RefundEscrow(db, task))

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", owner.ID).Error)
	assert.Equal(t, int64(0), stored.Balance)
	stored = models.User{}
	require.NoError(t, db.First(&stored, "id = ?", tasker.ID).Error)
	assert.Equal(t, int64(900), stored.Balance)
}
