package bid

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/taskerin/taskerin-backend/internal/apperrors"
	"github.com/taskerin/taskerin-backend/internal/models"
	"github.com/taskerin/taskerin-backend/internal/services/wallet"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(&models.User{}, &models.Task{}, &models.Bid{}, &models.WalletTransaction{}, &models.DocumentVerification{})
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	return db
}

func newService(db *gorm.DB) *BidService {
	return NewBidService(db, wallet.NewWalletService(db), nil, nil)
}

func fund(t *testing.T, db *gorm.DB, userID uuid.UUID, amount int64) {
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("balance", amount).Error)
}

func createUser(t *testing.T, db *gorm.DB, role models.Role) models.User {
	u := models.User{
		Name:     "Test User",
		Email:    fmt.Sprintf("%s@example.com", uuid.NewString()),
		Password: "hashed",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func createOpenTask(t *testing.T, db *gorm.DB, ownerID uuid.UUID) models.Task {
	task := models.Task{
		Title:        "Walk my dog",
		Description:  "Twice a day for a week",
		Status:       models.TaskStatusOpen,
		BudgetAmount: 5000,
		BudgetType:   models.BudgetFixed,
		OwnerID:      ownerID,
	}
	require.NoError(t, db.Create(&task).Error)
	return task
}

func TestPlaceBidRules(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	owner := createUser(t, db, models.RoleClient)
	tasker := createUser(t, db, models.RoleTasker)
	task := createOpenTask(t, db, owner.ID)
	ctx := context.Background()

	_, err := svc.PlaceBid(ctx, tasker.ID, task.ID, PlaceBidInput{Amount: 0})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.PlaceBid(ctx, owner.ID, task.ID, PlaceBidInput{Amount: 4000})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	bid, err := svc.PlaceBid(ctx, tasker.ID, task.ID, PlaceBidInput{Amount: 4000, Message: "  Can start tomorrow "})
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusPending, bid.Status)
	assert.Equal(t, "Can start tomorrow", bid.Message)

	// One pending bid per bidder per task.
	_, err = svc.PlaceBid(ctx, tasker.ID, task.ID, PlaceBidInput{Amount: 3500})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	// Withdrawn bid frees the slot.
	require.NoError(t, svc.Withdraw(ctx, tasker.ID, bid.ID))
	_, err = svc.PlaceBid(ctx, tasker.ID, task.ID, PlaceBidInput{Amount: 3500})
	assert.NoError(t, err)
}

func TestPlaceBidOnlyOnOpenTasks(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	owner := createUser(t, db, models.RoleClient)
	tasker := createUser(t, db, models.RoleTasker)
	task := createOpenTask(t, db, owner.ID)
	require.NoError(t, db.Model(&task).Update("status", models.TaskStatusCancelled).Error)

	_, err := svc.PlaceBid(context.Background(), tasker.ID, task.ID, PlaceBidInput{Amount: 1000})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestWithdrawAuthorization(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	owner := createUser(t, db, models.RoleClient)
	tasker := createUser(t, db, models.RoleTasker)
	task := createOpenTask(t, db, owner.ID)
	ctx := context.Background()

	bid, err := svc.PlaceBid(ctx, tasker.ID, task.ID, PlaceBidInput{Amount: 2000})
	require.NoError(t, err)

	err = svc.Withdraw(ctx, owner.ID, bid.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))

	require.NoError(t, svc.Withdraw(ctx, tasker.ID, bid.ID))

	err = svc.Withdraw(ctx, tasker.ID, bid.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestAcceptAssignsTask(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	owner := createUser(t, db, models.RoleClient)
	taskerA := createUser(t, db, models.RoleTasker)
	taskerB := createUser(t, db, models.RoleTasker)
	fund(t, db, owner.ID, 5000)
	task := createOpenTask(t, db, owner.ID)
	ctx := context.Background()

	bidA, err := svc.PlaceBid(ctx, taskerA.ID, task.ID, PlaceBidInput{Amount: 4500})
	require.NoError(t, err)
	bidB, err := svc.PlaceBid(ctx, taskerB.ID, task.ID, PlaceBidInput{Amount: 4000})
	require.NoError(t, err)

	_, err = svc.Accept(ctx, taskerB.ID, bidA.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))

	accepted, err := svc.Accept(ctx, owner.ID, bidA.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusAccepted, accepted.Status)

	var stored models.Task
	require.NoError(t, db.First(&stored, "id = ?", task.ID).Error)
	assert.Equal(t, models.TaskStatusInProgress, stored.Status)
	require.NotNil(t, stored.AssigneeID)
	assert.Equal(t, taskerA.ID, *stored.AssigneeID)

	// Accepting the bid held the budget in escrow.
	var payer models.User
	require.NoError(t, db.First(&payer, "id = ?", owner.ID).Error)
	assert.Equal(t, int64(0), payer.Balance)
	var held int64
	require.NoError(t, db.Model(&models.WalletTransaction{}).
		Where("reference_id = ? AND type = ?", task.ID, models.WalletTrxDebit).
		Count(&held).Error)
	assert.Equal(t, int64(1), held)

	// The losing bid stays pending but is moot now that the task left open.
	var other models.Bid
	require.NoError(t, db.First(&other, "id = ?", bidB.ID).Error)
	assert.Equal(t, models.BidStatusPending, other.Status)

	_, err = svc.Accept(ctx, owner.ID, bidB.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestAcceptSingleWinner(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	owner := createUser(t, db, models.RoleClient)
	taskerA := createUser(t, db, models.RoleTasker)
	taskerB := createUser(t, db, models.RoleTasker)
	fund(t, db, owner.ID, 5000)
	task := createOpenTask(t, db, owner.ID)
	ctx := context.Background()

	bidA, err := svc.PlaceBid(ctx, taskerA.ID, task.ID, PlaceBidInput{Amount: 4500})
	require.NoError(t, err)
	bidB, err := svc.PlaceBid(ctx, taskerB.ID, task.ID, PlaceBidInput{Amount: 4000})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{bidA.ID, bidB.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = svc.Accept(ctx, owner.ID, id)
		}(i, id)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.True(t, apperrors.IsKind(err, apperrors.KindConflict) ||
				apperrors.IsKind(err, apperrors.KindValidation))
		}
	}
	assert.Equal(t, 1, wins)

	var assigned models.Task
	require.NoError(t, db.First(&assigned, "id = ?", task.ID).Error)
	require.NotNil(t, assigned.AssigneeID)

	var acceptedCount int64
	require.NoError(t, db.Model(&models.Bid{}).
		Where("task_id = ? AND status = ?", task.ID, models.BidStatusAccepted).
		Count(&acceptedCount).Error)
	assert.Equal(t, int64(1), acceptedCount)
}

func TestListForTaskOwnerOnly(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)
	owner := createUser(t, db, models.RoleClient)
	tasker := createUser(t, db, models.RoleTasker)
	task := createOpenTask(t, db, owner.ID)
	ctx := context.Background()

	_, err := svc.PlaceBid(ctx, tasker.ID, task.ID, PlaceBidInput{Amount: 2500})
	require.NoError(t, err)

	_, err = svc.ListForTask(ctx, tasker.ID, task.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))

	bids, err := svc.ListForTask(ctx, owner.ID, task.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 1)

	mine, err := svc.ListMine(ctx, tasker.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
