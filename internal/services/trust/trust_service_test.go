package trust

import (
	"context"
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

	err = db.AutoMigrate(&models.User{}, &models.Task{}, &models.DocumentVerification{})
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	return db
}

func createUser(t *testing.T, db *gorm.DB, mutate func(*models.User)) models.User {
	u := models.User{
		Name:     "Test User",
		Email:    fmt.Sprintf("%s@example.com", uuid.NewString()),
		Password: "hashed",
		Role:     models.RoleTasker,
		IsActive: true,
	}
	if mutate != nil {
		mutate(&u)
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func TestRecomputeUnverifiedUserScoresZero(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTrustService(db)
	u := createUser(t, db, nil)

	score, err := svc.Recompute(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestRecomputeVerificationPoints(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTrustService(db)

	u := createUser(t, db, func(u *models.User) {
		u.EmailVerified = true
		u.PhoneVerified = true
	})

	score, err := svc.Recompute(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, score)

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", u.ID).Error)
	assert.Equal(t, 40, stored.TrustScore)
}

func TestRecomputeDocumentPointsAreCapped(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTrustService(db)
	u := createUser(t, db, nil)
	admin := createUser(t, db, func(u *models.User) { u.Role = models.RoleAdmin })

	for _, docType := range []string{"id_card", "passport", "driver_license"} {
		doc := models.DocumentVerification{
			UserID:       u.ID,
			DocumentType: docType,
			DocumentURL:  "https://files.example.com/" + docType,
			Status:       models.DocumentStatusVerified,
			ReviewedBy:   &admin.ID,
		}
		require.NoError(t, db.Create(&doc).Error)
	}

	// Three verified documents, but only two count.
	score, err := svc.Recompute(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, score)
}

func TestRecomputeCompletedTaskPointsAreCapped(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTrustService(db)
	owner := createUser(t, db, func(u *models.User) { u.Role = models.RoleClient })
	tasker := createUser(t, db, nil)

	for i := 0; i < 13; i++ {
		task := models.Task{
			Title:        fmt.Sprintf("Task %d", i),
			Description:  "done",
			Status:       models.TaskStatusCompleted,
			BudgetAmount: 1000,
			OwnerID:      owner.ID,
			AssigneeID:   &tasker.ID,
		}
		require.NoError(t, db.Create(&task).Error)
	}

	score, err := svc.Recompute(context.Background(), tasker.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, score)
}

func TestRecomputeFullScoreClampsToHundred(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTrustService(db)
	owner := createUser(t, db, func(u *models.User) { u.Role = models.RoleClient })
	admin := createUser(t, db, func(u *models.User) { u.Role = models.RoleAdmin })
	tasker := createUser(t, db, func(u *models.User) {
		u.EmailVerified = true
		u.PhoneVerified = true
	})

	for _, docType := range []string{"id_card", "passport"} {
		doc := models.DocumentVerification{
			UserID:       tasker.ID,
			DocumentType: docType,
			DocumentURL:  "https://files.example.com/" + docType,
			Status:       models.DocumentStatusVerified,
			ReviewedBy:   &admin.ID,
		}
		require.NoError(t, db.Create(&doc).Error)
	}
	for i := 0; i < 12; i++ {
		task := models.Task{
			Title:        fmt.Sprintf("Task %d", i),
			Description:  "done",
			Status:       models.TaskStatusCompleted,
			BudgetAmount: 1000,
			OwnerID:      owner.ID,
			AssigneeID:   &tasker.ID,
		}
		require.NoError(t, db.Create(&task).Error)
	}

	score, err := svc.Recompute(context.Background(), tasker.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, score)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTrustService(db)
	u := createUser(t, db, func(u *models.User) { u.EmailVerified = true })

	first, err := svc.Recompute(context.Background(), u.ID)
	require.NoError(t, err)
	second, err := svc.Recompute(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 20, second)
}

func TestRecomputeIgnoresPendingAndRejectedDocuments(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTrustService(db)
	u := createUser(t, db, nil)

	for _, status := range []models.DocumentStatus{models.DocumentStatusPending, models.DocumentStatusRejected} {
		doc := models.DocumentVerification{
			UserID:       u.ID,
			DocumentType: "id_card_" + string(status),
			DocumentURL:  "https://files.example.com/doc",
			Status:       status,
		}
		require.NoError(t, db.Create(&doc).Error)
	}

	score, err := svc.Recompute(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestRecomputeUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTrustService(db)

	_, err := svc.Recompute(context.Background(), uuid.New())
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}
