package trust

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskerin/taskerin-backend/internal/apperrors"
	"github.com/taskerin/taskerin-backend/internal/models"
)

// Score weights. A fully verified user with ten completed tasks hits the cap.
const (
	emailPoints       = 20
	phonePoints       = 20
	perDocumentPoints = 20
	documentCap       = 40
	perTaskPoints     = 2
	completedTaskCap  = 20
	maxScore          = 100
)

type TrustService struct {
	DB *gorm.DB
}

func NewTrustService(db *gorm.DB) *TrustService {
	return &TrustService{DB: db}
}

// Recompute derives the user's trust score from verification state and task
// history, persists it, and returns the new value. It reads everything fresh,
// so calling it twice in a row yields the same score.
func (s *TrustService) Recompute(ctx context.Context, userID uuid.UUID) (int, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, apperrors.NotFound("user %s not found", userID)
		}
		return 0, err
	}

	score := 0
	if user.EmailVerified {
		score += emailPoints
	}
	if user.PhoneVerified {
		score += phonePoints
	}

	var verifiedDocs int64
	if err := s.DB.WithContext(ctx).Model(&models.DocumentVerification{}).
		Where("user_id = ? AND status = ?", userID, models.DocumentStatusVerified).
		Count(&verifiedDocs).Error; err != nil {
		return 0, err
	}
	docPoints := int(verifiedDocs) * perDocumentPoints
	if docPoints > documentCap {
		docPoints = documentCap
	}
	score += docPoints

	var completedTasks int64
	if err := s.DB.WithContext(ctx).Model(&models.Task{}).
		Where("assignee_id = ? AND status = ?", userID, models.TaskStatusCompleted).
		Count(&completedTasks).Error; err != nil {
		return 0, err
	}
	taskPoints := int(completedTasks) * perTaskPoints
	if taskPoints > completedTaskCap {
		taskPoints = completedTaskCap
	}
	score += taskPoints

	if score > maxScore {
		score = maxScore
	}
	if score < 0 {
		score = 0
	}

	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("trust_score", score).Error; err != nil {
		return 0, err
	}
	return score, nil
}
