package verification

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskerin/taskerin-backend/internal/apperrors"
	"github.com/taskerin/taskerin-backend/internal/models"
	"github.com/taskerin/taskerin-backend/internal/notify"
	"github.com/taskerin/taskerin-backend/internal/services/trust"
	"github.com/taskerin/taskerin-backend/internal/utils"
)

const (
	emailTokenTTL   = 24 * time.Hour
	emailRateLimit  = 3
	emailRateWindow = 24 * time.Hour

	phoneCodeTTL     = 10 * time.Minute
	phoneMaxAttempts = 3
	phoneRateLimit   = 5
	phoneRateWindow  = time.Hour
)

type VerificationService struct {
	DB              *gorm.DB
	Trust           *trust.TrustService
	Email           notify.EmailSender
	SMS             notify.SMSSender
	FrontendBaseURL string
}

func NewVerificationService(db *gorm.DB, trustSvc *trust.TrustService, email notify.EmailSender, sms notify.SMSSender, frontendBaseURL string) *VerificationService {
	return &VerificationService{
		DB:              db,
		Trust:           trustSvc,
		Email:           email,
		SMS:             sms,
		FrontendBaseURL: frontendBaseURL,
	}
}

// RequestEmailVerification issues a fresh single-use token and mails the
// confirmation link. The send happens inside the transaction: if the mail
// cannot go out, no token is left behind.
func (s *VerificationService) RequestEmailVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return apperrors.Validation("email is already verified")
	}

	var issued int64
	windowStart := time.Now().Add(-emailRateWindow)
	err = s.DB.WithContext(ctx).Model(&models.EmailVerificationToken{}).
		Where("user_id = ? AND created_at >= ?", userID, windowStart).
		Count(&issued).Error
	if err != nil {
		return err
	}
	if issued >= emailRateLimit {
		return apperrors.RateLimit("too many verification emails, try again later")
	}

	token := utils.RandomToken(32)

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := models.EmailVerificationToken{
			UserID:    userID,
			Token:     token,
			ExpiresAt: time.Now().Add(emailTokenTTL),
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		link := fmt.Sprintf("%s/verify-email?token=%s", s.FrontendBaseURL, token)
		body := fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening the link below. The link is valid for 24 hours.\n\n%s\n", user.Name, link)
		return s.Email.SendEmail(ctx, user.Email, "Verify your email address", body)
	})
}

// ConfirmEmail consumes a token: marks the email verified and deletes the
// token in one transaction.
func (s *VerificationService) ConfirmEmail(ctx context.Context, rawToken string) (*models.User, error) {
	var record models.EmailVerificationToken
	err := s.DB.WithContext(ctx).First(&record, "token = ?", rawToken).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("verification token not found")
		}
		return nil, err
	}

	if time.Now().After(record.ExpiresAt) {
		if err := s.DB.WithContext(ctx).Delete(&record).Error; err != nil {
			log.Printf("Failed to delete expired email token %s: %v", record.ID, err)
		}
		return nil, apperrors.Validation("verification token has expired")
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Deleting first makes the token a single-use claim: a concurrent
		// confirm that lost the race matches zero rows and fails here.
		result := tx.Delete(&models.EmailVerificationToken{}, "id = ?", record.ID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.NotFound("verification token not found")
		}

		result = tx.Model(&models.User{}).
			Where("id = ?", record.UserID).
			Update("email_verified", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.NotFound("user %s not found", record.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recomputeTrust(ctx, record.UserID)
	return s.loadUser(ctx, record.UserID)
}

// RequestPhoneVerification issues a 6-digit code via SMS. A new request
// replaces any earlier code for the user.
func (s *VerificationService) RequestPhoneVerification(ctx context.Context, userID uuid.UUID, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return apperrors.Validation("phone number is required")
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.PhoneVerified {
		return apperrors.Validation("phone is already verified")
	}

	var issued int64
	windowStart := time.Now().Add(-phoneRateWindow)
	err = s.DB.WithContext(ctx).Model(&models.PhoneVerificationCode{}).
		Where("user_id = ? AND created_at >= ?", userID, windowStart).
		Count(&issued).Error
	if err != nil {
		return err
	}
	if issued >= phoneRateLimit {
		return apperrors.RateLimit("too many verification codes, try again later")
	}

	code := utils.NumericCode(6)

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Codes older than the rate window no longer count; drop them.
		// ConfirmPhone only ever looks at the newest code.
		if err := tx.Where("user_id = ? AND created_at < ?", userID, windowStart).
			Delete(&models.PhoneVerificationCode{}).Error; err != nil {
			return err
		}

		record := models.PhoneVerificationCode{
			UserID:    userID,
			Phone:     phone,
			Code:      code,
			ExpiresAt: time.Now().Add(phoneCodeTTL),
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		msg := fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)
		return s.SMS.SendSMS(ctx, phone, msg)
	})
}

// ConfirmPhone checks the submitted code against the user's latest one.
// Three wrong submissions burn the code.
func (s *VerificationService) ConfirmPhone(ctx context.Context, userID uuid.UUID, code string) (*models.User, error) {
	var record models.PhoneVerificationCode
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("no verification code outstanding, request a new one")
		}
		return nil, err
	}

	if time.Now().After(record.ExpiresAt) {
		if err := s.DB.WithContext(ctx).Delete(&record).Error; err != nil {
			log.Printf("Failed to delete expired phone code %s: %v", record.ID, err)
		}
		return nil, apperrors.Validation("verification code has expired")
	}

	if record.Code != code {
		record.Attempts++
		if record.Attempts >= phoneMaxAttempts {
			if err := s.DB.WithContext(ctx).Delete(&record).Error; err != nil {
				return nil, err
			}
			return nil, apperrors.Validation("too many incorrect attempts, request a new code")
		}
		if err := s.DB.WithContext(ctx).Model(&record).Update("attempts", record.Attempts).Error; err != nil {
			return nil, err
		}
		return nil, apperrors.Validation("incorrect verification code")
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"phone_verified": true,
				"phone":          record.Phone,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.NotFound("user %s not found", userID)
		}
		return tx.Delete(&models.PhoneVerificationCode{}, "id = ?", record.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.recomputeTrust(ctx, userID)
	return s.loadUser(ctx, userID)
}

type SubmitDocumentInput struct {
	DocumentType string `json:"document_type"`
	DocumentURL  string `json:"document_url"`
}

func (s *VerificationService) SubmitDocument(ctx context.Context, userID uuid.UUID, in SubmitDocumentInput) (*models.DocumentVerification, error) {
	docType := strings.TrimSpace(strings.ToLower(in.DocumentType))
	if docType == "" {
		return nil, apperrors.Validation("document type is required")
	}
	if strings.TrimSpace(in.DocumentURL) == "" {
		return nil, apperrors.Validation("document URL is required")
	}

	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}

	var pending int64
	err := s.DB.WithContext(ctx).Model(&models.DocumentVerification{}).
		Where("user_id = ? AND document_type = ? AND status = ?", userID, docType, models.DocumentStatusPending).
		Count(&pending).Error
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, apperrors.Conflict("a %s verification is already pending review", docType)
	}

	doc := models.DocumentVerification{
		UserID:       userID,
		DocumentType: docType,
		DocumentURL:  strings.TrimSpace(in.DocumentURL),
		Status:       models.DocumentStatusPending,
	}
	if err := s.DB.WithContext(ctx).Create(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// ResolveDocument records an admin decision on a pending document.
func (s *VerificationService) ResolveDocument(ctx context.Context, reviewerID, docID uuid.UUID, status models.DocumentStatus, notes string) (*models.DocumentVerification, error) {
	if status != models.DocumentStatusVerified && status != models.DocumentStatusRejected {
		return nil, apperrors.Validation("resolution must be %q or %q", models.DocumentStatusVerified, models.DocumentStatusRejected)
	}

	var doc models.DocumentVerification
	err := s.DB.WithContext(ctx).First(&doc, "id = ?", docID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("document verification %s not found", docID)
		}
		return nil, err
	}
	if doc.Status != models.DocumentStatusPending {
		return nil, apperrors.Validation("document verification is already resolved")
	}

	now := time.Now()
	result := s.DB.WithContext(ctx).Model(&models.DocumentVerification{}).
		Where("id = ? AND status = ?", docID, models.DocumentStatusPending).
		Updates(map[string]interface{}{
			"status":      status,
			"reviewed_by": reviewerID,
			"reviewed_at": now,
			"notes":       notes,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.Conflict("document verification was resolved concurrently")
	}

	s.recomputeTrust(ctx, doc.UserID)

	doc.Status = status
	doc.ReviewedBy = &reviewerID
	doc.ReviewedAt = &now
	doc.Notes = notes
	return &doc, nil
}

// Level derives the user's verification level. BASIC by default, STANDARD
// with email and phone verified, PREMIUM with a verified document on top.
func (s *VerificationService) Level(ctx context.Context, userID uuid.UUID) (models.VerificationLevel, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.EmailVerified || !user.PhoneVerified {
		return models.LevelBasic, nil
	}

	var verified int64
	err = s.DB.WithContext(ctx).Model(&models.DocumentVerification{}).
		Where("user_id = ? AND status = ?", userID, models.DocumentStatusVerified).
		Count(&verified).Error
	if err != nil {
		return "", err
	}
	if verified > 0 {
		return models.LevelPremium, nil
	}
	return models.LevelStandard, nil
}

// CleanupExpired deletes all email tokens and phone codes past their expiry
// and reports how many rows went away.
func (s *VerificationService) CleanupExpired(ctx context.Context) (int64, error) {
	now := time.Now()
	var removed int64

	result := s.DB.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.EmailVerificationToken{})
	if result.Error != nil {
		return removed, result.Error
	}
	removed += result.RowsAffected

	result = s.DB.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.PhoneVerificationCode{})
	if result.Error != nil {
		return removed, result.Error
	}
	removed += result.RowsAffected

	return removed, nil
}

func (s *VerificationService) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("user %s not found", userID)
		}
		return nil, err
	}
	return &user, nil
}

func (s *VerificationService) recomputeTrust(ctx context.Context, userID uuid.UUID) {
	if s.Trust == nil {
		return
	}
	if _, err := s.Trust.Recompute(ctx, userID); err != nil {
		log.Printf("Trust recompute failed for user %s: %v", userID, err)
	}
}
