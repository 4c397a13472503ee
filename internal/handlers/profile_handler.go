package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/taskerin/taskerin-backend/internal/models"
	"github.com/taskerin/taskerin-backend/internal/services/verification"
)

type ProfileHandler struct {
	DB           *gorm.DB
	Verification *verification.VerificationService
}

// Me returns the caller's profile with trust score and verification level.
func (h *ProfileHandler) Me(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}

	var u models.User
	if err := h.DB.Preload("DocumentVerifications").First(&u, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "user not found",
		})
	}

	level, err := h.Verification.Level(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return respondOK(c, "OK", fiber.Map{
		"user":               u,
		"trust_score":        u.TrustScore,
		"verification_level": level,
	})
}
