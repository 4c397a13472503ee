package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/taskerin/taskerin-backend/internal/models"
	"github.com/taskerin/taskerin-backend/internal/services/verification"
)

type VerificationHandler struct {
	Verification *verification.VerificationService
}

func (h *VerificationHandler) RequestEmail(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}

	if err := h.Verification.RequestEmailVerification(c.Context(), userID); err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Verification email sent", nil)
}

func (h *VerificationHandler) ConfirmEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		var req struct {
			Token string `json:"token"`
		}
		_ = c.BodyParser(&req)
		token = req.Token
	}
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "token is required",
		})
	}

	user, err := h.Verification.ConfirmEmail(c.Context(), token)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Email verified", fiber.Map{
		"email_verified": user.EmailVerified,
		"trust_score":    user.TrustScore,
	})
}

type RequestPhoneReq struct {
	Phone string `json:"phone"`
}

func (h *VerificationHandler) RequestPhone(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}

	var req RequestPhoneReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	if err := h.Verification.RequestPhoneVerification(c.Context(), userID, req.Phone); err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Verification code sent", nil)
}

type ConfirmPhoneReq struct {
	Code string `json:"code"`
}

func (h *VerificationHandler) ConfirmPhone(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}

	var req ConfirmPhoneReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	user, err := h.Verification.ConfirmPhone(c.Context(), userID, req.Code)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Phone verified", fiber.Map{
		"phone_verified": user.PhoneVerified,
		"phone":          user.Phone,
		"trust_score":    user.TrustScore,
	})
}

func (h *VerificationHandler) SubmitDocument(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}

	var in verification.SubmitDocumentInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	doc, err := h.Verification.SubmitDocument(c.Context(), userID, in)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, "Document submitted for review", doc)
}

type ResolveDocumentReq struct {
	Status string `json:"status"` // verified / rejected
	Notes  string `json:"notes"`
}

// ResolveDocument is admin-only; the route is gated by RequireRoles.
func (h *VerificationHandler) ResolveDocument(c *fiber.Ctx) error {
	reviewerID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}
	docID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid document id",
		})
	}

	var req ResolveDocumentReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	doc, err := h.Verification.ResolveDocument(c.Context(), reviewerID, docID, models.DocumentStatus(req.Status), req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Document resolved", doc)
}
