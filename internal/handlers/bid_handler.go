package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/taskerin/taskerin-backend/internal/services/bid"
)

type BidHandler struct {
	Bids *bid.BidService
}

func (h *BidHandler) Place(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}
	taskID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid task id",
		})
	}

	var in bid.PlaceBidInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	placed, err := h.Bids.PlaceBid(c.Context(), userID, taskID, in)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, "Bid placed", placed)
}

func (h *BidHandler) Withdraw(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}
	bidID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid bid id",
		})
	}

	if err := h.Bids.Withdraw(c.Context(), userID, bidID); err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Bid withdrawn", nil)
}

func (h *BidHandler) ListForTask(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}
	taskID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid task id",
		})
	}

	bids, err := h.Bids.ListForTask(c.Context(), userID, taskID)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "OK", bids)
}

func (h *BidHandler) ListMine(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}

	bids, err := h.Bids.ListMine(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "OK", bids)
}

func (h *BidHandler) Accept(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}
	bidID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid bid id",
		})
	}

	accepted, err := h.Bids.Accept(c.Context(), userID, bidID)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Bid accepted", accepted)
}

func (h *BidHandler) Reject(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}
	bidID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid bid id",
		})
	}

	if err := h.Bids.Reject(c.Context(), userID, bidID); err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Bid rejected", nil)
}
