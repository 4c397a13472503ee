package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskerin/taskerin-backend/internal/guard"
	"github.com/taskerin/taskerin-backend/internal/models"
)

type ReviewHandler struct {
	DB *gorm.DB
}

type CreateReviewReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Create lets the owner rate the assignee of a completed task, once.
func (h *ReviewHandler) Create(c *fiber.Ctx) error {
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

	var req CreateReviewReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	errors := FieldErrors{}
	if req.Rating < 1 || req.Rating > 5 {
		errors.Add("rating", "Rating must be between 1 and 5")
	}
	if len(errors) > 0 {
		return validationFail(c, errors)
	}

	var task models.Task
	if err := h.DB.First(&task, "id = ?", taskID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "task not found",
		})
	}
	if !guard.IsOwner(&task, userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "only the task owner can leave a review",
		})
	}
	if task.Status != models.TaskStatusCompleted || task.AssigneeID == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "only completed tasks can be reviewed",
		})
	}

	var existing int64
	if err := h.DB.Model(&models.Review{}).Where("task_id = ?", taskID).Count(&existing).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}
	if existing > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "task is already reviewed",
		})
	}

	review := models.Review{
		TaskID:   taskID,
		OwnerID:  userID,
		TaskerID: *task.AssigneeID,
		Rating:   req.Rating,
		Comment:  req.Comment,
	}
	if err := h.DB.Create(&review).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to save review",
		})
	}

	return respondCreated(c, "Review saved", review)
}

// ListForTasker returns the reviews a tasker has received, with the average.
func (h *ReviewHandler) ListForTasker(c *fiber.Ctx) error {
	taskerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid user id",
		})
	}

	var reviews []models.Review
	if err := h.DB.Preload("Owner").
		Where("tasker_id = ?", taskerID).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	var avg float64
	if len(reviews) > 0 {
		sum := 0
		for _, r := range reviews {
			sum += r.Rating
		}
		avg = float64(sum) / float64(len(reviews))
	}

	return respondOK(c, "OK", fiber.Map{
		"reviews": reviews,
		"average": avg,
		"count":   len(reviews),
	})
}
