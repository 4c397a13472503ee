package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/taskerin/taskerin-backend/internal/models"
	"github.com/taskerin/taskerin-backend/internal/services/task"
)

type TaskHandler struct {
	Tasks *task.TaskService
}

func (h *TaskHandler) Create(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}

	var in task.CreateTaskInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	created, err := h.Tasks.Create(c.Context(), userID, in)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, "Task created", created)
}

func (h *TaskHandler) Get(c *fiber.Ctx) error {
	taskID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid task id",
		})
	}

	found, err := h.Tasks.Get(c.Context(), taskID)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "OK", found)
}

func (h *TaskHandler) List(c *fiber.Ctx) error {
	filter := task.ListFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Search:   c.Query("q"),
	}
	filter.Page, _ = strconv.Atoi(c.Query("page", "1"))
	filter.Limit, _ = strconv.Atoi(c.Query("limit", "20"))

	if raw := c.Query("owner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "invalid owner_id",
			})
		}
		filter.OwnerID = &id
	}
	if raw := c.Query("assignee_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "invalid assignee_id",
			})
		}
		filter.AssigneeID = &id
	}

	tasks, total, err := h.Tasks.List(c.Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "OK", fiber.Map{
		"tasks": tasks,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// MyTasks lists the tasks the caller owns or works on.
func (h *TaskHandler) MyTasks(c *fiber.Ctx) error {
	userID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "unauthorized",
		})
	}

	ownedFilter := task.ListFilter{OwnerID: &userID, Limit: 100}
	owned, _, err := h.Tasks.List(c.Context(), ownedFilter)
	if err != nil {
		return respondError(c, err)
	}

	assignedFilter := task.ListFilter{AssigneeID: &userID, Limit: 100}
	assigned, _, err := h.Tasks.List(c.Context(), assignedFilter)
	if err != nil {
		return respondError(c, err)
	}

	return respondOK(c, "OK", fiber.Map{
		"owned":    owned,
		"assigned": assigned,
	})
}

func (h *TaskHandler) Update(c *fiber.Ctx) error {
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

	var in task.UpdateTaskInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	updated, err := h.Tasks.Update(c.Context(), userID, taskID, in)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Task updated", updated)
}

func (h *TaskHandler) Delete(c *fiber.Ctx) error {
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

	if err := h.Tasks.Delete(c.Context(), userID, taskID); err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Task deleted", nil)
}

type AssignReq struct {
	AssigneeID string `json:"assignee_id"`
}

func (h *TaskHandler) Assign(c *fiber.Ctx) error {
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

	var req AssignReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}
	assigneeID, err := uuid.Parse(req.AssigneeID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid assignee_id",
		})
	}

	assigned, err := h.Tasks.Assign(c.Context(), userID, taskID, assigneeID)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Task assigned", assigned)
}

type TransitionReq struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *TaskHandler) Transition(c *fiber.Ctx) error {
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

	var req TransitionReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	updated, err := h.Tasks.RequestTransition(c.Context(), userID, taskID, models.TaskStatus(req.Status), req.Note)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Status updated", updated)
}

func (h *TaskHandler) Complete(c *fiber.Ctx) error {
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

	completed, err := h.Tasks.Complete(c.Context(), userID, taskID)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Task completed", completed)
}

type CancelReq struct {
	Note string `json:"note"`
}

func (h *TaskHandler) Cancel(c *fiber.Ctx) error {
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

	var req CancelReq
	_ = c.BodyParser(&req)

	cancelled, err := h.Tasks.Cancel(c.Context(), userID, taskID, req.Note)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, "Task cancelled", cancelled)
}
