package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/taskerin/taskerin-backend/internal/apperrors"
)

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func validationFail(c *fiber.Ctx, errs FieldErrors) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "Validation error",
		"errors":  errs,
	})
}

// respondError maps a service error to the response envelope using the
// apperrors status table.
func respondError(c *fiber.Ctx, err error) error {
	status := apperrors.StatusCode(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "Internal server error"
	}
	body := fiber.Map{
		"success": false,
		"message": msg,
	}
	if kind := apperrors.KindOf(err); kind != "" {
		body["error"] = string(kind)
	}
	return c.Status(status).JSON(body)
}

func respondOK(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func respondCreated(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func getUserUUID(c *fiber.Ctx) (uuid.UUID, error) {
	v := c.Locals("userId")
	if v == nil {
		return uuid.Nil, fmt.Errorf("unauthorized")
	}

	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case string:
		return uuid.Parse(t)
	case []byte:
		return uuid.ParseBytes(t)
	default:
		return uuid.Nil, fmt.Errorf("invalid userId type: %T", v)
	}
}
