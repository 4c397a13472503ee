package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/taskerin/taskerin-backend/internal/middleware"
	"github.com/taskerin/taskerin-backend/internal/models"
	"github.com/taskerin/taskerin-backend/internal/utils"
)

type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret string
	Expires   int
}

type RegisterReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     string `json:"role"` // client / tasker (admins are never self-served)
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	phone := strings.TrimSpace(req.Phone)
	password := strings.TrimSpace(req.Password)

	role := models.RoleClient
	if req.Role == string(models.RoleTasker) {
		role = models.RoleTasker
	}

	errors := FieldErrors{}
	if name == "" {
		errors.Add("name", "Name is required")
	}
	if email == "" {
		errors.Add("email", "Email is required")
	} else if !strings.Contains(email, "@") {
		errors.Add("email", "Email format is invalid")
	}
	if password == "" {
		errors.Add("password", "Password is required")
	} else if len(password) < 6 {
		errors.Add("password", "Password must be at least 6 characters")
	}
	if phone != "" && len(phone) < 8 {
		errors.Add("phone", "Phone number is invalid")
	}
	if len(errors) > 0 {
		return validationFail(c, errors)
	}

	var existing models.User
	if err := h.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		errs := FieldErrors{}
		errs.Add("email", "Email is already registered")
		return validationFail(c, errs)
	} else if err != gorm.ErrRecordNotFound {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	pw, err := utils.HashPassword(password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to process password",
		})
	}

	u := models.User{
		Name:     name,
		Email:    email,
		Password: pw,
		Role:     role,
		IsActive: true,
		Phone:    phone,
	}
	if err := h.DB.Create(&u).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Failed to register",
		})
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create token",
		})
	}

	h.setAuthCookie(c, token)

	return respondCreated(c, "Registered", fiber.Map{
		"user": fiber.Map{
			"id":    u.ID,
			"name":  u.Name,
			"email": u.Email,
			"phone": u.Phone,
			"role":  u.Role,
		},
	})
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	errors := FieldErrors{}
	if email == "" {
		errors.Add("email", "Email is required")
	}
	if password == "" {
		errors.Add("password", "Password is required")
	}
	if len(errors) > 0 {
		return validationFail(c, errors)
	}

	var u models.User
	if err := h.DB.Where("email = ?", email).First(&u).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Wrong email or password",
		})
	}

	if !u.IsActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Account is inactive",
		})
	}

	if !utils.CheckPassword(u.Password, password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Wrong email or password",
		})
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create token",
		})
	}

	h.setAuthCookie(c, token)

	return respondOK(c, "Logged in", fiber.Map{
		"user": fiber.Map{
			"id":    u.ID,
			"name":  u.Name,
			"email": u.Email,
			"role":  u.Role,
		},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
		MaxAge:   -1,
	})
	return respondOK(c, "Logged out", nil)
}

func (h *AuthHandler) setAuthCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   h.Expires * 60,
	})
}
