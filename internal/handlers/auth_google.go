package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/taskerin/taskerin-backend/internal/middleware"
	"github.com/taskerin/taskerin-backend/internal/models"
	"github.com/taskerin/taskerin-backend/internal/services/trust"
	"github.com/taskerin/taskerin-backend/internal/utils"
)

type GoogleOAuthHandler struct {
	DB              *gorm.DB
	Trust           *trust.TrustService
	JWTSecret       string
	Expires         int
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	next := c.Query("next", "/")
	st := utils.RandomToken(32)

	// state + next live in short-lived cookies until the callback
	c.Cookie(&fiber.Cookie{
		Name:     "oauth_state",
		Value:    st,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   10 * 60,
	})
	c.Cookie(&fiber.Cookie{
		Name:     "oauth_next",
		Value:    next,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   10 * 60,
	})

	authURL := h.oauthCfg().AuthCodeURL(st, oauth2.AccessTypeOffline)
	return c.Redirect(authURL, http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing code/state")
	}

	stCookie := c.Cookies("oauth_state")
	next := c.Cookies("oauth_next")
	if next == "" {
		next = "/"
	}
	if stCookie == "" || stCookie != state {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid state")
	}

	tok, err := h.oauthCfg().Exchange(c.Context(), code)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to exchange code")
	}

	client := h.oauthCfg().Client(c.Context(), tok)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to fetch userinfo")
	}
	defer resp.Body.Close()

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to decode userinfo")
	}

	email := strings.ToLower(strings.TrimSpace(gu.Email))
	name := strings.TrimSpace(gu.Name)
	if email == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Email not found from Google")
	}

	var u models.User
	err = h.DB.Where("email = ?", email).First(&u).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return c.Status(fiber.StatusInternalServerError).SendString("DB error")
	}

	if err == gorm.ErrRecordNotFound {
		// Password column is not null; this one is never used for login.
		rawPass := utils.RandomToken(24)
		hashed, _ := utils.HashPassword(rawPass)

		u = models.User{
			Name:          name,
			Email:         email,
			Password:      hashed,
			Role:          models.RoleClient,
			IsActive:      true,
			EmailVerified: gu.VerifiedEmail,
		}
		if err := h.DB.Create(&u).Error; err != nil {
			log.Println("Error creating user via Google:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to create account",
			})
		}
		if u.EmailVerified && h.Trust != nil {
			if _, err := h.Trust.Recompute(c.Context(), u.ID); err != nil {
				log.Printf("Trust recompute failed for user %s: %v", u.ID, err)
			}
		}
	} else if name != "" && u.Name != name {
		u.Name = name
		_ = h.DB.Save(&u).Error
	}

	if !u.IsActive {
		u2 := h.FrontendBaseURL + "/auth/login?err=" + url.QueryEscape("Account is inactive")
		return c.Redirect(u2, http.StatusTemporaryRedirect)
	}

	jwtToken, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to sign jwt")
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    jwtToken,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   h.Expires * 60,
	})

	c.Cookie(&fiber.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1, HTTPOnly: true, Secure: false, SameSite: "Lax"})
	c.Cookie(&fiber.Cookie{Name: "oauth_next", Value: "", Path: "/", MaxAge: -1, HTTPOnly: true, Secure: false, SameSite: "Lax"})

	redirectURL := h.FrontendBaseURL + next
	if !strings.HasPrefix(next, "/") {
		redirectURL = h.FrontendBaseURL + "/"
	}
	return c.Redirect(redirectURL, http.StatusTemporaryRedirect)
}
