package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/taskerin/taskerin-backend/internal/utils"
)

const TokenCookie = "tm_token"

func JWTFromCookie(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Cookies(TokenCookie)
		if tokenStr == "" {
			return fiber.ErrUnauthorized
		}

		token, err := jwt.ParseWithClaims(tokenStr, &utils.Claims{}, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			return fiber.ErrUnauthorized
		}

		c.Locals("user", token)
		return c.Next()
	}
}
