package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// getUserUUID reads the authenticated user id that AttachJWTLocals stored as
// a string under "userId".
func getUserUUID(c *fiber.Ctx) (uuid.UUID, error) {
	raw, _ := c.Locals("userId").(string)
	if raw == "" {
		return uuid.Nil, errors.New("missing user id")
	}
	return uuid.Parse(raw)
}
