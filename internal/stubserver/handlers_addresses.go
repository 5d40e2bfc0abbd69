package stubserver

import (
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleListAddresses(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	s.store.mu.Lock()
	addresses := append([]Address(nil), s.store.addresses[userID]...)
	s.store.mu.Unlock()

	return c.JSON(fiber.Map{"success": true, "data": addresses})
}
