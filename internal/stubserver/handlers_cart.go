package stubserver

import (
	"github.com/gofiber/fiber/v2"
)

type cartMutationRequest struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) handleGetCart(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return c.JSON(fiber.Map{"success": true, "data": s.cartJSONLocked(userID)})
}

func (s *Server) handleAddCartItem(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req cartMutationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.ProductID == "" || req.Quantity < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "productId and a positive quantity are required")
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	product, exists := s.store.products[req.ProductID]
	if !exists {
		return fiber.NewError(fiber.StatusNotFound, "product not found")
	}

	lines := s.store.carts[userID]
	merged := false
	for i := range lines {
		if lines[i].ProductID == req.ProductID && lines[i].Color == req.Color && lines[i].Size == req.Size {
			// Same composite key folds into the existing line.
			lines[i].Quantity += req.Quantity
			merged = true
			break
		}
	}
	if !merged {
		lines = append(lines, CartLine{
			ProductID: req.ProductID,
			Color:     req.Color,
			Size:      req.Size,
			Name:      product.Name,
			Image:     product.Image,
			UnitPrice: product.Price,
			Quantity:  req.Quantity,
		})
	}
	s.store.carts[userID] = lines

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": s.cartJSONLocked(userID)})
}

func (s *Server) handleUpdateCartItem(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req cartMutationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Quantity < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "quantity must be at least 1")
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	lines := s.store.carts[userID]
	for i := range lines {
		if lines[i].ProductID == req.ProductID && lines[i].Color == req.Color && lines[i].Size == req.Size {
			lines[i].Quantity = req.Quantity
			return c.JSON(fiber.Map{"success": true, "data": s.cartJSONLocked(userID)})
		}
	}

	return fiber.NewError(fiber.StatusNotFound, "cart item not found")
}

func (s *Server) handleRemoveCartItem(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	productID := c.Query("productId")
	color := c.Query("color")
	size := c.Query("size")

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	lines := s.store.carts[userID]
	for i := range lines {
		if lines[i].ProductID == productID && lines[i].Color == color && lines[i].Size == size {
			s.store.carts[userID] = append(lines[:i], lines[i+1:]...)
			return c.JSON(fiber.Map{"success": true, "data": s.cartJSONLocked(userID)})
		}
	}

	return fiber.NewError(fiber.StatusNotFound, "cart item not found")
}

func (s *Server) handleClearCart(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	delete(s.store.carts, userID)
	return c.JSON(fiber.Map{"success": true, "data": s.cartJSONLocked(userID)})
}

// cartJSONLocked renders a user's cart in the current wire shape
// (unitPrice/imageUrl field names). Caller holds the store lock.
func (s *Server) cartJSONLocked(userID string) fiber.Map {
	lines := s.store.carts[userID]

	items := make([]fiber.Map, 0, len(lines))
	var subTotal int64
	for _, line := range lines {
		subTotal += line.UnitPrice * int64(line.Quantity)
		items = append(items, fiber.Map{
			"productId": line.ProductID,
			"color":     line.Color,
			"size":      line.Size,
			"name":      line.Name,
			"imageUrl":  line.Image,
			"unitPrice": line.UnitPrice,
			"quantity":  line.Quantity,
		})
	}

	var shippingFee int64
	if len(lines) > 0 {
		shippingFee = s.opts.ShippingFee
	}

	return fiber.Map{
		"items":       items,
		"subTotal":    subTotal,
		"shippingFee": shippingFee,
	}
}
