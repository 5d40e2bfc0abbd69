package stubserver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type createOrderRequest struct {
	PaymentMethod string `json:"paymentMethod"`
	AddressID     string `json:"addressId"`
}

type statusNoteRequest struct {
	StatusNote string `json:"statusNote"`
}

func (s *Server) handleCreateOrder(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.PaymentMethod != "PROMPTPAY" {
		return fiber.NewError(fiber.StatusBadRequest, "unsupported payment method")
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var addr *Address
	for i, a := range s.store.addresses[userID] {
		if a.ID == req.AddressID {
			addr = &s.store.addresses[userID][i]
			break
		}
	}
	if addr == nil {
		return fiber.NewError(fiber.StatusBadRequest, "address not found")
	}

	lines := s.store.carts[userID]
	if len(lines) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "cart is empty")
	}

	items := make([]OrderItem, 0, len(lines))
	var subTotal int64
	for _, line := range lines {
		subTotal += line.UnitPrice * int64(line.Quantity)
		items = append(items, OrderItem{
			ProductID: line.ProductID,
			Color:     line.Color,
			Size:      line.Size,
			Name:      line.Name,
			Price:     line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	now := time.Now()
	expiresAt := now.Add(s.opts.PaymentWindow)
	order := &Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Items:           items,
		SubTotal:        subTotal,
		ShippingFee:     s.opts.ShippingFee,
		Total:           subTotal + s.opts.ShippingFee,
		PaymentMethod:   req.PaymentMethod,
		Status:          statusPendingPayment,
		ExpiresAt:       &expiresAt,
		PromptPayTarget: "0812345678",
		PromptPayQRURL:  fmt.Sprintf("/qr/%s.png", uuid.NewString()),
		AddressLine:     addr.Line1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.store.orders[order.ID] = order

	// Order creation consumes the cart; the client re-syncs to mirror it.
	delete(s.store.carts, userID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"orderId":         order.ID,
			"total":           order.Total,
			"promptpayTarget": order.PromptPayTarget,
			"promptpayQrUrl":  order.PromptPayQRURL,
			"expiresAt":       order.ExpiresAt,
		},
	})
}

func (s *Server) handleGetOrder(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	order := s.store.orders[c.Params("id")]
	if order == nil || order.UserID != userID {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}

	expireIfDue(order, time.Now())
	return c.JSON(fiber.Map{"success": true, "data": order})
}

func (s *Server) handleListMyOrders(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 20)
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	statusFilter := make(map[string]bool)
	if raw := c.Query("status"); raw != "" {
		for _, status := range strings.Split(raw, ",") {
			statusFilter[strings.TrimSpace(status)] = true
		}
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	now := time.Now()
	var matched []*Order
	for _, order := range s.store.orders {
		if order.UserID != userID {
			continue
		}
		expireIfDue(order, now)
		if len(statusFilter) > 0 && !statusFilter[order.Status] {
			continue
		}
		matched = append(matched, order)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    matched[start:end],
		"pagination": fiber.Map{
			"currentPage":  page,
			"itemsPerPage": size,
			"totalItems":   total,
		},
	})
}

func (s *Server) handleUploadSlip(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "slip file is required")
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	order := s.store.orders[c.Params("id")]
	if order == nil || order.UserID != userID {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}

	now := time.Now()
	expireIfDue(order, now)
	if order.Status != statusPendingPayment {
		return fiber.NewError(fiber.StatusConflict, "payment window is closed")
	}

	order.Status = statusSlipUploaded
	order.PaymentSlipURL = fmt.Sprintf("/uploads/slips/%s-%s", order.ID, file.Filename)
	order.UpdatedAt = now

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"status":         order.Status,
			"paymentSlipUrl": order.PaymentSlipURL,
		},
	})
}

func (s *Server) handleRestoreCart(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	order := s.store.orders[c.Params("id")]
	if order == nil || order.UserID != userID {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}

	expireIfDue(order, time.Now())
	if order.Status != statusExpired && order.Status != statusRejected {
		return fiber.NewError(fiber.StatusConflict, "order items cannot be restored")
	}

	lines := s.store.carts[userID]
	for _, item := range order.Items {
		merged := false
		for i := range lines {
			if lines[i].ProductID == item.ProductID && lines[i].Color == item.Color && lines[i].Size == item.Size {
				lines[i].Quantity += item.Quantity
				merged = true
				break
			}
		}
		if !merged {
			lines = append(lines, CartLine{
				ProductID: item.ProductID,
				Color:     item.Color,
				Size:      item.Size,
				Name:      item.Name,
				UnitPrice: item.Price,
				Quantity:  item.Quantity,
			})
		}
	}
	s.store.carts[userID] = lines

	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleApproveOrder(c *fiber.Ctx) error {
	return s.transitionOrder(c, statusSlipUploaded, statusPaid, func(order *Order, now time.Time) {})
}

func (s *Server) handleRejectOrder(c *fiber.Ctx) error {
	return s.transitionOrder(c, statusSlipUploaded, statusRejected, func(order *Order, now time.Time) {
		order.RejectedAt = &now
	})
}

func (s *Server) handleCancelOrder(c *fiber.Ctx) error {
	return s.transitionOrder(c, statusPaid, statusCanceled, func(order *Order, now time.Time) {
		order.CanceledAt = &now
	})
}

func (s *Server) transitionOrder(c *fiber.Ctx, from, to string, apply func(order *Order, now time.Time)) error {
	var req statusNoteRequest
	// Note body is optional on admin transitions.
	_ = c.BodyParser(&req)

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	order := s.store.orders[c.Params("id")]
	if order == nil {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}
	if order.Status != from {
		return fiber.NewError(fiber.StatusConflict,
			fmt.Sprintf("order is %s, expected %s", order.Status, from))
	}

	now := time.Now()
	order.Status = to
	order.StatusNote = req.StatusNote
	order.UpdatedAt = now
	apply(order, now)

	return c.JSON(fiber.Map{"success": true, "data": order})
}

func parseIntQuery(c *fiber.Ctx, key string, fallback int) int {
	if parsed, err := strconv.Atoi(c.Query(key, strconv.Itoa(fallback))); err == nil {
		return parsed
	}
	return fallback
}
