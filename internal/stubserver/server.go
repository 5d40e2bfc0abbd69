// Package stubserver is an in-memory implementation of the storefront
// REST API, used for local development and as the fixture for
// integration tests. It mirrors the real backend's contract: JSON
// envelopes, bearer auth, a per-order payment window and admin-driven
// settlement transitions.
package stubserver

import (
	"errors"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const userContextKey = "currentUserID"

// Options tune the stub's behavior.
type Options struct {
	JWTSecret     string
	AccessTTL     time.Duration
	PaymentWindow time.Duration
	ShippingFee   int64
}

// Server bundles the stub's state and Fiber app.
type Server struct {
	opts  Options
	store *store
	app   *fiber.App
}

// New constructs a stub server with routes registered.
func New(opts Options) *Server {
	if opts.JWTSecret == "" {
		opts.JWTSecret = "stub-secret"
	}
	if opts.AccessTTL == 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.PaymentWindow == 0 {
		opts.PaymentWindow = 15 * time.Minute
	}
	if opts.ShippingFee == 0 {
		opts.ShippingFee = 50
	}

	s := &Server{
		opts:  opts,
		store: newStore(),
	}

	app := fiber.New(fiber.Config{
		AppName: "Storefront Stub",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
			}
			return c.Status(code).JSON(fiber.Map{"success": false, "error": err.Error()})
		},
	})
	app.Use(recover.New())

	s.app = app
	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber app for listening.
func (s *Server) App() *fiber.App {
	return s.app
}

// StartEphemeral serves the app on a loopback listener with an
// OS-assigned port and returns the API base URL. Used by tests.
func (s *Server) StartEphemeral() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	go func() {
		_ = s.app.Listener(ln)
	}()
	return "http://" + ln.Addr().String() + "/api", nil
}

// Shutdown stops the underlying app.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// SeedProduct adds a catalog entry the stub can sell.
func (s *Server) SeedProduct(p Product) {
	s.store.mu.Lock()
	s.store.products[p.ID] = p
	s.store.mu.Unlock()
}

// SeedAddress adds an address for the given user, assigning an ID.
func (s *Server) SeedAddress(userID string, addr Address) Address {
	if addr.ID == "" {
		addr.ID = uuid.NewString()
	}
	s.store.mu.Lock()
	s.store.addresses[userID] = append(s.store.addresses[userID], addr)
	s.store.mu.Unlock()
	return addr
}

// Register creates a user directly, bypassing the HTTP endpoint.
// Returns the new user's ID.
func (s *Server) Register(email, password string, roles ...string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Roles:        roles,
	}

	s.store.mu.Lock()
	s.store.users[user.ID] = user
	s.store.usersByEmail[user.Email] = user
	s.store.mu.Unlock()
	return user.ID, nil
}

// ExpireOrder forces an order's payment window into the past.
func (s *Server) ExpireOrder(orderID string) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if order, ok := s.store.orders[orderID]; ok {
		past := time.Now().Add(-time.Second)
		order.ExpiresAt = &past
		expireIfDue(order, time.Now())
	}
}

func (s *Server) registerRoutes() {
	api := s.app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", s.handleRegister)
	auth.Post("/login", s.handleLogin)
	auth.Post("/refresh", s.handleRefresh)

	protected := api.Group("", s.authMiddleware)
	protected.Get("/auth/me", s.handleMe)

	protected.Get("/cart", s.handleGetCart)
	protected.Post("/cart/items", s.handleAddCartItem)
	protected.Put("/cart/items", s.handleUpdateCartItem)
	protected.Delete("/cart/items", s.handleRemoveCartItem)
	protected.Delete("/cart", s.handleClearCart)

	protected.Get("/addresses", s.handleListAddresses)

	protected.Post("/orders", s.handleCreateOrder)
	protected.Get("/orders/my", s.handleListMyOrders)
	protected.Get("/orders/:id", s.handleGetOrder)
	protected.Post("/orders/:id/slip", s.handleUploadSlip)
	protected.Post("/orders/:id/restore-cart", s.handleRestoreCart)

	admin := protected.Group("/admin", s.adminMiddleware)
	admin.Post("/orders/:id/approve", s.handleApproveOrder)
	admin.Post("/orders/:id/reject", s.handleRejectOrder)
	admin.Post("/orders/:id/cancel", s.handleCancelOrder)
}

// authMiddleware validates bearer tokens and loads the user ID into
// context.
func (s *Server) authMiddleware(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
	}

	userID, err := parseToken(s.opts.JWTSecret, parts[1])
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}

	c.Locals(userContextKey, userID)
	return c.Next()
}

func (s *Server) adminMiddleware(c *fiber.Ctx) error {
	userID, _ := c.Locals(userContextKey).(string)

	s.store.mu.Lock()
	user := s.store.users[userID]
	s.store.mu.Unlock()

	if user == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	for _, role := range user.Roles {
		if strings.EqualFold(strings.TrimPrefix(strings.ToUpper(role), "ROLE_"), "ADMIN") {
			return c.Next()
		}
	}
	return fiber.NewError(fiber.StatusForbidden, "admin role required")
}

func currentUserID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(userContextKey).(string)
	return id, ok && id != ""
}
