package stubserver

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}

	s.store.mu.Lock()
	if _, exists := s.store.usersByEmail[req.Email]; exists {
		s.store.mu.Unlock()
		return fiber.NewError(fiber.StatusConflict, "user already exists")
	}
	s.store.mu.Unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		Roles:        []string{"ROLE_USER"},
	}

	s.store.mu.Lock()
	s.store.users[user.ID] = user
	s.store.usersByEmail[user.Email] = user
	s.store.mu.Unlock()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    profileJSON(user),
	})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	s.store.mu.Lock()
	user := s.store.usersByEmail[req.Email]
	s.store.mu.Unlock()

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	return s.issueCredentials(c, user)
}

func (s *Server) handleRefresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	s.store.mu.Lock()
	userID, ok := s.store.refreshTokens[req.RefreshToken]
	if ok {
		// Refresh tokens are single-use; rotation invalidates the old one.
		delete(s.store.refreshTokens, req.RefreshToken)
	}
	user := s.store.users[userID]
	s.store.mu.Unlock()

	if !ok || user == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid refresh token")
	}

	return s.issueCredentials(c, user)
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	s.store.mu.Lock()
	user := s.store.users[userID]
	s.store.mu.Unlock()

	if user == nil {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}

	return c.JSON(profileJSON(user))
}

func (s *Server) issueCredentials(c *fiber.Ctx, user *User) error {
	accessToken, err := generateToken(s.opts.JWTSecret, user, s.opts.AccessTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	refreshToken := uuid.NewString()
	s.store.mu.Lock()
	s.store.refreshTokens[refreshToken] = user.ID
	s.store.mu.Unlock()

	return c.JSON(fiber.Map{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
		"user":         profileJSON(user),
	})
}

func profileJSON(user *User) fiber.Map {
	return fiber.Map{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
		"roles": user.Roles,
	}
}
