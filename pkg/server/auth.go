package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/parleyvoice/go-parley/pkg/user"
)

// RegisterRequest creates a dashboard account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the account shape returned by the auth endpoints.
// The password hash never leaves the store.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenResponse carries a signed access token plus the account it
// belongs to.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

func userResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

// handleRegister creates an account and logs it straight in.
func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	u, err := s.deps.Users.Register(req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email already registered"})
		case errors.Is(err, user.ErrBadCredentials):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email and password are required"})
		default:
			s.logger.Error("register failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to register"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(TokenResponse{
		AccessToken: s.deps.Signer.Sign(u.ID),
		User:        userResponse(u),
	})
}

// handleLogin checks credentials and issues an access token.
func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	u, err := s.deps.Users.Authenticate(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrBadCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid email or password"})
		}
		s.logger.Error("login failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to log in"})
	}

	return c.JSON(TokenResponse{
		AccessToken: s.deps.Signer.Sign(u.ID),
		User:        userResponse(u),
	})
}

// handleMe returns the authenticated account.
func (s *Server) handleMe(c *fiber.Ctx) error {
	u, err := s.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(userResponse(u))
}

// currentUser resolves the bearer token on the request to an account.
func (s *Server) currentUser(c *fiber.Ctx) (*user.User, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return nil, errors.New("not authenticated")
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, errors.New("invalid auth header")
	}

	id, err := s.deps.Signer.Verify(token)
	if err != nil {
		return nil, errors.New("invalid or expired token")
	}

	u, err := s.deps.Users.Get(id)
	if err != nil {
		return nil, errors.New("user not found")
	}
	return u, nil
}
