package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/service"
)

// AuthHandler exposes login and self-registration.
type AuthHandler struct {
	accounts *service.AccountService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Login handles POST /api/login.
// A body that cannot be read counts as empty credentials.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	req := bodyOrEmpty[dto.CredentialsRequest](c)

	principal, err := h.accounts.Authenticate(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(dto.LoginResponse{
		Success:  true,
		Message:  "Login successful!",
		IsAdmin:  principal.IsAdmin,
		Username: principal.Username,
	})
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.CredentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return validationFailed(err)
	}

	account, err := h.accounts.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(dto.AccountResponse{
		Success: true,
		Message: "Account created! Awaiting admin approval.",
		User:    account,
	})
}
