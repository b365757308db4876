package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/service"
)

// AccountsHandler exposes the admin account endpoints. They carry no
// authentication of their own.
type AccountsHandler struct {
	accounts *service.AccountService
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(accounts *service.AccountService) *AccountsHandler {
	return &AccountsHandler{accounts: accounts}
}

// List handles GET /api/users.
func (h *AccountsHandler) List(c *fiber.Ctx) error {
	accounts, err := h.accounts.List(c.UserContext())
	if err != nil {
		return err
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	return c.JSON(accounts)
}

// Stats handles GET /api/users/stats.
func (h *AccountsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.accounts.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewStatsResponse(stats))
}

// Create handles POST /api/users.
func (h *AccountsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateAccountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return validationFailed(err)
	}

	account, err := h.accounts.Create(c.UserContext(), domain.NewAccount{
		Username: req.Username,
		Password: req.Password,
		Status:   domain.AccountStatus(req.Status),
		Role:     req.Role,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(dto.AccountResponse{
		Success: true,
		Message: "User created successfully.",
		User:    account,
	})
}

// Approve handles POST /api/users/:username/approve.
func (h *AccountsHandler) Approve(c *fiber.Ctx) error {
	username, err := usernameParam(c)
	if err != nil {
		return err
	}
	if err := h.accounts.Approve(c.UserContext(), username); err != nil {
		return err
	}
	return acknowledge(c, fmt.Sprintf("User %s approved.", username))
}

// Revoke handles POST /api/users/:username/revoke.
func (h *AccountsHandler) Revoke(c *fiber.Ctx) error {
	username, err := usernameParam(c)
	if err != nil {
		return err
	}
	req := bodyOrEmpty[dto.RevokeRequest](c)
	if err := h.accounts.Revoke(c.UserContext(), username, req.Reason); err != nil {
		return err
	}
	return acknowledge(c, fmt.Sprintf("User %s revoked.", username))
}

// Restore handles POST /api/users/:username/restore.
func (h *AccountsHandler) Restore(c *fiber.Ctx) error {
	username, err := usernameParam(c)
	if err != nil {
		return err
	}
	if err := h.accounts.Restore(c.UserContext(), username); err != nil {
		return err
	}
	return acknowledge(c, fmt.Sprintf("User %s restored.", username))
}

// Delete handles DELETE /api/users/:username.
func (h *AccountsHandler) Delete(c *fiber.Ctx) error {
	username, err := usernameParam(c)
	if err != nil {
		return err
	}
	if err := h.accounts.Delete(c.UserContext(), username); err != nil {
		return err
	}
	return acknowledge(c, fmt.Sprintf("User %s has been removed.", username))
}

func acknowledge(c *fiber.Ctx, message string) error {
	return c.JSON(dto.MessageResponse{Success: true, Message: message})
}
