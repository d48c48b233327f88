package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/profile-service/internal/api/dto"
	"github.com/spec-kit/profile-service/internal/service"
	apperrors "github.com/spec-kit/profile-service/pkg/util"
)

// AuthHandler exposes token endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInputError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewInputError("email and password required", nil)
	}

	_, pair, err := h.auth.Login(c.UserContext(), req.Email, req.Password, c.IP())
	if err != nil {
		return err
	}
	return c.JSON(dto.DataResponse[dto.AuthResponse]{Data: dto.NewAuthResponse(pair)})
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInputError("invalid payload", nil)
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return apperrors.NewInputError("refresh_token required", nil)
	}

	_, pair, err := h.auth.Refresh(c.UserContext(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return err
	}
	return c.JSON(dto.DataResponse[dto.AuthResponse]{Data: dto.NewAuthResponse(pair)})
}
