package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/profile-service/internal/api/dto"
	"github.com/spec-kit/profile-service/internal/auth"
	"github.com/spec-kit/profile-service/internal/service"
	apperrors "github.com/spec-kit/profile-service/pkg/util"
)

// UsersHandler exposes registration and profile endpoints.
type UsersHandler struct {
	auth  *service.AuthService
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, userService *service.UserService) *UsersHandler {
	return &UsersHandler{auth: authService, users: userService}
}

// Register handles POST /users.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInputError("invalid payload", nil)
	}

	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	c.Location("/users/" + user.ID)
	return c.Status(fiber.StatusCreated).JSON(dto.DataResponse[dto.UserResponse]{Data: dto.NewUserResponse(user)})
}

// Me handles GET /users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("authentication required")
	}
	return c.JSON(dto.DataResponse[dto.UserResponse]{Data: dto.NewUserResponse(identity.User)})
}

// Get handles GET /users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.GetProfile(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.DataResponse[dto.UserResponse]{Data: dto.NewUserResponse(user)})
}

// Update handles PUT /users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("authentication required")
	}

	var req dto.UserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInputError("invalid payload", nil)
	}

	user, err := h.users.UpdateProfile(c.UserContext(), identity.User.ID, c.Params("id"), req.ToProfileUpdate())
	if err != nil {
		return err
	}
	return c.JSON(dto.DataResponse[dto.UserResponse]{Data: dto.NewUserResponse(user)})
}
