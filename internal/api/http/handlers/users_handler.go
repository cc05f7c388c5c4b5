package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/session-service/internal/api/dto"
	"github.com/spec-kit/session-service/internal/auth"
	"github.com/spec-kit/session-service/internal/domain"
	"github.com/spec-kit/session-service/internal/service"
	apperrors "github.com/spec-kit/session-service/pkg/util/errorutil"
)

type validatable interface {
	Validate() error
}

// UsersHandler exposes account and session endpoints.
type UsersHandler struct {
	sessions *service.SessionService
	users    *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(sessions *service.SessionService, users *service.UserService) *UsersHandler {
	return &UsersHandler{sessions: sessions, users: users}
}

// Signup handles POST /users.
func (h *UsersHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.users.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Password: req.Password,
		Nickname: req.Nickname,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.OK(dto.NewUserResponse(user)))
}

// CheckUsername handles GET /users/check-username.
func (h *UsersHandler) CheckUsername(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		return apperrors.NewValidationError("username query parameter is required", nil)
	}
	available, err := h.users.CheckUsername(c.UserContext(), username)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.UsernameCheckResponse{Username: username, Available: available}))
}

// Login handles POST /users/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	pair, err := h.sessions.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewTokenResponse(pair)))
}

// Refresh handles POST /users/refresh.
func (h *UsersHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	pair, err := h.sessions.Refresh(c.UserContext(), strings.TrimPrefix(req.Token, "Bearer "))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewTokenResponse(pair)))
}

// Logout handles POST /users/logout.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	removed, err := h.sessions.Logout(c.UserContext(), principal.Subject)
	if err != nil {
		return err
	}
	auth.ClearPrincipal(c)
	return c.JSON(dto.OK(dto.LogoutResponse{HadSession: removed}))
}

// SignOut handles DELETE /users/signout.
func (h *UsersHandler) SignOut(c *fiber.Ctx) error {
	var req dto.SignoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	principal, _ := auth.PrincipalFromContext(c)
	if err := h.sessions.SignOut(c.UserContext(), principal.Subject, req.Password); err != nil {
		return err
	}
	auth.ClearPrincipal(c)
	return c.JSON(dto.OK(nil))
}

// Me handles GET /users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	user, err := h.users.GetProfile(c.UserContext(), principal.Subject)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewUserResponse(user)))
}

// UpdateMe handles PATCH /users/me.
func (h *UsersHandler) UpdateMe(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	principal, _ := auth.PrincipalFromContext(c)
	user, err := h.users.UpdateProfile(c.UserContext(), principal.Subject, service.ProfileUpdate{
		Nickname: req.Nickname,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewUserResponse(user)))
}

// UpdateRole handles PATCH /users/:username/role.
func (h *UsersHandler) UpdateRole(c *fiber.Ctx) error {
	var req dto.UpdateRoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	user, err := h.users.UpdateRole(c.UserContext(), c.Params("username"), role)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewUserResponse(user)))
}

func parseBody(c *fiber.Ctx, out validatable) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return out.Validate()
}
