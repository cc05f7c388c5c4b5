package dto

import (
	"errors"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/spec-kit/session-service/internal/domain"
	apperrors "github.com/spec-kit/session-service/pkg/util/errorutil"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9]+$`)

var (
	usernameRules = []validation.Rule{validation.Required, validation.Length(4, 20), validation.Match(usernamePattern).Error("must contain only lowercase letters and digits")}
	passwordRules = []validation.Rule{validation.Required, validation.Length(8, 64)}
	nicknameRules = []validation.Rule{validation.Required, validation.Length(2, 20)}
)

// SignupRequest payload for POST /users.
type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

// Validate will run validation rules
func (r SignupRequest) Validate() error {
	return asValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Username, usernameRules...),
		validation.Field(&r.Password, passwordRules...),
		validation.Field(&r.Nickname, nicknameRules...),
	))
}

// LoginRequest payload for POST /users/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return asValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	))
}

// RefreshRequest payload for POST /users/refresh.
type RefreshRequest struct {
	Token string `json:"token"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() error {
	return asValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	))
}

// SignoutRequest payload for DELETE /users/signout.
type SignoutRequest struct {
	Password string `json:"password"`
}

// Validate will run validation rules
func (r SignoutRequest) Validate() error {
	return asValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
	))
}

// UpdateProfileRequest payload for PATCH /users/me. Absent fields are left
// unchanged.
type UpdateProfileRequest struct {
	Nickname *string `json:"nickname"`
	Password *string `json:"password"`
}

// Validate will run validation rules
func (r UpdateProfileRequest) Validate() error {
	if r.Nickname == nil && r.Password == nil {
		return apperrors.NewValidationError("nothing to update", nil)
	}
	return asValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Nickname, validation.NilOrNotEmpty, validation.Length(2, 20)),
		validation.Field(&r.Password, validation.NilOrNotEmpty, validation.Length(8, 64)),
	))
}

// UpdateRoleRequest payload for PATCH /users/:username/role.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// Validate will run validation rules
func (r UpdateRoleRequest) Validate() error {
	return asValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.In(string(domain.RoleUser), string(domain.RoleManager))),
	))
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken          string    `json:"accessToken"`
	RefreshToken         string    `json:"refreshToken"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
}

// NewTokenResponse maps a token pair.
func NewTokenResponse(pair *domain.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:          pair.AccessToken,
		RefreshToken:         pair.RefreshToken,
		AccessTokenExpiresAt: pair.AccessExpiresAt,
	}
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUserResponse maps a user record.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Nickname:  u.Nickname,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

// UsernameCheckResponse answers GET /users/check-username.
type UsernameCheckResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

// LogoutResponse answers POST /users/logout.
type LogoutResponse struct {
	HadSession bool `json:"hadSession"`
}

func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for field, ferr := range fieldErrs {
			details[field] = ferr.Error()
		}
		return apperrors.NewValidationError("invalid request", details)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}
