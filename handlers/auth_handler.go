package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/upb/authcore/internal/auth"
	"github.com/upb/authcore/middleware"
	"github.com/upb/authcore/models"
	"github.com/upb/authcore/services"
	"github.com/upb/authcore/utils"
	"go.uber.org/zap"
)

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name,omitempty" validate:"omitempty,max=255"`
	Role     string `json:"role,omitempty" validate:"omitempty,role"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// AuthService defines the credential operations used by AuthHandler
type AuthService interface {
	Register(ctx context.Context, cred services.Credential, name string, role *auth.Role) (*services.AuthResult, error)
	Login(ctx context.Context, cred services.Credential) (*services.AuthResult, error)
}

// AuthHandler handles the public credential endpoints
type AuthHandler struct {
	auth   AuthService
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		logger: logger,
	}
}

// HandleRegister handles POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req RegisterRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	var role *auth.Role
	if req.Role != "" {
		parsed, err := auth.ParseRole(req.Role)
		if err != nil {
			HandleServiceError(w, services.ErrInvalidRole, h.logger)
			return
		}
		role = &parsed
	}

	result, err := h.auth.Register(ctx, services.Credential{Email: req.Email, Password: req.Password}, req.Name, role)
	if err != nil {
		h.logger.Debug("registration rejected",
			zap.String("request_id", requestID),
			zap.String("code", services.GetErrorCode(err)))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, toAuthResponse(result))
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req LoginRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.auth.Login(ctx, services.Credential{Email: req.Email, Password: req.Password})
	if err != nil {
		h.logger.Debug("login rejected",
			zap.String("request_id", requestID),
			zap.String("code", services.GetErrorCode(err)))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, toAuthResponse(result))
}

func toAuthResponse(result *services.AuthResult) AuthResponse {
	return AuthResponse{
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
		User:      toUserResponse(result.User),
	}
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
