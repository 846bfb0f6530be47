package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/authcore/internal/auth"
	"github.com/upb/authcore/middleware"
	"github.com/upb/authcore/models"
	"github.com/upb/authcore/services"
	"github.com/upb/authcore/utils"
	"go.uber.org/zap"
)

// UpdateProfileRequest represents a profile update
type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// UserListResponse is a page of users. Limit and Offset are the values
// applied after clamping, not the raw query parameters.
type UserListResponse struct {
	Users  []UserResponse `json:"users"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// AuditTrailResponse is a page of audit entries about one user
type AuditTrailResponse struct {
	Entries []*models.AuditLog `json:"entries"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
}

// UserService defines the protected user operations. Each method receives
// the caller's claims and performs its own access check.
type UserService interface {
	Profile(ctx context.Context, claims auth.Claims) (*models.User, error)
	UpdateProfile(ctx context.Context, claims auth.Claims, name string) (*models.User, error)
	List(ctx context.Context, claims auth.Claims, limit, offset int) ([]*models.User, services.Page, error)
	AuditTrail(ctx context.Context, claims auth.Claims, id uuid.UUID, limit, offset int) ([]*models.AuditLog, services.Page, error)
	Delete(ctx context.Context, claims auth.Claims, id uuid.UUID) error
}

// UserHandler handles the authenticated user and admin endpoints
type UserHandler struct {
	users  UserService
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// HandleGetMe handles GET /api/users/me
func (h *UserHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	user, err := h.users.Profile(r.Context(), claims)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, toUserResponse(user))
}

// HandleUpdateMe handles PUT /api/users/me
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), claims, req.Name)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, toUserResponse(user))
}

// HandleListUsers handles GET /api/admin/users?limit=&offset=
func (h *UserHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}

	users, page, err := h.users.List(r.Context(), claims, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	resp := UserListResponse{Users: make([]UserResponse, 0, len(users)), Limit: page.Limit, Offset: page.Offset}
	for _, u := range users {
		resp.Users = append(resp.Users, toUserResponse(u))
	}
	_ = utils.WriteOK(w, resp)
}

// HandleAuditTrail handles GET /api/admin/users/{id}/audit?limit=&offset=
func (h *UserHandler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		HandleServiceError(w, services.ErrInvalidUserID.Wrap(err), h.logger)
		return
	}

	limit, offset, ok := h.paging(w, r)
	if !ok {
		return
	}

	entries, page, err := h.users.AuditTrail(r.Context(), claims, id, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, AuditTrailResponse{Entries: entries, Limit: page.Limit, Offset: page.Offset})
}

// HandleDeleteUser handles DELETE /api/admin/users/{id}
func (h *UserHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		HandleServiceError(w, services.ErrInvalidUserID.Wrap(err), h.logger)
		return
	}

	if err := h.users.Delete(r.Context(), claims, id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// claims returns the verified claims stored by RequireAuth. Their absence
// means the route was mounted without authentication.
func (h *UserHandler) claims(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.logger.Error("claims not found in context",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path))
		_ = utils.WriteUnauthorized(w, "")
		return auth.Claims{}, false
	}
	return claims, true
}

// paging reads the optional limit and offset query parameters.
func (h *UserHandler) paging(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid limit", nil)
		return 0, 0, false
	}
	offset, err = queryInt(r, "offset")
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid offset", nil)
		return 0, 0, false
	}
	return limit, offset, true
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
