package http_handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/classhub/identity-service/internal/application/identity"
	"github.com/classhub/identity-service/internal/domain"
	"github.com/classhub/identity-service/internal/logger"
	"github.com/classhub/identity-service/internal/transport/http/dto"
	"github.com/classhub/identity-service/internal/transport/http/middleware"
	"github.com/classhub/identity-service/internal/transport/http/response"
)

type AdminHandler struct {
	svc *identity.Service
}

func NewAdminHandler(svc *identity.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func actor(r *http.Request) (id, role string) {
	id, _ = middleware.UserIDFromContext(r.Context())
	role, _ = middleware.RoleFromContext(r.Context())
	return id, role
}

func targetID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		response.WriteError(w, r, domain.ErrMissingField("id"))
		return "", false
	}
	return id, true
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	res, err := h.svc.ListUsers(r.Context(), identity.ListQuery{
		Account:  strings.TrimSpace(q.Get("account")),
		Keyword:  strings.TrimSpace(q.Get("keyword")),
		Role:     strings.TrimSpace(q.Get("role")),
		Status:   strings.TrimSpace(q.Get("status")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.NewUserListData(res), "")
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actorID, actorRole := actor(r)

	var req dto.AdminCreateUserRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	u, err := h.svc.AdminCreateUser(r.Context(), actorID, actorRole,
		req.Username, req.Password, req.Role, req.Email, req.Phone)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	lg := logger.WithCtx(r.Context())
	lg.Info().
		Str("actor_id", actorID).
		Str("user_id", u.ID).
		Str("role", u.Role).
		Msg("admin_created_user")

	response.Created(w, dto.MeData{User: dto.NewUserView(u)}, "user created")
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	u, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.MeData{User: dto.NewUserView(u)}, "")
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	actorID, actorRole := actor(r)
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	var req dto.SetRoleRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.SetUserRole(r.Context(), actorID, actorRole, id, req.Role); err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, map[string]string{
		"status":  "role_updated",
		"user_id": id,
		"role":    req.Role,
	}, "role updated")
}

func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actorID, actorRole := actor(r)
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	var req dto.SetStatusRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	if err := h.svc.SetUserStatus(r.Context(), actorID, actorRole, id, domain.Status(req.Status)); err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, map[string]string{
		"status":  "status_updated",
		"user_id": id,
	}, "status updated")
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actorID, actorRole := actor(r)
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteUser(r.Context(), actorID, actorRole, id); err != nil {
		response.WriteError(w, r, err)
		return
	}

	lg := logger.WithCtx(r.Context())
	lg.Info().
		Str("actor_id", actorID).
		Str("user_id", id).
		Msg("admin_deleted_user")

	response.NoContent(w)
}

func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	actorID, actorRole := actor(r)
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	if err := h.svc.AdminResetPassword(r.Context(), actorID, actorRole, id); err != nil {
		response.WriteError(w, r, err)
		return
	}

	lg := logger.WithCtx(r.Context())
	lg.Info().
		Str("actor_id", actorID).
		Str("user_id", id).
		Msg("admin_reset_password")

	response.OK(w, map[string]string{
		"status":  "password_reset",
		"user_id": id,
	}, "password reset")
}
