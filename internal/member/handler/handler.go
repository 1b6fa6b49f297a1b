package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"pension/internal/member/models"
	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/platform/httputil"
	"pension/pkg/platform/middleware/request"
)

type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.Member, error)
	Get(ctx context.Context, memberID id.MemberID) (*models.Member, error)
	Update(ctx context.Context, memberID id.MemberID, req models.UpdateRequest) (*models.Member, error)
	Delete(ctx context.Context, memberID id.MemberID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterCreate mounts POST /members. It is split from the member-scoped
// routes because registration is not tied to an existing member.
func (h *Handler) RegisterCreate(r chi.Router) {
	r.Post("/members", h.HandleRegister)
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/members/{memberID}", h.HandleGet)
	r.Patch("/members/{memberID}", h.HandleUpdate)
	r.Delete("/members/{memberID}", h.HandleDelete)
}

type registerRequest models.RegisterRequest

func (r *registerRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	return nil
}

type updateRequest models.UpdateRequest

func (r *updateRequest) Validate() error {
	if models.UpdateRequest(*r).IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	return nil
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[registerRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}

	m, err := h.service.Register(ctx, models.RegisterRequest(*req))
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "failed to register member", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID, ok := httputil.MemberIDParam(w, r, "memberID")
	if !ok {
		return
	}

	m, err := h.service.Get(ctx, memberID)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "failed to get member", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID, ok := httputil.MemberIDParam(w, r, "memberID")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[updateRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}

	m, err := h.service.Update(ctx, memberID, models.UpdateRequest(*req))
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "failed to update member", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID, ok := httputil.MemberIDParam(w, r, "memberID")
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, memberID); err != nil {
		httputil.LogFailure(ctx, h.logger, "failed to delete member", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
