package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pension/internal/benefit/models"
	id "pension/pkg/domain"
	"pension/pkg/platform/httputil"
	"pension/pkg/platform/paging"
)

type Service interface {
	CalculateBenefit(ctx context.Context, memberID id.MemberID) (*models.Benefit, error)
	ListBenefits(ctx context.Context, memberID id.MemberID, page paging.Page) ([]*models.Benefit, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/members/{memberID}/benefits", h.HandleCalculate)
	r.Get("/members/{memberID}/benefits", h.HandleList)
}

type listResponse struct {
	Benefits []*models.Benefit `json:"benefits"`
	PageSize int               `json:"page_size"`
	Offset   int               `json:"offset"`
}

// HandleCalculate answers 201 with the new benefit, or 404 when the member
// has no contributions.
func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID, ok := httputil.MemberIDParam(w, r, "memberID")
	if !ok {
		return
	}

	b, err := h.service.CalculateBenefit(ctx, memberID)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "failed to calculate benefit", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, b)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID, ok := httputil.MemberIDParam(w, r, "memberID")
	if !ok {
		return
	}
	page, ok := httputil.PageParam(w, r)
	if !ok {
		return
	}

	benefits, err := h.service.ListBenefits(ctx, memberID, page)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "failed to list benefits", err)
		httputil.WriteError(w, err)
		return
	}
	if benefits == nil {
		benefits = []*models.Benefit{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Benefits: benefits, PageSize: page.Size, Offset: page.Offset})
}
