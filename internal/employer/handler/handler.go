package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"pension/internal/employer/models"
	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/platform/httputil"
	"pension/pkg/platform/middleware/request"
)

type Service interface {
	AddEmployer(ctx context.Context, req models.AddRequest) (*models.Employer, error)
	GetEmployerWithMembers(ctx context.Context, employerID id.EmployerID) (*models.WithMembers, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/employers", h.HandleAdd)
	r.Get("/employers/{employerID}", h.HandleGet)
}

type addRequest models.AddRequest

func (r *addRequest) Validate() error {
	if strings.TrimSpace(r.RegistrationNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "registration_number is required")
	}
	return nil
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[addRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}

	e, err := h.service.AddEmployer(ctx, models.AddRequest(*req))
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "failed to add employer", err)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/employers/"+e.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	employerID, ok := httputil.EmployerIDParam(w, r, "employerID")
	if !ok {
		return
	}

	e, err := h.service.GetEmployerWithMembers(ctx, employerID)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "failed to get employer", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}
