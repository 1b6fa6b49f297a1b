package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"pension/internal/audit"
	"pension/internal/contribution/models"
	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/platform/httputil"
	"pension/pkg/platform/middleware/request"
	"pension/pkg/platform/paging"
)

// Service is the contribution ledger as seen by the HTTP layer.
type Service interface {
	PostContribution(ctx context.Context, req models.PostRequest) (*models.Contribution, error)
	ListContributions(ctx context.Context, memberID id.MemberID, page paging.Page) ([]*models.Contribution, error)
	TotalContributions(ctx context.Context, memberID id.MemberID) (decimal.Decimal, error)
	GetTransactionHistory(ctx context.Context, memberID id.MemberID, page paging.Page) ([]*audit.TransactionHistory, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the member-scoped routes. The caller is expected to sit
// them behind authentication for {memberID}.
func (h *Handler) Register(r chi.Router) {
	r.Post("/members/{memberID}/contributions", h.HandlePost)
	r.Get("/members/{memberID}/contributions", h.HandleList)
	r.Get("/members/{memberID}/contributions/total", h.HandleTotal)
	r.Get("/members/{memberID}/transactions", h.HandleHistory)
}

type postContributionRequest struct {
	ContributionType string          `json:"contribution_type"`
	Amount           decimal.Decimal `json:"amount"`
	ContributionDate string          `json:"contribution_date"`
	ReferenceNumber  string          `json:"reference_number"`

	contributionType models.Type
	date             time.Time
}

// Validate parses the type and accepts the date as YYYY-MM-DD or RFC 3339.
func (r *postContributionRequest) Validate() error {
	t, err := models.ParseType(r.ContributionType)
	if err != nil {
		return err
	}
	r.contributionType = t

	raw := strings.TrimSpace(r.ContributionDate)
	if raw == "" {
		return dErrors.New(dErrors.CodeValidation, "contribution_date is required")
	}
	date, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		date, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "contribution_date must be YYYY-MM-DD or RFC 3339")
		}
	}
	r.date = date
	return nil
}

type listResponse struct {
	Contributions []*models.Contribution `json:"contributions"`
	PageSize      int                    `json:"page_size"`
	Offset        int                    `json:"offset"`
}

type totalResponse struct {
	MemberID id.MemberID `json:"member_id"`
	Total    string      `json:"total"`
}

type historyResponse struct {
	Transactions []*audit.TransactionHistory `json:"transactions"`
	PageSize     int                         `json:"page_size"`
	Offset       int                         `json:"offset"`
}

func (h *Handler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	memberID, ok := httputil.MemberIDParam(w, r, "memberID")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[postContributionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.PostContribution(ctx, models.PostRequest{
		MemberID:         memberID,
		Type:             req.contributionType,
		Amount:           req.Amount,
		ContributionDate: req.date,
		ReferenceNumber:  req.ReferenceNumber,
	})
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "failed to post contribution", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
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

	contributions, err := h.service.ListContributions(ctx, memberID, page)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "failed to list contributions", err)
		httputil.WriteError(w, err)
		return
	}
	if contributions == nil {
		contributions = []*models.Contribution{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Contributions: contributions, PageSize: page.Size, Offset: page.Offset})
}

func (h *Handler) HandleTotal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID, ok := httputil.MemberIDParam(w, r, "memberID")
	if !ok {
		return
	}

	total, err := h.service.TotalContributions(ctx, memberID)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "failed to total contributions", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, totalResponse{MemberID: memberID, Total: total.StringFixed(2)})
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID, ok := httputil.MemberIDParam(w, r, "memberID")
	if !ok {
		return
	}
	page, ok := httputil.PageParam(w, r)
	if !ok {
		return
	}

	entries, err := h.service.GetTransactionHistory(ctx, memberID, page)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "failed to load transaction history", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, historyResponse{Transactions: entries, PageSize: page.Size, Offset: page.Offset})
}
