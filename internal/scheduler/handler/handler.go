package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pension/internal/scheduler"
	"pension/pkg/platform/httputil"
	"pension/pkg/requestcontext"
)

type Scheduler interface {
	Tasks() []scheduler.TaskInfo
	RunNow(ctx context.Context, name string) (scheduler.RunRecord, error)
}

type Handler struct {
	scheduler Scheduler
	logger    *slog.Logger
}

func New(s Scheduler, logger *slog.Logger) *Handler {
	return &Handler{scheduler: s, logger: logger}
}

// Register mounts the job routes. The caller puts them behind the admin token.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/jobs", h.HandleList)
	r.Post("/admin/jobs/{name}/run", h.HandleRun)
}

type listResponse struct {
	Jobs []scheduler.TaskInfo `json:"jobs"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, listResponse{Jobs: h.scheduler.Tasks()})
}

// HandleRun executes the task synchronously. The run is detached from the
// request so a client disconnect does not abort it halfway.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	h.logger.InfoContext(ctx, "manual task run requested",
		"task", name,
		"request_id", requestcontext.RequestID(ctx),
	)
	rec, err := h.scheduler.RunNow(context.WithoutCancel(ctx), name)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "manual task run failed", err)
		if rec.Task == "" {
			httputil.WriteError(w, err)
			return
		}
	}
	status := http.StatusOK
	switch rec.Status {
	case scheduler.StatusSkipped:
		status = http.StatusConflict
	case scheduler.StatusFailed:
		status = http.StatusInternalServerError
	}
	httputil.WriteJSON(w, status, rec)
}
