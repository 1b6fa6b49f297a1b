package httputil

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "pension/pkg/domain"
	"pension/pkg/platform/paging"
	"pension/pkg/requestcontext"
)

// MemberIDParam parses the {name} route parameter as a member id. On failure
// it writes a 400 and returns ok=false.
func MemberIDParam(w http.ResponseWriter, r *http.Request, name string) (id.MemberID, bool) {
	memberID, err := id.ParseMemberID(chi.URLParam(r, name))
	if err != nil {
		WriteError(w, err)
		return id.MemberID{}, false
	}
	return memberID, true
}

// EmployerIDParam is MemberIDParam for employer ids.
func EmployerIDParam(w http.ResponseWriter, r *http.Request, name string) (id.EmployerID, bool) {
	employerID, err := id.ParseEmployerID(chi.URLParam(r, name))
	if err != nil {
		WriteError(w, err)
		return id.EmployerID{}, false
	}
	return employerID, true
}

// PageParam reads page_size and offset from the query string.
func PageParam(w http.ResponseWriter, r *http.Request) (paging.Page, bool) {
	q := r.URL.Query()
	page, err := paging.Parse(q.Get("page_size"), q.Get("offset"))
	if err != nil {
		WriteError(w, err)
		return paging.Page{}, false
	}
	return page, true
}

// LogFailure logs client errors at warn and everything else at error.
func LogFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	requestID := requestcontext.RequestID(ctx)
	if StatusFor(err) < http.StatusInternalServerError {
		logger.WarnContext(ctx, msg, "request_id", requestID, "error", err)
		return
	}
	logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
}
