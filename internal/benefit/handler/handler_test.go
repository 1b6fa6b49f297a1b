package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pension/internal/audit"
	auditstore "pension/internal/audit/store"
	benefitservice "pension/internal/benefit/service"
	benefitstore "pension/internal/benefit/store"
	"pension/internal/contribution/models"
	contributionservice "pension/internal/contribution/service"
	contributionstore "pension/internal/contribution/store"
	id "pension/pkg/domain"
)

func TestBenefitRoutes(t *testing.T) {
	trail := audit.NewTrail(auditstore.NewInMemory())
	ledger := contributionservice.New(contributionstore.NewInMemory(), trail)
	svc := benefitservice.New(ledger, benefitstore.NewInMemory(), trail)
	r := chi.NewRouter()
	New(svc, slog.New(slog.DiscardHandler)).Register(r)

	memberID := id.NewMemberID()
	base := "/members/" + memberID.String() + "/benefits"

	do := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}

	t.Run("no contributions returns 404", func(t *testing.T) {
		rec := do(http.MethodPost, base)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "no_contributions_found")
	})

	_, err := ledger.PostContribution(context.Background(), models.PostRequest{
		MemberID:         memberID,
		Type:             models.TypeMonthly,
		Amount:           decimal.RequireFromString("120000"),
		ContributionDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		ReferenceNumber:  "REF1",
	})
	require.NoError(t, err)

	t.Run("calculate returns 201", func(t *testing.T) {
		rec := do(http.MethodPost, base)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var body struct {
			Amount string `json:"amount"`
			Status string `json:"eligibility_status"`
			Type   string `json:"benefit_type"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "Eligible", body.Status)
		assert.Equal(t, "Retirement", body.Type)
		assert.Equal(t, "12000", body.Amount)
	})

	t.Run("list returns the stored benefit", func(t *testing.T) {
		rec := do(http.MethodGet, base)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Benefits []map[string]any `json:"benefits"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Len(t, body.Benefits, 1)
	})

	t.Run("bad member id returns 400", func(t *testing.T) {
		rec := do(http.MethodPost, "/members/not-a-uuid/benefits")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
