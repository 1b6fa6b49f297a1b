package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pension/internal/audit"
	auditstore "pension/internal/audit/store"
	"pension/internal/employer/service"
	"pension/internal/employer/store"
	membermodels "pension/internal/member/models"
	memberservice "pension/internal/member/service"
	memberstore "pension/internal/member/store"
)

func TestEmployerRoutes(t *testing.T) {
	trail := audit.NewTrail(auditstore.NewInMemory())
	members := memberservice.New(memberstore.NewInMemory(), trail)
	h := New(service.New(store.NewInMemory(), members, trail), slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	h.Register(r)

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
		return rec
	}

	acme := map[string]any{"company_name": "Acme Ltd", "registration_number": "RC-1001"}
	rec := do(http.MethodPost, "/employers", acme)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID       string `json:"id"`
		IsActive bool   `json:"is_active"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.True(t, created.IsActive)
	assert.Equal(t, "/employers/"+created.ID, rec.Header().Get("Location"))

	_, err := members.Register(t.Context(), membermodels.RegisterRequest{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", EmployerID: created.ID,
	})
	require.NoError(t, err)

	t.Run("duplicate registration number returns 409", func(t *testing.T) {
		rec := do(http.MethodPost, "/employers", map[string]any{"company_name": "Other", "registration_number": "RC-1001"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing registration number returns 400", func(t *testing.T) {
		rec := do(http.MethodPost, "/employers", map[string]any{"company_name": "Other"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get includes the members", func(t *testing.T) {
		rec := do(http.MethodGet, "/employers/"+created.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body struct {
			CompanyName string `json:"company_name"`
			Members     []struct {
				Email string `json:"email"`
			} `json:"members"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "Acme Ltd", body.CompanyName)
		require.Len(t, body.Members, 1)
		assert.Equal(t, "jane@example.com", body.Members[0].Email)
	})

	t.Run("unknown employer returns 404", func(t *testing.T) {
		rec := do(http.MethodGet, "/employers/7f1f6a3e-9d2b-4c55-a0b4-2f8f4f1f0c11", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		rec := do(http.MethodGet, "/employers/acme", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
