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
	"pension/internal/member/service"
	"pension/internal/member/store"
)

func TestMemberRoutes(t *testing.T) {
	svc := service.New(store.NewInMemory(), audit.NewTrail(auditstore.NewInMemory()))
	h := New(svc, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	h.RegisterCreate(r)
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

	jane := map[string]any{"first_name": "Jane", "last_name": "Doe", "email": "jane@example.com"}

	rec := do(http.MethodPost, "/members", jane)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	path := "/members/" + created.ID

	t.Run("duplicate email returns 409", func(t *testing.T) {
		assert.Equal(t, http.StatusConflict, do(http.MethodPost, "/members", jane).Code)
	})

	t.Run("unknown field returns 400", func(t *testing.T) {
		rec := do(http.MethodPost, "/members", map[string]any{"email": "x@example.com", "nickname": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get returns the member", func(t *testing.T) {
		rec := do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"email":"jane@example.com"`)
	})

	t.Run("patch updates given fields", func(t *testing.T) {
		rec := do(http.MethodPatch, path, map[string]any{"last_name": "Smith"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"last_name":"Smith"`)
	})

	t.Run("empty patch returns 400", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, do(http.MethodPatch, path, map[string]any{}).Code)
	})

	t.Run("delete then get returns 404", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, path, nil).Code)
		assert.Equal(t, http.StatusNotFound, do(http.MethodGet, path, nil).Code)
	})
}
