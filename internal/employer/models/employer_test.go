package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
)

func TestNewEmployer(t *testing.T) {
	now := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	e, err := NewEmployer(id.NewEmployerID(), AddRequest{CompanyName: " Acme Ltd ", RegistrationNumber: " RC-1001 "}, now)
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", e.CompanyName)
	assert.Equal(t, "RC-1001", e.RegistrationNumber)
	assert.True(t, e.IsActive)
	assert.Equal(t, now, e.CreatedAt)

	tests := []struct {
		name string
		req  AddRequest
	}{
		{"missing company name", AddRequest{RegistrationNumber: "RC-1"}},
		{"missing registration number", AddRequest{CompanyName: "Acme"}},
		{"blank registration number", AddRequest{CompanyName: "Acme", RegistrationNumber: "   "}},
		{"oversized company name", AddRequest{CompanyName: strings.Repeat("a", 257), RegistrationNumber: "RC-1"}},
		{"oversized registration number", AddRequest{CompanyName: "Acme", RegistrationNumber: strings.Repeat("9", 65)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEmployer(id.NewEmployerID(), tt.req, now)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}
