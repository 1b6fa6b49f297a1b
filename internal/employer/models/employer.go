package models

import (
	"strings"
	"time"

	membermodels "pension/internal/member/models"
	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
)

const (
	maxCompanyNameLength        = 256
	maxRegistrationNumberLength = 64
)

// Employer is a sponsoring company. RegistrationNumber is unique across the
// registry.
type Employer struct {
	ID                 id.EmployerID `json:"id"`
	CompanyName        string        `json:"company_name"`
	RegistrationNumber string        `json:"registration_number"`
	IsActive           bool          `json:"is_active"`
	CreatedAt          time.Time     `json:"created_at"`
}

type AddRequest struct {
	CompanyName        string `json:"company_name"`
	RegistrationNumber string `json:"registration_number"`
}

func NewEmployer(employerID id.EmployerID, req AddRequest, now time.Time) (*Employer, error) {
	name := strings.TrimSpace(req.CompanyName)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "company_name is required")
	}
	if len(name) > maxCompanyNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "company_name must be 256 characters or less")
	}
	reg := strings.TrimSpace(req.RegistrationNumber)
	if reg == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "registration_number is required")
	}
	if len(reg) > maxRegistrationNumberLength {
		return nil, dErrors.New(dErrors.CodeValidation, "registration_number must be 64 characters or less")
	}
	return &Employer{
		ID:                 employerID,
		CompanyName:        name,
		RegistrationNumber: reg,
		IsActive:           true,
		CreatedAt:          now,
	}, nil
}

// WithMembers is an employer together with its active members.
type WithMembers struct {
	*Employer
	Members []*membermodels.Member `json:"members"`
}
