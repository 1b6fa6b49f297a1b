package models

import (
	"strings"
	"time"

	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/email"
)

const (
	maxNameLength = 128
	dateLayout    = "2006-01-02"
)

// Member is a scheme participant. Deletion is soft: DeletedAt is set and the
// email becomes available for a new registration.
type Member struct {
	ID          id.MemberID `json:"id"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Email       string      `json:"email"`
	DateOfBirth *time.Time  `json:"date_of_birth,omitempty"`
	EmployerID  string      `json:"employer_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	DeletedAt   *time.Time  `json:"deleted_at,omitempty"`
}

// ListFilter narrows a member listing. The zero value selects active
// members of every employer.
type ListFilter struct {
	IncludeDeleted bool
	EmployerID     string
}

func (f ListFilter) Matches(m Member) bool {
	if !f.IncludeDeleted && !m.IsActive() {
		return false
	}
	return f.EmployerID == "" || m.EmployerID == f.EmployerID
}

func (m *Member) IsActive() bool {
	return m.DeletedAt == nil
}

// FullName is used in statements.
func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func NewMember(memberID id.MemberID, req RegisterRequest, now time.Time) (*Member, error) {
	first, err := validName("first_name", req.FirstName)
	if err != nil {
		return nil, err
	}
	last, err := validName("last_name", req.LastName)
	if err != nil {
		return nil, err
	}
	addr, err := email.Normalize(req.Email)
	if err != nil {
		return nil, err
	}
	var dob *time.Time
	if strings.TrimSpace(req.DateOfBirth) != "" {
		d, err := ParseDateOfBirth(req.DateOfBirth, now)
		if err != nil {
			return nil, err
		}
		dob = &d
	}
	return &Member{
		ID:          memberID,
		FirstName:   first,
		LastName:    last,
		Email:       addr,
		DateOfBirth: dob,
		EmployerID:  strings.TrimSpace(req.EmployerID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ParseDateOfBirth reads a YYYY-MM-DD date that must lie before now.
func ParseDateOfBirth(v string, now time.Time) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "date_of_birth must be formatted as YYYY-MM-DD")
	}
	if !d.Before(now) {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "date_of_birth must be in the past")
	}
	return d, nil
}

// Apply validates a partial update and applies the fields that are set.
// Nothing is changed when validation fails.
func (m *Member) Apply(req UpdateRequest, now time.Time) error {
	next := *m
	if req.FirstName != nil {
		v, err := validName("first_name", *req.FirstName)
		if err != nil {
			return err
		}
		next.FirstName = v
	}
	if req.LastName != nil {
		v, err := validName("last_name", *req.LastName)
		if err != nil {
			return err
		}
		next.LastName = v
	}
	if req.Email != nil {
		v, err := email.Normalize(*req.Email)
		if err != nil {
			return err
		}
		next.Email = v
	}
	if req.DateOfBirth != nil {
		d, err := ParseDateOfBirth(*req.DateOfBirth, now)
		if err != nil {
			return err
		}
		next.DateOfBirth = &d
	}
	if req.EmployerID != nil {
		next.EmployerID = strings.TrimSpace(*req.EmployerID)
	}
	next.UpdatedAt = now
	*m = next
	return nil
}

// MarkDeleted soft-deletes an active member.
func (m *Member) MarkDeleted(now time.Time) error {
	if !m.IsActive() {
		return dErrors.New(dErrors.CodeNotFound, "member not found")
	}
	m.DeletedAt = &now
	m.UpdatedAt = now
	return nil
}

func validName(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if len(v) > maxNameLength {
		return "", dErrors.New(dErrors.CodeValidation, field+" must be 128 characters or less")
	}
	return v, nil
}

type RegisterRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	DateOfBirth string `json:"date_of_birth"`
	EmployerID  string `json:"employer_id"`
}

// UpdateRequest carries a partial update; nil fields are left alone.
type UpdateRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Email       *string `json:"email"`
	DateOfBirth *string `json:"date_of_birth"`
	EmployerID  *string `json:"employer_id"`
}

func (r UpdateRequest) IsEmpty() bool {
	return r.FirstName == nil && r.LastName == nil && r.Email == nil &&
		r.DateOfBirth == nil && r.EmployerID == nil
}

// Changed lists the field names set on the request, for audit details.
func (r UpdateRequest) Changed() []string {
	var fields []string
	if r.FirstName != nil {
		fields = append(fields, "first_name")
	}
	if r.LastName != nil {
		fields = append(fields, "last_name")
	}
	if r.Email != nil {
		fields = append(fields, "email")
	}
	if r.DateOfBirth != nil {
		fields = append(fields, "date_of_birth")
	}
	if r.EmployerID != nil {
		fields = append(fields, "employer_id")
	}
	return fields
}
