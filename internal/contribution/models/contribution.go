package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
)

const maxReferenceLength = 64

// Type is the closed set of contribution kinds.
type Type string

const (
	// TypeMonthly is the periodic contribution: at most one per member per
	// calendar month.
	TypeMonthly   Type = "Monthly"
	TypeVoluntary Type = "Voluntary"
)

func ParseType(s string) (Type, error) {
	switch t := Type(strings.TrimSpace(s)); t {
	case TypeMonthly, TypeVoluntary:
		return t, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "contribution_type must be Monthly or Voluntary")
}

func (t Type) IsPeriodic() bool {
	return t == TypeMonthly
}

// Period is a calendar month in UTC.
type Period struct {
	Year  int
	Month time.Month
}

func PeriodOf(t time.Time) Period {
	u := t.UTC()
	return Period{Year: u.Year(), Month: u.Month()}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Contribution is one payment into a member's pension account.
//
// Invariants:
//   - Amount is never negative and carries at most two fractional digits
//   - Type is Monthly or Voluntary
//   - only interest accrual changes Amount after creation, and only upwards
type Contribution struct {
	ID               id.ContributionID `json:"id"`
	MemberID         id.MemberID       `json:"member_id"`
	Type             Type              `json:"contribution_type"`
	Amount           decimal.Decimal   `json:"amount"`
	ContributionDate time.Time         `json:"contribution_date"`
	ReferenceNumber  string            `json:"reference_number"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewContribution validates the inputs and builds a contribution.
func NewContribution(
	contributionID id.ContributionID,
	memberID id.MemberID,
	contributionType Type,
	amount decimal.Decimal,
	date time.Time,
	reference string,
	now time.Time,
) (*Contribution, error) {
	if memberID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "member id is required")
	}
	if _, err := ParseType(string(contributionType)); err != nil {
		return nil, err
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "contribution_date is required")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reference_number is required")
	}
	if len(reference) > maxReferenceLength {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("reference_number must be at most %d characters", maxReferenceLength))
	}
	return &Contribution{
		ID:               contributionID,
		MemberID:         memberID,
		Type:             contributionType,
		Amount:           amount,
		ContributionDate: date.UTC(),
		ReferenceNumber:  reference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ValidateAmount rejects negative amounts and amounts with more than two
// fractional digits. Trailing zeros beyond the second digit are accepted.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "amount must not be negative")
	}
	if !amount.Equal(amount.Truncate(2)) {
		return dErrors.New(dErrors.CodeValidation, "amount must have at most two decimal places")
	}
	return nil
}

func (c *Contribution) Period() Period {
	return PeriodOf(c.ContributionDate)
}

// ClashesWith reports whether c and other are periodic contributions for the
// same member and calendar month.
func (c *Contribution) ClashesWith(other *Contribution) bool {
	return c.Type.IsPeriodic() && other.Type.IsPeriodic() &&
		c.MemberID == other.MemberID &&
		c.Period() == other.Period()
}

// Interest is Amount * rate with no rounding.
func (c *Contribution) Interest(rate decimal.Decimal) decimal.Decimal {
	return c.Amount.Mul(rate)
}

// FormatAmount renders d with two decimals, or with every significant
// digit when d carries sub-cent precision.
func FormatAmount(d decimal.Decimal) string {
	if d.Equal(d.Round(2)) {
		return d.StringFixed(2)
	}
	return d.String()
}

// ApplyInterest adds interest to Amount.
func (c *Contribution) ApplyInterest(interest decimal.Decimal, now time.Time) {
	c.Amount = c.Amount.Add(interest)
	c.UpdatedAt = now
}

// PostRequest is the input to the ledger's PostContribution.
type PostRequest struct {
	MemberID         id.MemberID
	Type             Type
	Amount           decimal.Decimal
	ContributionDate time.Time
	ReferenceNumber  string
}

// Summary aggregates every stored contribution.
type Summary struct {
	Count   int             `json:"count"`
	Total   decimal.Decimal `json:"total"`
	Members int             `json:"members"`
}
