package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "pension/pkg/domain"
)

// BenefitTypeRetirement is the only type the current rules produce.
const BenefitTypeRetirement = "Retirement"

// EligibilityStatus has two states and no terminal state. Transitions happen
// only by comparing an amount against the threshold.
type EligibilityStatus string

const (
	StatusEligible    EligibilityStatus = "Eligible"
	StatusNotEligible EligibilityStatus = "NotEligible"
)

// Rules are the eligibility constants.
type Rules struct {
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// DefaultRules: eligible from 100000, benefit is 10% of the total.
var DefaultRules = Rules{
	Threshold: decimal.NewFromInt(100000),
	Rate:      decimal.RequireFromString("0.1"),
}

// StatusFor compares amount against the threshold.
func (r Rules) StatusFor(amount decimal.Decimal) EligibilityStatus {
	if amount.GreaterThanOrEqual(r.Threshold) {
		return StatusEligible
	}
	return StatusNotEligible
}

// Evaluate derives status and benefit amount from a contribution total:
// total >= threshold is Eligible with exactly total * rate, anything else
// is NotEligible with zero.
func (r Rules) Evaluate(total decimal.Decimal) (EligibilityStatus, decimal.Decimal) {
	if r.StatusFor(total) == StatusEligible {
		return StatusEligible, total.Mul(r.Rate)
	}
	return StatusNotEligible, decimal.Zero
}

type Benefit struct {
	ID                id.BenefitID      `json:"id"`
	MemberID          id.MemberID       `json:"member_id"`
	BenefitType       string            `json:"benefit_type"`
	Amount            decimal.Decimal   `json:"amount"`
	EligibilityStatus EligibilityStatus `json:"eligibility_status"`
	CalculationDate   time.Time         `json:"calculation_date"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func NewBenefit(benefitID id.BenefitID, memberID id.MemberID, total decimal.Decimal, rules Rules, now time.Time) *Benefit {
	status, amount := rules.Evaluate(total)
	return &Benefit{
		ID:                benefitID,
		MemberID:          memberID,
		BenefitType:       BenefitTypeRetirement,
		Amount:            amount,
		EligibilityStatus: status,
		CalculationDate:   now,
		UpdatedAt:         now,
	}
}

// Reevaluate recomputes the status from the stored Amount, which is the
// benefit amount and not the contribution total. Amount is left unchanged.
// Returns the previous status.
func (b *Benefit) Reevaluate(rules Rules, now time.Time) EligibilityStatus {
	previous := b.EligibilityStatus
	b.EligibilityStatus = rules.StatusFor(b.Amount)
	b.UpdatedAt = now
	return previous
}
