// Package domain holds identifier primitives shared across modules.
//
// Each identifier is a distinct named UUID type so a MemberID can never be
// passed where a ContributionID is expected. Parsing happens once at the
// trust boundary (handlers, config, job payloads).
package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "pension/pkg/domain-errors"
)

type (
	MemberID       uuid.UUID
	ContributionID uuid.UUID
	BenefitID      uuid.UUID
	HistoryID      uuid.UUID
	EmployerID     uuid.UUID
)

const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength || !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return parsed, nil
}

func ParseMemberID(s string) (MemberID, error) {
	u, err := parseUUID("member id", s)
	return MemberID(u), err
}

func ParseContributionID(s string) (ContributionID, error) {
	u, err := parseUUID("contribution id", s)
	return ContributionID(u), err
}

func ParseBenefitID(s string) (BenefitID, error) {
	u, err := parseUUID("benefit id", s)
	return BenefitID(u), err
}

func ParseHistoryID(s string) (HistoryID, error) {
	u, err := parseUUID("history id", s)
	return HistoryID(u), err
}

func ParseEmployerID(s string) (EmployerID, error) {
	u, err := parseUUID("employer id", s)
	return EmployerID(u), err
}

func NewMemberID() MemberID             { return MemberID(uuid.New()) }
func NewContributionID() ContributionID { return ContributionID(uuid.New()) }
func NewBenefitID() BenefitID           { return BenefitID(uuid.New()) }
func NewHistoryID() HistoryID           { return HistoryID(uuid.New()) }
func NewEmployerID() EmployerID         { return EmployerID(uuid.New()) }

func (id MemberID) String() string       { return uuid.UUID(id).String() }
func (id ContributionID) String() string { return uuid.UUID(id).String() }
func (id BenefitID) String() string      { return uuid.UUID(id).String() }
func (id HistoryID) String() string      { return uuid.UUID(id).String() }
func (id EmployerID) String() string     { return uuid.UUID(id).String() }

func (id MemberID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ContributionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BenefitID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id EmployerID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func (id MemberID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *MemberID) UnmarshalText(b []byte) error {
	parsed, err := ParseMemberID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ContributionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id BenefitID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id HistoryID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id EmployerID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
