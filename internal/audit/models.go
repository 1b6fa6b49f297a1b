package audit

import (
	"time"

	"github.com/google/uuid"

	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
)

// ChangeType is the kind of mutation a history entry records.
type ChangeType string

const (
	ChangeCreated ChangeType = "Created"
	ChangeUpdated ChangeType = "Updated"
	ChangeDeleted ChangeType = "Deleted"
)

// ParseChangeType accepts exactly the three known change types.
func ParseChangeType(s string) (ChangeType, error) {
	switch ct := ChangeType(s); ct {
	case ChangeCreated, ChangeUpdated, ChangeDeleted:
		return ct, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "change type must be Created, Updated or Deleted")
}

// EntityType tags what kind of record an entry's EntityID points at.
type EntityType string

const (
	EntityContribution EntityType = "Contribution"
	EntityBenefit      EntityType = "Benefit"
	EntityMember       EntityType = "Member"
	EntityEmployer     EntityType = "Employer"
)

// TransactionHistory is one immutable entry of the audit trail.
//
// Seq is assigned by the store and orders entries that share CreatedAt.
type TransactionHistory struct {
	ID            id.HistoryID `json:"id"`
	Seq           int64        `json:"-"`
	EntityID      uuid.UUID    `json:"entity_id"`
	EntityType    EntityType   `json:"entity_type"`
	ChangeType    ChangeType   `json:"change_type"`
	ChangeDetails string       `json:"change_details"`
	CreatedAt     time.Time    `json:"created_at"`
}

// NewerThan orders entries newest first with Seq breaking ties.
func (h *TransactionHistory) NewerThan(other *TransactionHistory) bool {
	if !h.CreatedAt.Equal(other.CreatedAt) {
		return h.CreatedAt.After(other.CreatedAt)
	}
	return h.Seq > other.Seq
}

// Entry is the input to Trail.Record.
type Entry struct {
	EntityID   uuid.UUID
	EntityType EntityType
	ChangeType ChangeType
	Details    string
}

func (e Entry) validate() error {
	if e.EntityID == uuid.Nil {
		return dErrors.New(dErrors.CodeValidation, "entity id is required")
	}
	if _, err := ParseChangeType(string(e.ChangeType)); err != nil {
		return err
	}
	if e.EntityType == "" {
		return dErrors.New(dErrors.CodeValidation, "entity type is required")
	}
	return nil
}

// ForMember builds an entry keyed by a member ID, the key history is listed by.
func ForMember(memberID id.MemberID, entity EntityType, change ChangeType, details string) Entry {
	return Entry{
		EntityID:   uuid.UUID(memberID),
		EntityType: entity,
		ChangeType: change,
		Details:    details,
	}
}
