package domain

import (
	"encoding/json"
	"time"
)

// AccountStatus represents lifecycle states for an account.
type AccountStatus string

const (
	AccountStatusPending  AccountStatus = "pending"
	AccountStatusApproved AccountStatus = "approved"
	AccountStatusRevoked  AccountStatus = "revoked"
)

// Valid reports whether s is one of the known statuses.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusPending, AccountStatusApproved, AccountStatusRevoked:
		return true
	}
	return false
}

// DefaultRevocationReason is stored when a revoke carries no reason.
const DefaultRevocationReason = "No reason provided."

// RoleAdmin is the role value that grants isAdmin on direct creation.
const RoleAdmin = "admin"

// Account is the persisted user record. Field names match the stored JSON
// document; see account_json.go for how records are read and written.
type Account struct {
	Username         string
	Password         string
	IsAdmin          bool
	Status           AccountStatus
	Joined           Time
	RevocationReason *string
	RevokedAt        *Time

	// Extra holds stored attributes this service does not manage, and managed
	// ones whose stored value has the wrong type. They are written back as read.
	Extra map[string]json.RawMessage

	// opaque is a stored record that is not a JSON object.
	opaque json.RawMessage
}

// Stats aggregates account counts by status.
type Stats struct {
	Total    int
	Pending  int
	Approved int
	Revoked  int
}

// Timestamp normalizes t the way stored timestamps are written: UTC, millisecond precision.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// TimeLayout is the layout stored timestamps are written in.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Time is a stored timestamp. A stored value that does not read back exactly
// in TimeLayout is kept as written and emitted unchanged; Time then holds the
// best-effort parse, or the zero time.
type Time struct {
	time.Time
	raw json.RawMessage
}

// NewTime returns t normalized with Timestamp.
func NewTime(t time.Time) Time {
	return Time{Time: Timestamp(t)}
}

// Raw returns the stored value when it was kept verbatim, otherwise "".
func (t Time) Raw() string {
	return string(t.raw)
}

func (t Time) MarshalJSON() ([]byte, error) {
	if len(t.raw) > 0 {
		return t.raw, nil
	}
	return []byte(`"` + t.Time.UTC().Format(TimeLayout) + `"`), nil
}

func (t *Time) UnmarshalJSON(data []byte) error {
	*t = Time{}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			t.Time = parsed
			if parsed.UTC().Format(TimeLayout) == s {
				return nil
			}
		} else if parsed, err := time.Parse(time.DateOnly, s); err == nil {
			t.Time = parsed
		}
	}
	t.raw = append(json.RawMessage(nil), data...)
	return nil
}
