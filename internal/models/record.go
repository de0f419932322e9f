package models

import (
	"fmt"
	"strings"
	"time"
)

// EventKind distinguishes flexible date polls from fixed-date invitations.
type EventKind string

const (
	// KindPoll is a flexible date-range poll where participants mark availability.
	KindPoll EventKind = "poll"
	// KindInvite is a fixed-date invitation collecting RSVPs.
	KindInvite EventKind = "invite"
)

// Availability responses for a single candidate date.
const (
	AvailabilityYes   = "yes"
	AvailabilityNo    = "no"
	AvailabilityMaybe = "maybe"
)

// Participant is a person attached to an event. A participant is soft-deleted
// by setting DeletedAt so the removal can propagate to other devices.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Availability maps a candidate date (YYYY-MM-DD) to a response.
	// Absent means the participant has not answered yet.
	Availability map[string]string `json:"availability,omitempty"`

	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the participant is tombstoned.
func (p *Participant) IsDeleted() bool {
	return p.DeletedAt != nil
}

// Record is the event aggregate the sync engine reconciles across devices.
// ID is the reconciliation key and is identical on every replica; UpdatedAt
// is the sole conflict tie-breaker (last write wins).
type Record struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Kind EventKind `json:"kind"`

	// Poll events carry a candidate date range; invitations a single date.
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
	Date     string `json:"date,omitempty"`

	Participants []Participant `json:"participants,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the record is a tombstone.
func (r *Record) IsDeleted() bool {
	return r.DeletedAt != nil
}

// Touch advances UpdatedAt to the current wall clock. UpdatedAt must never
// decrease, so a clock that reads at or before the stored value nudges
// forward instead.
func (r *Record) Touch() {
	now := time.Now().UTC()
	if !now.After(r.UpdatedAt) {
		now = r.UpdatedAt.Add(time.Millisecond)
	}
	r.UpdatedAt = now
}

// MarkDeleted tombstones the record. Deleting an already-deleted record is a
// no-op; DeletedAt and UpdatedAt keep the timestamps of the first delete.
func (r *Record) MarkDeleted() {
	if r.DeletedAt != nil {
		return
	}
	r.Touch()
	ts := r.UpdatedAt
	r.DeletedAt = &ts
}

// NewerThan reports whether this record's UpdatedAt is strictly after the
// other's. Equal timestamps are not "newer"; ties keep the local copy.
func (r *Record) NewerThan(other *Record) bool {
	return r.UpdatedAt.After(other.UpdatedAt)
}

// LiveParticipants returns participants that are not tombstoned.
func (r *Record) LiveParticipants() []Participant {
	var live []Participant
	for _, p := range r.Participants {
		if !p.IsDeleted() {
			live = append(live, p)
		}
	}
	return live
}

// Participant returns the participant with the given ID, or nil.
func (r *Record) Participant(id string) *Participant {
	for i := range r.Participants {
		if r.Participants[i].ID == id {
			return &r.Participants[i]
		}
	}
	return nil
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	if r.DeletedAt != nil {
		ts := *r.DeletedAt
		clone.DeletedAt = &ts
	}
	clone.Participants = make([]Participant, len(r.Participants))
	for i, p := range r.Participants {
		cp := p
		if p.DeletedAt != nil {
			ts := *p.DeletedAt
			cp.DeletedAt = &ts
		}
		if p.Availability != nil {
			cp.Availability = make(map[string]string, len(p.Availability))
			for k, v := range p.Availability {
				cp.Availability[k] = v
			}
		}
		clone.Participants[i] = cp
	}
	return &clone
}

// Validate checks record structure before persisting.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("event name is required")
	}

	switch r.Kind {
	case KindPoll:
		if r.DateFrom == "" || r.DateTo == "" {
			return fmt.Errorf("poll event requires a date range")
		}
	case KindInvite:
		if r.Date == "" {
			return fmt.Errorf("invite event requires a date")
		}
	default:
		return fmt.Errorf("unknown event kind: %q", r.Kind)
	}

	for _, p := range r.Participants {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("participant ID is required")
		}
		for date, resp := range p.Availability {
			if strings.TrimSpace(date) == "" {
				return fmt.Errorf("availability date cannot be empty")
			}
			switch resp {
			case AvailabilityYes, AvailabilityNo, AvailabilityMaybe:
			default:
				return fmt.Errorf("invalid availability response %q for %s", resp, date)
			}
		}
	}

	return nil
}
