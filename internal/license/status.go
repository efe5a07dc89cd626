package license

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Status is the registration state of the local installation.
type Status int

const (
	Unregistered Status = iota
	Permanent
	Trial
	Expired
)

var statusNames = map[Status]string{
	Unregistered: "unregistered",
	Permanent:    "permanent",
	Trial:        "trial",
	Expired:      "expired",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Licensed reports whether the status grants use of the product.
func (s Status) Licensed() bool {
	return s == Trial || s == Permanent
}

// Report is the result of one status determination. Callers hold the value;
// nothing about it is cached inside the engine.
type Report struct {
	Status      Status
	Fingerprint string
	// Deadline and LastSeen are set once the stored dates decoded, even if a
	// later check (rollback, enrollment code) fell back to Unregistered.
	// LastSeen is the observation recorded before this check.
	Deadline  *time.Time
	LastSeen  *time.Time
	CheckedAt time.Time
}

// RemainingDays returns whole days from today to the deadline, or 0 when no
// deadline is known.
func (r Report) RemainingDays(today time.Time) int {
	if r.Deadline == nil {
		return 0
	}
	hours := startOfDay(*r.Deadline).Sub(startOfDay(today)).Hours()
	return int(math.Round(hours / 24))
}

// Describe renders the report for people.
func (r Report) Describe(today time.Time) string {
	switch r.Status {
	case Unregistered:
		return "unregistered"
	case Expired:
		return "expired"
	case Permanent:
		return "permanent license"
	case Trial:
		if r.Deadline == nil {
			return "trial deadline is invalid"
		}
		days := r.RemainingDays(today)
		if days < 0 {
			return "expired"
		}
		return fmt.Sprintf("%d days remaining (until %s)", days, FormatDate(*r.Deadline))
	default:
		return "unknown"
	}
}

type reportJSON struct {
	Status        Status `json:"status"`
	Licensed      bool   `json:"licensed"`
	Fingerprint   string `json:"fingerprint"`
	Deadline      string `json:"deadline,omitempty"`
	LastSeen      string `json:"last_seen,omitempty"`
	RemainingDays *int   `json:"remaining_days,omitempty"`
	Description   string `json:"description"`
	CheckedAt     string `json:"checked_at"`
}

// MarshalJSON renders dates with DateLayout and adds the description.
func (r Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		Status:      r.Status,
		Licensed:    r.Status.Licensed(),
		Fingerprint: r.Fingerprint,
		Description: r.Describe(r.CheckedAt),
		CheckedAt:   FormatDate(r.CheckedAt),
	}
	if r.Deadline != nil {
		out.Deadline = FormatDate(*r.Deadline)
	}
	if r.LastSeen != nil {
		out.LastSeen = FormatDate(*r.LastSeen)
	}
	if r.Status == Trial {
		days := r.RemainingDays(r.CheckedAt)
		out.RemainingDays = &days
	}
	return json.Marshal(out)
}
