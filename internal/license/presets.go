package license

import (
	"fmt"
	"strings"
	"time"
)

// Preset is a named license duration offered to vendors.
type Preset string

const (
	Preset3Days     Preset = "3d"
	Preset10Days    Preset = "10d"
	Preset20Days    Preset = "20d"
	Preset1Month    Preset = "1m"
	Preset3Months   Preset = "3m"
	Preset1Year     Preset = "1y"
	PresetPermanent Preset = "permanent"
	PresetCustom    Preset = "custom"
)

// Presets lists every preset in display order.
var Presets = []Preset{
	Preset3Days, Preset10Days, Preset20Days,
	Preset1Month, Preset3Months, Preset1Year,
	PresetPermanent, PresetCustom,
}

// ParsePreset normalizes s. Unknown names map to Preset3Days and ok is false.
func ParsePreset(s string) (p Preset, ok bool) {
	candidate := Preset(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Presets {
		if candidate == known {
			return known, true
		}
	}
	return Preset3Days, false
}

// ResolveDeadline computes the deadline for p relative to issueDate. custom is
// only consulted for PresetCustom; a nil custom date means issueDate.
func ResolveDeadline(p Preset, issueDate time.Time, custom *time.Time) time.Time {
	day := startOfDay(issueDate)

	switch p {
	case Preset10Days:
		return day.AddDate(0, 0, 10)
	case Preset20Days:
		return day.AddDate(0, 0, 20)
	case Preset1Month:
		return addMonths(day, 1)
	case Preset3Months:
		return addMonths(day, 3)
	case Preset1Year:
		return addMonths(day, 12)
	case PresetPermanent:
		return PermanentDeadline(day.Location())
	case PresetCustom:
		if custom == nil {
			return day
		}
		return startOfDay(*custom)
	default:
		return day.AddDate(0, 0, 3)
	}
}

// PlanDates resolves vendor input into issue and deadline dates. A blank
// issueDate means today. custom is only read for PresetCustom and must then be
// a valid date.
func PlanDates(p Preset, issueDate, custom string, today time.Time) (issue, deadline time.Time, err error) {
	issue = startOfDay(today)
	if strings.TrimSpace(issueDate) != "" {
		if issue, err = ParseDate(issueDate, today.Location()); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("issue date: %w", err)
		}
	}

	var customDate *time.Time
	if p == PresetCustom {
		d, err := ParseDate(custom, today.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("custom deadline: %w", err)
		}
		customDate = &d
	}

	return issue, ResolveDeadline(p, issue, customDate), nil
}
