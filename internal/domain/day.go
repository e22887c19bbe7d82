package domain

import "time"

// Leg identifies one direction of the daily combi trip.
type Leg string

const (
	LegIda    Leg = "ida"
	LegVuelta Leg = "vuelta"
)

// ParseLeg parses "ida" or "vuelta".
func ParseLeg(s string) (Leg, bool) {
	switch Leg(s) {
	case LegIda, LegVuelta:
		return Leg(s), true
	}
	return "", false
}

// Weekday is a service day (Monday-Friday). Values match time.Weekday so the
// two convert directly. Saturday and Sunday are not representable: the combi
// does not run on weekends.
type Weekday int

const (
	Lunes     Weekday = 1
	Martes    Weekday = 2
	Miercoles Weekday = 3
	Jueves    Weekday = 4
	Viernes   Weekday = 5
)

var weekdayNames = map[Weekday]string{
	Lunes:     "Lunes",
	Martes:    "Martes",
	Miercoles: "Miércoles",
	Jueves:    "Jueves",
	Viernes:   "Viernes",
}

// Name returns the Spanish weekday name used as the schedule key.
func (d Weekday) Name() string {
	return weekdayNames[d]
}

// Valid reports whether d is a service day.
func (d Weekday) Valid() bool {
	return d >= Lunes && d <= Viernes
}

// ParseWeekday parses a Spanish weekday name ("Lunes".."Viernes").
func ParseWeekday(s string) (Weekday, bool) {
	for d, name := range weekdayNames {
		if name == s {
			return d, true
		}
	}
	return 0, false
}

// WeekdayFromTime converts a time.Weekday, rejecting weekends.
func WeekdayFromTime(wd time.Weekday) (Weekday, bool) {
	d := Weekday(wd)
	return d, d.Valid()
}

// DateLayout is the calendar date format stored in trip entries and shown to
// riders. Entry validity compares these strings exactly, so writer and reader
// must share the layout.
const DateLayout = "02/01/2006"

// DayWindow is one resolved entry day: a weekday key bound to the concrete
// date it currently stands for. Recomputed on every call, never persisted.
type DayWindow struct {
	Day  Weekday
	Date string
}

func (w DayWindow) Name() string {
	return w.Day.Name()
}

// cutoverHour is the local hour after which the current day is considered
// operationally over and planning moves to the next service day.
const cutoverHour = 18

// WeekWindow resolves the five active service days for the given instant.
// now must already be in the service timezone. The result is chronological,
// Monday-Friday only, and deterministic for a fixed now.
func WeekWindow(now time.Time) []DayWindow {
	start := now
	switch now.Weekday() {
	case time.Sunday:
		start = now.AddDate(0, 0, 1)
	case time.Saturday:
		start = now.AddDate(0, 0, 2)
	default:
		if now.Hour() >= cutoverHour {
			start = now.AddDate(0, 0, 1)
			if start.Weekday() == time.Saturday {
				start = start.AddDate(0, 0, 2)
			}
		}
	}

	days := make([]DayWindow, 0, 5)
	for d := start; len(days) < 5; d = d.AddDate(0, 0, 1) {
		wd, ok := WeekdayFromTime(d.Weekday())
		if !ok {
			continue
		}
		days = append(days, DayWindow{Day: wd, Date: d.Format(DateLayout)})
	}
	return days
}
