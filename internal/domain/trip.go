package domain

// LegEntry is one rider's declaration for a single weekday and leg.
// Usar distinguishes three states: going (true), not going (false) and
// unanswered (nil). A non-recurring entry only counts for the exact date it
// was confirmed for; anything else is stale and reads as unanswered.
type LegEntry struct {
	Usar       *bool  `json:"usar,omitempty"`
	Parada     string `json:"parada,omitempty"`
	Recurrente bool   `json:"recurrente,omitempty"`
	Fecha      string `json:"fecha,omitempty"`
}

// ValidFor reports whether the entry applies to the given date
// (DateLayout-formatted). Recurring entries apply to every occurrence of
// their weekday; dated entries only to the exact date they were saved for.
func (e *LegEntry) ValidFor(date string) bool {
	if e == nil {
		return false
	}
	if e.Recurrente {
		return true
	}
	return e.Fecha != "" && e.Fecha == date
}

// Going reports an explicit "voy".
func (e *LegEntry) Going() bool {
	return e != nil && e.Usar != nil && *e.Usar
}

// Declined reports an explicit "no voy".
func (e *LegEntry) Declined() bool {
	return e != nil && e.Usar != nil && !*e.Usar
}

// Stop returns the declared stop, empty when the entry is absent.
func (e *LegEntry) Stop() string {
	if e == nil {
		return ""
	}
	return e.Parada
}

// DaySchedule holds a rider's two leg entries for one weekday.
type DaySchedule struct {
	Ida    *LegEntry `json:"ida,omitempty"`
	Vuelta *LegEntry `json:"vuelta,omitempty"`
}

func (d *DaySchedule) Entry(leg Leg) *LegEntry {
	if d == nil {
		return nil
	}
	if leg == LegVuelta {
		return d.Vuelta
	}
	return d.Ida
}

// RiderSchedule is one rider's full weekly declaration, keyed by service day.
// It is owned by the rider and replaced wholesale on every save.
type RiderSchedule struct {
	Email  string
	Nombre string
	Dias   map[Weekday]*DaySchedule
}

// Day returns the schedule for a weekday, nil-safe on both ends.
func (s *RiderSchedule) Day(d Weekday) *DaySchedule {
	if s == nil {
		return nil
	}
	return s.Dias[d]
}

// Entry returns the leg entry for a weekday, nil when anything on the path
// is absent.
func (s *RiderSchedule) Entry(d Weekday, leg Leg) *LegEntry {
	return s.Day(d).Entry(leg)
}

// DisplayName returns the rider's name, falling back to the email.
func (s *RiderSchedule) DisplayName() string {
	if s.Nombre != "" {
		return s.Nombre
	}
	return s.Email
}
