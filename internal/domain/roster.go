package domain

// RiderRef identifies a rider inside a roster bucket.
type RiderRef struct {
	Email string
	Name  string
}

// Roster is the derived passenger list for one resolved day and leg. Every
// rider in the input lands in exactly one of: a stop group, NotTraveling or
// Unanswered. The return buckets are auxiliary and only filled for the
// vuelta leg. Rosters are recomputed on every read.
type Roster struct {
	Day DayWindow
	Leg Leg

	// ByStop groups confirmed riders by stop; Stops preserves first-seen
	// stop order so repeated aggregations render identically.
	ByStop map[string][]RiderRef
	Stops  []string

	NotTraveling []RiderRef
	Unanswered   []RiderRef

	// Malformed lists riders that declared "voy" without a stop. They are
	// also counted as unanswered rather than silently dropped.
	Malformed []RiderRef

	// Vuelta only: riders who went out this morning, split by whether they
	// confirmed, declined or never registered their return.
	ConfirmedReturn []RiderRef
	NoReturn        []RiderRef
	ReturnPending   []RiderRef
}

func NewRoster(day DayWindow, leg Leg) *Roster {
	return &Roster{Day: day, Leg: leg, ByStop: make(map[string][]RiderRef)}
}

// AddToStop appends a rider to a stop group, registering the stop on first use.
func (r *Roster) AddToStop(stop string, rider RiderRef) {
	if _, ok := r.ByStop[stop]; !ok {
		r.Stops = append(r.Stops, stop)
	}
	r.ByStop[stop] = append(r.ByStop[stop], rider)
}
