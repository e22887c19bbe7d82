package domain

import "fmt"

// Stop is a named boarding point with its scheduled time, per leg. The admin
// panel maintains these lists; riders pick from them when declaring a trip.
type Stop struct {
	Name string `json:"name"`
	Time string `json:"time"` // "HH:MM"
}

// Label renders the stop the way the schedule UI shows it.
func (s Stop) Label() string {
	if s.Time == "" {
		return s.Name
	}
	return fmt.Sprintf("%s (%s)", s.Name, s.Time)
}
