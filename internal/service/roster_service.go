package service

import (
	"log"

	"github.com/combiapp/combiapp/internal/domain"
	"github.com/combiapp/combiapp/internal/storage"
)

// RosterService derives the per-day passenger lists from all riders'
// declarations. Rosters are recomputed on every call; nothing is cached.
type RosterService struct {
	storage *storage.Storage
}

func NewRosterService(s *storage.Storage) *RosterService {
	return &RosterService{storage: s}
}

// ForDay loads every schedule and aggregates both legs for one window day.
func (r *RosterService) ForDay(day domain.DayWindow) (ida, vuelta *domain.Roster, err error) {
	schedules, err := r.storage.ListSchedules()
	if err != nil {
		return nil, nil, err
	}
	return r.Aggregate(schedules, day, domain.LegIda),
		r.Aggregate(schedules, day, domain.LegVuelta),
		nil
}

// Aggregate classifies every rider for one day and leg. Each rider lands in
// exactly one of: a stop group, NotTraveling or Unanswered.
//
// NotTraveling requires a valid explicit "no" on BOTH legs of the day; a
// rider who declined one leg and stayed silent on the other remains
// unanswered. Partial information is deliberately not treated as a full
// opt-out.
func (r *RosterService) Aggregate(schedules []*domain.RiderSchedule, day domain.DayWindow, leg domain.Leg) *domain.Roster {
	ros := domain.NewRoster(day, leg)

	for _, sched := range schedules {
		rider := domain.RiderRef{Email: sched.Email, Name: sched.DisplayName()}

		ds := sched.Day(day.Day)
		entry := ds.Entry(leg)
		ida := ds.Entry(domain.LegIda)
		vuelta := ds.Entry(domain.LegVuelta)

		idaValid := ida.ValidFor(day.Date)
		vueltaValid := vuelta.ValidFor(day.Date)
		valid := entry.ValidFor(day.Date)

		switch {
		case valid && entry.Going():
			if entry.Parada != "" {
				ros.AddToStop(entry.Parada, rider)
			} else {
				// "voy" without a stop cannot be placed on the route;
				// surface it instead of dropping the rider silently.
				log.Printf("roster: %s marked going on %s %s without a stop", sched.Email, day.Name(), leg)
				ros.Malformed = append(ros.Malformed, rider)
				ros.Unanswered = append(ros.Unanswered, rider)
			}
		case idaValid && ida.Declined() && vueltaValid && vuelta.Declined():
			ros.NotTraveling = append(ros.NotTraveling, rider)
		default:
			ros.Unanswered = append(ros.Unanswered, rider)
		}

		// Riders who went out this morning owe an answer for the return.
		if leg == domain.LegVuelta && idaValid && ida.Going() {
			switch {
			case vueltaValid && vuelta.Going():
				ros.ConfirmedReturn = append(ros.ConfirmedReturn, rider)
			case vueltaValid && vuelta.Declined():
				ros.NoReturn = append(ros.NoReturn, rider)
			default:
				ros.ReturnPending = append(ros.ReturnPending, rider)
			}
		}
	}

	return ros
}
