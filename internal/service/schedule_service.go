package service

import (
	"fmt"
	"log"
	"time"

	"github.com/combiapp/combiapp/internal/domain"
	"github.com/combiapp/combiapp/internal/storage"
)

// ScheduleService owns each rider's weekly trip declaration. Saves replace
// the whole declaration (last writer wins) and feed the change notifier.
type ScheduleService struct {
	storage  *storage.Storage
	notifier *NotifyService
	tz       *time.Location
	now      func() time.Time
}

func NewScheduleService(s *storage.Storage, tz *time.Location) *ScheduleService {
	return &ScheduleService{storage: s, tz: tz, now: time.Now}
}

// SetNotifier wires the change notifier. Optional: without it saves still
// work, they just notify nobody.
func (s *ScheduleService) SetNotifier(n *NotifyService) {
	s.notifier = n
}

// Get returns a rider's schedule; unknown riders get an empty day map.
func (s *ScheduleService) Get(email string) (*domain.RiderSchedule, error) {
	return s.storage.GetSchedule(email)
}

// Save replaces the rider's declaration. Each saved day is stamped with the
// date its weekday currently resolves to, so non-recurring entries expire
// naturally once the week rolls over. The notifier runs after a successful
// write and can never fail the save.
func (s *ScheduleService) Save(email, name string, dias map[domain.Weekday]*domain.DaySchedule) (*domain.RiderSchedule, error) {
	for day := range dias {
		if !day.Valid() {
			return nil, fmt.Errorf("invalid weekday key %d", day)
		}
	}

	// Read the previous state for change detection. A read failure here
	// degrades to "no previous data" rather than blocking the save.
	before, err := s.storage.GetSchedule(email)
	if err != nil {
		log.Printf("schedule: reading previous state for %s: %v", email, err)
		before = nil
	}

	window := domain.WeekWindow(s.now().In(s.tz))
	stampDates(dias, window)

	after := &domain.RiderSchedule{Email: email, Nombre: name, Dias: dias}
	if err := s.storage.SaveSchedule(after); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}

	if s.notifier != nil {
		s.notifier.OnScheduleUpdated(before, after)
	}
	return after, nil
}

// stampDates confirms every touched entry for the date its weekday stands
// for in the current window.
func stampDates(dias map[domain.Weekday]*domain.DaySchedule, window []domain.DayWindow) {
	for _, w := range window {
		ds := dias[w.Day]
		if ds == nil {
			continue
		}
		if ds.Ida != nil {
			ds.Ida.Fecha = w.Date
		}
		if ds.Vuelta != nil {
			ds.Vuelta.Fecha = w.Date
		}
	}
}
