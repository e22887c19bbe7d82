package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/emersion/go-ical"

	"github.com/combiapp/combiapp/internal/domain"
)

// handleCalendar exports the caller's confirmed trips for the active week as
// an iCalendar feed, one all-day event per confirmed leg.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	email := userEmail(r)
	if email == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	sched, err := s.schedules.Get(email)
	if err != nil {
		log.Printf("api: loading schedule for %s: %v", email, err)
		writeError(w, http.StatusInternalServerError, "could not load schedule")
		return
	}

	cal := weekCalendar(sched, s.window(), s.cfg.Timezone)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="combi.ics"`)
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		log.Printf("api: encoding calendar for %s: %v", email, err)
	}
}

func weekCalendar(sched *domain.RiderSchedule, window []domain.DayWindow, tz *time.Location) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//CombiApp//Schedule//ES")

	for _, day := range window {
		date, err := time.ParseInLocation(domain.DateLayout, day.Date, tz)
		if err != nil {
			continue
		}
		for _, leg := range []domain.Leg{domain.LegIda, domain.LegVuelta} {
			entry := sched.Entry(day.Day, leg)
			if !entry.ValidFor(day.Date) || !entry.Going() {
				continue
			}

			summary := fmt.Sprintf("🚐 Combi %s", leg)
			if entry.Parada != "" {
				summary = fmt.Sprintf("🚐 Combi %s (%s)", leg, entry.Parada)
			}

			vevent := ical.NewEvent()
			vevent.Props.SetText(ical.PropUID,
				fmt.Sprintf("%s-%s-%s@combiapp", sched.Email, date.Format("20060102"), leg))
			vevent.Props.SetText(ical.PropSummary, summary)
			vevent.Props.SetDate(ical.PropDateTimeStart, date)
			vevent.Props.SetDate(ical.PropDateTimeEnd, date.AddDate(0, 0, 1))
			vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

			cal.Children = append(cal.Children, vevent.Component)
		}
	}

	return cal
}
