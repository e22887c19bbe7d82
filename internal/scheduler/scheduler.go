package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/combiapp/combiapp/config"
	"github.com/combiapp/combiapp/internal/domain"
	"github.com/combiapp/combiapp/internal/service"
)

// Scheduler runs the one recurring job of the service: the afternoon
// reminder for riders who went out in the morning and never registered a
// return. Everything else in the system is trigger-driven.
type Scheduler struct {
	cron      *cron.Cron
	cfg       *config.Config
	rosterSvc *service.RosterService
	notifySvc *service.NotifyService
}

func New(cfg *config.Config, rosterSvc *service.RosterService, notifySvc *service.NotifyService) *Scheduler {
	c := cron.New(cron.WithLocation(cfg.Timezone))

	return &Scheduler{
		cron:      c,
		cfg:       cfg,
		rosterSvc: rosterSvc,
		notifySvc: notifySvc,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	// Return reminder at 16:45 on service days
	if _, err := s.cron.AddFunc("45 16 * * 1-5", s.remindReturns); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("Scheduler started (TZ: %s)", s.cfg.Timezone)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) remindReturns() {
	now := time.Now().In(s.cfg.Timezone)
	window := domain.WeekWindow(now)
	today := window[0]
	if today.Day != mustWeekday(now) {
		// past the evening cutover the window no longer starts today
		return
	}

	_, vuelta, err := s.rosterSvc.ForDay(today)
	if err != nil {
		log.Printf("Return reminder: computing roster: %v", err)
		return
	}
	if len(vuelta.ReturnPending) == 0 {
		return
	}

	sent, failed := s.notifySvc.SendReturnReminder(vuelta.ReturnPending)
	log.Printf("Return reminder for %s: %d pending, %d sent, %d failed",
		today.Name(), len(vuelta.ReturnPending), sent, failed)
}

func mustWeekday(now time.Time) domain.Weekday {
	d, _ := domain.WeekdayFromTime(now.Weekday())
	return d
}
