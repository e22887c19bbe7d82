package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/combiapp/combiapp/config"
	"github.com/combiapp/combiapp/internal/clients/push"
	"github.com/combiapp/combiapp/internal/metrics"
	"github.com/combiapp/combiapp/internal/scheduler"
	"github.com/combiapp/combiapp/internal/server"
	"github.com/combiapp/combiapp/internal/service"
	"github.com/combiapp/combiapp/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	collector := metrics.NewCollector()
	pushClient := push.NewClient(cfg.PushURL, cfg.PushKey)

	notifySvc := service.NewNotifyService(store, pushClient, cfg, collector)
	scheduleSvc := service.NewScheduleService(store, cfg.Timezone)
	scheduleSvc.SetNotifier(notifySvc)
	rosterSvc := service.NewRosterService(store)
	stopSvc := service.NewStopService(store)

	srv := server.New(cfg, store, scheduleSvc, rosterSvc, notifySvc, stopSvc, collector)
	sched := scheduler.New(cfg, rosterSvc, notifySvc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("CombiApp started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error stopping server: %v", err)
	}

	log.Println("CombiApp stopped")
}
