package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"car2x-dashboard/internal/config"
	"car2x-dashboard/internal/domain"
	"car2x-dashboard/internal/jobs"
	"car2x-dashboard/internal/log"
	"car2x-dashboard/internal/overlay"
	"car2x-dashboard/internal/recon"
	"car2x-dashboard/internal/store"
	"car2x-dashboard/internal/transport/httpapi"
	"car2x-dashboard/internal/transport/poll"
	"car2x-dashboard/internal/transport/push"
	"car2x-dashboard/internal/transport/ws"
)

func main() {
	cfg := config.Load()
	log.Configure(log.Config{Level: cfg.LogLevel})
	logger := log.WithComponent("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewEntityStore()
	ring := store.NewAlertRing(store.DefaultAlertCapacity)

	counts := func() domain.Counts {
		vehicles, infrastructure, jobCount := st.Counts()
		return domain.Counts{
			Vehicles:       vehicles,
			Infrastructure: infrastructure,
			Jobs:           jobCount,
			Alerts:         ring.Len(),
		}
	}

	snapshot := func() any {
		return map[string]any{
			"type":           "initial_data",
			"vehicles":       st.Vehicles(),
			"infrastructure": st.InfrastructureItems(),
			"emergencies":    ring.Snapshot(),
			"jobs":           st.Jobs(),
			"counts":         counts(),
		}
	}

	hub := ws.NewHub(snapshot)
	manager := overlay.NewManager(hub, counts)

	pushClient, err := push.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		// Stay up on stale state; the subscriber keeps retrying and the
		// poll channel works as soon as the backend is reachable.
		logger.Error().Err(err).Msg("push channel broker unreachable at startup")
	}
	defer pushClient.Close()

	correlator := jobs.NewCorrelator(st, pushClient, manager)
	reconciler := recon.New(st, ring, correlator, manager, cfg.EventChannelSize)
	poller := poll.New(cfg.PollBaseURL, time.Duration(cfg.PollIntervalMS)*time.Millisecond, reconciler)

	go reconciler.Run(ctx)
	go pushClient.Run(ctx, reconciler)
	go poller.Run(ctx)

	api := httpapi.NewServer(st, ring, correlator, hub, counts)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("dashboard listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("shutdown initiated")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
}
