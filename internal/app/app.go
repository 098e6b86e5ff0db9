package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloudpico-sensorsim/internal/config"
	"cloudpico-sensorsim/internal/dispatch"
	"cloudpico-sensorsim/internal/generator"
	"cloudpico-sensorsim/internal/httpapi"
	"cloudpico-sensorsim/internal/journal"
	"cloudpico-sensorsim/internal/metrics"
	"cloudpico-sensorsim/internal/mqtt"
	"cloudpico-sensorsim/internal/report"
	"cloudpico-sensorsim/internal/status"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("initializing sensorsim",
		"tb_http", cfg.TBHTTPBaseURL,
		"mqtt_broker", cfg.MQTTBroker,
		"mqtt_port", cfg.MQTTPort,
		"mqtt_client_id", cfg.MQTTClientID,
		"backend_url", cfg.BackendURL,
		"interval", cfg.SampleInterval,
		"quantities", len(cfg.Quantities),
		"status_addr", cfg.StatusAddr,
		"journal_path", cfg.JournalPath,
	)

	gen, err := generator.New(cfg.Quantities, generator.NewUniformSource(cfg.Seed))
	if err != nil {
		return err
	}

	mqttClient := mqtt.NewClient(cfg, slog.Default().With("component", "mqtt"))

	dispatcher, err := dispatch.New(mqttClient, dispatch.Options{
		TBBaseURL:   cfg.TBHTTPBaseURL,
		BackendURL:  cfg.BackendURL,
		AccessToken: cfg.AccessToken,
		Logger:      slog.Default().With("component", "dispatch"),
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	tracker := status.NewTracker(func() string { return mqttClient.State().String() })

	loop := &Loop{
		Sampler:      gen,
		Transport:    mqttClient,
		Deliverer:    dispatcher,
		Reporter:     report.New(os.Stdout, gen.Quantities()),
		Metrics:      m,
		Tracker:      tracker,
		Logger:       slog.Default(),
		Interval:     cfg.SampleInterval,
		ConnectGrace: cfg.MQTTConnectGrace,
	}

	var jr *journal.Journal
	if cfg.JournalPath != "" {
		jr, err = journal.Open(ctx, cfg.JournalPath, slog.Default().With("component", "journal"))
		if err != nil {
			return err
		}
		defer func() {
			if err := jr.Close(); err != nil {
				slog.Error("journal close", "error", err)
			}
		}()
		loop.Journal = jr
	}

	if cfg.StatusAddr != "" {
		deps := httpapi.Deps{
			Status:  tracker,
			Metrics: m,
			Logger:  slog.Default().With("component", "httpapi"),
		}
		if jr != nil {
			deps.Journal = jr
		}
		srv := httpapi.NewServer(cfg.StatusAddr, httpapi.NewRouter(deps))

		// A failing status listener is logged; the simulation keeps running.
		done := make(chan struct{})
		go func() {
			defer close(done)
			slog.Info("status api listening", "addr", cfg.StatusAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("status api", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			slog.Info("status api shutting down")
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("status api shutdown", "error", err)
			}
			<-done
		}()
	}

	return loop.Run(ctx)
}
