// Package app wires the station from configuration: logger, clock, piles,
// sinks, event bus, scheduler and HTTP servers.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/evstation/api"
	"github.com/kilianp07/evstation/config"
	corebilling "github.com/kilianp07/evstation/core/billing"
	"github.com/kilianp07/evstation/core/clock"
	corelogger "github.com/kilianp07/evstation/core/logger"
	"github.com/kilianp07/evstation/core/station"
	"github.com/kilianp07/evstation/infra/billing"
	"github.com/kilianp07/evstation/infra/logger"
	"github.com/kilianp07/evstation/infra/metrics"
	"github.com/kilianp07/evstation/infra/mqtt"
	"github.com/kilianp07/evstation/internal/eventbus"
)

// Service orchestrates the station, its persistence and its servers.
type Service struct {
	Station *station.Station

	cfg      *config.Config
	store    corebilling.Store
	bus      *eventbus.Bus
	notifier *mqtt.Notifier
	httpSrv  *http.Server
	log      corelogger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.NewZerologLogger("service")

	store, err := billing.FromConfig(cfg.Billing)
	if err != nil {
		return nil, fmt.Errorf("bill store: %w", err)
	}

	sink, err := metrics.FromConfig(cfg.Metrics)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	bus := eventbus.New()
	st, err := station.New(cfg.StationSpec(), station.Deps{
		Clock:     clock.NewVirtual(),
		Sink:      corebilling.StoreSink{Store: store},
		Metrics:   sink,
		Bus:       bus,
		Logger:    logger.NewZerologLogger("station"),
		Directory: cfg.Directory(),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	svc := &Service{Station: st, cfg: cfg, store: store, bus: bus, log: logg}
	if cfg.MQTT.Enabled {
		notifier, err := mqtt.NewNotifier(cfg.MQTT, bus)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		svc.notifier = notifier
	}
	if cfg.API.Enabled {
		svc.httpSrv = &http.Server{
			Addr:              cfg.API.Addr,
			Handler:           api.Handler(st, store, logger.NewZerologLogger("api")),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return svc, nil
}

// Run starts the station and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.Station.Start()
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartServer(s.cfg.Metrics.PrometheusAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.httpSrv != nil {
		go func() {
			s.log.Infof("http api listening on %s", s.httpSrv.Addr)
			if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Errorf("http server: %v", err)
			}
		}()
	}
	<-ctx.Done()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}
	s.Station.Stop()
	if s.notifier != nil {
		s.notifier.Close()
	}
	s.bus.Close()
	return s.store.Close()
}
