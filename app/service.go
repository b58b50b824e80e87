// Package app wires configuration, solver, run log, metrics and plan
// publication into the dispatch service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apidispatch "github.com/kilianp07/chpdispatch/api/dispatch"
	"github.com/kilianp07/chpdispatch/config"
	"github.com/kilianp07/chpdispatch/core/dispatch"
	"github.com/kilianp07/chpdispatch/core/dispatch/logging"
	"github.com/kilianp07/chpdispatch/core/events"
	"github.com/kilianp07/chpdispatch/core/margins"
	coremetrics "github.com/kilianp07/chpdispatch/core/metrics"
	"github.com/kilianp07/chpdispatch/core/milp"
	"github.com/kilianp07/chpdispatch/core/model"
	coremqtt "github.com/kilianp07/chpdispatch/core/mqtt"
	"github.com/kilianp07/chpdispatch/infra/logger"
	"github.com/kilianp07/chpdispatch/infra/metrics"
	"github.com/kilianp07/chpdispatch/infra/mqtt"
	"github.com/kilianp07/chpdispatch/infra/solver"
	"github.com/kilianp07/chpdispatch/internal/eventbus"
	"github.com/kilianp07/chpdispatch/pkg/timeseries"
)

// drainTimeout bounds how long Close waits for pending metric events.
const drainTimeout = 5 * time.Second

// Service runs optimizations for the configured sites and fans the outcome
// out to the run log, the metrics sinks and the plant controllers.
type Service struct {
	cfg        *config.Config
	optimizers map[string]*dispatch.Optimizer
	store      logging.RunStore
	sink       coremetrics.MetricsSink
	publisher  coremqtt.PlanPublisher
	bus        *eventbus.Bus
	log        logger.Logger
	now        func() time.Time

	stopCollector context.CancelFunc
	collectorDone <-chan struct{}
}

// Dependencies overrides the backends built from configuration. Nil fields
// are built from cfg.
type Dependencies struct {
	Solver    milp.Solver
	Store     logging.RunStore
	Sink      coremetrics.MetricsSink
	Publisher coremqtt.PlanPublisher
	Logger    logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	return NewWithDependencies(cfg, Dependencies{})
}

// NewWithDependencies creates a Service, building only the backends deps
// leaves unset.
func NewWithDependencies(cfg *config.Config, deps Dependencies) (*Service, error) {
	logg := deps.Logger
	if logg == nil {
		logg = logger.NewWithOptions("service", logger.Options{Level: cfg.LogLevel})
	}
	slv := deps.Solver
	if slv == nil {
		var err error
		slv, err = solver.New(cfg.Solver, logger.NewWithOptions("solver", logger.Options{Level: cfg.LogLevel}))
		if err != nil {
			return nil, fmt.Errorf("solver: %w", err)
		}
	}

	optimizers := make(map[string]*dispatch.Optimizer, len(cfg.Sites))
	for _, name := range cfg.SiteNames() {
		p, err := cfg.Sites[name].Profile()
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", name, err)
		}
		optLog := logger.NewWithOptions("optimizer", logger.Options{Level: cfg.LogLevel}).With(map[string]any{"site": name})
		optimizers[name] = dispatch.NewOptimizer(p, slv, cfg.Dispatch, optLog)
	}

	store := deps.Store
	if store == nil {
		var err error
		store, err = cfg.Logging.Open()
		if err != nil {
			return nil, fmt.Errorf("run log: %w", err)
		}
	}
	sink := deps.Sink
	if sink == nil {
		var err error
		sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
	}
	pub := deps.Publisher
	if pub == nil {
		pub = mqtt.NopPublisher{}
		if cfg.MQTT.Enabled {
			client, err := mqtt.NewPahoClient(cfg.MQTT)
			if err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("mqtt client: %w", err)
			}
			pub = client
		}
	}

	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := metrics.StartEventCollector(ctx, bus, sink, func(err error) {
		if err != nil {
			logg.Warnf("metrics: %v", err)
		}
	})
	return &Service{
		cfg:           cfg,
		optimizers:    optimizers,
		store:         store,
		sink:          sink,
		publisher:     pub,
		bus:           bus,
		log:           logg,
		now:           time.Now,
		stopCollector: cancel,
		collectorDone: done,
	}, nil
}

func (s *Service) optimizer(site string) (*dispatch.Optimizer, error) {
	o, ok := s.optimizers[site]
	if !ok {
		_, err := s.cfg.Site(site)
		return nil, err
	}
	return o, nil
}

// Sites lists the sites the service can optimize.
func (s *Service) Sites() []string { return s.cfg.SiteNames() }

// Defaults returns the CSV and request fallbacks of a site.
func (s *Service) Defaults(site string) (timeseries.Defaults, error) {
	sc, err := s.cfg.Site(site)
	if err != nil {
		return timeseries.Defaults{}, err
	}
	return sc.Defaults(), nil
}

// Optimize solves the horizon for a site. Every call is appended to the run
// log and published on the event bus; solved plans are sent to the plant.
func (s *Service) Optimize(ctx context.Context, site string, series model.Series) (*dispatch.Plan, error) {
	o, err := s.optimizer(site)
	if err != nil {
		return nil, err
	}
	started := s.now()
	plan, err := o.Optimize(ctx, series)
	if plan != nil {
		plan.Site = site
	}

	rec := logging.NewRunRecord(site, series, plan, err, started)
	if aerr := s.store.Append(context.WithoutCancel(ctx), rec); aerr != nil {
		s.log.Errorf("run log append: %v", aerr)
	}
	s.bus.Publish(events.RunEvent{Site: site, Hours: len(series), Plan: plan, Err: err, Time: s.now()})
	if err != nil {
		return nil, err
	}

	if _, perr := s.publisher.PublishPlan(site, plan); perr != nil {
		s.log.Warnf("publish plan %s for %s: %v", plan.RunID, site, perr)
	}
	return plan, nil
}

// Margins evaluates the marginal costs of a site at the given prices.
func (s *Service) Margins(site string, electricity, gas, heat float64) (margins.SweepPoint, error) {
	o, err := s.optimizer(site)
	if err != nil {
		return margins.SweepPoint{}, err
	}
	ms := margins.Compute(electricity, gas, heat, o.Profile())
	pt := margins.SweepPoint{ElectricityPrice: electricity, Margins: ms, Best: margins.BestSource(ms.Margins)}
	s.bus.Publish(events.MarginEvent{
		Site:             site,
		ElectricityPrice: electricity,
		GasPrice:         gas,
		HeatPrice:        heat,
		Margins:          ms,
		Best:             pt.Best,
		Time:             s.now(),
	})
	return pt, nil
}

// Sweep evaluates the margins of a site over a range of electricity prices.
func (s *Service) Sweep(site string, from, to, step, gas, heat float64) ([]margins.SweepPoint, error) {
	o, err := s.optimizer(site)
	if err != nil {
		return nil, err
	}
	return margins.Sweep(from, to, step, gas, heat, o.Profile())
}

// Runs queries the run log.
func (s *Service) Runs(ctx context.Context, q logging.RunQuery) ([]logging.RunRecord, error) {
	return s.store.Query(ctx, q)
}

// Handler returns the HTTP API of the service.
func (s *Service) Handler() http.Handler {
	return apidispatch.NewMux(s, s.store, apidispatch.Options{
		Token:   s.cfg.HTTP.Token,
		MaxBody: int64(s.cfg.HTTP.MaxBodyMB) << 20,
		Metrics: metrics.Handler(nil),
	})
}

// Run serves the HTTP API, and the Prometheus endpoint when configured, until
// the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if addr := s.cfg.HTTP.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("dispatch API listening on %s for sites %v", s.cfg.HTTP.Addr, s.Sites())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close flushes pending metric events and releases resources held by the
// service.
func (s *Service) Close() error {
	s.bus.Close()
	select {
	case <-s.collectorDone:
	case <-time.After(drainTimeout):
		s.log.Warnf("metrics: collector did not drain within %s", drainTimeout)
	}
	s.stopCollector()
	if d := s.bus.Dropped(); d > 0 {
		s.log.Warnf("metrics: %d events dropped on a full bus", d)
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if c, ok := s.publisher.(interface{ Disconnect() }); ok {
		c.Disconnect()
	}
	return s.store.Close()
}
