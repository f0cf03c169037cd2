package commands

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vsinha/mbom/pkg/application/services/costing"
	"github.com/vsinha/mbom/pkg/application/services/lifecycle"
	"github.com/vsinha/mbom/pkg/application/services/requirements"
	"github.com/vsinha/mbom/pkg/domain/repositories"
	"github.com/vsinha/mbom/pkg/infrastructure/events"
	"github.com/vsinha/mbom/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/mbom/pkg/infrastructure/repositories/postgres"
	"github.com/vsinha/mbom/pkg/infrastructure/repositories/xlsx"
)

// dataStore is what both backends provide
type dataStore interface {
	repositories.ProductRepository
	repositories.CatalogWriter
	repositories.BOMRepository
	repositories.BOMWriter
	repositories.PriceRepository
	repositories.FXRateRepository
	repositories.PlanRepository
	repositories.StockRepository
	xlsx.RateSink
	xlsx.StockSink
}

// backend is an open data source with the services built over it
type backend struct {
	store  dataStore
	db     *gorm.DB
	events *events.InMemoryEventStore

	costing      *costing.Service
	reports      *costing.ReportService
	requirements *requirements.PlanService
	lifecycle    *lifecycle.Service
}

// persistent reports whether writes outlive the process
func (b *backend) persistent() bool {
	return b.db != nil
}

// openBackend loads the scenario directory when one is given, otherwise connects to
// the configured database. Events are only dispatched to the diagnostics logger, never
// retained, so a long-running server does not accumulate them.
func (c *MBOMCommand) openBackend(ctx context.Context) (*backend, error) {
	b := &backend{events: events.NewInMemoryEventStore(c.logger, events.WithRetention(0))}

	if c.config.ScenarioDir != "" {
		if c.config.Verbose {
			c.printf("Loading scenario %s\n", c.config.ScenarioDir)
		}
		store, err := csv.NewLoader(c.logger).LoadScenario(c.config.ScenarioDir)
		if err != nil {
			return nil, fmt.Errorf("error loading scenario: %w", err)
		}
		b.store = store
	} else {
		db, err := postgres.Open(c.settings.Database, c.logger)
		if err != nil {
			return nil, err
		}
		if c.settings.Database.AutoMigrate {
			if err := postgres.Migrate(db); err != nil {
				postgres.Close(db, c.logger)
				return nil, err
			}
		}
		b.db = db
		b.store = postgres.NewRepository(db)
	}

	if err := c.buildServices(b); err != nil {
		b.Close(c)
		return nil, err
	}
	c.logDiagnostics(b.events)
	return b, nil
}

func (c *MBOMCommand) buildServices(b *backend) error {
	cfg, err := c.settings.Costing.ToCosting()
	if err != nil {
		return err
	}
	now := time.Now
	if c.config.AsOf != "" {
		asOf, err := time.Parse(time.DateOnly, c.config.AsOf)
		if err != nil {
			return fmt.Errorf("-as-of must be YYYY-MM-DD: %w", err)
		}
		now = func() time.Time { return asOf }
	}
	cfg.Now = now

	b.costing = costing.NewService(cfg, b.store, b.store, b.store, b.store, c.logger, costing.WithEventStore(b.events))
	b.reports = costing.NewReportService(b.costing, c.logger)
	b.requirements = requirements.NewPlanService(b.costing, b.store, b.store, b.store, b.store, c.logger)
	b.lifecycle = lifecycle.NewService(b.store, c.logger, lifecycle.WithEventStore(b.events), lifecycle.WithClock(now))
	return nil
}

// logDiagnostics logs costing diagnostics as they are published
func (c *MBOMCommand) logDiagnostics(store events.EventStore) {
	types := append([]string{events.BOMActivatedEvent, events.BOMClonedEvent}, events.CostingEventTypes...)
	_ = store.Subscribe(types, &events.HandlerFunc{
		Types: types,
		Fn: func(e events.Event) error {
			c.logger.WithField("stream", e.StreamID()).WithField("data", e.Data()).Debug(e.Type())
			return nil
		},
	})
}

// Close releases the database connection, if any
func (b *backend) Close(c *MBOMCommand) {
	if b.db != nil {
		postgres.Close(b.db, c.logger)
	}
}
