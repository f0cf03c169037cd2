// Package costing values manufactured products by recursively pricing their
// bills of materials and routings.
package costing

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/application/dto"
	"github.com/vsinha/mbom/pkg/application/services/fx"
	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
	"github.com/vsinha/mbom/pkg/infrastructure/events"
)

var (
	ErrBOMNotFound      = errors.New("bom not found")
	ErrMaxDepthExceeded = errors.New("maximum bom depth exceeded")
)

// Service builds traversals over a fixed set of repositories and a configuration.
// It holds no per-request state and may be shared by concurrent callers.
type Service struct {
	cfg        Config
	boms       repositories.BOMRepository
	products   repositories.ProductRepository
	prices     repositories.PriceRepository
	resolver   *fx.Resolver
	normalizer *fx.Normalizer
	events     events.EventStore
	logger     logrus.FieldLogger
}

// Option customizes a Service
type Option func(*Service)

// WithEventStore publishes traversal diagnostics to store
func WithEventStore(store events.EventStore) Option {
	return func(s *Service) {
		s.events = store
	}
}

// NewService creates a costing service
func NewService(
	cfg Config,
	boms repositories.BOMRepository,
	products repositories.ProductRepository,
	prices repositories.PriceRepository,
	rates repositories.FXRateRepository,
	logger logrus.FieldLogger,
	opts ...Option,
) *Service {
	cfg = cfg.withDefaults()
	resolver := fx.NewResolver(rates, cfg.Search, logger)
	normalizer := fx.NewNormalizer(resolver, fx.Currencies{
		Base:      cfg.BaseCurrency,
		Display:   cfg.DisplayCurrency,
		Wholesale: cfg.WholesaleCurrency,
	}, cfg.RateKind, cfg.Now, logger)

	s := &Service{
		cfg:        cfg,
		boms:       boms,
		products:   products,
		prices:     prices,
		resolver:   resolver,
		normalizer: normalizer,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration
func (s *Service) Config() Config {
	return s.cfg
}

// Resolver returns the FX resolver used by the service
func (s *Service) Resolver() *fx.Resolver {
	return s.resolver
}

// Normalizer returns the currency normalizer used by the service
func (s *Service) Normalizer() *fx.Normalizer {
	return s.normalizer
}

// NewTraversal starts a traversal with a fresh memo. A traversal must not be shared
// between concurrent callers.
func (s *Service) NewTraversal() *Traversal {
	return &Traversal{
		svc:      s,
		today:    s.normalizer.Today(),
		memo:     make(map[entities.ProductID]*CostInfo),
		products: make(map[entities.ProductID]*entities.Product),
		units:    make(map[entities.UnitID]*entities.Unit),
	}
}

// Explode values one BOM in a fresh traversal
func (s *Service) Explode(ctx context.Context, bomID entities.BOMID) (*dto.CostBreakdown, error) {
	return s.NewTraversal().Explode(ctx, bomID)
}

// ExplodeProduct values the ACTIVE BOM of a product in a fresh traversal
func (s *Service) ExplodeProduct(ctx context.Context, productID entities.ProductID) (*dto.CostBreakdown, error) {
	header, err := s.boms.GetActiveHeader(ctx, productID, s.normalizer.Today())
	if err != nil {
		return nil, fmt.Errorf("failed to get active bom of product %d: %w", productID, err)
	}
	if header == nil {
		return nil, fmt.Errorf("product %d has no active bom: %w", productID, ErrBOMNotFound)
	}
	return s.NewTraversal().ExplodeHeader(ctx, header)
}

func (s *Service) publish(event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.AppendEvent(event.StreamID(), event); err != nil {
		s.logger.WithError(err).WithField("event_type", event.Type()).Warn("failed to publish costing event")
	}
}
