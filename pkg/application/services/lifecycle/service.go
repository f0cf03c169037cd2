// Package lifecycle manages BOM revisions: drafting, line edits and activation.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/application/dto"
	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
	"github.com/vsinha/mbom/pkg/domain/services/bomvalidator"
	"github.com/vsinha/mbom/pkg/infrastructure/events"
)

var (
	ErrCycle         = errors.New("bom structure contains a cycle")
	ErrDuplicateLine = errors.New("line number already used in bom")
	ErrArchived      = errors.New("archived bom cannot be modified")
)

// Store is the persistence a lifecycle service needs
type Store interface {
	repositories.BOMRepository
	repositories.BOMWriter
}

// Service applies lifecycle changes to BOM headers and lines
type Service struct {
	store     Store
	validator *bomvalidator.BOMValidator
	validate  *validator.Validate
	events    events.EventStore
	now       func() time.Time
	logger    logrus.FieldLogger
}

// Option customizes a Service
type Option func(*Service)

// WithEventStore publishes lifecycle events to store
func WithEventStore(store events.EventStore) Option {
	return func(s *Service) {
		s.events = store
	}
}

// WithClock overrides the clock used for creation stamps and active-BOM lookups
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a lifecycle service
func NewService(store Store, logger logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		validator: bomvalidator.NewBOMValidator(),
		validate:  validator.New(),
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate makes bomID the ACTIVE revision of its product, archiving the previous one.
// Activation is refused when the structure below the header, resolved through the
// ACTIVE revisions of its components, contains a cycle.
func (s *Service) Activate(ctx context.Context, bomID entities.BOMID) (*entities.BOMHeader, error) {
	header, err := s.header(ctx, bomID)
	if err != nil {
		return nil, err
	}
	if header.State == entities.BOMStateActive {
		return header, nil
	}
	if !header.State.CanTransitionTo(entities.BOMStateActive) {
		return nil, fmt.Errorf("bom %d is %s: %w", bomID, header.State, entities.ErrInvalidTransition)
	}

	result, err := s.ValidateStructure(ctx, header)
	if err != nil {
		return nil, err
	}
	if result.HasCycles {
		s.logger.WithFields(logrus.Fields{
			"bom_id": bomID,
			"cycles": result.CyclePaths,
		}).Warn("activation refused")
		return nil, fmt.Errorf("bom %d: %w: %v", bomID, ErrCycle, result.CyclePaths[0])
	}
	if !result.IsValid() {
		return nil, fmt.Errorf("bom %d: %w", bomID, result.Err())
	}

	siblings, err := s.store.ListHeaders(ctx, header.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions of product %d: %w", header.ProductID, err)
	}
	var archived []entities.BOMID
	for _, h := range siblings {
		if h.ID != bomID && h.State == entities.BOMStateActive {
			archived = append(archived, h.ID)
		}
	}

	if err := s.store.ActivateHeader(ctx, bomID); err != nil {
		return nil, fmt.Errorf("failed to activate bom %d: %w", bomID, err)
	}
	header.State = entities.BOMStateActive

	s.logger.WithFields(logrus.Fields{
		"bom_id":     bomID,
		"product_id": header.ProductID,
		"revision":   header.Revision,
		"archived":   archived,
	}).Info("bom activated")
	s.publish(events.NewBOMActivatedEvent(events.BOMActivated{
		BOMID:     bomID,
		ProductID: header.ProductID,
		Revision:  header.Revision,
		Archived:  archived,
	}))
	return header, nil
}

// ValidateStructure checks the lines of header and, for cycles, the ACTIVE structure
// reachable from them. header stands in for its product's ACTIVE revision.
func (s *Service) ValidateStructure(ctx context.Context, header *entities.BOMHeader) (*bomvalidator.ValidationResult, error) {
	today := entities.DateOf(s.now())

	lines, err := s.store.GetLines(ctx, header.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lines of bom %d: %w", header.ID, err)
	}
	own := make([]entities.BOMLine, 0, len(lines))
	for _, l := range lines {
		own = append(own, *l)
	}

	edges := bomvalidator.EdgesOf(header.ProductID, lines)
	visited := map[entities.ProductID]bool{header.ProductID: true}
	queue := make([]entities.ProductID, 0, len(lines))
	for _, l := range lines {
		queue = append(queue, l.ChildProductID)
	}

	for len(queue) > 0 {
		productID := queue[0]
		queue = queue[1:]
		if visited[productID] {
			continue
		}
		visited[productID] = true

		active, err := s.store.GetActiveHeader(ctx, productID, today)
		if err != nil {
			return nil, fmt.Errorf("failed to get active bom of product %d: %w", productID, err)
		}
		if active == nil {
			continue
		}
		children, err := s.store.GetLines(ctx, active.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get lines of bom %d: %w", active.ID, err)
		}
		edges = append(edges, bomvalidator.EdgesOf(productID, children)...)
		for _, l := range children {
			queue = append(queue, l.ChildProductID)
		}
	}

	return s.validator.Validate(edges, own), nil
}

// CloneToDraft copies a header and its lines into a new DRAFT revision of the same
// product. The revision follows the product's most recently created one.
func (s *Service) CloneToDraft(ctx context.Context, bomID entities.BOMID) (*entities.BOMHeader, error) {
	source, err := s.header(ctx, bomID)
	if err != nil {
		return nil, err
	}
	revision, err := s.nextRevision(ctx, source.ProductID)
	if err != nil {
		return nil, err
	}

	draft := &entities.BOMHeader{
		ProductID:  source.ProductID,
		Revision:   revision,
		State:      entities.BOMStateDraft,
		ValidFrom:  source.ValidFrom,
		ValidUntil: source.ValidUntil,
		Notes:      source.Notes,
		CreatedAt:  s.now(),
	}
	if err := s.store.SaveHeader(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to save draft of bom %d: %w", bomID, err)
	}

	lines, err := s.store.GetLines(ctx, bomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lines of bom %d: %w", bomID, err)
	}
	for _, l := range lines {
		copied := *l
		copied.ID = 0
		copied.BOMID = draft.ID
		if err := s.store.SaveLine(ctx, &copied); err != nil {
			return nil, fmt.Errorf("failed to copy line %d of bom %d: %w", l.LineNumber, bomID, err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"bom_id":   bomID,
		"draft_id": draft.ID,
		"revision": revision,
	}).Info("bom cloned to draft")
	s.publish(events.NewBOMClonedEvent(events.BOMCloned{
		SourceID: bomID,
		DraftID:  draft.ID,
		Revision: revision,
		Lines:    len(lines),
	}))
	return draft, nil
}

// DraftFor returns the product's newest DRAFT revision, creating an empty one when none exists
func (s *Service) DraftFor(ctx context.Context, productID entities.ProductID) (*entities.BOMHeader, error) {
	headers, err := s.store.ListHeaders(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions of product %d: %w", productID, err)
	}
	for _, h := range headers {
		if h.State == entities.BOMStateDraft {
			return h, nil
		}
	}

	revision := entities.NextRevision("")
	if len(headers) > 0 {
		revision = entities.NextRevision(headers[0].Revision)
	}
	draft := &entities.BOMHeader{
		ProductID: productID,
		Revision:  revision,
		State:     entities.BOMStateDraft,
		CreatedAt: s.now(),
	}
	if err := s.store.SaveHeader(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to create draft of product %d: %w", productID, err)
	}
	return draft, nil
}

// UpsertLine validates and persists a BOM line. Archived headers are read-only.
func (s *Service) UpsertLine(ctx context.Context, in dto.LineInput) (*entities.BOMLine, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid line: %w", err)
	}
	line := in.ToEntity()
	if err := line.Validate(); err != nil {
		return nil, err
	}

	header, err := s.header(ctx, line.BOMID)
	if err != nil {
		return nil, err
	}
	if header.State == entities.BOMStateArchived {
		return nil, fmt.Errorf("bom %d: %w", header.ID, ErrArchived)
	}
	if line.ChildProductID == header.ProductID {
		return nil, fmt.Errorf("bom %d: %w: product %d lists itself", header.ID, ErrCycle, line.ChildProductID)
	}

	existing, err := s.store.GetLines(ctx, line.BOMID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lines of bom %d: %w", line.BOMID, err)
	}
	if line.LineNumber == 0 {
		for _, l := range existing {
			if l.LineNumber > line.LineNumber {
				line.LineNumber = l.LineNumber
			}
		}
		line.LineNumber++
	}

	candidate := make([]entities.BOMLine, 0, len(existing)+1)
	for _, l := range existing {
		if l.ID != line.ID {
			candidate = append(candidate, *l)
		}
	}
	candidate = append(candidate, *line)
	if result := s.validator.Validate(nil, candidate); len(result.DuplicateLines) > 0 {
		return nil, fmt.Errorf("bom %d line %d: %w", line.BOMID, line.LineNumber, ErrDuplicateLine)
	}

	if err := s.store.SaveLine(ctx, line); err != nil {
		return nil, fmt.Errorf("failed to save line %d of bom %d: %w", line.LineNumber, line.BOMID, err)
	}
	return line, nil
}

func (s *Service) header(ctx context.Context, bomID entities.BOMID) (*entities.BOMHeader, error) {
	header, err := s.store.GetHeader(ctx, bomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bom %d: %w", bomID, err)
	}
	if header == nil {
		return nil, fmt.Errorf("bom %d: %w", bomID, repositories.ErrNotFound)
	}
	return header, nil
}

func (s *Service) nextRevision(ctx context.Context, productID entities.ProductID) (string, error) {
	headers, err := s.store.ListHeaders(ctx, productID)
	if err != nil {
		return "", fmt.Errorf("failed to list revisions of product %d: %w", productID, err)
	}
	if len(headers) == 0 {
		return entities.NextRevision(""), nil
	}
	return entities.NextRevision(headers[0].Revision), nil
}

func (s *Service) publish(event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.AppendEvent(event.StreamID(), event); err != nil {
		s.logger.WithError(err).WithField("event_type", event.Type()).Warn("failed to publish lifecycle event")
	}
}
