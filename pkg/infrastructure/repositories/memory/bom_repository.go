package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
)

// AddHeader adds or replaces a BOM header. A zero ID is assigned the next free one.
func (s *Store) AddHeader(h entities.BOMHeader) entities.BOMID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putHeader(h)
}

func (s *Store) putHeader(h entities.BOMHeader) entities.BOMID {
	if h.ID == 0 {
		s.nextBOMID++
		h.ID = s.nextBOMID
	} else if h.ID > s.nextBOMID {
		s.nextBOMID = h.ID
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	if _, exists := s.headers[h.ID]; !exists {
		s.headersByProduct[h.ProductID] = append(s.headersByProduct[h.ProductID], h.ID)
	}
	s.headers[h.ID] = h
	return h.ID
}

// AddLine adds or replaces a BOM line. A zero ID is assigned the next free one.
func (s *Store) AddLine(l entities.BOMLine) entities.BOMLineID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLine(l)
}

func (s *Store) putLine(l entities.BOMLine) entities.BOMLineID {
	if l.ID == 0 {
		s.nextLineID++
		l.ID = s.nextLineID
	} else if l.ID > s.nextLineID {
		s.nextLineID = l.ID
	}
	lines := s.lines[l.BOMID]
	for i := range lines {
		if lines[i].ID == l.ID {
			lines[i] = l
			return l.ID
		}
	}
	s.lines[l.BOMID] = append(lines, l)
	return l.ID
}

// AddOperation adds or replaces an operation of the catalog
func (s *Store) AddOperation(op entities.Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operations[op.ID] = op
}

// AttachOperation adds an operation to a BOM routing at the given sequence
func (s *Store) AttachOperation(bomID entities.BOMID, opID entities.OperationID, sequence int, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.operations[opID]
	if !ok {
		return fmt.Errorf("operation %d: %w", opID, repositories.ErrNotFound)
	}
	s.routings[bomID] = append(s.routings[bomID], entities.RoutingStep{
		BOMID:     bomID,
		Sequence:  sequence,
		Notes:     notes,
		Operation: op,
	})
	return nil
}

// GetHeader returns the header or nil
func (s *Store) GetHeader(ctx context.Context, id entities.BOMID) (*entities.BOMHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.headers[id]
	if !ok {
		return nil, nil
	}
	return copyHeader(h), nil
}

// GetActiveHeader returns the effective ACTIVE header of a product or nil
func (s *Store) GetActiveHeader(ctx context.Context, productID entities.ProductID, asOf time.Time) (*entities.BOMHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *entities.BOMHeader
	for _, id := range s.headersByProduct[productID] {
		h := s.headers[id]
		if h.State != entities.BOMStateActive || !h.IsEffectiveOn(asOf) {
			continue
		}
		if best == nil || headerPrecedes(h, *best) {
			best = copyHeader(h)
		}
	}
	return best, nil
}

// headerPrecedes orders by ValidFrom desc (missing first date counts as oldest), then CreatedAt desc, then ID desc
func headerPrecedes(a, b entities.BOMHeader) bool {
	af, bf := validFromOrEpoch(a), validFromOrEpoch(b)
	if !af.Equal(bf) {
		return af.After(bf)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func validFromOrEpoch(h entities.BOMHeader) time.Time {
	if h.ValidFrom == nil {
		return entities.Date(1900, time.January, 1)
	}
	return *h.ValidFrom
}

// GetLines returns the lines of a header ordered by line number
func (s *Store) GetLines(ctx context.Context, id entities.BOMID) ([]*entities.BOMLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.lines[id]
	lines := make([]*entities.BOMLine, 0, len(stored))
	for _, l := range stored {
		l := l
		lines = append(lines, &l)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].LineNumber < lines[j].LineNumber })
	return lines, nil
}

// GetRouting returns the routing of a header ordered by sequence
func (s *Store) GetRouting(ctx context.Context, id entities.BOMID) ([]*entities.RoutingStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.routings[id]
	steps := make([]*entities.RoutingStep, 0, len(stored))
	for _, st := range stored {
		st := st
		steps = append(steps, &st)
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Sequence < steps[j].Sequence })
	return steps, nil
}

// ListHeaders returns every header of a product, newest first
func (s *Store) ListHeaders(ctx context.Context, productID entities.ProductID) ([]*entities.BOMHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entities.BOMHeader
	for _, id := range s.headersByProduct[productID] {
		out = append(out, copyHeader(s.headers[id]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// SaveHeader inserts or updates a header, assigning its ID on insert
func (s *Store) SaveHeader(ctx context.Context, header *entities.BOMHeader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now()
	}
	header.ID = s.putHeader(*header)
	return nil
}

// SaveLine inserts or updates a line, assigning its ID on insert
func (s *Store) SaveLine(ctx context.Context, line *entities.BOMLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.headers[line.BOMID]; !ok {
		return fmt.Errorf("bom %d: %w", line.BOMID, repositories.ErrNotFound)
	}
	line.ID = s.putLine(*line)
	return nil
}

// DeleteLines removes every line of a header
func (s *Store) DeleteLines(ctx context.Context, id entities.BOMID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.headers[id]; !ok {
		return fmt.Errorf("bom %d: %w", id, repositories.ErrNotFound)
	}
	delete(s.lines, id)
	return nil
}

// ActivateHeader archives the product's other ACTIVE headers and activates id
func (s *Store) ActivateHeader(ctx context.Context, id entities.BOMID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.headers[id]
	if !ok {
		return fmt.Errorf("bom %d: %w", id, repositories.ErrNotFound)
	}
	for _, otherID := range s.headersByProduct[target.ProductID] {
		other := s.headers[otherID]
		if otherID != id && other.State == entities.BOMStateActive {
			other.State = entities.BOMStateArchived
			s.headers[otherID] = other
		}
	}
	target.State = entities.BOMStateActive
	s.headers[id] = target
	return nil
}

func copyHeader(h entities.BOMHeader) *entities.BOMHeader {
	h.ValidFrom = timePtr(h.ValidFrom)
	h.ValidUntil = timePtr(h.ValidUntil)
	return &h
}
