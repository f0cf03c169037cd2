package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// ErrNotFound is returned by lookups that require the record to exist
var ErrNotFound = errors.New("record not found")

// BOMRepository provides read access to BOM headers, lines and routings
type BOMRepository interface {
	// GetHeader returns the header with the given id, or nil when it does not exist.
	GetHeader(ctx context.Context, id entities.BOMID) (*entities.BOMHeader, error)

	// GetActiveHeader returns the ACTIVE header of a product effective on asOf, or nil.
	// When several qualify the one with the latest ValidFrom wins.
	GetActiveHeader(ctx context.Context, productID entities.ProductID, asOf time.Time) (*entities.BOMHeader, error)

	// GetLines returns the lines of a header in ascending line number order.
	GetLines(ctx context.Context, id entities.BOMID) ([]*entities.BOMLine, error)

	// GetRouting returns the operations attached to a header in ascending sequence order.
	GetRouting(ctx context.Context, id entities.BOMID) ([]*entities.RoutingStep, error)
}

// BOMWriter persists BOM lifecycle changes
type BOMWriter interface {
	ListHeaders(ctx context.Context, productID entities.ProductID) ([]*entities.BOMHeader, error)
	SaveHeader(ctx context.Context, header *entities.BOMHeader) error
	SaveLine(ctx context.Context, line *entities.BOMLine) error
	// DeleteLines removes every line of a header.
	DeleteLines(ctx context.Context, id entities.BOMID) error
	// ActivateHeader archives every other ACTIVE header of the product and activates id, atomically.
	ActivateHeader(ctx context.Context, id entities.BOMID) error
}
