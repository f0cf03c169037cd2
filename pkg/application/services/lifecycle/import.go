package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/application/dto"
	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
)

var (
	ErrImportRoot  = errors.New("import root does not match the selected product")
	ErrEmptyImport = errors.New("import holds no components")
	ErrNoUnits     = errors.New("no units of measure configured")
	ErrMissingCode = errors.New("component code is empty")
)

// processPrefix marks routing rows of a leveled export, which carry no components
const processPrefix = "PROCESO"

// maxNotes is the longest line note a BOM line accepts
const maxNotes = 255

// Catalog is what an import needs to find or register the products it names
type Catalog interface {
	repositories.ProductRepository
	repositories.CatalogWriter
}

// BOMTree maps each product code of a leveled export to its direct components
type BOMTree struct {
	Root     string
	Children map[string][]dto.BOMTreeRow
}

// HasChildren reports whether code has components of its own in the tree
func (t *BOMTree) HasChildren(code string) bool {
	return len(t.Children[code]) > 0
}

type treeNode struct {
	code   string
	id     int
	expand bool
}

// BuildTree arranges leveled rows under rootCode. A level 0 row, when present, must
// name rootCode. Rows whose code starts with PROCESO are skipped. A sub-assembly that
// appears more than once takes its components from its first occurrence only. Every
// component needs a positive quantity, and a structure that leads back to one of its
// own products is rejected.
func BuildTree(rows []dto.BOMTreeRow, rootCode string) (*BOMTree, error) {
	rootCode = strings.ToUpper(strings.TrimSpace(rootCode))
	tree := &BOMTree{Root: rootCode, Children: make(map[string][]dto.BOMTreeRow)}

	for _, r := range rows {
		if r.Level == 0 && r.Code != "" {
			if r.Code != rootCode {
				return nil, fmt.Errorf("%w: file root is %s, product is %s", ErrImportRoot, r.Code, rootCode)
			}
			break
		}
	}

	// owner maps a code to the occurrence whose components define it
	owner := make(map[string]int)
	stack := []treeNode{{code: rootCode, expand: true}}
	for i, r := range rows {
		if r.Level == 0 || strings.HasPrefix(r.Code, processPrefix) {
			continue
		}
		if r.Code == "" {
			return nil, fmt.Errorf("row %d: %w", r.Row, ErrMissingCode)
		}
		if r.Quantity == nil || !r.Quantity.IsPositive() {
			return nil, fmt.Errorf("row %d: %w for %s", r.Row, entities.ErrInvalidQuantity, r.Code)
		}

		for len(stack) > r.Level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]
		if parent.expand {
			if _, ok := owner[parent.code]; !ok {
				owner[parent.code] = parent.id
			}
			if owner[parent.code] == parent.id {
				tree.Children[parent.code] = append(tree.Children[parent.code], r)
			}
		}
		_, owned := owner[r.Code]
		stack = append(stack, treeNode{code: r.Code, id: i + 1, expand: parent.expand && !owned})
	}

	if !tree.HasChildren(rootCode) {
		return nil, fmt.Errorf("%s: %w", rootCode, ErrEmptyImport)
	}
	if path := tree.cycle(); path != nil {
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(path, " -> "))
	}
	return tree, nil
}

// cycle returns the first code chain that loops back on itself, or nil
func (t *BOMTree) cycle() []string {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var path []string

	var visit func(code string) []string
	visit = func(code string) []string {
		state[code] = visiting
		path = append(path, code)
		for _, child := range t.Children[code] {
			switch state[child.Code] {
			case visiting:
				for i, c := range path {
					if c == child.Code {
						return append(append([]string(nil), path[i:]...), child.Code)
					}
				}
			case 0:
				if found := visit(child.Code); found != nil {
					return found
				}
			}
		}
		path = path[:len(path)-1]
		state[code] = done
		return nil
	}
	return visit(t.Root)
}

// treeImport carries the state of one ImportTree call
type treeImport struct {
	svc     *Service
	catalog Catalog
	tree    *BOMTree
	unit    entities.UnitID
	written map[string]bool
	result  *dto.BOMImportResult
}

// ImportTree writes tree as DRAFT revisions: each product with components gets its
// current draft (or a new one) with its lines replaced by the imported ones, numbered
// 10, 20, ... in file order. Components missing from the catalog are registered as
// WIP when they have components of their own and RM otherwise, in the catalog's
// first unit. The root product must exist.
func (s *Service) ImportTree(ctx context.Context, catalog Catalog, tree *BOMTree) (*dto.BOMImportResult, error) {
	root, err := catalog.GetProductByCode(ctx, tree.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", tree.Root, err)
	}

	imp := &treeImport{
		svc:     s,
		catalog: catalog,
		tree:    tree,
		written: make(map[string]bool),
		result:  &dto.BOMImportResult{},
	}
	if err := imp.level(ctx, tree.Root, root); err != nil {
		return nil, err
	}

	rootDraft, err := s.header(ctx, imp.result.Drafts[0])
	if err != nil {
		return nil, err
	}
	lines, err := s.store.GetLines(ctx, rootDraft.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lines of bom %d: %w", rootDraft.ID, err)
	}
	imp.result.Root = rootDraft
	imp.result.Lines = lines
	sort.Strings(imp.result.Created)

	s.logger.WithFields(logrus.Fields{
		"product":  root.Code,
		"bom_id":   rootDraft.ID,
		"revision": rootDraft.Revision,
		"drafts":   len(imp.result.Drafts),
		"created":  len(imp.result.Created),
	}).Info("bom tree imported")
	return imp.result, nil
}

// level replaces the draft lines of parent, imported as code, with its components,
// then descends into the components that have components of their own
func (imp *treeImport) level(ctx context.Context, code string, parent *entities.Product) error {
	draft, err := imp.svc.DraftFor(ctx, parent.ID)
	if err != nil {
		return err
	}
	if err := imp.svc.store.DeleteLines(ctx, draft.ID); err != nil {
		return fmt.Errorf("failed to clear lines of bom %d: %w", draft.ID, err)
	}
	imp.result.Drafts = append(imp.result.Drafts, draft.ID)
	imp.written[code] = true

	for i, row := range imp.tree.Children[code] {
		child, err := imp.product(ctx, row)
		if err != nil {
			return err
		}
		_, err = imp.svc.UpsertLine(ctx, dto.LineInput{
			BOMID:          draft.ID,
			LineNumber:     10 * (i + 1),
			ChildProductID: child.ID,
			Quantity:       *row.Quantity,
			UnitID:         child.DefaultUnit,
			Notes:          truncate(row.Description, maxNotes),
		})
		if err != nil {
			return fmt.Errorf("row %d: %w", row.Row, err)
		}
	}

	for _, row := range imp.tree.Children[code] {
		if !imp.tree.HasChildren(row.Code) || imp.written[row.Code] {
			continue
		}
		child, err := imp.catalog.GetProductByCode(ctx, row.Code)
		if err != nil {
			return fmt.Errorf("failed to get product %s: %w", row.Code, err)
		}
		if err := imp.level(ctx, row.Code, child); err != nil {
			return err
		}
	}
	return nil
}

// product finds the component of row, registering it when the catalog lacks it
func (imp *treeImport) product(ctx context.Context, row dto.BOMTreeRow) (*entities.Product, error) {
	p, err := imp.catalog.GetProductByCode(ctx, row.Code)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to get product %s: %w", row.Code, err)
	}

	unit, err := imp.defaultUnit(ctx)
	if err != nil {
		return nil, err
	}
	typ := entities.ProductTypeRawMaterial
	if imp.tree.HasChildren(row.Code) {
		typ = entities.ProductTypeWorkInProgress
	}
	name := row.Description
	if name == "" {
		name = row.Code
	}
	p = &entities.Product{
		Code:        row.Code,
		Name:        name,
		Type:        typ,
		DefaultUnit: unit,
		Active:      true,
	}
	if err := imp.catalog.SaveProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to register product %s: %w", row.Code, err)
	}
	imp.result.Created = append(imp.result.Created, p.Code)
	imp.svc.logger.WithFields(logrus.Fields{"code": p.Code, "type": p.Type}).Debug("product registered by import")
	return p, nil
}

func (imp *treeImport) defaultUnit(ctx context.Context) (entities.UnitID, error) {
	if imp.unit != 0 {
		return imp.unit, nil
	}
	units, err := imp.catalog.ListUnits(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list units: %w", err)
	}
	if len(units) == 0 {
		return 0, ErrNoUnits
	}
	imp.unit = units[0].ID
	return imp.unit, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
