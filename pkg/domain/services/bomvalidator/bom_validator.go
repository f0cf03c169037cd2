package bomvalidator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// Edge is a parent product -> component product relationship taken from a BOM line
type Edge struct {
	Parent entities.ProductID
	Child  entities.ProductID
}

// BOMValidator provides validation for BOM structure integrity
type BOMValidator struct{}

// NewBOMValidator creates a new BOM validator
func NewBOMValidator() *BOMValidator {
	return &BOMValidator{}
}

// ValidationResult contains the results of BOM validation
type ValidationResult struct {
	HasCycles      bool
	CyclePaths     [][]entities.ProductID
	DuplicateLines []entities.BOMLine
	InvalidLines   []entities.BOMLine
	Errors         []string
}

// IsValid reports whether no problem was found
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Err joins the validation errors, or returns nil
func (r *ValidationResult) Err() error {
	if r.IsValid() {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, errors.New(e))
	}
	return errors.Join(errs...)
}

// Validate checks the product graph for cycles and the lines for duplicates and
// invalid quantities or scrap factors
func (v *BOMValidator) Validate(edges []Edge, lines []entities.BOMLine) *ValidationResult {
	result := &ValidationResult{
		CyclePaths:     make([][]entities.ProductID, 0),
		DuplicateLines: make([]entities.BOMLine, 0),
		InvalidLines:   make([]entities.BOMLine, 0),
		Errors:         make([]string, 0),
	}

	cycles := v.detectCycles(v.buildAdjacencyMap(edges))
	result.HasCycles = len(cycles) > 0
	result.CyclePaths = cycles
	for _, cycle := range cycles {
		result.Errors = append(result.Errors, fmt.Sprintf("BOM cycle detected: %v", cycle))
	}

	result.DuplicateLines = v.detectDuplicateLines(lines)
	if len(result.DuplicateLines) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Found %d duplicate BOM lines", len(result.DuplicateLines)))
	}

	for _, line := range lines {
		if err := line.Validate(); err != nil {
			result.InvalidLines = append(result.InvalidLines, line)
			result.Errors = append(result.Errors, fmt.Sprintf("bom %d: %v", line.BOMID, err))
		}
	}

	return result
}

// EdgesOf returns the parent -> child edges of a BOM's lines
func EdgesOf(parent entities.ProductID, lines []*entities.BOMLine) []Edge {
	edges := make([]Edge, 0, len(lines))
	for _, l := range lines {
		edges = append(edges, Edge{Parent: parent, Child: l.ChildProductID})
	}
	return edges
}

// buildAdjacencyMap creates a map of parent -> distinct children in first-seen order
func (v *BOMValidator) buildAdjacencyMap(edges []Edge) map[entities.ProductID][]entities.ProductID {
	adjacencyMap := make(map[entities.ProductID][]entities.ProductID)
	seen := make(map[Edge]bool)
	for _, e := range edges {
		if seen[e] {
			continue
		}
		seen[e] = true
		adjacencyMap[e.Parent] = append(adjacencyMap[e.Parent], e.Child)
	}
	return adjacencyMap
}

// detectCycles runs a DFS from every parent in ascending id order
func (v *BOMValidator) detectCycles(adjacencyMap map[entities.ProductID][]entities.ProductID) [][]entities.ProductID {
	visited := make(map[entities.ProductID]bool)
	recursionStack := make(map[entities.ProductID]bool)
	cycles := make([][]entities.ProductID, 0)

	parents := make([]entities.ProductID, 0, len(adjacencyMap))
	for p := range adjacencyMap {
		parents = append(parents, p)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })

	for _, parent := range parents {
		if !visited[parent] {
			v.dfsDetectCycle(parent, adjacencyMap, visited, recursionStack, nil, &cycles)
		}
	}

	return cycles
}

func (v *BOMValidator) dfsDetectCycle(
	current entities.ProductID,
	adjacencyMap map[entities.ProductID][]entities.ProductID,
	visited map[entities.ProductID]bool,
	recursionStack map[entities.ProductID]bool,
	path []entities.ProductID,
	cycles *[][]entities.ProductID,
) {
	visited[current] = true
	recursionStack[current] = true
	path = append(path, current)

	for _, child := range adjacencyMap[current] {
		if !visited[child] {
			v.dfsDetectCycle(child, adjacencyMap, visited, recursionStack, path, cycles)
			continue
		}
		if !recursionStack[child] {
			continue
		}
		for i, part := range path {
			if part == child {
				cycle := make([]entities.ProductID, 0, len(path)-i+1)
				cycle = append(cycle, path[i:]...)
				cycle = append(cycle, child)
				*cycles = append(*cycles, cycle)
				break
			}
		}
	}

	recursionStack[current] = false
}

// detectDuplicateLines finds lines sharing a header and line number
func (v *BOMValidator) detectDuplicateLines(lines []entities.BOMLine) []entities.BOMLine {
	type key struct {
		bomID      entities.BOMID
		lineNumber int
	}
	seen := make(map[key]entities.BOMLine)
	duplicates := make([]entities.BOMLine, 0)

	for _, line := range lines {
		k := key{bomID: line.BOMID, lineNumber: line.LineNumber}
		if existing, exists := seen[k]; exists {
			duplicates = append(duplicates, existing, line)
			continue
		}
		seen[k] = line
	}

	return duplicates
}
