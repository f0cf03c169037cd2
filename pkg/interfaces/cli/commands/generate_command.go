package commands

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// GenerateConfig holds configuration for scenario generation
type GenerateConfig struct {
	Products  int     // Total number of products to generate
	MaxDepth  int     // Maximum depth of BOM tree
	PlanLines int     // Number of finished goods put on the production plan
	Stock     float64 // Stock multiplier for leaf components (0.5 = half of one plan's needs)
	Period    string  // Plan period, YYYY-MM
	OutputDir string  // Output directory for generated files
	Seed      int64   // Random seed for reproducible generation
	Verbose   bool    // Verbose output
}

// GenerateCommand writes a synthetic scenario directory readable by the CSV loader
type GenerateCommand struct {
	config GenerateConfig
	rand   *rand.Rand
	out    io.Writer
}

// NewGenerateCommand creates a new generate command
func NewGenerateCommand(config GenerateConfig, out io.Writer) *GenerateCommand {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if config.Period == "" {
		config.Period = time.Now().Format("2006-01")
	}
	if out == nil {
		out = os.Stdout
	}

	return &GenerateCommand{
		config: config,
		rand:   rand.New(rand.NewSource(seed)),
		out:    out,
	}
}

// BOMNode represents a product in the generated tree
type BOMNode struct {
	Code     string
	Level    int
	Children []*BOMNode
	Parents  []*BOMNode
	Quantity int
	IsRoot   bool
}

func (n *BOMNode) productType() entities.ProductType {
	switch {
	case n.IsRoot:
		return entities.ProductTypeFinishedGood
	case len(n.Children) > 0:
		return entities.ProductTypeWorkInProgress
	default:
		return entities.ProductTypeRawMaterial
	}
}

// Execute runs the generate command
func (cmd *GenerateCommand) Execute(ctx context.Context) error {
	if cmd.config.OutputDir == "" {
		return fmt.Errorf("generate needs -output")
	}
	if cmd.config.Products < 2 || cmd.config.MaxDepth < 1 {
		return fmt.Errorf("generate needs -products >= 2 and -max-depth >= 1")
	}
	period, err := entities.ParsePeriod(cmd.config.Period)
	if err != nil {
		return err
	}

	if cmd.config.Verbose {
		fmt.Fprintf(cmd.out, "Generating scenario with %d products, max depth %d, %d plan lines, %.1fx stock\n",
			cmd.config.Products, cmd.config.MaxDepth, cmd.config.PlanLines, cmd.config.Stock)
		fmt.Fprintf(cmd.out, "Output directory: %s\n", cmd.config.OutputDir)
	}

	if err := os.MkdirAll(cmd.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	nodes := cmd.generateBOMTree()

	files := []struct {
		name    string
		records [][]string
	}{
		{"units.csv", [][]string{{"code", "name"}, {"EA", "Each"}}},
		{"products.csv", cmd.products(nodes)},
		{"bom_headers.csv", cmd.bomHeaders(nodes)},
		{"bom_lines.csv", cmd.bomLines(nodes)},
		{"operations.csv", cmd.operations()},
		{"bom_operations.csv", cmd.bomOperations(nodes)},
		{"purchase_prices.csv", cmd.purchasePrices(nodes, period)},
		{"fx_rates.csv", cmd.fxRates(period)},
		{"plan.csv", cmd.plan(nodes, period)},
		{"stock.csv", cmd.stock(nodes, period)},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeRecords(filepath.Join(cmd.config.OutputDir, f.name), f.records); err != nil {
			return fmt.Errorf("failed to generate %s: %w", f.name, err)
		}
		if cmd.config.Verbose {
			fmt.Fprintf(cmd.out, "  %s: %d rows\n", f.name, len(f.records)-1)
		}
	}

	if cmd.config.Verbose {
		fmt.Fprintf(cmd.out, "Scenario generated successfully in %s\n", cmd.config.OutputDir)
	}
	return nil
}

// generateBOMTree creates a BOM tree with shared components and no cycles.
// Nodes are returned in creation order.
func (cmd *GenerateCommand) generateBOMTree() []*BOMNode {
	var nodes []*BOMNode
	var roots []*BOMNode

	// about 2% of the products are finished goods
	numRoots := max(1, cmd.config.Products/50+cmd.rand.Intn(3))
	for i := 0; i < numRoots; i++ {
		node := &BOMNode{Code: fmt.Sprintf("FG_%03d", i+1), IsRoot: true}
		nodes = append(nodes, node)
		roots = append(roots, node)
	}

	currentLevel := roots
	level := 0
	for level < cmd.config.MaxDepth && len(nodes) < cmd.config.Products {
		level++
		var nextLevel []*BOMNode

		for _, parent := range currentLevel {
			numChildren := 2 + cmd.rand.Intn(5)
			for child := 0; child < numChildren && len(nodes) < cmd.config.Products; child++ {
				var childNode *BOMNode
				// 20% chance to reuse an existing part
				if level > 1 && cmd.rand.Float64() < 0.2 {
					candidates := cmd.findShareableParts(nodes, level, parent)
					if len(candidates) > 0 {
						childNode = candidates[cmd.rand.Intn(len(candidates))]
					}
				}
				if childNode == nil {
					childNode = &BOMNode{Code: fmt.Sprintf("P_L%d_%05d", level, len(nodes)), Level: level}
					nodes = append(nodes, childNode)
					nextLevel = append(nextLevel, childNode)
				}

				parent.Children = append(parent.Children, childNode)
				childNode.Parents = append(childNode.Parents, parent)
				childNode.Quantity = 1 + cmd.rand.Intn(5)
				if level > 2 {
					childNode.Quantity += cmd.rand.Intn(5)
				}
			}
		}

		if len(nextLevel) == 0 {
			break
		}
		currentLevel = nextLevel
	}

	return nodes
}

// findShareableParts finds existing parts that can be shared without creating a cycle
func (cmd *GenerateCommand) findShareableParts(nodes []*BOMNode, maxLevel int, parent *BOMNode) []*BOMNode {
	var candidates []*BOMNode
	for _, node := range nodes {
		if node.IsRoot || node == parent || node.Level < maxLevel-1 || len(node.Parents) >= 3 {
			continue
		}
		if !hasChild(parent, node) && !isAncestor(node, parent, make(map[*BOMNode]bool)) {
			candidates = append(candidates, node)
		}
	}
	return candidates
}

func hasChild(parent, node *BOMNode) bool {
	for _, c := range parent.Children {
		if c == node {
			return true
		}
	}
	return false
}

// isAncestor reports whether candidate is above node in the tree
func isAncestor(candidate, node *BOMNode, visited map[*BOMNode]bool) bool {
	if visited[node] {
		return false
	}
	visited[node] = true
	for _, parent := range node.Parents {
		if parent == candidate || isAncestor(candidate, parent, visited) {
			return true
		}
	}
	return false
}

func (cmd *GenerateCommand) products(nodes []*BOMNode) [][]string {
	records := [][]string{{"code", "name", "type", "unit", "active"}}
	for _, n := range nodes {
		var name string
		switch n.productType() {
		case entities.ProductTypeFinishedGood:
			name = n.Code + " complete assembly"
		case entities.ProductTypeWorkInProgress:
			name = n.Code + " subassembly"
		default:
			name = n.Code + " component"
		}
		records = append(records, []string{n.Code, name, string(n.productType()), "EA", "true"})
	}
	return records
}

// bomHeaders gives every node with children one ACTIVE revision; header ids follow node order
func (cmd *GenerateCommand) bomHeaders(nodes []*BOMNode) [][]string {
	records := [][]string{{"bom_id", "product", "revision", "state", "valid_from", "valid_until", "notes"}}
	for id, n := range headerNodes(nodes) {
		records = append(records, []string{strconv.Itoa(id + 1), n.Code, "A", string(entities.BOMStateActive), "", "", "generated"})
	}
	return records
}

func (cmd *GenerateCommand) bomLines(nodes []*BOMNode) [][]string {
	records := [][]string{{"bom_id", "line_number", "component", "quantity", "unit", "scrap_factor", "operation_sequence"}}
	for id, n := range headerNodes(nodes) {
		for i, child := range n.Children {
			scrap := ""
			if cmd.rand.Float64() < 0.25 {
				scrap = fmt.Sprintf("0.0%d", 1+cmd.rand.Intn(9))
			}
			records = append(records, []string{
				strconv.Itoa(id + 1),
				strconv.Itoa((i + 1) * 10),
				child.Code,
				strconv.Itoa(child.Quantity),
				"EA",
				scrap,
				"10",
			})
		}
	}
	return records
}

var generatedOperations = [][]string{
	{"ASSEMBLY", "Assembly", "WC-ASM", "45", "6000", "ARS"},
	{"WELDING", "Welding", "WC-WLD", "20", "12", "USD"},
	{"PAINTING", "Painting", "WC-PNT", "15", "5500", "ARS"},
	{"TESTING", "Final test", "WC-QA", "10", "9", "EUR"},
}

func (cmd *GenerateCommand) operations() [][]string {
	records := [][]string{{"code", "name", "work_center", "standard_minutes", "hourly_cost", "currency"}}
	return append(records, generatedOperations...)
}

func (cmd *GenerateCommand) bomOperations(nodes []*BOMNode) [][]string {
	records := [][]string{{"bom_id", "operation", "sequence", "notes"}}
	for id, n := range headerNodes(nodes) {
		op := generatedOperations[cmd.rand.Intn(len(generatedOperations))][0]
		records = append(records, []string{strconv.Itoa(id + 1), op, "10", ""})
		if n.IsRoot {
			records = append(records, []string{strconv.Itoa(id + 1), "TESTING", "20", ""})
		}
	}
	return records
}

// purchasePrices prices every leaf in USD, EUR or ARS during the month before period
func (cmd *GenerateCommand) purchasePrices(nodes []*BOMNode, period entities.Period) [][]string {
	records := [][]string{{"product", "supplier", "price_date", "unit_price", "currency", "reference"}}
	start := periodStart(period.Previous())
	ref := 1
	for _, n := range nodes {
		if len(n.Children) > 0 {
			continue
		}
		var price, currency string
		switch r := cmd.rand.Float64(); {
		case r < 0.6:
			price, currency = fmt.Sprintf("%.2f", 0.5+cmd.rand.Float64()*50), "USD"
		case r < 0.8:
			price, currency = fmt.Sprintf("%.2f", 0.5+cmd.rand.Float64()*40), "EUR"
		default:
			price, currency = strconv.Itoa(200+cmd.rand.Intn(20000)), "ARS"
		}
		date := start.AddDate(0, 0, cmd.rand.Intn(28))
		records = append(records, []string{
			n.Code,
			fmt.Sprintf("SUP-%d", 1+cmd.rand.Intn(20)),
			date.Format(time.DateOnly),
			price,
			currency,
			fmt.Sprintf("PO-%05d", ref),
		})
		ref++
	}
	return records
}

// fxRates writes weekly AVERAGE rates for USD and EUR over the two months up to period
func (cmd *GenerateCommand) fxRates(period entities.Period) [][]string {
	records := [][]string{{"date", "currency", "kind", "rate", "origin"}}
	start := periodStart(period.Previous())
	end := periodStart(period).AddDate(0, 1, 0)
	usd := 900.0 + cmd.rand.Float64()*100
	for day := start; day.Before(end); day = day.AddDate(0, 0, 7) {
		usd *= 1 + cmd.rand.Float64()*0.01
		records = append(records,
			[]string{day.Format(time.DateOnly), "USD", string(entities.RateKindAverage), fmt.Sprintf("%.2f", usd), "generated"},
			[]string{day.Format(time.DateOnly), "EUR", string(entities.RateKindAverage), fmt.Sprintf("%.2f", usd*1.08), "generated"},
		)
	}
	return records
}

func (cmd *GenerateCommand) plan(nodes []*BOMNode, period entities.Period) [][]string {
	records := [][]string{{"period", "product", "quantity"}}
	var roots []*BOMNode
	for _, n := range nodes {
		if n.IsRoot {
			roots = append(roots, n)
		}
	}
	for i := 0; i < cmd.config.PlanLines && i < len(roots); i++ {
		records = append(records, []string{period.String(), roots[i].Code, strconv.Itoa(1 + cmd.rand.Intn(10))})
	}
	return records
}

// stock covers the leaf needs of one unit of every finished good, times the multiplier
func (cmd *GenerateCommand) stock(nodes []*BOMNode, period entities.Period) [][]string {
	records := [][]string{{"period", "product", "unit", "quantity"}}
	if cmd.config.Stock <= 0 {
		return records
	}
	counts := make(map[*BOMNode]int)
	for _, n := range nodes {
		if n.IsRoot {
			explodeCounts(n, 1, counts)
		}
	}
	for _, n := range nodes {
		qty := int(float64(counts[n]) * cmd.config.Stock)
		if len(n.Children) > 0 || qty <= 0 {
			continue
		}
		records = append(records, []string{period.String(), n.Code, "EA", strconv.Itoa(qty)})
	}
	return records
}

func explodeCounts(n *BOMNode, multiplier int, counts map[*BOMNode]int) {
	for _, child := range n.Children {
		qty := multiplier * child.Quantity
		counts[child] += qty
		explodeCounts(child, qty, counts)
	}
}

func headerNodes(nodes []*BOMNode) []*BOMNode {
	var out []*BOMNode
	for _, n := range nodes {
		if len(n.Children) > 0 {
			out = append(out, n)
		}
	}
	return out
}

func periodStart(p entities.Period) time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

func writeRecords(filename string, records [][]string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return file.Close()
}
