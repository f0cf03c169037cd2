package csv

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mbom/pkg/application/services/costing"
	"github.com/vsinha/mbom/pkg/domain/entities"
	testhelpers "github.com/vsinha/mbom/pkg/infrastructure/testing"
)

func newTestLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestLoader_LoadScenario(t *testing.T) {
	ctx := context.Background()
	store, err := NewLoader(newTestLogger()).LoadScenario("testdata/bike")
	require.NoError(t, err)

	bike, err := store.GetProductByCode(ctx, "BIKE")
	require.NoError(t, err)
	assert.Equal(t, entities.ProductTypeFinishedGood, bike.Type)

	tube, err := store.GetProductByCode(ctx, "TUBE")
	require.NoError(t, err)
	unit, err := store.GetUnit(ctx, tube.DefaultUnit)
	require.NoError(t, err)
	assert.Equal(t, "M", unit.Code)

	header, err := store.GetActiveHeader(ctx, bike.ID, testhelpers.Today)
	require.NoError(t, err)
	require.NotNil(t, header)
	assert.Equal(t, entities.BOMID(1), header.ID)
	assert.Equal(t, "A", header.Revision)

	lines, err := store.GetLines(ctx, header.ID)
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.True(t, testhelpers.Dec("0.05").Equal(lines[0].ScrapFactor))
	require.NotNil(t, lines[0].OperationSequence)
	assert.Equal(t, 10, *lines[0].OperationSequence)
	assert.True(t, lines[2].ScrapFactor.IsZero())
	assert.Nil(t, lines[2].OperationSequence)

	routing, err := store.GetRouting(ctx, header.ID)
	require.NoError(t, err)
	require.Len(t, routing, 1)
	assert.Equal(t, "ASSEMBLY", routing[0].Operation.Code)

	draft, err := store.GetHeader(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, entities.BOMStateDraft, draft.State)
	assert.Equal(t, "lighter frame", draft.Notes)

	plan, err := store.GetPlan(ctx, entities.Period{Year: 2024, Month: 6})
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, bike.ID, plan[0].ProductID)

	onHand, err := store.GetOnHand(ctx, tube.ID, tube.DefaultUnit, entities.Period{Year: 2024, Month: 6})
	require.NoError(t, err)
	assert.True(t, testhelpers.Dec("4").Equal(onHand))
}

func TestLoader_ScenarioCosts(t *testing.T) {
	store, err := NewLoader(newTestLogger()).LoadScenario("testdata/bike")
	require.NoError(t, err)

	cfg := costing.DefaultConfig()
	cfg.Now = testhelpers.Clock
	svc := costing.NewService(cfg, store, store, store, store, newTestLogger())

	breakdown, err := svc.Explode(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, testhelpers.Dec("120990").Equal(breakdown.Total), "total %s", breakdown.Total)
	assert.True(t, breakdown.AlertFX)
}

func writeScenario(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestLoader_Errors(t *testing.T) {
	units := "code,name\nEA,Each\n"
	products := "code,name,type,unit,active\nA,Assembly,FG,EA,true\nB,Part,RM,EA,\n"

	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "missing products",
			files:   map[string]string{"units.csv": units},
			wantErr: "products.csv",
		},
		{
			name:    "header mismatch",
			files:   map[string]string{"units.csv": "code,label\nEA,Each\n", "products.csv": products},
			wantErr: "units.csv header mismatch",
		},
		{
			name:    "bad product type",
			files:   map[string]string{"units.csv": units, "products.csv": products + "C,Other,XX,EA,true\n"},
			wantErr: "products.csv row 4: invalid type",
		},
		{
			name:    "unknown unit",
			files:   map[string]string{"units.csv": units, "products.csv": "code,name,type,unit,active\nA,Assembly,FG,KG,true\n"},
			wantErr: "products.csv row 2: unknown unit: KG",
		},
		{
			name: "line for unknown header",
			files: map[string]string{
				"units.csv":     units,
				"products.csv":  products,
				"bom_lines.csv": "bom_id,line_number,component,quantity,unit,scrap_factor,operation_sequence\n9,10,B,1,EA,,\n",
			},
			wantErr: "bom_lines.csv row 2: unknown bom_id: 9",
		},
		{
			name: "column count",
			files: map[string]string{
				"units.csv":    units,
				"products.csv": products,
				"plan.csv":     "period,product,quantity\n2024-06,A\n",
			},
			wantErr: "plan.csv",
		},
		{
			name: "non positive rate",
			files: map[string]string{
				"units.csv":    units,
				"products.csv": products,
				"fx_rates.csv": "date,currency,kind,rate,origin\n2024-06-01,USD,AVERAGE,0,bna\n",
			},
			wantErr: "fx_rates.csv row 2: rate must be positive",
		},
		{
			name: "bad date",
			files: map[string]string{
				"units.csv":           units,
				"products.csv":        products,
				"purchase_prices.csv": "product,supplier,price_date,unit_price,currency,reference\nB,S,15/06/2024,1,USD,\n",
			},
			wantErr: "purchase_prices.csv row 2: invalid price_date format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(newTestLogger()).LoadScenario(writeScenario(t, tt.files))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoader_MinimalScenario(t *testing.T) {
	dir := writeScenario(t, map[string]string{
		"units.csv":    "code,name\nEA,Each\n",
		"products.csv": "code,name,type,unit,active\nA,Assembly,fg,EA,false\n",
	})
	store, err := NewLoader(newTestLogger()).LoadScenario(dir)
	require.NoError(t, err)

	p, err := store.GetProductByCode(context.Background(), "A")
	require.NoError(t, err)
	assert.False(t, p.Active)
	assert.Equal(t, entities.ProductTypeFinishedGood, p.Type)
}
