package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mbom/pkg/application/dto"
	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
	"github.com/vsinha/mbom/pkg/infrastructure/repositories/memory"
	testhelpers "github.com/vsinha/mbom/pkg/infrastructure/testing"
)

func treeRow(row, level int, code, qty string) dto.BOMTreeRow {
	r := dto.BOMTreeRow{Row: row, Code: code, Level: level}
	if qty != "" {
		q := testhelpers.Dec(qty)
		r.Quantity = &q
	}
	return r
}

func childCodes(rows []dto.BOMTreeRow) []string {
	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.Code)
	}
	return codes
}

func TestBuildTree_RepeatedSubAssemblyUsesFirstOccurrence(t *testing.T) {
	rows := []dto.BOMTreeRow{
		treeRow(2, 0, "BIKE", ""),
		treeRow(3, 1, "FRAME", "1"),
		treeRow(4, 2, "TUBE", "2.5"),
		treeRow(5, 2, "HUB", "1"),
		treeRow(6, 3, "BOX", "1"),
		treeRow(7, 1, "PROCESO-10", ""),
		treeRow(8, 1, "WHEEL", "2"),
		treeRow(9, 2, "SPOKE", "32"),
		treeRow(10, 2, "HUB", "1"),
		treeRow(11, 3, "BELL", "1"),
	}

	tree, err := BuildTree(rows, " bike ")
	require.NoError(t, err)
	assert.Equal(t, "BIKE", tree.Root)
	assert.Equal(t, []string{"FRAME", "WHEEL"}, childCodes(tree.Children["BIKE"]))
	assert.Equal(t, []string{"TUBE", "HUB"}, childCodes(tree.Children["FRAME"]))
	assert.Equal(t, []string{"SPOKE", "HUB"}, childCodes(tree.Children["WHEEL"]))
	assert.Equal(t, []string{"BOX"}, childCodes(tree.Children["HUB"]))
	assert.True(t, tree.HasChildren("HUB"))
	assert.False(t, tree.HasChildren("TUBE"))
}

func TestBuildTree_Rejects(t *testing.T) {
	tests := []struct {
		name string
		rows []dto.BOMTreeRow
		want error
	}{
		{
			name: "other root",
			rows: []dto.BOMTreeRow{treeRow(2, 0, "TRIKE", ""), treeRow(3, 1, "FRAME", "1")},
			want: ErrImportRoot,
		},
		{
			name: "missing quantity",
			rows: []dto.BOMTreeRow{treeRow(2, 0, "BIKE", ""), treeRow(3, 1, "FRAME", "")},
			want: entities.ErrInvalidQuantity,
		},
		{
			name: "zero quantity",
			rows: []dto.BOMTreeRow{treeRow(2, 1, "FRAME", "0")},
			want: entities.ErrInvalidQuantity,
		},
		{
			name: "empty code",
			rows: []dto.BOMTreeRow{treeRow(2, 1, "", "1")},
			want: ErrMissingCode,
		},
		{
			name: "only routing rows",
			rows: []dto.BOMTreeRow{treeRow(2, 0, "BIKE", ""), treeRow(3, 1, "PROCESO-10", "")},
			want: ErrEmptyImport,
		},
		{
			name: "self reference",
			rows: []dto.BOMTreeRow{treeRow(2, 1, "FRAME", "1"), treeRow(3, 2, "BIKE", "1")},
			want: ErrCycle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTree(tt.rows, "BIKE")
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestBuildTree_CycleAcrossSubAssemblies(t *testing.T) {
	rows := []dto.BOMTreeRow{
		treeRow(2, 0, "BIKE", ""),
		treeRow(3, 1, "FRAME", "1"),
		treeRow(4, 2, "FORK", "1"),
		treeRow(5, 1, "FORK", "1"),
		treeRow(6, 2, "FRAME", "1"),
	}

	_, err := BuildTree(rows, "BIKE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))
	assert.Contains(t, err.Error(), "FRAME -> FORK -> FRAME")
}

func bikeImportTree(t *testing.T) *BOMTree {
	t.Helper()
	rows := []dto.BOMTreeRow{
		treeRow(2, 0, "BIKE", ""),
		treeRow(3, 1, "FRAME", "1"),
		treeRow(4, 2, "TUBE", "2.5"),
		treeRow(5, 2, "PAINT", "0.2"),
		treeRow(6, 1, "SADDLE", "1"),
		treeRow(7, 1, "LIGHTKIT", "1"),
		treeRow(8, 2, "LED", "2"),
		treeRow(9, 1, "PROCESO-ASSEMBLY", ""),
	}
	rows[4].Description = "Comfort saddle"
	tree, err := BuildTree(rows, "BIKE")
	require.NoError(t, err)
	return tree
}

func TestService_ImportTree(t *testing.T) {
	ctx := context.Background()
	f := testhelpers.BuildBikeScenario()
	svc, _ := newTestService(f)

	result, err := svc.ImportTree(ctx, f.Store, bikeImportTree(t))
	require.NoError(t, err)

	require.NotNil(t, result.Root)
	assert.Equal(t, testhelpers.BikeID, result.Root.ProductID)
	assert.Equal(t, "B", result.Root.Revision)
	assert.Equal(t, entities.BOMStateDraft, result.Root.State)
	require.Len(t, result.Drafts, 3)
	assert.Equal(t, result.Root.ID, result.Drafts[0])
	assert.Equal(t, []string{"LED", "LIGHTKIT", "SADDLE"}, result.Created)

	require.Len(t, result.Lines, 3)
	assert.Equal(t, 10, result.Lines[0].LineNumber)
	assert.Equal(t, testhelpers.FrameID, result.Lines[0].ChildProductID)
	assert.Equal(t, 20, result.Lines[1].LineNumber)
	assert.Equal(t, "Comfort saddle", result.Lines[1].Notes)
	assert.Equal(t, 30, result.Lines[2].LineNumber)

	saddle, err := f.Store.GetProductByCode(ctx, "SADDLE")
	require.NoError(t, err)
	assert.Equal(t, entities.ProductTypeRawMaterial, saddle.Type)
	assert.Equal(t, "Comfort saddle", saddle.Name)
	assert.Equal(t, testhelpers.UnitEach, saddle.DefaultUnit)

	kit, err := f.Store.GetProductByCode(ctx, "LIGHTKIT")
	require.NoError(t, err)
	assert.Equal(t, entities.ProductTypeWorkInProgress, kit.Type)
	assert.Equal(t, "LIGHTKIT", kit.Name)

	// the frame gets a draft of its own and a new sub-assembly starts at revision A
	frameDraft, err := f.Store.GetHeader(ctx, result.Drafts[1])
	require.NoError(t, err)
	assert.Equal(t, testhelpers.FrameID, frameDraft.ProductID)
	frameLines, err := f.Store.GetLines(ctx, frameDraft.ID)
	require.NoError(t, err)
	require.Len(t, frameLines, 2)
	assert.True(t, testhelpers.Dec("2.5").Equal(frameLines[0].Quantity))

	kitDraft, err := f.Store.GetHeader(ctx, result.Drafts[2])
	require.NoError(t, err)
	assert.Equal(t, kit.ID, kitDraft.ProductID)
	assert.Equal(t, "A", kitDraft.Revision)

	// active revisions are untouched
	active, err := f.Store.GetActiveHeader(ctx, testhelpers.BikeID, testhelpers.Today)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "A", active.Revision)
	activeLines, err := f.Store.GetLines(ctx, active.ID)
	require.NoError(t, err)
	assert.Len(t, activeLines, 4)
}

func TestService_ImportTreeReplacesDraftLines(t *testing.T) {
	ctx := context.Background()
	f := testhelpers.BuildBikeScenario()
	svc, _ := newTestService(f)

	first, err := svc.ImportTree(ctx, f.Store, bikeImportTree(t))
	require.NoError(t, err)

	tree, err := BuildTree([]dto.BOMTreeRow{treeRow(2, 1, "FRAME", "2")}, "BIKE")
	require.NoError(t, err)
	second, err := svc.ImportTree(ctx, f.Store, tree)
	require.NoError(t, err)

	assert.Equal(t, first.Root.ID, second.Root.ID)
	assert.Equal(t, []entities.BOMID{first.Root.ID}, second.Drafts)
	assert.Empty(t, second.Created)
	require.Len(t, second.Lines, 1)
	assert.Equal(t, 10, second.Lines[0].LineNumber)
	assert.True(t, testhelpers.Dec("2").Equal(second.Lines[0].Quantity))

	// the frame is not expanded this time, so its draft keeps the first import
	frameLines, err := f.Store.GetLines(ctx, first.Drafts[1])
	require.NoError(t, err)
	assert.Len(t, frameLines, 2)
}

func TestService_ImportTreeErrors(t *testing.T) {
	ctx := context.Background()

	f := testhelpers.BuildBikeScenario()
	svc, _ := newTestService(f)
	tree, err := BuildTree([]dto.BOMTreeRow{treeRow(2, 1, "FRAME", "1")}, "TRIKE")
	require.NoError(t, err)
	_, err = svc.ImportTree(ctx, f.Store, tree)
	assert.True(t, errors.Is(err, repositories.ErrNotFound), "got %v", err)

	// a store without units cannot register new components
	bare := &testhelpers.Fixture{Store: memory.NewStore()}
	bare.Product(testhelpers.BikeID, "BIKE", entities.ProductTypeFinishedGood)
	svc, _ = newTestService(bare)
	tree, err = BuildTree([]dto.BOMTreeRow{treeRow(2, 1, "SADDLE", "1")}, "BIKE")
	require.NoError(t, err)
	_, err = svc.ImportTree(ctx, bare.Store, tree)
	assert.True(t, errors.Is(err, ErrNoUnits), "got %v", err)
}
