package fx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mbom/pkg/domain/entities"
	testhelpers "github.com/vsinha/mbom/pkg/infrastructure/testing"
)

func newTestNormalizer(f *testhelpers.Fixture) *Normalizer {
	r := NewResolver(f.Store, PastFirst, newTestLogger())
	return NewNormalizer(r, Currencies{Base: "USD", Display: "ARS", Wholesale: "USD_MAY"},
		entities.RateKindAverage, testhelpers.Clock, newTestLogger())
}

func TestNormalizer_ToBase_Identity(t *testing.T) {
	n := newTestNormalizer(testhelpers.NewFixture())

	conv, err := n.ToBase(context.Background(), testhelpers.Dec("12.5"), "usd", testhelpers.Today)
	require.NoError(t, err)
	assert.True(t, testhelpers.Dec("12.5").Equal(conv.Value))
	assert.Equal(t, entities.Currency("USD"), conv.Currency)
	assert.False(t, conv.IsEstimate)
	assert.Nil(t, conv.Detail)
}

func TestNormalizer_ToBase_FromDisplay(t *testing.T) {
	f := testhelpers.NewFixture()
	priceDay := testhelpers.Today.AddDate(0, -1, 0)
	f.Rate("USD", priceDay, entities.RateKindAverage, "800")
	f.Rate("USD", testhelpers.Today, entities.RateKindAverage, "1000")
	n := newTestNormalizer(f)

	conv, err := n.ToBase(context.Background(), testhelpers.Dec("4000"), "ARS", priceDay)
	require.NoError(t, err)
	assert.True(t, testhelpers.Dec("5").Equal(conv.Value), "got %s", conv.Value)
	assert.Equal(t, entities.Currency("USD"), conv.Currency)
	assert.False(t, conv.IsEstimate)
	require.NotNil(t, conv.Detail)
	assert.Equal(t, priceDay, *conv.Detail.RateDate)
	assert.Equal(t, OriginExact, conv.Detail.SearchOrigin)
}

func TestNormalizer_ToBase_ForeignGoesThroughDisplay(t *testing.T) {
	f := testhelpers.NewFixture()
	priceDay := testhelpers.Today.AddDate(0, 0, -10)
	f.Rate("EUR", priceDay, entities.RateKindAverage, "1100")
	f.Rate("USD", priceDay.AddDate(0, 0, -1), entities.RateKindAverage, "1000")
	n := newTestNormalizer(f)

	conv, err := n.ToBase(context.Background(), testhelpers.Dec("2"), "EUR", priceDay)
	require.NoError(t, err)
	assert.True(t, testhelpers.Dec("2.2").Equal(conv.Value), "got %s", conv.Value)
	assert.Equal(t, entities.Currency("USD"), conv.Currency)

	// the USD leg used the previous day's rate
	assert.True(t, conv.IsEstimate)
	require.Len(t, conv.Detail.Steps, 2)
	assert.False(t, conv.Detail.Steps[0].IsEstimate)
	assert.Equal(t, entities.Currency("EUR"), conv.Detail.Steps[0].From)
	assert.True(t, conv.Detail.Steps[1].IsEstimate)
	assert.Equal(t, OriginPast, conv.Detail.Steps[1].SearchOrigin)
}

func TestNormalizer_ToBase_WholesaleAcceptsAnyKind(t *testing.T) {
	f := testhelpers.NewFixture()
	priceDay := testhelpers.Today.AddDate(0, 0, -6)
	f.Rate("USD_MAY", priceDay.AddDate(0, 0, -1), entities.RateKindSell, "1050")
	f.Rate("USD", priceDay, entities.RateKindAverage, "1000")
	n := newTestNormalizer(f)

	conv, err := n.ToBase(context.Background(), testhelpers.Dec("100"), "USD_MAY", priceDay)
	require.NoError(t, err)
	assert.True(t, testhelpers.Dec("105").Equal(conv.Value), "got %s", conv.Value)
	assert.True(t, conv.IsEstimate)
	require.Len(t, conv.Detail.Steps, 2)
	assert.Equal(t, entities.RateKindSell, conv.Detail.Steps[0].KindUsed)
	assert.Equal(t, entities.RateKindAverage, conv.Detail.Steps[0].RequestedKind)
	assert.False(t, conv.Detail.Steps[1].IsEstimate)
}

func TestNormalizer_ToBase_MissingRateLeavesAmountUnconverted(t *testing.T) {
	n := newTestNormalizer(testhelpers.NewFixture())

	conv, err := n.ToBase(context.Background(), testhelpers.Dec("100"), "BRL", testhelpers.Today)
	require.NoError(t, err)
	assert.True(t, testhelpers.Dec("100").Equal(conv.Value))
	assert.Equal(t, entities.Currency("BRL"), conv.Currency)
	assert.True(t, conv.IsEstimate)
	assert.True(t, conv.Detail.MissingRate)

	conv, err = n.ToBase(context.Background(), testhelpers.Dec("100"), "ARS", testhelpers.Today)
	require.NoError(t, err)
	assert.True(t, testhelpers.Dec("100").Equal(conv.Value))
	assert.Equal(t, entities.Currency("ARS"), conv.Currency)
	assert.True(t, conv.IsEstimate)
}

func TestNormalizer_ToDisplay(t *testing.T) {
	f := testhelpers.NewFixture()
	f.Rate("USD", testhelpers.Today, entities.RateKindAverage, "1000")
	f.Rate("USD_MAY", testhelpers.Today.AddDate(0, 0, -2), entities.RateKindBuy, "1030")
	n := newTestNormalizer(f)
	ctx := context.Background()

	conv, err := n.ToDisplay(ctx, testhelpers.Dec("1.5"), "USD")
	require.NoError(t, err)
	assert.True(t, testhelpers.Dec("1500").Equal(conv.Value))
	assert.Equal(t, entities.Currency("ARS"), conv.Currency)
	assert.False(t, conv.IsEstimate)

	conv, err = n.ToDisplay(ctx, testhelpers.Dec("300"), "ARS")
	require.NoError(t, err)
	assert.True(t, testhelpers.Dec("300").Equal(conv.Value))
	assert.Nil(t, conv.Detail)

	conv, err = n.ToDisplay(ctx, testhelpers.Dec("1"), "USD_MAY")
	require.NoError(t, err)
	assert.True(t, testhelpers.Dec("1030").Equal(conv.Value))
	assert.True(t, conv.IsEstimate)
	assert.Equal(t, entities.RateKindBuy, conv.Detail.KindUsed)
}

func TestNormalizer_RoundTrip(t *testing.T) {
	f := testhelpers.NewFixture()
	f.Rate("USD", testhelpers.Today, entities.RateKindAverage, "1234.5678")
	n := newTestNormalizer(f)
	ctx := context.Background()

	amounts := []string{"0", "1", "17.25", "99999.99", "0.0001"}
	for _, a := range amounts {
		original := testhelpers.Dec(a)
		display, err := n.ToDisplay(ctx, original, "USD")
		require.NoError(t, err)
		back, err := n.FromDisplay(ctx, display.Value, "USD", testhelpers.Today)
		require.NoError(t, err)

		diff := back.Value.Sub(original).Abs()
		assert.True(t, diff.LessThan(testhelpers.Dec("0.000000001")), "%s came back as %s", a, back.Value)
	}
}
