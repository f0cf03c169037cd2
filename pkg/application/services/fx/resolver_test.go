package fx

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mbom/pkg/domain/entities"
	testhelpers "github.com/vsinha/mbom/pkg/infrastructure/testing"
)

func newTestLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestResolver_NearestRate(t *testing.T) {
	day := testhelpers.Today
	f := testhelpers.NewFixture()
	f.Rate("USD", day.AddDate(0, 0, -3), entities.RateKindAverage, "990")
	f.Rate("USD", day.AddDate(0, 0, 2), entities.RateKindAverage, "1010")
	f.Rate("USD", day.AddDate(0, 0, 10), entities.RateKindAverage, "1050")
	f.Rate("EUR", day.AddDate(0, 0, 5), entities.RateKindAverage, "1100")

	tests := []struct {
		name         string
		policy       SearchPolicy
		currency     entities.Currency
		day          int
		wantRate     string
		wantOffset   int
		wantOrigin   string
		wantEstimate bool
	}{
		{"exact match", PastFirst, "USD", -3, "990", -3, OriginExact, false},
		{"past first prefers earlier", PastFirst, "USD", 0, "990", -3, OriginPast, true},
		{"future first prefers later", FutureFirst, "USD", 0, "1010", 2, OriginFuture, true},
		{"past first falls back to future", PastFirst, "EUR", 0, "1100", 5, OriginFuture, true},
		{"future first falls back to past", FutureFirst, "USD", 20, "1050", 10, OriginPast, true},
		{"lower case currency", PastFirst, "usd", 2, "1010", 2, OriginExact, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(f.Store, tt.policy, newTestLogger())
			m, err := r.NearestRate(context.Background(), tt.currency, day.AddDate(0, 0, tt.day), entities.RateKindAverage)
			require.NoError(t, err)
			require.NotNil(t, m)

			assert.True(t, testhelpers.Dec(tt.wantRate).Equal(m.Rate), "rate %s", m.Rate)
			assert.Equal(t, day.AddDate(0, 0, tt.wantOffset), m.MatchedDate)
			assert.Equal(t, tt.wantOrigin, m.SearchOrigin)
			assert.Equal(t, tt.wantEstimate, m.IsEstimate)
			assert.Equal(t, entities.RateKindAverage, m.KindUsed)
		})
	}
}

func TestResolver_NearestRate_NoHistory(t *testing.T) {
	f := testhelpers.NewFixture()
	f.Rate("USD", testhelpers.Today, entities.RateKindBuy, "990")
	r := NewResolver(f.Store, PastFirst, newTestLogger())

	m, err := r.NearestRate(context.Background(), "BRL", testhelpers.Today, entities.RateKindAverage)
	require.NoError(t, err)
	assert.Nil(t, m)

	// a different kind is not a match for the strict variant
	m, err = r.NearestRate(context.Background(), "USD", testhelpers.Today, entities.RateKindAverage)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestResolver_NearestRateAnyKind(t *testing.T) {
	day := testhelpers.Today
	f := testhelpers.NewFixture()
	f.Rate("USD_MAY", day.AddDate(0, 0, -4), entities.RateKindBuy, "1020")
	f.Rate("USD_MAY", day.AddDate(0, 0, -2), entities.RateKindSell, "1060")
	f.Rate("USD_MAY", day.AddDate(0, 0, 2), entities.RateKindBuy, "1040")
	r := NewResolver(f.Store, PastFirst, newTestLogger())

	m, err := r.NearestRateAnyKind(context.Background(), "USD_MAY", day, entities.RateKindAverage)
	require.NoError(t, err)
	require.NotNil(t, m)

	// SELL is two days back; BUY resolves past-first to four days back
	assert.Equal(t, entities.RateKindSell, m.KindUsed)
	assert.Equal(t, entities.RateKindAverage, m.RequestedKind)
	assert.True(t, testhelpers.Dec("1060").Equal(m.Rate))
	assert.True(t, m.IsEstimate)
}

func TestResolver_NearestRateAnyKind_TieUsesKindOrder(t *testing.T) {
	day := testhelpers.Today
	f := testhelpers.NewFixture()
	f.Rate("USD_MAY", day, entities.RateKindBuy, "1000")
	f.Rate("USD_MAY", day, entities.RateKindSell, "1100")
	r := NewResolver(f.Store, PastFirst, newTestLogger())

	m, err := r.NearestRateAnyKind(context.Background(), "USD_MAY", day, entities.RateKindAverage)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, entities.RateKindSell, m.KindUsed)
	assert.False(t, m.IsEstimate)
}

func TestResolver_NearestRateAnyKind_PrefersRequestedKind(t *testing.T) {
	day := testhelpers.Today
	f := testhelpers.NewFixture()
	f.Rate("USD_MAY", day, entities.RateKindBuy, "1000")
	f.Rate("USD_MAY", day.AddDate(0, 0, -30), entities.RateKindAverage, "900")
	r := NewResolver(f.Store, PastFirst, newTestLogger())

	m, err := r.NearestRateAnyKind(context.Background(), "USD_MAY", day, entities.RateKindAverage)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, entities.RateKindAverage, m.KindUsed)
	assert.True(t, testhelpers.Dec("900").Equal(m.Rate))
}

func TestParseSearchPolicy(t *testing.T) {
	p, err := ParseSearchPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PastFirst, p)

	p, err = ParseSearchPolicy("future-first")
	require.NoError(t, err)
	assert.Equal(t, FutureFirst, p)

	_, err = ParseSearchPolicy("closest")
	assert.Error(t, err)
}

func TestResolver_Deterministic(t *testing.T) {
	day := testhelpers.Today
	f := testhelpers.NewFixture()
	f.Rate("USD", day.AddDate(0, 0, -1), entities.RateKindAverage, "999")
	f.Rate("USD", day.AddDate(0, 0, 1), entities.RateKindAverage, "1001")
	r := NewResolver(f.Store, PastFirst, newTestLogger())

	first, err := r.NearestRate(context.Background(), "USD", day, entities.RateKindAverage)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.NearestRate(context.Background(), "USD", day, entities.RateKindAverage)
		require.NoError(t, err)
		assert.Equal(t, first.MatchedDate, again.MatchedDate)
		assert.True(t, first.Rate.Equal(again.Rate))
	}
}
