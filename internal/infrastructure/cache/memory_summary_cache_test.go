package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rentalops/backend/internal/domain/report"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSummary() *report.Summary {
	return &report.Summary{
		Periods: []report.PeriodSummary{{Period: "2024-03", InvoiceCount: 2, CollectionRate: 50}},
		Overall: report.OverallSummary{
			PeriodCount:           1,
			InvoiceCount:          2,
			TotalInvoiced:         decimal.NewFromInt(2000),
			AverageCollectionRate: 50,
		},
	}
}

func TestMemorySummaryCache_GetSet(t *testing.T) {
	c := NewMemorySummaryCache()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "summary:all:0::")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "summary:all:0::", testSummary(), time.Minute))

	got, ok, err := c.Get(ctx, "summary:all:0::")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.Overall.InvoiceCount)
	assert.True(t, got.Overall.TotalInvoiced.Equal(decimal.NewFromInt(2000)))
}

func TestMemorySummaryCache_Expiry(t *testing.T) {
	c := NewMemorySummaryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", testSummary(), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemorySummaryCache_NilSummaryIsIgnored(t *testing.T) {
	c := NewMemorySummaryCache()
	require.NoError(t, c.Set(context.Background(), "k", nil, time.Minute))
	assert.Equal(t, 0, c.Len())
}

func TestMemorySummaryCache_Generations(t *testing.T) {
	c := NewMemorySummaryCache()
	ctx := context.Background()

	gen, err := c.Generation(ctx, "project-a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	require.NoError(t, c.Bump(ctx, "project-a"))
	require.NoError(t, c.Bump(ctx, "project-a"))

	gen, _ = c.Generation(ctx, "project-a")
	assert.Equal(t, int64(2), gen)
	other, _ := c.Generation(ctx, "project-b")
	assert.Equal(t, int64(0), other)
}
