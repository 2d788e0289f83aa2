package dashboard

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"stockdash/internal/provider"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRenderTable(t *testing.T) {
	quotes := []provider.Quote{
		{Symbol: "AAPL", Price: dec("189.984"), Change: dec("2.48"), ChangePercent: dec("1.3227"), PreviousClose: dec("187.5")},
		{Symbol: "MSFT", Price: dec("400"), Change: dec("-1"), ChangePercent: dec("-0.25"), PreviousClose: dec("401")},
	}

	out := RenderTable(quotes, "", false)

	for _, want := range []string{"Symbol", "Price", "Change %", "Previous Close", "$189.98", "▲ $2.48", "+1.32%", "$187.50", "▼ $1.00", "-0.25%", "$401.00"} {
		require.Contains(t, out, want)
	}
}

func TestRenderTable_Empty(t *testing.T) {
	require.Equal(t, noStocksText, RenderTable(nil, "", false))
	require.Contains(t, RenderTable(nil, "", true), "Loading")
}

func TestRender_ErrorAndStatus(t *testing.T) {
	out := Render(Snapshot{Error: "API rate limit exceeded. Please try again later.", Remaining: 10, Budget: 25, Pending: 3, View: ViewTable})

	require.Contains(t, out, "Error: API rate limit exceeded")
	require.Contains(t, out, "API calls remaining: 10/25")
	require.Contains(t, out, "3 queued")
	require.Contains(t, out, noStocksText)
}

func TestRenderChart(t *testing.T) {
	snap := Snapshot{
		View:  ViewChart,
		Chart: ChartChange,
		Quotes: []provider.Quote{
			{Symbol: "AAPL", Price: dec("100"), ChangePercent: dec("2")},
			{Symbol: "MSFT", Price: dec("50"), ChangePercent: dec("-1")},
		},
	}

	out := RenderChart(snap)
	require.Contains(t, out, "+2.00%")
	require.Contains(t, out, "-1.00%")

	snap.Chart = ChartHistorical
	require.Contains(t, RenderChart(snap), "Select a stock")

	d, err := provider.ParseDate("2024-03-15")
	require.NoError(t, err)
	snap.Selected = "AAPL"
	snap.History = []provider.DailyBar{{Date: d, Close: dec("171.1")}}
	out = RenderChart(snap)
	require.Contains(t, out, "2024-03-15")
	require.Contains(t, out, "$171.10")
}

func TestFormatting(t *testing.T) {
	require.Equal(t, "$0.00", Money(decimal.Zero))
	require.Equal(t, "-$3.50", Money(dec("-3.5")))
	require.Equal(t, "+0.00%", Percent(decimal.Zero))
	require.Equal(t, "-0.13%", Percent(dec("-0.125")))
	require.Equal(t, "+0.13%", Percent(dec("0.125")))
}

func TestBar(t *testing.T) {
	require.Len(t, []rune(bar(dec("5"), dec("10"))), barWidth)
	require.Equal(t, 20, countBlocks(bar(dec("5"), dec("10"))))
	require.Equal(t, 1, countBlocks(bar(dec("0.001"), dec("10"))))
	require.Zero(t, countBlocks(bar(dec("1"), decimal.Zero)))
}

func countBlocks(s string) int {
	n := 0
	for _, r := range s {
		if r == '█' {
			n++
		}
	}
	return n
}
