package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"stockdash/internal/provider"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	colHeadStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	symbolStyle   = lipgloss.NewStyle().Bold(true)
	gainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("236"))
	errorStyle    = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(0, 1)
	activeTabStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
)

const (
	noStocksText = "No stocks found. Try searching for a different symbol."
	barWidth     = 40
)

// Render draws the whole dashboard below the search input.
func Render(s Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Stock Market Dashboard"))
	b.WriteString("\n")
	b.WriteString(RenderStatus(s))
	b.WriteString("\n")
	if len(s.SearchResults) > 0 {
		b.WriteString(RenderSearchResults(s.SearchResults))
		b.WriteString("\n")
	}
	if s.Error != "" {
		b.WriteString(errorStyle.Render("Error: " + s.Error))
		b.WriteString("\n")
	}
	b.WriteString(renderTabs(s.View))
	b.WriteString("\n\n")
	if s.View == ViewChart {
		b.WriteString(RenderChart(s))
	} else {
		b.WriteString(RenderTable(s.Quotes, s.Selected, s.Loading))
	}
	return b.String()
}

// RenderStatus shows the call budget, queue depth and last update.
func RenderStatus(s Snapshot) string {
	parts := []string{fmt.Sprintf("API calls remaining: %d/%d", s.Remaining, s.Budget)}
	if s.Pending > 0 {
		parts = append(parts, fmt.Sprintf("%d queued", s.Pending))
	}
	if s.Loading {
		parts = append(parts, "refreshing…")
	}
	if s.SearchSymbol != "" {
		parts = append(parts, "filter: "+s.SearchSymbol)
	}
	if !s.UpdatedAt.IsZero() {
		parts = append(parts, "updated "+s.UpdatedAt.Local().Format("15:04:05"))
	}
	return dimStyle.Render(strings.Join(parts, " · "))
}

// RenderSearchResults lists symbol search hits.
func RenderSearchResults(results []provider.SearchMatch) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  %s  %s", symbolStyle.Render(fmt.Sprintf("%-8s", r.Symbol)), r.Name)
		if r.Region != "" {
			b.WriteString(dimStyle.Render("  " + r.Region))
		}
	}
	return b.String()
}

func renderTabs(v View) string {
	table, chart := tabStyle, tabStyle
	if v == ViewChart {
		chart = activeTabStyle
	} else {
		table = activeTabStyle
	}
	return table.Render("Table View") + " " + chart.Render("Chart View")
}

// RenderTable draws the quote table. Prices use two decimals.
func RenderTable(quotes []provider.Quote, selected string, loading bool) string {
	if len(quotes) == 0 {
		if loading {
			return dimStyle.Render("Loading…")
		}
		return noStocksText
	}
	var b strings.Builder
	b.WriteString(colHeadStyle.Render(fmt.Sprintf("%-8s %12s %12s %10s %15s", "Symbol", "Price", "Change", "Change %", "Previous Close")))
	for _, q := range quotes {
		b.WriteString("\n")
		style := directionStyle(q.Change)
		row := symbolStyle.Render(fmt.Sprintf("%-8s", q.Symbol)) + " " +
			fmt.Sprintf("%12s", Money(q.Price)) + " " +
			style.Render(fmt.Sprintf("%12s", arrow(q.Change)+" "+Money(q.Change.Abs()))) + " " +
			directionStyle(q.ChangePercent).Render(fmt.Sprintf("%10s", Percent(q.ChangePercent))) + " " +
			fmt.Sprintf("%15s", Money(q.PreviousClose))
		if q.Symbol == selected {
			row = selectedStyle.Render(row)
		}
		b.WriteString(row)
	}
	return b.String()
}

// RenderChart draws horizontal bars of price or change percent, or the
// closing prices of the loaded history.
func RenderChart(s Snapshot) string {
	var b strings.Builder
	for _, m := range []ChartMode{ChartPrice, ChartChange, ChartHistorical} {
		st := tabStyle
		if m == s.Chart {
			st = activeTabStyle
		}
		b.WriteString(st.Render(string(m)))
	}
	b.WriteString("\n\n")

	if s.Chart == ChartHistorical {
		b.WriteString(renderHistory(s))
		return b.String()
	}
	if len(s.Quotes) == 0 {
		b.WriteString(noStocksText)
		return b.String()
	}

	values := make([]decimal.Decimal, len(s.Quotes))
	for i, q := range s.Quotes {
		if s.Chart == ChartChange {
			values[i] = q.ChangePercent
		} else {
			values[i] = q.Price
		}
	}
	peak := maxAbs(values)
	for i, q := range s.Quotes {
		if i > 0 {
			b.WriteString("\n")
		}
		label := Money(values[i])
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
		if s.Chart == ChartChange {
			label = Percent(values[i])
			style = directionStyle(values[i])
		}
		fmt.Fprintf(&b, "%-8s %s %s", q.Symbol, style.Render(bar(values[i], peak)), label)
	}
	return b.String()
}

func renderHistory(s Snapshot) string {
	switch {
	case s.Selected == "":
		return dimStyle.Render("Select a stock to load its history.")
	case s.HistoryLoading:
		return dimStyle.Render("Loading history for " + s.Selected + "…")
	case len(s.History) == 0:
		return "No historical data for " + s.Selected + "."
	}
	closes := make([]decimal.Decimal, len(s.History))
	for i, d := range s.History {
		closes[i] = d.Close
	}
	lo, hi := closes[0], closes[0]
	for _, c := range closes[1:] {
		lo = decimal.Min(lo, c)
		hi = decimal.Max(hi, c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s – %s\n", symbolStyle.Render(s.Selected), Money(lo), Money(hi))
	// history is newest-first; draw oldest to newest
	for i := len(s.History) - 1; i >= 0; i-- {
		d := s.History[i]
		fmt.Fprintf(&b, "%s %s %s", dimStyle.Render(d.Date.String()), bar(d.Close.Sub(lo), hi.Sub(lo)), Money(d.Close))
		if i > 0 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Money formats d as dollars with two decimals.
func Money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// Percent formats d with two decimals and an explicit plus sign.
func Percent(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2) + "%"
	}
	return "+" + d.StringFixed(2) + "%"
}

func arrow(d decimal.Decimal) string {
	if d.IsNegative() {
		return "▼"
	}
	return "▲"
}

func directionStyle(d decimal.Decimal) lipgloss.Style {
	if d.IsNegative() {
		return lossStyle
	}
	return gainStyle
}

func maxAbs(values []decimal.Decimal) decimal.Decimal {
	peak := decimal.Zero
	for _, v := range values {
		peak = decimal.Max(peak, v.Abs())
	}
	return peak
}

func bar(v, peak decimal.Decimal) string {
	if !peak.IsPositive() {
		return strings.Repeat(" ", barWidth)
	}
	n := int(v.Abs().Div(peak).Mul(decimal.NewFromInt(barWidth)).Round(0).IntPart())
	n = min(max(n, 0), barWidth)
	if n == 0 && !v.IsZero() {
		n = 1
	}
	return strings.Repeat("█", n) + strings.Repeat(" ", barWidth-n)
}
