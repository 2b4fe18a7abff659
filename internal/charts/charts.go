// Package charts renders the report graphs as PNG images.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"financas/internal/finance"
)

// ErrNoData means there is nothing to draw for the requested period.
var ErrNoData = errors.New("no data to chart")

const (
	width  = 800
	height = 400
)

var (
	incomeColor  = drawing.ColorFromHex("16a34a")
	expenseColor = drawing.ColorFromHex("dc2626")
	balanceColor = drawing.ColorFromHex("2563eb")
)

func background() chart.Style {
	return chart.Style{
		Padding:   chart.Box{Top: 30, Left: 20, Right: 20, Bottom: 20},
		FillColor: chart.ColorWhite,
	}
}

func brlFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	return fmt.Sprintf("R$ %.0f", f)
}

// CategoryPie draws the expense share of each category.
func CategoryPie(shares []finance.CategoryShare) ([]byte, error) {
	values := make([]chart.Value, 0, len(shares))
	for _, s := range shares {
		if s.Amount.Cents <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%.1f%%)", s.Category.Label(), s.Percent),
			Value: s.Amount.Float(),
		})
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	pie := chart.PieChart{
		Width:      width,
		Height:     width,
		Values:     values,
		Background: background(),
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render category chart: %w", err)
	}
	return buf.Bytes(), nil
}

// Trend draws income, expense and balance for each month of the window.
func Trend(months []finance.MonthSummary) ([]byte, error) {
	if len(months) == 0 {
		return nil, ErrNoData
	}

	xs := make([]float64, len(months))
	income := make([]float64, len(months))
	expense := make([]float64, len(months))
	balance := make([]float64, len(months))
	ticks := make([]chart.Tick, len(months))
	empty := true
	for i, m := range months {
		xs[i] = float64(i)
		income[i] = m.Income.Float()
		expense[i] = m.Expense.Float()
		balance[i] = m.Balance.Float()
		ticks[i] = chart.Tick{Value: float64(i), Label: m.Label}
		if !m.Income.IsZero() || !m.Expense.IsZero() {
			empty = false
		}
	}
	if empty {
		return nil, ErrNoData
	}
	// A single month still needs a non-zero x range.
	xRange := &chart.ContinuousRange{Min: -0.5, Max: float64(len(months)) - 0.5}

	graph := chart.Chart{
		Width:      width,
		Height:     height,
		Background: background(),
		XAxis: chart.XAxis{
			Range: xRange,
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			ValueFormatter: brlFormatter,
			Range:          paddedRange(income, expense, balance),
		},
		Series: []chart.Series{
			line("Receitas", xs, income, incomeColor),
			line("Despesas", xs, expense, expenseColor),
			line("Saldo", xs, balance, balanceColor),
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render trend chart: %w", err)
	}
	return buf.Bytes(), nil
}

// Balance draws the running balance of a month, starting from zero on the
// day before the first transaction.
func Balance(points []finance.BalancePoint) ([]byte, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}

	xs := make([]time.Time, 0, len(points)+1)
	ys := make([]float64, 0, len(points)+1)
	xs = append(xs, points[0].Day.AddDate(0, 0, -1))
	ys = append(ys, 0)
	for _, p := range points {
		xs = append(xs, p.Day.Time)
		ys = append(ys, p.Balance.Float())
	}

	graph := chart.Chart{
		Width:      width,
		Height:     height,
		Background: background(),
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("02/01"),
		},
		YAxis: chart.YAxis{
			ValueFormatter: brlFormatter,
			Range:          paddedRange(ys),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Saldo",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: balanceColor,
					StrokeWidth: 2,
					FillColor:   balanceColor.WithAlpha(40),
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render balance chart: %w", err)
	}
	return buf.Bytes(), nil
}

func line(name string, xs, ys []float64, color drawing.Color) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: 2,
			DotColor:    color,
			DotWidth:    3,
		},
	}
}

// paddedRange spans every value with some headroom and never collapses to a
// zero-width range, which go-chart refuses to render.
func paddedRange(series ...[]float64) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, s := range series {
		for _, v := range s {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = 1
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
