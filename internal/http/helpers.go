package http

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"financas/internal/core"
	"financas/internal/finance"
)

// sanitizeInput removes control characters except tab and line breaks.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect sends the browser to target, through HX-Redirect for HTMX calls.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// periodQuery renders the query string selecting p.
func periodQuery(p finance.Period) template.URL {
	return template.URL(fmt.Sprintf("year=%d&month=%d", p.Year, int(p.Month)))
}

// barWidth scales part against max into 0..100, keeping small non-zero
// values visible.
func barWidth(part, max core.Money) int {
	if max.Cents <= 0 || part.Cents <= 0 {
		return 0
	}
	width := int((part.Cents*100 + max.Cents/2) / max.Cents)
	if width < 2 {
		width = 2
	}
	if width > 100 {
		width = 100
	}
	return width
}

var templateFuncs = template.FuncMap{
	"brl":   func(m core.Money) string { return m.FormatBRL() },
	"pct":   func(v float64) string { return strings.Replace(fmt.Sprintf("%.1f%%", v), ".", ",", 1) },
	"width": func(v float64) int { return min(max(int(v+0.5), 0), 100) },
	"iso":   func(d core.Date) string { return d.String() },
	"br":    func(d core.Date) string { return d.BR() },
	"short": func(d core.Date) string { return d.Short() },
	"q":     periodQuery,
	"cents": func(m core.Money) string { return m.String() },
	"neg":   func(m core.Money) bool { return m.Cents < 0 },
	"over":  func(v float64) bool { return v > 100 },
}
