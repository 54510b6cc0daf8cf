package extract

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// Glyphs whose baselines differ by less than this share of the font size sit on one line.
	rowTolerance = 0.5
	// A horizontal gap wider than this share of the font size separates two words.
	wordGap = 0.2
)

// pageText rebuilds the lines of a page from positioned glyphs. Content streams that move the
// pen with Td instead of T* carry no line breaks, so rows are recovered from baselines,
// top to bottom, and glyphs within a row are ordered left to right.
func pageText(p pdf.Page) string {
	if p.V.IsNull() {
		return ""
	}
	return layoutText(p.Content().Text)
}

func layoutText(glyphs []pdf.Text) string {
	sorted := make([]pdf.Text, 0, len(glyphs))
	for _, g := range glyphs {
		// TJ arrays end with a synthetic newline glyph; breaks come from baselines instead.
		if g.S == "\n" || g.S == "\r" || g.S == "" {
			continue
		}
		sorted = append(sorted, g)
	}
	if len(sorted) == 0 {
		return ""
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var rows [][]pdf.Text
	var rowY float64
	for _, g := range sorted {
		if len(rows) == 0 || math.Abs(rowY-g.Y) > math.Max(g.FontSize*rowTolerance, 1) {
			rows = append(rows, []pdf.Text{g})
			rowY = g.Y
			continue
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], g)
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		lines = append(lines, joinRow(row))
	}
	return strings.Join(lines, "\n")
}

func joinRow(row []pdf.Text) string {
	var b strings.Builder
	for i, g := range row {
		if i > 0 {
			prev := row[i-1]
			gap := g.X - (prev.X + prev.W)
			if gap > math.Max(g.FontSize, prev.FontSize)*wordGap &&
				!strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(g.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(g.S)
	}
	return strings.TrimRight(b.String(), " ")
}
