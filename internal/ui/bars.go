package ui

import (
	"fmt"
	"strings"
)

// Eighth-step block characters for horizontal bars, narrowest to widest.
var barEighths = []rune{'▏', '▎', '▍', '▌', '▋', '▊', '▉', '█'}

const (
	barFull  = '█'
	barEmpty = '░'
)

// ScoreBar renders v in [0,1] as a fixed-width block bar, partial cells
// rounded to eighths. Values outside the range are clamped.
func ScoreBar(v float64, width int) string {
	if width <= 0 {
		width = 10
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	cells := v * float64(width)
	full := int(cells)
	eighths := int((cells - float64(full)) * 8)

	var sb strings.Builder
	sb.Grow(width * 3)
	for i := 0; i < full; i++ {
		sb.WriteRune(barFull)
	}
	used := full
	if eighths > 0 && full < width {
		sb.WriteRune(barEighths[eighths-1])
		used++
	}
	for i := used; i < width; i++ {
		sb.WriteRune(barEmpty)
	}
	return sb.String()
}

// BarEntry is one labeled value in a bar breakdown.
type BarEntry struct {
	Label string
	Value float64

	// Text is the value annotation printed after the bar, e.g. "1820ms".
	Text string
}

// Bars renders entries as labeled bars scaled to the largest value. Labels
// are left-aligned to a common column so the bars line up.
func Bars(entries []BarEntry, width int) []string {
	if len(entries) == 0 {
		return nil
	}
	if width <= 0 {
		width = 20
	}

	var max float64
	labelWidth := 0
	for _, e := range entries {
		if e.Value > max {
			max = e.Value
		}
		if len(e.Label) > labelWidth {
			labelWidth = len(e.Label)
		}
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		frac := 0.0
		if max > 0 {
			frac = e.Value / max
		}
		line := fmt.Sprintf("%-*s  %s", labelWidth, e.Label, ScoreBar(frac, width))
		if e.Text != "" {
			line += "  " + e.Text
		}
		lines = append(lines, line)
	}
	return lines
}
