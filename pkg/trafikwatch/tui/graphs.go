package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// sparklineBlocks are block characters for 8-level vertical resolution.
var sparklineBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// renderSparkline draws one row of blocks scaled to the data's own maximum.
// Invalid samples should be passed as zero; a gap reads as a dip rather than
// breaking the line. When the data is narrower than width the graph fills
// from the right, matching how new samples arrive.
func renderSparkline(data []float64, width int, color lipgloss.Color) string {
	if width <= 0 {
		return ""
	}

	var maxVal float64
	for _, v := range data {
		if v > maxVal {
			maxVal = v
		}
	}

	var b strings.Builder
	if len(data) < width {
		b.WriteString(strings.Repeat(" ", width-len(data)))
	} else if len(data) > width {
		data = resample(data, width)
	}

	for _, v := range data {
		if maxVal <= 0 {
			b.WriteRune(sparklineBlocks[0])
			continue
		}
		idx := int(v / maxVal * float64(len(sparklineBlocks)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparklineBlocks) {
			idx = len(sparklineBlocks) - 1
		}
		b.WriteRune(sparklineBlocks[idx])
	}
	return lipgloss.NewStyle().Foreground(color).Render(b.String())
}

// renderGauge draws a horizontal utilization bar colored by severity.
func renderGauge(width int, pct float64) string {
	if width < 1 {
		width = 1
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(utilizationColor(pct)).Render(bar)
}

// resample compresses data to size buckets keeping each bucket's maximum, so
// short bursts stay visible after downsampling.
func resample(data []float64, size int) []float64 {
	if size <= 0 || len(data) == 0 {
		return nil
	}
	if len(data) <= size {
		return data
	}

	out := make([]float64, size)
	bucket := float64(len(data)) / float64(size)
	for i := 0; i < size; i++ {
		start := int(float64(i) * bucket)
		end := int(float64(i+1) * bucket)
		if end > len(data) {
			end = len(data)
		}
		if start >= end {
			start = end - 1
		}
		maxVal := data[start]
		for j := start + 1; j < end; j++ {
			if data[j] > maxVal {
				maxVal = data[j]
			}
		}
		out[i] = maxVal
	}
	return out
}
