// Package format renders poll progress bars and result tallies.
package format

import (
	"strconv"
	"strings"
)

const (
	// FilledGlyph marks one voted block of the bar.
	FilledGlyph = "🟢"
	// EmptyGlyph marks one block still waiting for votes.
	EmptyGlyph = "⚪"

	// ProgressBlocks is the fixed width of the progress bar.
	ProgressBlocks = 10
)

// Progress renders how many of total members voted, e.g. "🟢🟢🟢⚪⚪⚪⚪⚪⚪⚪ 30%".
// Both the block count and the percentage round half up. A zero total renders an empty bar at 0%.
func Progress(voted, total int) string {
	filled, percent := 0, 0
	if total > 0 {
		voted = max(0, min(voted, total))
		filled = roundHalfUp(voted*ProgressBlocks, total)
		percent = roundHalfUp(voted*100, total)
	}

	var b strings.Builder
	b.WriteString(bar(filled, ProgressBlocks-filled))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(percent))
	b.WriteByte('%')
	return b.String()
}

// roundHalfUp returns num/den rounded half up, for non-negative num and positive den.
func roundHalfUp(num, den int) int {
	return (2*num + den) / (2 * den)
}

func bar(filled, empty int) string {
	return strings.Repeat(FilledGlyph, max(0, filled)) + strings.Repeat(EmptyGlyph, max(0, empty))
}
