package formatter

import (
	"fmt"
	"strings"
)

const (
	filledBlock = "█"
	emptyBlock  = "░"
)

func clampFrac(frac float64) float64 {
	if frac < 0 {
		return 0
	}
	if frac > 1 {
		return 1
	}
	return frac
}

func bar(frac float64, width int) string {
	if width < 2 {
		width = 2
	}
	filled := int(frac * float64(width))
	if filled > width {
		filled = width
	}
	return strings.Repeat(filledBlock, filled) + strings.Repeat(emptyBlock, width-filled)
}

// RenderProgress renders goal progress like [████░░░░]  45%. frac is 0..1
// and is clamped. Green above two thirds, yellow above one third, red below.
func RenderProgress(frac float64, width int) string {
	frac = clampFrac(frac)
	style := StyleGreen
	if frac < 0.33 {
		style = StyleRed
	} else if frac < 0.66 {
		style = StyleYellow
	}
	return fmt.Sprintf("[%s] %3.0f%%", style.Render(bar(frac, width)), frac*100)
}

// RenderBurn renders budget consumption. Colors run the other way from
// RenderProgress: spending close to the total is the warning. Over-budget
// spend shows the real ratio next to a full bar.
func RenderBurn(ratio float64, width int) string {
	frac := clampFrac(ratio)
	style := StyleGreen
	switch {
	case ratio > 1:
		style = StyleRedBold
	case ratio >= 0.9:
		style = StyleRed
	case ratio >= 0.66:
		style = StyleYellow
	}
	return fmt.Sprintf("[%s] %3.0f%%", style.Render(bar(frac, width)), ratio*100)
}
