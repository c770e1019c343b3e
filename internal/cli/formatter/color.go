package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/orchidnexus/orchid/internal/domain"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen      = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow     = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleYellowBold = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	StyleRed        = lipgloss.NewStyle().Foreground(ColorRed)
	StyleRedBold    = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	StyleBlue       = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple     = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim        = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg         = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader     = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold       = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// DueIndicator renders a task's due state, e.g. "● OVERDUE". DueNone
// renders as an empty string.
func DueIndicator(s domain.DueState) string {
	switch s {
	case domain.DueOverdue:
		return StyleRed.Render("● OVERDUE")
	case domain.DueSoon:
		return StyleYellow.Render("● DUE SOON")
	case domain.DueComplete:
		return StyleGreen.Render("✔ COMPLETE")
	}
	return ""
}

func StatusPill(s domain.TaskStatus) string {
	if s == domain.TaskComplete {
		return StyleGreen.Render("✔ Complete")
	}
	return StyleBlue.Render("○ Pending")
}

func RoleBadge(r domain.Role) string {
	switch r {
	case domain.RoleProjectManager:
		return StylePurple.Render(string(r))
	case domain.RoleMonitoringOfficer:
		return StyleBlue.Render(string(r))
	case domain.RoleFieldOfficer:
		return StyleGreen.Render(string(r))
	}
	return StyleDim.Render(string(r))
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", lipgloss.Width(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}
