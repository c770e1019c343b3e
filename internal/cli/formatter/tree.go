package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TreeItem is one line of a rendered project tree.
type TreeItem struct {
	Title  string
	Kind   string // "objective", "activity", "task"; shown as a dim tag
	ID     int
	Level  int
	IsLast bool
	// Ancestors records, per level above this one, whether that ancestor
	// was the last of its siblings. It decides pipe versus blank gutters.
	Ancestors []bool
	Status    string // "complete", "pending", "overdue", "due_soon"
	Detail    string
}

const (
	treeBranch = "├─ "
	treeCorner = "└─ "
	treePipe   = "│  "
	treeBlank  = "   "
)

// RenderTree draws items with box-drawing connectors. Complete items are
// dimmed behind a green check, overdue ones get a red marker, and detail
// badges are right-aligned in a column.
func RenderTree(items []TreeItem) string {
	if len(items) == 0 {
		return ""
	}

	type line struct {
		content string
		badge   string
	}
	lines := make([]line, len(items))
	widest := 0

	for idx, item := range items {
		var prefix strings.Builder
		if item.Level > 0 {
			for i := 1; i < item.Level; i++ {
				if i-1 < len(item.Ancestors) && item.Ancestors[i-1] {
					prefix.WriteString(treeBlank)
				} else {
					prefix.WriteString(treePipe)
				}
			}
			if item.IsLast {
				prefix.WriteString(treeCorner)
			} else {
				prefix.WriteString(treeBranch)
			}
		}

		title := item.Title
		if item.ID > 0 {
			title = StyleDim.Render(fmt.Sprintf("#%d ", item.ID)) + title
		}
		marker := ""
		switch strings.ToLower(item.Status) {
		case "complete":
			marker = StyleGreen.Render("✔ ")
			title = Dim(title)
		case "overdue":
			marker = StyleRed.Render("! ")
			title = StyleRed.Render(title)
		case "due_soon":
			marker = StyleYellowBold.Render("▶ ")
			title = StyleYellowBold.Render(title)
		case "pending":
			marker = StyleBlue.Render("○ ")
		}
		if item.Kind != "" && item.Kind != "task" {
			title = Bold(title) + " " + Dim(item.Kind)
		}

		lines[idx].content = prefix.String() + marker + title
		if item.Detail != "" {
			lines[idx].badge = StyleBlue.Render(fmt.Sprintf("[ %s ]", item.Detail))
		}
		if w := lipgloss.Width(lines[idx].content); w > widest {
			widest = w
		}
	}

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.content)
		if l.badge != "" {
			b.WriteString(strings.Repeat(" ", widest-lipgloss.Width(l.content)+2))
			b.WriteString(l.badge)
		}
		b.WriteString("\n")
	}
	return b.String()
}
