package formatter

import (
	"strconv"
	"time"

	"github.com/orchidnexus/orchid/internal/domain"
)

func FormatNotices(notices []domain.Notice, now time.Time) string {
	if len(notices) == 0 {
		return Dim("No notices.") + "\n"
	}
	rows := make([][]string, 0, len(notices))
	for _, n := range notices {
		marker := StyleYellow.Render("●")
		if n.Seen {
			marker = " "
		}
		rows = append(rows, []string{marker, Dim(TimestampFrom(n.ReceivedAt, now)), n.Message})
	}
	return RenderTable([]string{"", "WHEN", "MESSAGE"}, rows)
}

// FormatNoticeBanner renders the single visible notice for the watch view.
func FormatNoticeBanner(n domain.Notice) string {
	return StyleYellowBold.Render("▲ ") + n.Message + Dim("  (d to dismiss)")
}

func FormatUser(u domain.User) string {
	return Bold(u.Email) + " " + Dim("#"+strconv.Itoa(u.ID)) + "  " + RoleBadge(u.Role)
}

func FormatUsers(users []domain.User) string {
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{strconv.Itoa(u.ID), u.Email, RoleBadge(u.Role)})
	}
	return RenderTable([]string{"ID", "EMAIL", "ROLE"}, rows)
}
