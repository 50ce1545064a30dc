package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/questboard/internal/domain"
	"github.com/fyrsmithlabs/questboard/internal/leveling"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// table renders rows under a header with left-aligned, padded columns.
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = lipgloss.NewStyle().Width(widths[i]).Render(h)
	}
	b.WriteString(headerStyle.Render(strings.Join(cells, "  ")))
	b.WriteString("\n")
	for _, row := range rows {
		for i := range header {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = lipgloss.NewStyle().Width(widths[i]).Render(cell)
		}
		b.WriteString(strings.Join(cells, "  "))
		b.WriteString("\n")
	}
	if len(rows) == 0 {
		b.WriteString(dimStyle.Render("(none)"))
		b.WriteString("\n")
	}
	return b.String()
}

// field renders one "label: value" line.
func field(label string, value any) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(fmt.Sprint(value))
}

// progressBar renders percent (0-100) as a fixed-width bar.
func progressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return barStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

func statusStyle(s domain.ProjectStatus) lipgloss.Style {
	switch s {
	case domain.StatusCompleted:
		return healthyStyle
	case domain.StatusInProgress:
		return warningStyle
	case domain.StatusCancelled:
		return errorStyle
	default:
		return valueStyle
	}
}

func renderProgress(username string, p leveling.Progress) string {
	lines := []string{
		field("User", username),
		field("Level", p.Level),
		field("Total XP", p.TotalXP),
		fmt.Sprintf("%s %s %s", labelStyle.Render("Next:"), progressBar(p.Percent, 30),
			dimStyle.Render(fmt.Sprintf("%d/%d XP (%.0f%%)", p.IntoLevel, p.IntoLevel+p.NeededForNext, p.Percent))),
	}
	return strings.Join(lines, "\n") + "\n"
}

func renderLevels(rows []leveling.Row) string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{fmt.Sprint(r.Level), fmt.Sprint(r.Threshold), fmt.Sprint(r.Cost)})
	}
	return table([]string{"LEVEL", "THRESHOLD", "COST"}, out)
}

func renderLeaderboard(entries []domain.LeaderboardEntry) string {
	out := make([][]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, []string{fmt.Sprint(e.Rank), e.Username, fmt.Sprint(e.Level), fmt.Sprint(e.TotalXP)})
	}
	return table([]string{"RANK", "USER", "LEVEL", "XP"}, out)
}

func renderProjects(projects []*domain.Project) string {
	out := make([][]string, 0, len(projects))
	for _, p := range projects {
		out = append(out, []string{
			p.ID,
			p.Title,
			string(p.Difficulty),
			statusStyle(p.Status).Render(string(p.Status)),
			fmt.Sprintf("%d/%d", p.CurrentParticipants, p.MaxParticipants),
			fmt.Sprint(p.XPReward),
		})
	}
	return table([]string{"ID", "TITLE", "DIFFICULTY", "STATUS", "MEMBERS", "XP"}, out)
}

func renderProject(p *domain.Project) string {
	lines := []string{
		field("ID", p.ID),
		field("Title", p.Title),
		field("Difficulty", p.Difficulty),
		labelStyle.Render("Status:") + " " + statusStyle(p.Status).Render(string(p.Status)),
		field("Members", fmt.Sprintf("%d/%d", p.CurrentParticipants, p.MaxParticipants)),
		field("XP reward", p.XPReward),
	}
	if p.ChannelRef != "" {
		lines = append(lines, field("Channel", p.ChannelRef))
	}
	return strings.Join(lines, "\n") + "\n"
}

func renderInbox(items []domain.Notification) string {
	out := make([][]string, 0, len(items))
	for _, n := range items {
		mark := dimStyle.Render("read")
		if !n.IsRead {
			mark = warningStyle.Render("new")
		}
		out = append(out, []string{fmt.Sprint(n.ID), mark, string(n.Kind), n.Message})
	}
	return table([]string{"ID", "", "KIND", "MESSAGE"}, out)
}

func renderActivity(entries []domain.ActivityEntry) string {
	out := make([][]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, []string{e.CreatedAt.Local().Format("2006-01-02 15:04"), string(e.Kind), e.Description})
	}
	return table([]string{"WHEN", "KIND", "DESCRIPTION"}, out)
}
