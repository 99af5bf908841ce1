// Package render formats tasks and notices for the terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cuongbtq/task-tracker/internal/api/domain"
	"github.com/cuongbtq/task-tracker/internal/tracker"
	"github.com/dustin/go-humanize"
)

// Theme is the color palette. Colors are ANSI 256 codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	StatusPending   lipgloss.Color
	StatusRunning   lipgloss.Color
	StatusCompleted lipgloss.Color
	StatusFailed    lipgloss.Color

	NoticeDefault     lipgloss.Color
	NoticeDestructive lipgloss.Color
}

var DefaultTheme = Theme{
	NormalText:        lipgloss.Color("252"),
	FaintText:         lipgloss.Color("243"),
	StatusPending:     lipgloss.Color("245"),
	StatusRunning:     lipgloss.Color("33"),
	StatusCompleted:   lipgloss.Color("35"),
	StatusFailed:      lipgloss.Color("160"),
	NoticeDefault:     lipgloss.Color("35"),
	NoticeDestructive: lipgloss.Color("160"),
}

// StatusColor returns the badge color for status. Unknown values render as
// pending.
func (theme Theme) StatusColor(status domain.TaskStatus) lipgloss.Color {
	switch status {
	case domain.TaskStatusCompleted:
		return theme.StatusCompleted
	case domain.TaskStatusFailed:
		return theme.StatusFailed
	case domain.TaskStatusRunning:
		return theme.StatusRunning
	default:
		return theme.StatusPending
	}
}

type Renderer struct {
	theme Theme
	now   func() time.Time
}

func New(theme Theme) *Renderer {
	return &Renderer{theme: theme, now: time.Now}
}

// StatusBadge renders the status as a colored bracketed label
func (renderer *Renderer) StatusBadge(status domain.TaskStatus) string {
	return lipgloss.NewStyle().
		Foreground(renderer.theme.StatusColor(status)).
		Bold(status.Terminal()).
		Render("[" + string(status) + "]")
}

// Task renders one task: badge and description, a faint created line, and
// the result when the task has one.
func (renderer *Renderer) Task(task domain.Task) string {
	var b strings.Builder

	b.WriteString(renderer.StatusBadge(task.Status))
	b.WriteString(" ")
	b.WriteString(lipgloss.NewStyle().Foreground(renderer.theme.NormalText).Render(task.Description))
	b.WriteString("\n")

	faint := lipgloss.NewStyle().Foreground(renderer.theme.FaintText)
	created := humanize.RelTime(task.CreatedAt, renderer.now(), "ago", "from now")
	b.WriteString(faint.Render(fmt.Sprintf("    %s · created %s", shortID(task.ID), created)))

	if task.Result != nil && *task.Result != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().PaddingLeft(4).Render("Result: " + *task.Result))
	}
	return b.String()
}

// Tasks renders the list in the given order, one blank line between tasks
func (renderer *Renderer) Tasks(tasks []domain.Task) string {
	if len(tasks) == 0 {
		return lipgloss.NewStyle().Foreground(renderer.theme.FaintText).Render("No tasks yet.")
	}

	rows := make([]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, renderer.Task(t))
	}
	return strings.Join(rows, "\n\n")
}

// Notice renders a toast-style line: bold title, then the description
func (renderer *Renderer) Notice(n tracker.Notice) string {
	color := renderer.theme.NoticeDefault
	if n.Variant == tracker.VariantDestructive {
		color = renderer.theme.NoticeDestructive
	}

	title := lipgloss.NewStyle().Foreground(color).Bold(true).Render(n.Title)
	if n.Description == "" {
		return title
	}
	return title + ": " + n.Description
}

// NoticeWriter returns a Notifier printing each notice to w on its own line
func (renderer *Renderer) NoticeWriter(w io.Writer) tracker.Notifier {
	return tracker.NotifierFunc(func(n tracker.Notice) {
		fmt.Fprintln(w, renderer.Notice(n))
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
