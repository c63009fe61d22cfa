package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/rayview/internal/render"
	"github.com/san-kum/rayview/internal/viewstate"
)

type styles struct {
	canvas  lipgloss.Style
	panel   lipgloss.Style
	header  lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	mode    lipgloss.Style
	info    lipgloss.Style
	warning lipgloss.Style
	muted   lipgloss.Style
}

func newStyles(t render.Theme, invert bool) styles {
	return styles{
		canvas:  lipgloss.NewStyle().Padding(1, 2).Foreground(t.Primary).Reverse(invert),
		panel:   lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(t.Muted).Padding(1, 2).Width(34),
		header:  lipgloss.NewStyle().Foreground(t.Primary).Bold(true).MarginBottom(1),
		label:   lipgloss.NewStyle().Foreground(t.Muted).Width(11),
		value:   lipgloss.NewStyle().Foreground(t.Text),
		mode:    lipgloss.NewStyle().Foreground(t.Accent).Bold(true),
		info:    lipgloss.NewStyle().Foreground(t.Primary),
		warning: lipgloss.NewStyle().Foreground(t.Warning),
		muted:   lipgloss.NewStyle().Foreground(t.Muted),
	}
}

func (s styles) notice(n *viewstate.Notice) string {
	if n == nil {
		return ""
	}
	if n.Kind == viewstate.NoticeLoaded {
		return s.info.Render(n.Message)
	}
	return s.warning.Render("! " + n.Message)
}
