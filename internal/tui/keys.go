package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/san-kum/rayview/internal/viewstate"
)

type keyMap struct {
	Rays     key.Binding
	ShowAll  key.Binding
	Scatter  key.Binding
	Prev     key.Binding
	Next     key.Binding
	Autoplay key.Binding
	RotX     key.Binding
	RotY     key.Binding
	RotZ     key.Binding
	ZoomIn   key.Binding
	ZoomOut  key.Binding
	Theme    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Rays:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "toggle rays")),
		ShowAll:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "show all")),
		Scatter:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "scatter points")),
		Prev:     key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev ray")),
		Next:     key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next ray")),
		Autoplay: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "autoplay")),
		RotX:     key.NewBinding(key.WithKeys("x", "X"), key.WithHelp("x/X", "rotate x")),
		RotY:     key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y/Y", "rotate y")),
		RotZ:     key.NewBinding(key.WithKeys("z", "Z"), key.WithHelp("z/Z", "rotate z")),
		ZoomIn:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut:  key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "zoom out")),
		Theme:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// expose enables only the mode keys the selector hands out for s.
func (k *keyMap) expose(s viewstate.Snapshot) {
	switch {
	case s.Controls.Has(viewstate.ControlSwitchToPlayback):
		k.ShowAll.SetHelp("a", "playback")
		k.ShowAll.SetEnabled(true)
	case s.Controls.Has(viewstate.ControlSwitchToShowAll):
		k.ShowAll.SetHelp("a", "show all")
		k.ShowAll.SetEnabled(true)
	default:
		k.ShowAll.SetEnabled(false)
	}
	k.Scatter.SetEnabled(s.Controls.Has(viewstate.ControlScatterPoints))
	playback := s.Controls.Has(viewstate.ControlPlayback)
	k.Prev.SetEnabled(playback)
	k.Next.SetEnabled(playback)
	k.Autoplay.SetEnabled(playback)
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Rays, k.ShowAll, k.Scatter, k.Next, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Rays, k.ShowAll, k.Scatter},
		{k.Prev, k.Next, k.Autoplay},
		{k.RotX, k.RotY, k.RotZ, k.ZoomIn, k.ZoomOut},
		{k.Theme, k.Help, k.Quit},
	}
}
