package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Open     key.Binding
	Back     key.Binding
	NextView key.Binding
	Trending key.Binding
	Metrics  key.Binding
	Rankings key.Binding
	Lens     key.Binding
	LensBack key.Binding
	Window   key.Binding
	Field    key.Binding
	Refresh  key.Binding
	Debug    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Back, k.NextView, k.Lens, k.Window, k.Field, k.Refresh, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.Open, k.Back, k.NextView, k.Trending, k.Metrics, k.Rankings},
		{k.Lens, k.LensBack, k.Window, k.Field},
		{k.Refresh, k.Debug, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Top: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
		key.WithHelp("esc", "back"),
	),
	NextView: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	Trending: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "trending"),
	),
	Metrics: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "metrics"),
	),
	Rankings: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "rankings"),
	),
	Lens: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "lens"),
	),
	LensBack: key.NewBinding(
		key.WithKeys("L"),
		key.WithHelp("L", "lens back"),
	),
	Window: key.NewBinding(
		key.WithKeys("w"),
		key.WithHelp("w", "window"),
	),
	Field: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "chart field"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Debug: key.NewBinding(
		key.WithKeys("D"),
		key.WithHelp("D", "debug"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
