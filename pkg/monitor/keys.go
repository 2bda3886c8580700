package monitor

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	Sync      key.Binding
	Refresh   key.Binding
	NextPanel key.Binding
	Up        key.Binding
	Down      key.Binding
	Help      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Sync:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync now")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		NextPanel: key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "switch panel")),
		Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "down")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Sync, k.NextPanel, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextPanel},
		{k.Sync, k.Refresh},
		{k.Help, k.Quit},
	}
}
