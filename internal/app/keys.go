package app

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Home    key.Binding
	End     key.Binding
	Refresh key.Binding
	Start   key.Binding
	Stop    key.Binding
	Reboot  key.Binding
	Destroy key.Binding
	Quit    key.Binding
	Force   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Home:    key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "first")),
		End:     key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "last")),
		Refresh: key.NewBinding(key.WithKeys("f5", "ctrl+r"), key.WithHelp("F5", "refresh")),
		Start:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		Stop:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "stop")),
		Reboot:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reboot")),
		Destroy: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "destroy")),
		Quit:    key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Force:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "exit now")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Refresh, k.Start, k.Stop, k.Reboot, k.Destroy, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Home, k.End},
		{k.Start, k.Stop, k.Reboot, k.Destroy},
		{k.Refresh, k.Quit, k.Force},
	}
}
