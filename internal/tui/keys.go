package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines key bindings for the watch dashboard
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Refresh key.Binding
	Toggle  key.Binding
	Heat    key.Binding
	Cool    key.Binding
	Off     key.Binding
	Warmer  key.Binding
	Cooler  key.Binding
	Fan     key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Refresh, k.Toggle, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Refresh},
		{k.Toggle, k.Warmer, k.Cooler},
		{k.Heat, k.Cool, k.Off, k.Fan},
		{k.Help, k.Quit},
	}
}

func newKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "toggle switch"),
		),
		Heat: key.NewBinding(
			key.WithKeys("H"),
			key.WithHelp("H", "heat"),
		),
		Cool: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "cool"),
		),
		Off: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "off"),
		),
		Warmer: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "raise setpoint"),
		),
		Cooler: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "lower setpoint"),
		),
		Fan: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "next fan mode"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
