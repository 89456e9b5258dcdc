package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the explorer keybindings.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Open     key.Binding
	Back     key.Binding
	Filter   key.Binding
	New      key.Binding
	SubColl  key.Binding
	SetField key.Binding
	Metadata key.Binding
	Reload   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:     key.NewBinding(key.WithKeys("enter", "right", "l"), key.WithHelp("enter", "open")),
		Back:     key.NewBinding(key.WithKeys("esc", "left", "h"), key.WithHelp("esc", "back")),
		Filter:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		New:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		SubColl:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "sub-collection")),
		SetField: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "set field")),
		Metadata: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "schema")),
		Reload:   key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "reload")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Back, k.Filter, k.New, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Back},
		{k.Filter, k.Reload, k.Metadata},
		{k.New, k.SubColl, k.SetField},
		{k.Help, k.Quit},
	}
}
