package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up, Down, Left, Right                 key.Binding
	ExtendUp, ExtendDown                  key.Binding
	ExtendLeft, ExtendRight               key.Binding
	EditDuration, EditReps, EditName      key.Binding
	EditScript                            key.Binding
	InsertFrame, RemoveFrame              key.Binding
	Transport                             key.Binding
	ZoomIn, ZoomOut                       key.Binding
	SnapFiner, SnapCoarser                key.Binding
	Chat                                  key.Binding
	ToggleLogs, TogglePeers, ToggleLayout key.Binding
	Cancel                                key.Binding
	Help                                  key.Binding
	Quit                                  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:           key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓/←/→", "move")),
		Down:         key.NewBinding(key.WithKeys("down", "j")),
		Left:         key.NewBinding(key.WithKeys("left", "h")),
		Right:        key.NewBinding(key.WithKeys("right", "l")),
		ExtendUp:     key.NewBinding(key.WithKeys("shift+up", "K"), key.WithHelp("shift+arrows", "extend selection")),
		ExtendDown:   key.NewBinding(key.WithKeys("shift+down", "J")),
		ExtendLeft:   key.NewBinding(key.WithKeys("shift+left", "H")),
		ExtendRight:  key.NewBinding(key.WithKeys("shift+right", "L")),
		EditDuration: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "duration")),
		EditReps:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "repetitions")),
		EditName:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "name")),
		EditScript:   key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "edit script")),
		InsertFrame:  key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "insert frame")),
		RemoveFrame:  key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "remove frame")),
		Transport:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/stop")),
		ZoomIn:       key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "zoom")),
		ZoomOut:      key.NewBinding(key.WithKeys("-")),
		SnapFiner:    key.NewBinding(key.WithKeys("["), key.WithHelp("[/]", "snap")),
		SnapCoarser:  key.NewBinding(key.WithKeys("]")),
		Chat:         key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "chat")),
		ToggleLogs:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "logs")),
		TogglePeers:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "peers")),
		ToggleLayout: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "vertical/horizontal")),
		Cancel:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.EditDuration, k.EditReps, k.EditName, k.EditScript, k.Transport, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.ExtendUp, k.ZoomIn, k.SnapFiner, k.ToggleLayout},
		{k.EditDuration, k.EditReps, k.EditName, k.EditScript},
		{k.InsertFrame, k.RemoveFrame, k.Transport, k.Chat},
		{k.ToggleLogs, k.TogglePeers, k.Cancel, k.Help, k.Quit},
	}
}
