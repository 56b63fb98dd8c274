// Package chooser is the cast device picker dialog.
package chooser

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"castplay.app/castplay/devices"
)

var ErrNoDevices = errors.New("chooser: no cast devices found")

var (
	castBlue = lipgloss.Color("#4285f4")

	docStyle   = lipgloss.NewStyle().Margin(1, 2)
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(castBlue).
			Padding(0, 1)
	audioStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type item struct {
	dev devices.Device
}

func (i item) Title() string { return i.dev.Name }

func (i item) Description() string {
	model := i.dev.Model
	if model == "" {
		model = "Cast device"
	}
	if i.dev.IsAudioOnly {
		return audioStyle.Render(model + " (audio only)")
	}
	return model
}

func (i item) FilterValue() string { return i.dev.Name }

type model struct {
	list     list.Model
	choice   *devices.Device
	quitting bool
}

func newModel(devs []devices.Device) model {
	items := make([]list.Item, len(devs))
	for i, d := range devs {
		items[i] = item{dev: d}
	}

	delegate := list.NewDefaultDelegate()
	selected := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(castBlue).
		Foreground(castBlue).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedTitle = selected
	delegate.Styles.SelectedDesc = selected.Foreground(lipgloss.Color("250")).Faint(true)

	l := list.New(items, delegate, 0, 0)
	l.Title = "Cast to"
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(false)

	return model{list: l}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)

	case tea.KeyMsg:
		// Keys belong to the filter input while it is open.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if it, ok := m.list.SelectedItem().(item); ok {
				dev := it.dev
				m.choice = &dev
			}
			m.quitting = true
			return m, tea.Quit
		case "esc", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	return docStyle.Render(m.list.View())
}

// Choose shows devs and blocks until the user picks one or cancels. ok is
// false when the dialog was dismissed.
func Choose(devs []devices.Device, opts ...tea.ProgramOption) (dev devices.Device, ok bool, err error) {
	if len(devs) == 0 {
		return devices.Device{}, false, ErrNoDevices
	}

	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	final, err := tea.NewProgram(newModel(devs), opts...).Run()
	if err != nil {
		return devices.Device{}, false, fmt.Errorf("chooser: %w", err)
	}

	m, _ := final.(model)
	if m.choice == nil {
		return devices.Device{}, false, nil
	}
	return *m.choice, true, nil
}
