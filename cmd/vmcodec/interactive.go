package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/vmcodec/codec"
	"github.com/wippyai/vmcodec/layout"
	"github.com/wippyai/vmcodec/value"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const (
	fieldLayout = iota
	fieldValue
)

type interactiveModel struct {
	err      error
	codec    *codec.Codec
	layout   layout.Layout
	encoded  []byte
	inputs   []textinput.Model
	focusIdx int
}

func newInteractiveModel(c *codec.Codec) *interactiveModel {
	layoutInput := textinput.New()
	layoutInput.Prompt = "layout: "
	layoutInput.Placeholder = "struct{u64,vector<u8>}"
	layoutInput.Width = 60
	layoutInput.Focus()

	valueInput := textinput.New()
	valueInput.Prompt = "value:  "
	valueInput.Placeholder = `[42, "0x68656c6c6f"]`
	valueInput.Width = 60

	return &interactiveModel{
		codec:  c,
		inputs: []textinput.Model{layoutInput, valueInput},
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "shift+tab", "up", "down":
			m.inputs[m.focusIdx].Blur()
			m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
			m.inputs[m.focusIdx].Focus()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focusIdx], cmd = m.inputs[m.focusIdx].Update(msg)
	m.refresh()
	return m, cmd
}

// refresh re-parses both inputs and re-encodes on every edit.
func (m *interactiveModel) refresh() {
	m.err, m.layout, m.encoded = nil, nil, nil

	layoutText := strings.TrimSpace(m.inputs[fieldLayout].Value())
	if layoutText == "" {
		return
	}
	l, err := layout.Parse(layoutText)
	if err != nil {
		m.err = err
		return
	}
	m.layout = l

	valueText := strings.TrimSpace(m.inputs[fieldValue].Value())
	if valueText == "" {
		return
	}
	v, err := value.ParseJSON([]byte(valueText), l)
	if err != nil {
		m.err = err
		return
	}
	m.encoded, m.err = m.codec.Encode(v, l)
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("vmcodec"))
	b.WriteString(" live encoder\n\n")
	for _, input := range m.inputs {
		b.WriteString(input.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.layout != nil {
		info := layout.Analyze(m.layout)
		fixed := "variable"
		if info.FixedSize >= 0 {
			fixed = fmt.Sprintf("%d bytes", info.FixedSize)
		}
		b.WriteString(typeStyle.Render(fmt.Sprintf("%s  depth %d, min %d bytes, fixed %s",
			m.layout, info.Depth, info.MinSize, fixed)))
		b.WriteString("\n\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.encoded != nil:
		b.WriteString(resultStyle.Render(fmt.Sprintf("%d bytes\n%s", len(m.encoded), groupHex(m.encoded))))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("tab switch field • esc quit"))
	return b.String()
}

// groupHex renders data as space separated bytes, 16 per line.
func groupHex(data []byte) string {
	var b strings.Builder
	for i, c := range data {
		switch {
		case i > 0 && i%16 == 0:
			b.WriteByte('\n')
		case i > 0:
			b.WriteByte(' ')
		}
		b.WriteString(hex.EncodeToString([]byte{c}))
	}
	return b.String()
}

func runInteractive(c *codec.Codec) error {
	p := tea.NewProgram(newInteractiveModel(c), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
