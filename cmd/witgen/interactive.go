package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/witgen/abi"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	streamStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectFunc modelState = iota
	stateShowStream
)

var variants = []abi.AbiVariant{
	abi.GuestImport,
	abi.GuestExport,
	abi.GuestImportAsync,
	abi.GuestExportAsync,
}

type browserModel struct {
	world *demoWorld
	sizes *abi.SizeAlign
	opts  abi.Options

	filter   textinput.Model
	visible  []*abi.Function
	selected int

	variantIdx int
	stream     string
	err        error
	state      modelState
}

func newBrowserModel(world *demoWorld, opts abi.Options) *browserModel {
	filter := textinput.New()
	filter.Placeholder = "filter functions"
	filter.Prompt = "/ "
	filter.Width = 40
	filter.Focus()

	m := &browserModel{
		world:  world,
		sizes:  world.sizes(),
		opts:   opts,
		filter: filter,
		state:  stateSelectFunc,
	}
	m.applyFilter()
	return m
}

func (m *browserModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *browserModel) applyFilter() {
	query := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for _, f := range m.world.funcs {
		if query == "" || strings.Contains(strings.ToLower(f.Name), query) {
			m.visible = append(m.visible, f)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = 0
	}
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "up":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down":
			if m.state == stateSelectFunc && m.selected < len(m.visible)-1 {
				m.selected++
			}

		case "tab":
			// Cycle the boundary direction and regenerate in place.
			m.variantIdx = (m.variantIdx + 1) % len(variants)
			if m.state == stateShowStream {
				m.generate()
			}

		case "enter":
			if m.state == stateSelectFunc && len(m.visible) > 0 {
				m.generate()
				m.state = stateShowStream
			}

		case "esc":
			switch m.state {
			case stateShowStream:
				m.state = stateSelectFunc
				m.stream = ""
				m.err = nil
			case stateSelectFunc:
				if m.filter.Value() != "" {
					m.filter.SetValue("")
					m.applyFilter()
				} else {
					return m, tea.Quit
				}
			}
		}
	}

	if m.state == stateSelectFunc {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	return m, nil
}

func (m *browserModel) generate() {
	f := m.visible[m.selected]
	variant := variants[m.variantIdx]

	lift := abi.LowerArgsLiftResults
	if variant == abi.GuestExport || variant == abi.GuestExportAsync {
		lift = abi.LiftArgsLowerResults
	}

	rec := abi.NewRecorder(m.sizes)
	if err := abi.Call(variant, lift, f, rec, m.opts); err != nil {
		m.err = err
		m.stream = ""
		return
	}
	m.err = nil

	var b strings.Builder
	sig := abi.FlattenSignature(variant, f)
	fmt.Fprintf(&b, "core: (%s) -> (%s)\n\n", coreTypes(sig.Params), coreTypes(sig.Results))
	b.WriteString(rec.Listing())

	if variant == abi.GuestExport && abi.NeedsPostReturn(f) {
		post := abi.NewRecorder(m.sizes)
		if err := abi.PostReturn(f, post, m.opts); err == nil {
			b.WriteString("\n\npost-return:\n")
			b.WriteString(post.Listing())
		}
	}

	m.stream = b.String()
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("witgen"))
	b.WriteString(" instruction browser  ")
	b.WriteString(typeStyle.Render(variants[m.variantIdx].String()))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		for i, f := range m.visible {
			line := formatFunc(f)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		if len(m.visible) == 0 {
			b.WriteString(helpStyle.Render("no matches"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter show • tab direction • esc clear/quit"))

	case stateShowStream:
		f := m.visible[m.selected]
		b.WriteString(funcStyle.Render(formatSignature(f)))
		b.WriteString("\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(streamStyle.Render(m.stream))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("tab direction • esc back • ctrl+c quit"))
	}

	return b.String()
}

func formatFunc(f *abi.Function) string {
	var params []string
	for _, p := range f.Params {
		params = append(params, p.Name+": "+typeStyle.Render(witTypeStr(p.Type)))
	}
	result := ""
	if len(f.Results) > 0 {
		result = " -> " + typeStyle.Render(witTypeStr(f.Results[0].Type))
	}
	return funcStyle.Render(f.Name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(world *demoWorld, opts abi.Options) error {
	p := tea.NewProgram(newBrowserModel(world, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
