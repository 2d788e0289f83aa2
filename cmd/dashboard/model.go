package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stockdash/internal/dashboard"
)

// changedMsg tells the model the session state moved.
type changedMsg struct{}

type startMsg struct{}

var (
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	barStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
)

const helpText = "/ search · enter submit · esc leave search · tab table/chart · c chart mode · h history · ↑/↓ select · x clear · r refresh · q quit"

type model struct {
	sess     *dashboard.Session
	input    textinput.Model
	viewport viewport.Model
	snap     dashboard.Snapshot
	cursor   int
	ready    bool
	width    int
	height   int
}

func newModel(sess *dashboard.Session) model {
	in := textinput.New()
	in.Placeholder = "Search for a stock symbol (e.g. AAPL)"
	in.Prompt = "🔍 "
	in.CharLimit = 32
	return model{sess: sess, input: in, snap: sess.Snapshot()}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg { return startMsg{} }
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startMsg:
		m.sess.Start()
		return m, nil

	case changedMsg:
		m.snap = m.sess.Snapshot()
		m.clampCursor()
		m.refreshContent()
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		vpHeight := max(m.height-3, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.input.Width = max(m.width-4, 10)
		m.refreshContent()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.input.Focused() {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.sess.Submit(m.input.Value())
		m.input.Blur()
		return m, nil
	case "esc":
		m.input.Blur()
		return m, nil
	case "tab":
		m.sess.ToggleView()
		return m, nil
	}
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.sess.TypeQuery(after)
	}
	return m, cmd
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		return m, m.input.Focus()
	case "tab":
		m.sess.ToggleView()
	case "r":
		m.sess.FullRefresh()
	case "x":
		m.input.SetValue("")
		m.sess.ClearSearch()
	case "c":
		m.sess.SetChartMode(nextChartMode(m.snap.Chart))
	case "h":
		m.selectCursor()
		m.sess.SetView(dashboard.ViewChart)
		m.sess.SetChartMode(dashboard.ChartHistorical)
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.selectCursor()
	case "down", "j":
		if m.cursor < len(m.snap.Quotes)-1 {
			m.cursor++
		}
		m.selectCursor()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) selectCursor() {
	if m.cursor < len(m.snap.Quotes) {
		m.sess.SelectSymbol(m.snap.Quotes[m.cursor].Symbol)
	}
}

func (m *model) clampCursor() {
	m.cursor = min(m.cursor, max(len(m.snap.Quotes)-1, 0))
}

func (m *model) refreshContent() {
	if m.ready {
		m.viewport.SetContent(dashboard.Render(m.snap))
	}
}

func (m model) View() string {
	if !m.ready {
		return "loading…"
	}
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(barStyle.Width(m.width).Render(helpStyle.Render(helpText)))
	return b.String()
}

func nextChartMode(cur dashboard.ChartMode) dashboard.ChartMode {
	switch cur {
	case dashboard.ChartPrice:
		return dashboard.ChartChange
	case dashboard.ChartChange:
		return dashboard.ChartHistorical
	default:
		return dashboard.ChartPrice
	}
}
