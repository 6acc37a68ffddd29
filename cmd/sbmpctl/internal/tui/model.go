// Package tui provides sbmpctl's interactive terminal dashboard: a live
// view of one endpoint's handshake status, origin bit, and negotiated
// peer buffer size, built on the bubbletea/lipgloss stack.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ignacioSepam/sbmp/cmd/sbmpctl/internal/link"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			PaddingRight(1)

	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	conflictStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingLeft(1)
)

const refreshInterval = 500 * time.Millisecond

type tickMsg time.Time

// Model is the top-level bubbletea model for the endpoint dashboard.
type Model struct {
	lnk         *link.Link
	width       int
	height      int
	lastRefresh time.Time
}

// New returns a Model watching lnk's endpoint.
func New(lnk *link.Link) Model {
	return Model{lnk: lnk}
}

// Init starts the periodic refresh tick.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update processes messages and returns an updated model plus any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "h":
			m.lnk.Endpoint.StartHandshake()
		case "a":
			m.lnk.Endpoint.AbortHandshake()
		}
		return m, nil

	case tickMsg:
		m.lastRefresh = time.Time(msg)
		return m, tick()
	}

	return m, nil
}

// View renders the dashboard to a string.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading…"
	}

	ep := m.lnk.Endpoint
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("  SBMP Endpoint Dashboard  "))
	sb.WriteString("\n\n")
	sb.WriteString(labelStyle.Render("correlation id:"))
	sb.WriteString(" " + m.lnk.SessionID + "\n")
	sb.WriteString(labelStyle.Render("handshake:"))
	sb.WriteString(" " + renderStatus(ep.HandshakeStatus()) + "\n")
	sb.WriteString(labelStyle.Render("origin bit:"))
	sb.WriteString(fmt.Sprintf(" %d\n", ep.Origin()))
	sb.WriteString(labelStyle.Render("peer buffer size:"))
	sb.WriteString(fmt.Sprintf(" %#04x\n", ep.PeerBufferSize()))

	sb.WriteString("\n")
	sb.WriteString(statusBarStyle.Render(fmt.Sprintf(
		"last refresh: %s  |  q: quit  h: start handshake  a: abort handshake",
		m.lastRefresh.Format("15:04:05.000"),
	)))

	return sb.String()
}

func renderStatus(s fmt.Stringer) string {
	switch s.String() {
	case "SUCCESS":
		return successStyle.Render(s.String())
	case "CONFLICT":
		return conflictStyle.Render(s.String())
	default:
		return pendingStyle.Render(s.String())
	}
}
