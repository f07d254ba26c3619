package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const flagsWrapWidth = 60

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#FFFF00")).
			Padding(0, 2).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)

	flagSetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	flagClearStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34D399")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF")).
			Italic(true)
)

type pollResultMsg struct {
	status *StatusView
	health *HealthView
	err    error
}

type chuteEventMsg struct {
	at time.Time
	on bool
}

// Model is the bubbletea model for the Status Monitor.
type Model struct {
	client       *Client
	pollInterval time.Duration

	status     *StatusView
	health     *HealthView
	lastErr    error
	lastPoll   time.Time
	chuteLog   []chuteEventMsg
	wasInChute bool
	chuteView  viewport.Model

	quitting bool
}

// NewModel builds a Model polling client every pollInterval.
func NewModel(client *Client, pollInterval time.Duration) Model {
	vp := viewport.New(flagsWrapWidth, 6)
	return Model{client: client, pollInterval: pollInterval, chuteView: vp}
}

func (m Model) Init() tea.Cmd {
	return m.poll()
}

func (m Model) poll() tea.Cmd {
	return func() tea.Msg {
		status, statusErr := m.client.GetStatus()
		health, healthErr := m.client.GetHealth()
		if statusErr != nil {
			return pollResultMsg{err: statusErr}
		}
		if healthErr != nil {
			return pollResultMsg{err: healthErr}
		}
		return pollResultMsg{status: status, health: health}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.pollInterval, func(t time.Time) tea.Msg {
		return m.poll()()
	})
}

// Update handles key presses, the manual test-print binding ('p'), and
// each poll result as it arrives.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "p":
			templateID := byte('T')
			return m, func() tea.Msg {
				err := m.client.SendTestPrint(templateID)
				return pollResultMsg{err: err, status: m.status, health: m.health}
			}
		}

	case pollResultMsg:
		if msg.err != nil {
			m.lastErr = msg.err
		} else {
			m.lastErr = nil
			m.status = msg.status
			m.health = msg.health
			m.lastPoll = time.Now()
			m.recordChuteTransition()
		}
		return m, m.tick()
	}

	var cmd tea.Cmd
	m.chuteView, cmd = m.chuteView.Update(msg)
	return m, cmd
}

func (m *Model) recordChuteTransition() {
	if m.status == nil {
		return
	}
	inChute := contains(m.status.Flags3, "paperInChute")
	if inChute != m.wasInChute {
		m.chuteLog = append(m.chuteLog, chuteEventMsg{at: time.Now(), on: inChute})
		if len(m.chuteLog) > 10 {
			m.chuteLog = m.chuteLog[len(m.chuteLog)-10:]
		}
		m.chuteView.SetContent(renderChuteLines(m.chuteLog))
		m.chuteView.GotoBottom()
	}
	m.wasInChute = inChute
}

func renderChuteLines(log []chuteEventMsg) string {
	var b strings.Builder
	for i, ev := range log {
		state := "cleared"
		if ev.on {
			state = "set"
		}
		b.WriteString(fmt.Sprintf("%s  %s", ev.at.Format("15:04:05.000"), state))
		if i < len(log)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("PayCheck 4 Status Monitor"))
	b.WriteString("\n\n")

	if m.lastErr != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("poll error: %v", m.lastErr)))
		b.WriteString("\n\n")
	}

	if m.status != nil {
		b.WriteString(panelStyle.Render(m.renderFlags()))
		b.WriteString("\n")
	}
	if m.health != nil {
		b.WriteString(panelStyle.Render(m.renderHealth()))
		b.WriteString("\n")
	}
	if len(m.chuteLog) > 0 {
		b.WriteString(panelStyle.Render(m.renderChuteHistory()))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("q: quit   p: send test print"))
	return b.String()
}

func (m Model) renderFlags() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("job state: %s\n", stateStyle.Render(m.status.JobState)))
	b.WriteString(fmt.Sprintf("last template: %q  reported: %q\n",
		m.status.LastTemplateID, m.status.StatusReportTemplateID))
	renderRow(&b, "flags1", m.status.Flags1)
	renderRow(&b, "flags2", m.status.Flags2)
	renderRow(&b, "flags3", m.status.Flags3)
	renderRow(&b, "flags4", m.status.Flags4)
	renderRow(&b, "flags5", m.status.Flags5)
	return b.String()
}

func renderRow(b *strings.Builder, label string, names []string) {
	if len(names) == 0 {
		b.WriteString(fmt.Sprintf("%-8s %s\n", label, flagClearStyle.Render("(none)")))
		return
	}
	wrapped := ansi.Wordwrap(strings.Join(names, ", "), flagsWrapWidth, " ")
	b.WriteString(fmt.Sprintf("%-8s %s\n", label, flagSetStyle.Render(wrapped)))
}

func (m Model) renderHealth() string {
	return fmt.Sprintf(
		"uptime: %s   frames in/out: %d/%d\ncpu: %.1f%%   mem: %.1f%%   %s",
		m.health.Uptime, m.health.FramesProcessed, m.health.FramesEmitted,
		m.health.CPUPercent, m.health.MemPercent, m.health.GoVersion,
	)
}

func (m Model) renderChuteHistory() string {
	return "paper-in-chute history:\n" + m.chuteView.View()
}
