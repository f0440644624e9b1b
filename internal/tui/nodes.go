package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const tickInterval = 150 * time.Millisecond

// tickMsg drives the spinner and elapsed counters.
type tickMsg time.Time

type nodeRow struct {
	name    string
	address string
	phase   string
	since   time.Time
}

// NodeModel renders one row per node while a cluster starts.
type NodeModel struct {
	title string
	rows  []nodeRow
	index map[string]int
	done  bool
	err   error
	tick  int
	now   func() time.Time
}

// NewNodeModel creates an empty model with the given title.
func NewNodeModel(title string) NodeModel {
	return NodeModel{
		title: title,
		index: make(map[string]int),
		now:   time.Now,
	}
}

// AddNode pre-populates a pending row. Call this before the program starts.
func (m *NodeModel) AddNode(name, address string) {
	m.index[name] = len(m.rows)
	m.rows = append(m.rows, nodeRow{name: name, address: address, phase: "pending", since: m.now()})
}

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init satisfies the tea.Model interface.
func (m NodeModel) Init() tea.Cmd {
	return scheduleTick()
}

// Update satisfies the tea.Model interface.
func (m NodeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tick++
		if m.done {
			return m, nil
		}
		return m, scheduleTick()

	case NodePhaseMsg:
		if idx, ok := m.index[msg.Node]; ok && m.rows[idx].phase != msg.Phase {
			m.rows[idx].phase = msg.Phase
			m.rows[idx].since = m.now()
		}
		return m, nil

	case WorkDoneMsg:
		m.done = true
		return m, tea.Quit

	case ErrorMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// View satisfies the tea.Model interface.
func (m NodeModel) View() string {
	rows := make([][]string, len(m.rows))
	for i, r := range m.rows {
		detail := ""
		if !m.done && isActive(r.phase) {
			detail = formatElapsed(m.now().Sub(r.since))
		}
		rows[i] = []string{r.name, NonEmptyOrDash(r.address), r.phase, detail}
	}

	var b strings.Builder
	if m.title != "" {
		b.WriteString(HeaderStyle.Render(m.title))
		b.WriteString("\n\n")
	}
	b.WriteString(RenderTable([]Column{
		{Header: "NODE", Width: 8},
		{Header: "ADDRESS", Width: 11},
		{Header: "STATUS", Width: 9},
		{Header: "ELAPSED"},
	}, rows))

	if m.done && m.err != nil {
		fmt.Fprintf(&b, "\nError: %v\n", m.err)
	} else if !m.done {
		ready, total := m.readyCounts()
		spinner := spinnerFrames[m.tick%len(spinnerFrames)]
		fmt.Fprintf(&b, "\n%s %d/%d nodes up...\n", spinner, ready, total)
	}
	return b.String()
}

func isActive(phase string) bool {
	return phase == "launching" || phase == "waiting"
}

func (m NodeModel) readyCounts() (int, int) {
	ready := 0
	for _, r := range m.rows {
		if r.phase == "ready" || r.phase == "running" {
			ready++
		}
	}
	return ready, len(m.rows)
}

// Phase returns the current phase of node, or "" if unknown.
func (m NodeModel) Phase(node string) string {
	if idx, ok := m.index[node]; ok {
		return m.rows[idx].phase
	}
	return ""
}

// Done returns whether the model has finished (work done or error).
func (m NodeModel) Done() bool {
	return m.done
}

// Err returns any fatal error that occurred.
func (m NodeModel) Err() error {
	return m.err
}
