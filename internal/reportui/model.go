// Package reportui provides the Bubble Tea report viewer.
package reportui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/playbeacon/beacon/internal/report"
	"github.com/playbeacon/beacon/internal/store"
)

const (
	tabOverview = iota
	tabLevels
	tabAttempts
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea report viewer over the pending queue.
type Model struct {
	store *store.Store

	reports []store.PendingReport
	current int
	errMsg  string

	tabs        []string
	activeTab   int
	viewports   []viewport.Model
	levelsTable table.Model

	width  int
	height int
}

// NewModel constructs a report viewer model.
func NewModel(st *store.Store) *Model {
	m := &Model{
		store: st,
		tabs:  []string{"Overview", "Levels", "Attempts"},
	}
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
	m.levelsTable = buildLevelsTable(report.Payload{}, 1)
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		if m.activeTab == tabLevels {
			m.levelsTable.Focus()
		} else {
			m.levelsTable.Blur()
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "n":
			m.moveReport(1)
			return m, nil
		case "p":
			m.moveReport(-1)
			return m, nil
		case "r":
			m.refresh()
			m.updateLayout()
			return m, nil
		case "g", "home":
			if m.activeTab == tabLevels {
				m.levelsTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabLevels {
				m.levelsTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabLevels {
				var cmd tea.Cmd
				m.levelsTable, cmd = m.levelsTable.Update(msg)
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	m.levelsTable.SetWidth(m.width)
	m.levelsTable.SetHeight(maxInt(1, vpHeight-1))
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabLevels {
		m.levelsTable.Focus()
	} else {
		m.levelsTable.Blur()
	}
}

func (m *Model) moveReport(delta int) {
	if len(m.reports) == 0 {
		return
	}
	next := m.current + delta
	if next < 0 {
		next = len(m.reports) - 1
	}
	if next >= len(m.reports) {
		next = 0
	}
	m.current = next
	m.rebuildLevelsTable()
	m.renderTabContents()
}

func (m *Model) refresh() {
	reports, err := m.store.List(context.Background())
	if err != nil {
		m.errMsg = err.Error()
		m.reports = nil
		m.current = 0
		m.renderTabContents()
		return
	}
	m.errMsg = ""
	m.reports = reports
	if m.current >= len(m.reports) {
		m.current = maxInt(0, len(m.reports)-1)
	}
	m.rebuildLevelsTable()
	m.renderTabContents()
}

func (m *Model) payload() (report.Payload, bool) {
	if len(m.reports) == 0 {
		return report.Payload{}, false
	}
	return m.reports[m.current].Payload, true
}

func (m *Model) rebuildLevelsTable() {
	p, ok := m.payload()
	if !ok {
		m.levelsTable = buildLevelsTable(report.Payload{}, 1)
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.levelsTable = buildLevelsTable(p, maxInt(1, bodyHeight-1))
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	summary := padLines(m.renderReportSummary(), m.width)
	return tabs + "\n" + summary
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderReportSummary() string {
	if len(m.reports) == 0 {
		return headerStyle.Render("Queue is empty.")
	}
	p := m.reports[m.current].Payload
	summary := fmt.Sprintf("Report %d/%d  game=%s  session=%s  at=%s",
		m.current+1, len(m.reports), p.GameID, p.SessionID, p.Timestamp)
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderHelp() string {
	return headerStyle.Render("Nav: left/right  Report: n/p  Scroll: up/down/pgup/pgdn  Reload: r  Quit: q")
}

func (m *Model) renderFooter() string {
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderBody(height int) string {
	if m.activeTab == tabLevels {
		p, ok := m.payload()
		switch {
		case !ok:
			return fitLines("Queue is empty.", m.width, height)
		case len(p.PerLevelAnalytics) == 0:
			return fitLines("No levels recorded.", m.width, height)
		default:
			view := tableMutedStyle.Render(m.levelsTable.View())
			return fitLines(view, m.width, height)
		}
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	p, ok := m.payload()
	if !ok {
		for i := range m.viewports {
			m.viewports[i].SetContent("Queue is empty.")
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(p, width))
	m.viewports[tabAttempts].SetContent(renderAttempts(p))
}

func renderOverview(p report.Payload, width int) string {
	attempts := 0
	wins := 0
	for _, agg := range p.PerLevelAnalytics {
		attempts += agg.Attempts
		wins += agg.Wins
	}
	cards := []string{
		metricCard("Levels", strconv.Itoa(len(p.PerLevelAnalytics))),
		metricCard("Attempts", strconv.Itoa(attempts)),
		metricCard("Wins", strconv.Itoa(wins)),
		metricCard("Total XP", strconv.FormatInt(p.RewardEarnedTotal, 10)),
	}
	var grid string
	if width < 80 {
		grid = strings.Join(cards, "\n")
	} else {
		grid = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}
	var buf bytes.Buffer
	if err := report.RenderSummary(&buf, p); err != nil {
		return fmt.Sprintf("Failed to render summary: %v", err)
	}
	return strings.TrimRight(grid+"\n\n"+buf.String(), "\n")
}

func renderAttempts(p report.Payload) string {
	var buf bytes.Buffer
	if err := report.RenderAttempts(&buf, p); err != nil {
		return fmt.Sprintf("Failed to render attempts: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func buildLevelsTable(p report.Payload, height int) table.Model {
	columns := []table.Column{
		{Title: "Level", Width: 20},
		{Title: "Attempts", Width: 8},
		{Title: "Wins", Width: 5},
		{Title: "Losses", Width: 6},
		{Title: "Best (ms)", Width: 10},
		{Title: "Avg (ms)", Width: 10},
		{Title: "XP", Width: 8},
	}
	ids := report.TopLevelsByAttempts(p.PerLevelAnalytics, len(p.PerLevelAnalytics))
	rows := make([]table.Row, 0, len(ids))
	for _, id := range ids {
		agg := p.PerLevelAnalytics[id]
		rows = append(rows, table.Row{
			id,
			strconv.Itoa(agg.Attempts),
			strconv.Itoa(agg.Wins),
			strconv.Itoa(agg.Losses),
			strconv.FormatInt(agg.BestTimeMs, 10),
			strconv.FormatInt(agg.AverageTimeMs, 10),
			strconv.FormatInt(agg.TotalXP, 10),
		})
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(height),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true)
	t.SetStyles(styles)
	return t
}

func fitLines(content string, width, height int) string {
	lines := strings.Split(content, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, line := range lines {
		lines[i] = truncateLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLines(content string, width int) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lineWidth := lipgloss.Width(line)
		if lineWidth < width {
			lines[i] = line + strings.Repeat(" ", width-lineWidth)
		}
	}
	return strings.Join(lines, "\n")
}

func truncateLine(line string, width int) string {
	if width <= 0 {
		return line
	}
	if lipgloss.Width(line) <= width {
		return line
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(line)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
