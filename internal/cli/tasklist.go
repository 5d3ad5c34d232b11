package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/perts/copilot/internal/core"
	"github.com/perts/copilot/internal/integration"
	"github.com/perts/copilot/pkg/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	stepsPanelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	tasksPanelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)

	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
)

type tasklistModel struct {
	width  int
	height int

	load    func() (*core.TeamContext, error)
	toggle  func(teamID, parentID string, complete bool) error
	changes <-chan []string

	tc       *core.TeamContext
	steps    []core.StepStatus
	cursor   int
	selected string
	detail   *core.TasklistView

	loading bool
	notice  string
	err     error
}

// tasklistLoadedMsg carries a reloaded team back to the model.
type tasklistLoadedMsg struct {
	tc  *core.TeamContext
	err error
}

// storeChangedMsg reports store files changed by another process.
type storeChangedMsg struct {
	files []string
}

func newTasklistModel(load func() (*core.TeamContext, error), changes <-chan []string) tasklistModel {
	return tasklistModel{
		load:    load,
		changes: changes,
		loading: true,
	}
}

func (m tasklistModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), waitForChange(m.changes))
}

func (m tasklistModel) loadCmd() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		tc, err := load()
		return tasklistLoadedMsg{tc: tc, err: err}
	}
}

// waitForChange delivers the next store change. It returns nil when there
// is nothing to watch.
func waitForChange(changes <-chan []string) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		files, ok := <-changes
		if !ok {
			return nil
		}
		return storeChangedMsg{files: files}
	}
}

func (m tasklistModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.selectCursor()
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.steps)-1 {
				m.cursor++
				m.selectCursor()
			}
			return m, nil
		case "d":
			m.selectDefault()
			return m, nil
		case "c":
			return m, m.toggleComplete()
		case "r":
			m.loading = true
			return m, m.loadCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case storeChangedMsg:
		m.notice = "reloaded: " + strings.Join(msg.files, ", ") + " changed"
		return m, tea.Batch(m.loadCmd(), waitForChange(m.changes))

	case tasklistLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.apply(msg.tc)
		return m, nil
	}

	return m, nil
}

// apply installs a freshly loaded team, keeping the selected step when it
// still exists and falling back to the default step when it does not.
func (m *tasklistModel) apply(tc *core.TeamContext) {
	m.tc = tc
	v, err := core.BuildView(models.DisplayMenu, tc, "")
	if err != nil {
		m.err = err
		return
	}
	m.steps = v.(core.MenuView).Steps

	if m.selected != "" {
		for i, s := range m.steps {
			if s.Step.ParentLabel == m.selected {
				m.cursor = i
				m.selectCursor()
				return
			}
		}
	}
	m.selectDefault()
}

func (m *tasklistModel) selectDefault() {
	m.cursor = 0
	for i, s := range m.steps {
		if s.Default {
			m.cursor = i
			break
		}
	}
	m.selectCursor()
}

func (m *tasklistModel) selectCursor() {
	m.detail = nil
	m.selected = ""
	if m.cursor < 0 || m.cursor >= len(m.steps) {
		return
	}
	step := m.steps[m.cursor]
	m.selected = step.Step.ParentLabel

	v, err := core.BuildView(models.DisplayTasklist, m.tc, step.Step.ParentLabel)
	if err != nil {
		m.err = err
		return
	}
	if tl, ok := v.(core.TasklistView); ok {
		m.detail = &tl
	}
}

func (m tasklistModel) toggleComplete() tea.Cmd {
	if m.toggle == nil || m.tc == nil || m.cursor >= len(m.steps) {
		return nil
	}
	step := m.steps[m.cursor]
	toggle, load, teamID := m.toggle, m.load, m.tc.TeamID
	return func() tea.Msg {
		if err := toggle(teamID, step.Step.ParentLabel, !step.Complete); err != nil {
			return tasklistLoadedMsg{err: err}
		}
		tc, err := load()
		return tasklistLoadedMsg{tc: tc, err: err}
	}
}

func (m tasklistModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" Copilot ")
	help := helpStyle.Render("j/k: move | d: default step | c: toggle complete | r: reload | q: quit")

	if m.loading && m.tc == nil {
		return fmt.Sprintf("%s\n\n  Loading...\n\n%s", title, help)
	}
	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	left := m.renderSteps()
	right := m.renderTasks()

	availableWidth := m.width - 2
	var body string
	if availableWidth > 90 {
		colWidth := availableWidth / 2
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			stepsPanelStyle.Width(colWidth-4).Render(left),
			tasksPanelStyle.Width(colWidth-4).Render(right))
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		body = lipgloss.JoinVertical(lipgloss.Left,
			stepsPanelStyle.Width(panelWidth).Render(left),
			tasksPanelStyle.Width(panelWidth).Render(right))
	}

	footer := help
	if m.notice != "" {
		footer = helpStyle.Render(m.notice) + "\n" + help
	}
	return fmt.Sprintf("%s %s\n\n%s\n\n%s", title, m.tc.Program.Name, body, footer)
}

func (m tasklistModel) renderSteps() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Steps"))
	b.WriteString("\n\n")
	if len(m.steps) == 0 {
		b.WriteString("  No steps.")
		return b.String()
	}
	for i, s := range m.steps {
		name := s.Step.Name
		if i == m.cursor {
			name = selectedStyle.Render(name)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", stepMark(s), name))
	}
	return b.String()
}

func (m tasklistModel) renderTasks() string {
	var b strings.Builder
	if m.detail == nil {
		b.WriteString(headerStyle.Render("Tasks"))
		return b.String()
	}
	b.WriteString(headerStyle.Render(m.detail.Step.Step.Name))
	b.WriteString("\n\n")
	if m.detail.Step.Complete {
		b.WriteString(completeStyle.Render("Step complete"))
		b.WriteString("\n\n")
	}
	for _, t := range m.detail.Tasks {
		switch t.Task.Type {
		case models.TaskTypeModule:
			b.WriteString(fmt.Sprintf("%s %s\n", progressLabel(t.Progress), t.Task.Title))
		case models.TaskTypeLink:
			b.WriteString(fmt.Sprintf("link %s\n", t.Task.Title))
		default:
			b.WriteString(fmt.Sprintf("     %s\n", t.Task.Title))
		}
	}
	return b.String()
}

var tasklistCmd = &cobra.Command{
	Use:   "tasklist",
	Short: "Interactive task list",
	Long: `Launch an interactive view of the team's steps and their tasks.

The view reloads when another session changes cycles or responses, and
moves to the default step if the selected step disappears.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Loader == nil {
			return fmt.Errorf("loader not initialized")
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var changes <-chan []string
		if WatchDir != "" && len(WatchFiles) > 0 {
			w, err := integration.NewStoreWatcher(WatchDir, WatchFiles, 0, Logger)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
			changes = w.Changes()
		}

		m := newTasklistModel(func() (*core.TeamContext, error) { return loadTeam(ctx) }, changes)
		if ResponseMgr != nil {
			m.toggle = func(teamID, parentID string, complete bool) error {
				_, err := ResponseMgr.MarkStepComplete(teamID, parentID, complete)
				return err
			}
		}

		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			if Logger != nil {
				Logger.Debug("task list exited", zap.Error(err))
			}
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasklistCmd)
}
