package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HaPhanBaoMinh/vmanager/internal/batch"
	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
	"github.com/HaPhanBaoMinh/vmanager/internal/monitor"
	"github.com/HaPhanBaoMinh/vmanager/internal/ui/styles"
	"github.com/HaPhanBaoMinh/vmanager/internal/ui/widgets"
)

const (
	DefaultRefresh = 30 * time.Second
	tickEvery      = time.Second
)

type Options struct {
	Node    string
	Refresh time.Duration
	Logger  *slog.Logger
}

// Model runs one thing at a time: while a fetch or an action is in flight
// the state is Loading and keys other than ctrl+c are dropped.
type Model struct {
	ctx    context.Context
	repo   domain.FleetRepo
	runner domain.CommandRunner
	opts   Options
	logger *slog.Logger

	state monitor.State
	keys  keyMap
	help  help.Model

	width, height int
	now           func() time.Time
}

type tickMsg time.Time

type fleetMsg struct {
	recs []domain.VMRecord
	err  error
}

type actionDoneMsg struct {
	action  domain.Action
	id      int
	summary domain.RunSummary
	runErr  error

	recs    []domain.VMRecord
	listErr error
}

func New(repo domain.FleetRepo, runner domain.CommandRunner, opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return Model{
		ctx:    context.Background(),
		repo:   repo,
		runner: runner,
		opts:   opts,
		logger: opts.Logger,
		state:  monitor.New(10),
		keys:   defaultKeys(),
		help:   help.New(),
		width:  100,
		height: 17,
		now:    time.Now,
	}
}

// Err is the failure that ended the loop, if any.
func (m Model) Err() error { return m.state.Err }

// State exposes the current monitor state, mostly for tests.
func (m Model) State() monitor.State { return m.state }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(tickEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// load re-aggregates the fleet with detail fields for the side pane.
func (m Model) load() tea.Cmd {
	repo, ctx, node := m.repo, m.ctx, m.opts.Node
	return func() tea.Msg {
		recs, err := repo.ListFleet(ctx, node, true)
		return fleetMsg{recs: recs, err: err}
	}
}

// runAction sends the single-id batch, then re-aggregates so the list
// reflects what the server did.
func (m Model) runAction(p monitor.Pending) tea.Cmd {
	repo, runner, ctx, node := m.repo, m.runner, m.ctx, m.opts.Node
	return func() tea.Msg {
		sum, err := runner.Run(ctx, domain.RunRequest{
			Node:                node,
			Action:              p.Action,
			Expr:                strconv.Itoa(p.ID),
			RequireConfirmation: p.Action.Destructive(),
			// the dialog already asked
			Confirm: func(domain.Action, []int) (string, error) { return batch.ConfirmToken, nil },
		})
		recs, listErr := repo.ListFleet(ctx, node, true)
		return actionDoneMsg{action: p.Action, id: p.ID, summary: sum, runErr: err, recs: recs, listErr: listErr}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.state = m.state.SetVisible(listRows(m.height))
		return m, nil

	case fleetMsg:
		if msg.err != nil {
			m.logger.Error("fleet refresh failed", "node", m.opts.Node, "error", msg.err)
			m.state = m.state.Fail(msg.err)
			return m, tea.Quit
		}
		now := m.now()
		m.state = m.state.WithRecords(msg.recs, now)
		m.state.Status = "refreshed " + now.Format("15:04:05")
		return m, nil

	case actionDoneMsg:
		return m.actionDone(msg)

	case tickMsg:
		if m.state.RefreshDue(m.now(), m.opts.Refresh) {
			m.state = m.state.Loading("refreshing...")
			return m, tea.Batch(m.load(), tick())
		}
		return m, tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) actionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	if msg.listErr != nil {
		m.logger.Error("fleet refresh after action failed", "action", msg.action, "vmid", msg.id, "error", msg.listErr)
		m.state = m.state.Fail(msg.listErr)
		return m, tea.Quit
	}
	now := m.now()
	m.state = m.state.WithRecords(msg.recs, now)

	title := fmt.Sprintf("%s VM %d failed", msg.action, msg.id)
	switch {
	case msg.runErr != nil:
		m.state = m.state.ShowMessage(title, msg.runErr.Error())
	case msg.summary.Failed > 0:
		detail := "request failed"
		if len(msg.summary.Outcomes) > 0 && msg.summary.Outcomes[0].Detail != "" {
			detail = msg.summary.Outcomes[0].Detail
		}
		m.state = m.state.ShowMessage(title, detail)
	default:
		m.state.Status = fmt.Sprintf("%s VM %d ok at %s", msg.action, msg.id, now.Format("15:04:05"))
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Force) {
		m.state = m.state.Exit()
		return m, tea.Quit
	}

	switch m.state.Mode {
	case monitor.ModeLoading, monitor.ModeExiting:
		return m, nil

	case monitor.ModeDialog:
		yes := msg.String() == "y" || msg.String() == "Y"
		var pending *monitor.Pending
		m.state, pending = m.state.Answer(yes)
		if pending == nil {
			return m, nil
		}
		if pending.Quit {
			return m, tea.Quit
		}
		m.logger.Info("running action", "action", pending.Action, "vmid", pending.ID)
		m.state = m.state.Loading(fmt.Sprintf("%s VM %d...", pending.Action, pending.ID))
		return m, m.runAction(*pending)
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.state = m.state.Move(-1)
	case key.Matches(msg, m.keys.Down):
		m.state = m.state.Move(1)
	case key.Matches(msg, m.keys.Home):
		m.state = m.state.Home()
	case key.Matches(msg, m.keys.End):
		m.state = m.state.End()
	case key.Matches(msg, m.keys.Refresh):
		m.state = m.state.Loading("refreshing...")
		return m, m.load()
	case key.Matches(msg, m.keys.Start):
		m.state = m.state.AskAction(domain.ActionStart)
	case key.Matches(msg, m.keys.Stop):
		m.state = m.state.AskAction(domain.ActionStop)
	case key.Matches(msg, m.keys.Reboot):
		m.state = m.state.AskAction(domain.ActionReboot)
	case key.Matches(msg, m.keys.Destroy):
		m.state = m.state.AskAction(domain.ActionDestroy)
	case key.Matches(msg, m.keys.Quit):
		m.state = m.state.AskQuit()
	}
	return m, nil
}

func (m Model) View() string {
	if m.state.Mode == monitor.ModeExiting {
		return ""
	}
	if m.state.Mode == monitor.ModeDialog {
		return m.renderDialog()
	}

	total, running, stopped := m.state.Counts()
	head := styles.Header.Render(fmt.Sprintf(
		"vmanager │ node: %s  vms: %d  running: %d  stopped: %d  │ refresh every %s",
		m.opts.Node, total, running, stopped, m.opts.Refresh))

	listW, detailW := splitPanes(m.width)
	body := m.renderList(listW)
	if detailW > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.renderDetail(detailW))
	}

	status := styles.Faint.Render(m.state.Status)
	if m.state.Mode == monitor.ModeLoading {
		status = styles.Warn.Render(m.state.Status)
	}
	footer := styles.Footer.Render(m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, head, body, status, footer)
}

func (m Model) renderList(width int) string {
	wID, wName, wState, wCPU, wBar, wMem := listColWidths(width - 2)
	row := func(id, name, state, cpu, bar, mem string) string {
		return fmt.Sprintf("%-*s %-*s %-*s %*s %-*s %*s",
			wID, id, wName, widgets.Truncate(name, wName), wState, state, wCPU, cpu, wBar, bar, wMem, mem)
	}

	lines := []string{styles.Title.Render(row("VMID", "NAME", "STATE", "CPU", "", "MEM"))}
	if len(m.state.Records) == 0 {
		lines = append(lines, styles.Faint.Render("no VMs on this node"))
	}
	for i, r := range m.state.Window() {
		line := row(
			strconv.Itoa(r.ID),
			r.Name,
			string(r.State),
			widgets.Percent(r.CPU),
			widgets.Bar(r.CPU, wBar),
			widgets.Bytes(r.MaxMem),
		)
		if m.state.Offset+i == m.state.Cursor {
			line = styles.Selected.Render(line)
		} else {
			line = styles.State(r.State).Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.NewStyle().Width(width).Padding(0, 1).Render(strings.Join(lines, "\n"))
}

func (m Model) renderDetail(width int) string {
	r, ok := m.state.Selected()
	if !ok {
		return styles.Box.Width(width - 2).Render("nothing selected")
	}
	barW := clamp(width-20, 6, 30)
	field := func(label, value string) string {
		return styles.Label.Render(label) + value
	}

	lines := []string{
		styles.Title.Render(fmt.Sprintf("%d  %s", r.ID, r.Name)),
		field("state", styles.State(r.State).Render(string(r.State))+styles.Faint.Render(rawSignals(r))),
		"",
		field("cpu", fmt.Sprintf("%s %s of %d", widgets.Bar(r.CPU, barW), widgets.Percent(r.CPU), r.CPUs)),
		field("memory", fmt.Sprintf("%s %s", widgets.Bar(r.MemRatio(), barW), widgets.Usage(r.Mem, r.MaxMem))),
		field("disk", widgets.Usage(r.Disk, r.MaxDisk)),
		field("uptime", widgets.Uptime(r.Uptime)),
		"",
		field("bridge", r.Bridge.String()),
		field("ip", r.IPv4.String()),
		field("storage", r.Storage.String()),
		field("config", widgets.Truncate(r.ConfigPath.String(), width-13)),
		"",
		field("trend", widgets.Spark(r.CPUTrend.Samples, barW+6)),
	}
	return styles.Box.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func rawSignals(r domain.VMRecord) string {
	if r.QMPStatus == "" || r.QMPStatus == r.Status {
		return ""
	}
	return fmt.Sprintf("  (status %s, qmp %s)", r.Status, r.QMPStatus)
}

func (m Model) renderDialog() string {
	d := m.state.Dialog
	box := styles.Dialog
	if d.Action.Destructive() {
		box = styles.DialogDanger
	}

	hint := "[y] yes  [any other key] no"
	if d.Kind == monitor.DialogMessage {
		hint = "press any key"
		box = styles.DialogDanger
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render(d.Title),
		"",
		d.Body,
		"",
		styles.Faint.Render(hint),
	)
	return lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		box.Width(clamp(m.width/2, 30, 70)).Render(content),
	)
}
