package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/dohr-michael/netwatch/internal/enhance"
	"github.com/dohr-michael/netwatch/internal/events"
	wsprotocol "github.com/dohr-michael/netwatch/internal/gateway/ws"
	"github.com/dohr-michael/netwatch/internal/netmetrics"
	"github.com/dohr-michael/netwatch/internal/transcript"
)

// Gateway is the subset of the WS client the TUI drives.
type Gateway interface {
	SendMessage(ctx context.Context, content string) (string, error)
	Transcript(ctx context.Context) (transcript.Snapshot, error)
	Metrics(ctx context.Context) (netmetrics.Snapshot, error)
	Options(ctx context.Context) (wsprotocol.Options, error)
	SelectLanguage(ctx context.Context, lang string) (enhance.Selection, error)
	SelectEnhancement(ctx context.Context, group, value string) (enhance.Selection, error)
	ClearSelection(ctx context.Context) (enhance.Selection, error)
	ReadFrame(ctx context.Context) (wsprotocol.Frame, error)
}

// chrome is the number of rows taken by the status bar, the activity line
// and the bordered input.
const chrome = 5

// frameMsg wraps a projected event so the read loop can be re-armed.
type frameMsg struct {
	msg tea.Msg
}

// MainModel is the root bubbletea model for the netwatch TUI.
type MainModel struct {
	ctx    context.Context
	gw     Gateway
	width  int
	height int

	turns     []transcript.Turn
	index     map[string]int
	failed    map[string]bool
	pendingID string

	sample    *events.MetricsSamplePayload
	selection enhance.Selection
	options   wsprotocol.Options

	notice       string
	noticeErr    bool
	disconnected bool

	input textinput.Model
	vp    viewport.Model
	spin  spinner.Model
	md    *markdown
}

// NewMainModel creates the root model.
func NewMainModel(ctx context.Context, gw Gateway) MainModel {
	in := textinput.New()
	in.Placeholder = "Ask about your network, or /help"
	in.Prompt = "› "
	in.CharLimit = 4000
	in.Focus()

	return MainModel{
		ctx:       ctx,
		gw:        gw,
		width:     80,
		height:    24,
		index:     make(map[string]int),
		failed:    make(map[string]bool),
		selection: enhance.Selection{Language: enhance.DefaultLanguage},
		input:     in,
		vp:        viewport.New(viewport.WithWidth(80), viewport.WithHeight(24-chrome)),
		spin: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(ColorAssistant)),
		),
		md: &markdown{},
	}
}

// Run starts the TUI and blocks until the user quits.
func Run(ctx context.Context, gw Gateway) error {
	p := tea.NewProgram(NewMainModel(ctx, gw), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init loads the initial state and starts listening for events.
func (m MainModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.waitFrame(), m.spin.Tick)
}

// Update processes all incoming messages.
func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.SetWidth(m.width)
		m.vp.SetHeight(max(1, m.height-chrome))
		m.input.SetWidth(max(10, m.width-6))
		m.refresh()
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case frameMsg:
		next, cmd := m.apply(msg.msg)
		return next, tea.Batch(cmd, next.waitFrame())

	case DisconnectedMsg:
		m.disconnected = true
		m.pendingID = ""
		m.setNotice(fmt.Sprintf("disconnected: %v", msg.Err), true)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m.apply(msg)
}

// apply folds a state message into the model.
func (m MainModel) apply(msg tea.Msg) (MainModel, tea.Cmd) {
	switch msg := msg.(type) {
	case SnapshotMsg:
		m.loadSnapshot(msg.Snapshot)

	case TurnAppendedMsg:
		m.addTurn(msg.Turn)

	case StreamStartMsg:
		m.pendingID = msg.TurnID
		m.addTurn(transcript.Turn{ID: msg.TurnID, Role: transcript.RoleAssistant, CreatedAt: time.Now()})

	case StreamDeltaMsg:
		if i, ok := m.index[msg.TurnID]; ok {
			m.turns[i].Text += msg.Content
		}

	case StreamEndMsg:
		if m.pendingID == msg.TurnID {
			m.pendingID = ""
		}

	case AssistantMessageMsg:
		if i, ok := m.index[msg.TurnID]; ok {
			m.turns[i].Text = msg.Content
		}
		if msg.Error != "" {
			m.failed[msg.TurnID] = true
		}

	case PredictionMsg:
		m.setNotice("new network prediction", false)

	case MetricsSampleMsg:
		s := msg.Sample
		m.sample = &s

	case MetricsMsg:
		if m.sample == nil {
			m.sample = sampleOf(msg.Snapshot)
		}
		return m, nil

	case SelectionMsg:
		m.selection = msg.Selection
		return m, nil

	case OptionsMsg:
		m.options = msg.Options
		m.selection = msg.Options.Selection
		return m, nil

	case SentMsg:
		m.setNotice("", false)

	case ErrorMsg:
		m.setNotice(msg.Err.Error(), true)
		return m, nil

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	m.refresh()
	return m, nil
}

func (m MainModel) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "ctrl+d":
		return m, tea.Quit
	case "enter":
		return m.submit()
	case "pgup", "pgdown", "up", "down", "home", "end":
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m MainModel) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		m.setNotice(err.Error(), true)
		return m, nil
	}
	m.input.SetValue("")

	if cmd.Kind != CmdNone {
		return m.runCommand(cmd)
	}
	if m.disconnected {
		m.setNotice("not connected", true)
		return m, nil
	}
	if m.pendingID != "" {
		m.setNotice("still waiting for the previous answer", true)
		m.input.SetValue(line)
		return m, nil
	}
	return m, m.send(line)
}

func (m MainModel) runCommand(cmd Command) (tea.Model, tea.Cmd) {
	gw, ctx := m.gw, m.ctx
	switch cmd.Kind {
	case CmdQuit:
		return m, tea.Quit
	case CmdHelp:
		m.setNotice(strings.ReplaceAll(helpText, "\n", " · "), false)
		return m, nil
	case CmdOptions:
		m.setNotice(m.describeOptions(), false)
		return m, nil
	case CmdClear:
		return m, selectionCmd(func() (enhance.Selection, error) { return gw.ClearSelection(ctx) })
	case CmdLanguage:
		return m, selectionCmd(func() (enhance.Selection, error) { return gw.SelectLanguage(ctx, cmd.Value) })
	case CmdEmotion:
		return m, selectionCmd(func() (enhance.Selection, error) {
			return gw.SelectEnhancement(ctx, cmd.Group, cmd.Value)
		})
	}
	return m, nil
}

func (m MainModel) describeOptions() string {
	if len(m.options.Languages) == 0 {
		return "options not loaded yet"
	}
	parts := []string{"languages: " + strings.Join(m.options.Languages, ", ")}
	for _, g := range m.options.Groups {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(strings.Fields(g.Title)[0]), strings.Join(g.Options, ", ")))
	}
	return strings.Join(parts, " · ")
}

func selectionCmd(call func() (enhance.Selection, error)) tea.Cmd {
	return func() tea.Msg {
		sel, err := call()
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return SelectionMsg{Selection: sel}
	}
}

func (m MainModel) send(content string) tea.Cmd {
	gw, ctx := m.gw, m.ctx
	return func() tea.Msg {
		id, err := gw.SendMessage(ctx, content)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return SentMsg{TurnID: id}
	}
}

func (m MainModel) load() tea.Cmd {
	gw, ctx := m.gw, m.ctx
	return tea.Batch(
		func() tea.Msg {
			snap, err := gw.Transcript(ctx)
			if err != nil {
				return ErrorMsg{Err: err}
			}
			return SnapshotMsg{Snapshot: snap}
		},
		func() tea.Msg {
			snap, err := gw.Metrics(ctx)
			if err != nil {
				return ErrorMsg{Err: err}
			}
			return MetricsMsg{Snapshot: snap}
		},
		func() tea.Msg {
			opts, err := gw.Options(ctx)
			if err != nil {
				return ErrorMsg{Err: err}
			}
			return OptionsMsg{Options: opts}
		},
	)
}

func (m MainModel) waitFrame() tea.Cmd {
	gw, ctx := m.gw, m.ctx
	return func() tea.Msg {
		for {
			frame, err := gw.ReadFrame(ctx)
			if err != nil {
				return DisconnectedMsg{Err: err}
			}
			if msg := Project(frame); msg != nil {
				return frameMsg{msg: msg}
			}
		}
	}
}

// loadSnapshot replaces the transcript with snap, keeping turns that arrived
// through events but are not part of it yet.
func (m *MainModel) loadSnapshot(snap transcript.Snapshot) {
	extra := make([]transcript.Turn, 0)
	seen := make(map[string]bool, len(snap.Turns))
	for _, t := range snap.Turns {
		seen[t.ID] = true
	}
	for _, t := range m.turns {
		if !seen[t.ID] {
			extra = append(extra, t)
		}
	}
	m.turns = nil
	m.index = make(map[string]int)
	for _, t := range append(snap.Turns, extra...) {
		m.addTurn(t)
	}
	if snap.Pending {
		m.pendingID = snap.PendingTurnID
	}
}

func (m *MainModel) addTurn(t transcript.Turn) {
	if t.Hidden {
		return
	}
	if _, ok := m.index[t.ID]; ok {
		return
	}
	m.index[t.ID] = len(m.turns)
	m.turns = append(m.turns, t)
}

func (m *MainModel) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

// refresh re-renders the transcript into the viewport, following the tail
// when the user was already at the bottom.
func (m *MainModel) refresh() {
	follow := m.vp.AtBottom() || m.vp.TotalLineCount() == 0
	m.vp.SetContent(m.renderTranscript())
	if follow {
		m.vp.GotoBottom()
	}
}

func (m MainModel) renderTranscript() string {
	if len(m.turns) == 0 {
		return MutedStyle.Render("No messages yet. Ask how your network is doing.")
	}
	width := max(20, m.width-2)
	body := lipgloss.NewStyle().Width(width)

	blocks := make([]string, 0, len(m.turns))
	for _, t := range m.turns {
		stamp := MutedStyle.Render(t.CreatedAt.Local().Format("15:04"))
		var label, text string
		switch {
		case t.Role == transcript.RoleUser:
			label = UserStyle.Render("You")
			text = body.Render(t.Text)
		case m.failed[t.ID]:
			label = AssistantStyle.Render("Assistant")
			text = ErrorStyle.Render(t.Text)
		case t.ID == m.pendingID:
			label = AssistantStyle.Render("Assistant")
			text = body.Render(t.Text)
		default:
			label = AssistantStyle.Render("Assistant")
			text = m.md.Render(t.Text, width)
		}
		blocks = append(blocks, label+" "+stamp+"\n"+text)
	}
	return strings.Join(blocks, "\n\n")
}

func (m MainModel) statusBar() string {
	parts := []string{AssistantStyle.Render("netwatch")}
	if s := m.sample; s != nil {
		parts = append(parts,
			fmt.Sprintf("↑ %.1f Mbps", s.Upload),
			fmt.Sprintf("↓ %.1f Mbps", s.Download),
			StatusStyle(s.LatencyStatus).Render(fmt.Sprintf("%.0f ms", s.Latency)),
			StatusStyle(s.PacketLossStatus).Render(fmt.Sprintf("loss %.2f%%", s.PacketLoss)),
		)
	} else {
		parts = append(parts, MutedStyle.Render("waiting for metrics"))
	}
	sel := m.selection.Language
	if m.selection.Enhancement != "" {
		sel += " · " + m.selection.Enhancement
	}
	if sel != "" {
		parts = append(parts, sel)
	}
	return StatusBarStyle.Width(m.width).Render(strings.Join(parts, "  "))
}

func (m MainModel) activityLine() string {
	switch {
	case m.pendingID != "":
		return m.spin.View() + MutedStyle.Render(" answering…")
	case m.notice != "" && m.noticeErr:
		return ErrorStyle.Render(m.notice)
	case m.notice != "":
		return MutedStyle.Render(m.notice)
	default:
		return ""
	}
}

// View renders the full screen.
func (m MainModel) View() tea.View {
	content := lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar(),
		m.vp.View(),
		m.activityLine(),
		PromptBorderStyle.Width(max(10, m.width-2)).Render(m.input.View()),
	)
	v := tea.NewView(content)
	v.AltScreen = true
	return v
}

func sampleOf(s netmetrics.Snapshot) *events.MetricsSamplePayload {
	if s.UpdatedAt.IsZero() {
		return nil
	}
	return &events.MetricsSamplePayload{
		Time:             s.UpdatedAt,
		Upload:           s.Bandwidth.Upload,
		Download:         s.Bandwidth.Download,
		Latency:          s.Latency.Current,
		PacketLoss:       s.PacketLoss.Current,
		LatencyStatus:    string(s.LatencyStatus()),
		PacketLossStatus: string(s.PacketLossStatus()),
	}
}
