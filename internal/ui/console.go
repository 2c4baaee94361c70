package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FishWoWater/trellis-blender/internal/protocol"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Sender sends one command to a bridge and returns its response.
type Sender interface {
	Send(ctx context.Context, cmd protocol.Command) (*protocol.Response, error)
}

// Messages for async operations
type responseMsg struct {
	cmd  protocol.Command
	resp *protocol.Response
	err  error
}

// consoleKeyMap defines key bindings for the console
type consoleKeyMap struct {
	Send     key.Binding
	Previous key.Binding
	Next     key.Binding
	Clear    key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k consoleKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Previous, k.Next, k.Clear, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k consoleKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Previous, k.Next},
		{k.Clear, k.Quit},
	}
}

func newConsoleKeyMap() consoleKeyMap {
	return consoleKeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Previous: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "previous"),
		),
		Next: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "next"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// ConsoleModel is an interactive prompt that sends one command per line and
// appends each response to a scrolling transcript. Only one request is in
// flight at a time; input is ignored while waiting.
type ConsoleModel struct {
	sender  Sender
	addr    string
	timeout time.Duration

	Input    textinput.Model
	Output   viewport.Model
	Spinner  spinner.Model
	Help     help.Model
	Keys     consoleKeyMap
	Width    int
	Height   int
	Pending  bool
	Sent     int
	Failures int

	transcript []string
	history    []string
	histPos    int
}

// NewConsoleModel creates a console bound to sender. addr is shown in the
// title bar only.
func NewConsoleModel(sender Sender, addr string, timeout time.Duration) ConsoleModel {
	in := textinput.New()
	in.Placeholder = `create_object {"type": "CUBE"}`
	in.Prompt = PromptStyle.Render("› ")
	in.CharLimit = 0
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = WarningTitleStyle

	width, height := GetTerminalSize()
	m := ConsoleModel{
		sender:  sender,
		addr:    addr,
		timeout: timeout,
		Input:   in,
		Output:  viewport.New(width, outputHeight(height)),
		Spinner: s,
		Help:    help.New(),
		Keys:    newConsoleKeyMap(),
		Width:   width,
		Height:  height,
	}
	m.Output.SetContent("")
	return m
}

func outputHeight(total int) int {
	// title, blank, input, blank, help
	if h := total - 5; h > 3 {
		return h
	}
	return 3
}

// Init implements tea.Model
func (m ConsoleModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m ConsoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width)
		m.Height = msg.Height
		m.Output.Width = m.Width
		m.Output.Height = outputHeight(msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Clear):
			m.transcript = nil
			m.refresh()
			return m, nil
		case m.Pending:
			return m, nil
		case key.Matches(msg, m.Keys.Send):
			return m.submit()
		case key.Matches(msg, m.Keys.Previous):
			m.recall(-1)
			return m, nil
		case key.Matches(msg, m.Keys.Next):
			m.recall(1)
			return m, nil
		}

	case responseMsg:
		m.Pending = false
		m.record(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.Pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	m.Output, cmd = m.Output.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m ConsoleModel) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.Input.Value())
	cmd, err := protocol.ParseCommandLine(line)
	if errors.Is(err, protocol.ErrEmptyLine) {
		return m, nil
	}

	m.history = append(m.history, line)
	m.histPos = len(m.history)
	m.Input.SetValue("")
	m.appendLines(EchoStyle.Render("› " + line))

	if err != nil {
		m.Failures++
		m.appendLines(ErrorMessageStyle.Render("  " + err.Error()))
		return m, nil
	}

	m.Pending = true
	return m, tea.Batch(m.Spinner.Tick, m.send(cmd))
}

func (m ConsoleModel) send(cmd protocol.Command) tea.Cmd {
	sender, timeout := m.sender, m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		resp, err := sender.Send(ctx, cmd)
		return responseMsg{cmd: cmd, resp: resp, err: err}
	}
}

func (m *ConsoleModel) record(msg responseMsg) {
	m.Sent++
	switch {
	case msg.err != nil:
		m.Failures++
		m.appendLines(ErrorMessageStyle.Render(fmt.Sprintf("  %s %v", FailureMarker, msg.err)))
	case !msg.resp.OK():
		m.Failures++
		m.appendLines(ErrorTitleStyle.Render("  "+FailureMarker+" ") + ErrorMessageStyle.Render(msg.resp.Message))
	default:
		m.appendLines(SuccessTitleStyle.Render("  " + SuccessMarker + " " + msg.cmd.Type))
		for _, l := range strings.Split(FormatJSON(msg.resp.Result), "\n") {
			m.appendLines(PayloadStyle.Render("    " + l))
		}
	}
}

// recall moves through previously sent lines; moving past the newest
// clears the input.
func (m *ConsoleModel) recall(delta int) {
	if len(m.history) == 0 {
		return
	}
	m.histPos += delta
	if m.histPos < 0 {
		m.histPos = 0
	}
	if m.histPos >= len(m.history) {
		m.histPos = len(m.history)
		m.Input.SetValue("")
		return
	}
	m.Input.SetValue(m.history[m.histPos])
	m.Input.CursorEnd()
}

func (m *ConsoleModel) appendLines(lines ...string) {
	m.transcript = append(m.transcript, lines...)
	m.refresh()
}

func (m *ConsoleModel) refresh() {
	m.Output.SetContent(strings.Join(m.transcript, "\n"))
	m.Output.GotoBottom()
}

// Transcript returns the rendered history lines.
func (m ConsoleModel) Transcript() []string {
	return m.transcript
}

// View implements tea.Model
func (m ConsoleModel) View() string {
	var b strings.Builder

	title := HeaderTitleStyle.Render("TRELLIS BRIDGE") + HeaderCommandStyle.Render(m.addr)
	stats := EchoStyle.Render(fmt.Sprintf("  %d sent, %d failed", m.Sent, m.Failures))
	b.WriteString(title + stats + "\n\n")
	b.WriteString(m.Output.View() + "\n")

	if m.Pending {
		b.WriteString("  " + m.Spinner.View() + " waiting for response...\n")
	} else {
		b.WriteString(m.Input.View() + "\n")
	}
	b.WriteString("\n" + m.Help.View(m.Keys))
	return b.String()
}

// RunConsole runs the console until the user quits.
func RunConsole(sender Sender, addr string, timeout time.Duration) error {
	p := tea.NewProgram(NewConsoleModel(sender, addr, timeout), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
