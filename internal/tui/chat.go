package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/naveenspark/sidechat/internal/room"
	"github.com/naveenspark/sidechat/pkg/domain"
)

// cursorBlinkMsg advances the input cursor and name sweep.
type cursorBlinkMsg struct{}

func cursorBlinkCmd() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(time.Time) tea.Msg {
		return cursorBlinkMsg{}
	})
}

// slashCommand is an input command offered in the hint popup.
type slashCommand struct {
	name string
	args string
	desc string
}

var slashCommands = []slashCommand{
	{"/watch", "<url|id>", "open the chat for a video"},
	{"/join", "", "join this chat"},
	{"/leave", "", "leave this chat"},
	{"/reconnect", "", "reopen live updates"},
	{"/copy", "", "copy the video link"},
	{"/open", "", "open the video in the browser"},
	{"/login", "", "sign in through the browser"},
	{"/logout", "", "sign out"},
	{"/quit", "", "exit sidechat"},
}

// chatModel is the message log and input line. It holds only view state;
// everything it renders comes from the room controller.
type chatModel struct {
	input        string
	inputFocused bool
	scroll       int // lines scrolled up from bottom (0 = at bottom)
	animFrame    int
	width        int
	height       int
}

func newChatModel() chatModel {
	return chatModel{inputFocused: true}
}

// updateNav handles key events when the input is not focused (scroll mode).
func (m chatModel) updateNav(msg tea.KeyMsg, total int) chatModel {
	switch msg.String() {
	case "j", "down":
		if m.scroll > 0 {
			m.scroll--
		}
	case "k", "up":
		if m.scroll < total*3 {
			m.scroll++
		}
	case "G", "end":
		m.scroll = 0
	case "enter", "i":
		m.inputFocused = true
		m.animFrame = 0
	case "/":
		m.inputFocused = true
		m.animFrame = 0
		m.input = "/"
	}
	return m
}

// matchingCommands returns the slash commands that complete the input.
func (m chatModel) matchingCommands() []slashCommand {
	if !m.inputFocused || !strings.HasPrefix(m.input, "/") || strings.ContainsAny(m.input, " \n") {
		return nil
	}
	return lo.Filter(slashCommands, func(c slashCommand, _ int) bool {
		return strings.HasPrefix(c.name, m.input)
	})
}

// screen is what the chat view renders from.
type screen struct {
	state    room.State
	hasRoom  bool
	messages []domain.Message
	selfID   uuid.UUID
	selfName string
	canSend  bool
	sending  bool
	signedIn bool
	now      time.Time
}

// View renders the message area, command hints and input line.
func (m chatModel) View(s screen) string {
	var b strings.Builder

	hints := m.matchingCommands()
	chrome := 1 + strings.Count(m.input, "\n") + len(hints)
	viewportHeight := m.height - chrome
	if viewportHeight < 2 {
		viewportHeight = 2
	}

	if placeholder := emptyText(s); placeholder != "" {
		padLines(viewportHeight-1, &b)
		b.WriteString(" " + dimStyle.Render(placeholder) + "\n")
	} else {
		b.WriteString(m.renderMessages(s, viewportHeight))
	}

	for _, c := range hints {
		line := "   " + accentStyle.Render(fmt.Sprintf("%-11s", c.name)) + " " + metaStyle.Render(fmt.Sprintf("%-9s", c.args)) + " " + dimStyle.Render(c.desc)
		b.WriteString(line + "\n")
	}

	b.WriteString(m.renderInput(s))
	return b.String()
}

// emptyText is the placeholder shown instead of the message list, or "".
func emptyText(s screen) string {
	switch {
	case s.state == room.StateEmpty:
		return "no video open · type /watch <url> or start sidechat from the extension"
	case s.state == room.StateResolving:
		return "opening chat…"
	case !s.hasRoom:
		return "no chat for this video yet · sign in to start one"
	case len(s.messages) == 0:
		return "no messages yet · be the first"
	}
	return ""
}

func (m chatModel) renderInput(s screen) string {
	name := s.selfName
	if name == "" {
		name = "you"
	}
	placeholder := "type a message · / for commands"
	switch {
	case !s.signedIn:
		placeholder = "/login to sign in · / for commands"
	case s.sending:
		placeholder = "sending…"
	case !s.canSend && s.hasRoom:
		placeholder = "/join to chat"
	}
	return renderChatInput(name, m.input, placeholder, m.inputFocused, m.animFrame)
}

// renderMessages renders the message log clipped to viewportHeight lines,
// respecting the scroll offset. Newest messages appear at the bottom.
func (m chatModel) renderMessages(s screen, viewportHeight int) string {
	var allLines []string
	for _, msg := range s.messages {
		allLines = append(allLines, strings.Split(m.renderMessage(s, msg), "\n")...)
	}

	total := len(allLines)
	maxScroll := total - viewportHeight
	if maxScroll < 0 {
		maxScroll = 0
	}
	scroll := m.scroll
	if scroll > maxScroll {
		scroll = maxScroll
	}

	end := total - scroll
	start := end - viewportHeight
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	visible := allLines[start:end]
	padLines(viewportHeight-len(visible), &b)
	for _, line := range visible {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// renderMessage renders one message as "time  name · text", wrapping the
// text under itself. May return several newline-separated lines.
func (m chatModel) renderMessage(s screen, msg domain.Message) string {
	self := msg.UserID == s.selfID && s.selfID != uuid.Nil

	ts := fmt.Sprintf("%5s", formatChatTime(msg.CreatedAt, s.now))
	name := truncStr(sanitize(msg.Profile.Name()), 20)
	nameStyle, textStyle := chatNameStyle, chatTextStyle
	if self {
		nameStyle, textStyle = chatSelfNameStyle, chatSelfTextStyle
	}

	prefix := " " + chatTimeStyle.Render(ts) + "  " + nameStyle.Render(name) + chatSepStyle.Render(" · ")
	indent := lipgloss.Width(prefix)
	bodyWidth := m.width - indent - 1
	text := sanitize(msg.Text)
	if bodyWidth > 10 {
		text = hardWrap(lipgloss.NewStyle().Width(bodyWidth).Render(text), bodyWidth)
	}

	lines := strings.Split(strings.TrimRight(text, " \n"), "\n")
	var b strings.Builder
	for i, line := range lines {
		if i == 0 {
			b.WriteString(prefix)
		} else {
			b.WriteByte('\n')
			b.WriteString(strings.Repeat(" ", indent))
		}
		b.WriteString(textStyle.Render(strings.TrimRight(line, " ")))
	}
	return b.String()
}
