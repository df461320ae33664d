package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/naveenspark/sidechat/internal/bridge"
	"github.com/naveenspark/sidechat/internal/browser"
	"github.com/naveenspark/sidechat/internal/room"
	"github.com/naveenspark/sidechat/internal/video"
	"github.com/naveenspark/sidechat/pkg/domain"
)

// Options wires the app to the rest of sidechat.
type Options struct {
	Version string
	Session *domain.Session
	// Login signs in, stores the credentials and returns the new session.
	// It runs off the UI goroutine.
	Login func(ctx context.Context) (*domain.Session, error)
	// Logout forgets stored credentials. The app then signs the controller out.
	Logout func() error
	Copy   func(text string) error
	Open   func(url string) error
	Now    func() time.Time
}

// loggedInMsg reports the end of a /login flow.
type loggedInMsg struct {
	session *domain.Session
	err     error
}

func loginCmd(ctx context.Context, login func(context.Context) (*domain.Session, error)) tea.Cmd {
	return func() tea.Msg {
		sess, err := login(ctx)
		return loggedInMsg{session: sess, err: err}
	}
}

// signalMsg delivers a host signal taken from the mailbox.
type signalMsg bridge.Signal

// waitForSignal blocks until the mailbox holds a signal.
func waitForSignal(ctx context.Context, mb *bridge.Mailbox) tea.Cmd {
	return func() tea.Msg {
		s, err := mb.Wait(ctx)
		if err != nil {
			return nil
		}
		return signalMsg(s)
	}
}

// App is the root Bubbletea model: a single chat screen bound to a room
// controller. Host signals arrive through the mailbox.
type App struct {
	ctx     context.Context
	ctrl    *room.Controller
	mailbox *bridge.Mailbox
	opts    Options
	chat    chatModel
	width   int
	height  int
	frame   int // logo shimmer animation frame
	latest  string

	signingIn bool
}

// NewApp creates the TUI application.
func NewApp(ctx context.Context, ctrl *room.Controller, mb *bridge.Mailbox, opts Options) App {
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	if opts.Open == nil {
		opts.Open = browser.Open
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return App{
		ctx:     ctx,
		ctrl:    ctrl,
		mailbox: mb,
		opts:    opts,
		chat:    newChatModel(),
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		shimmerTickCmd(),
		cursorBlinkCmd(),
		a.ctrl.SetSession(a.opts.Session),
		waitForSignal(a.ctx, a.mailbox),
		checkVersion(a.opts.Version),
	)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(1) + notice(1) + help(1)
		a.chat.width = msg.Width
		a.chat.height = msg.Height - 3

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case cursorBlinkMsg:
		a.chat.animFrame++
		return a, cursorBlinkCmd()

	case versionCheckMsg:
		if msg.hasUpdate {
			a.latest = msg.latestVersion
		}
		return a, nil

	case loggedInMsg:
		a.signingIn = false
		if msg.err != nil || msg.session == nil {
			log.Warn().Str("module", "tui").Err(msg.err).Msg("sign-in failed")
			return a, a.ctrl.Notify("sign-in failed", room.SeverityError)
		}
		log.Info().Str("module", "tui").Str("user", msg.session.UserID.String()).Msg("signed in")
		return a, tea.Batch(a.ctrl.SetSession(msg.session), a.ctrl.Notify("signed in", room.SeveritySuccess))

	case signalMsg:
		a.mailbox.Ack(msg.Seq)
		log.Info().Str("module", "tui").Str("video", msg.VideoID).Uint64("seq", msg.Seq).Msg("host signal")
		a.chat.scroll = 0
		return a, tea.Batch(a.ctrl.SwitchVideo(msg.VideoID), waitForSignal(a.ctx, a.mailbox))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.ctrl.Close()
			return a, tea.Quit
		}
		a.chat.animFrame = 0
		if a.chat.inputFocused {
			a, cmd = a.updateInput(msg)
		} else {
			if msg.String() == "q" {
				a.ctrl.Close()
				return a, tea.Quit
			}
			a.chat = a.chat.updateNav(msg, len(a.ctrl.Messages()))
		}

	default:
		cmd = a.ctrl.Update(msg)
	}

	a.restoreDraft()
	return a, cmd
}

// restoreDraft puts the text of a failed send back into an empty input.
func (a *App) restoreDraft() {
	if a.chat.input != "" {
		return
	}
	if text, ok := a.ctrl.TakeDraft(); ok {
		a.chat.input = text
	}
}

// updateInput handles key events when the text input is focused.
func (a App) updateInput(msg tea.KeyMsg) (App, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.chat.inputFocused = false
		return a, nil

	case "tab":
		if hints := a.chat.matchingCommands(); len(hints) > 0 {
			a.chat.input = hints[0].name + " "
		}
		return a, nil

	case "shift+enter", "alt+enter":
		a.chat.input = editRune(a.chat.input, "\n", false)
		return a, nil

	case "enter":
		line := strings.TrimSpace(a.chat.input)
		if line == "" {
			return a, nil
		}
		if strings.HasPrefix(line, "/") {
			a.chat.input = ""
			return a.runCommand(line)
		}
		cmd, err := a.ctrl.Send(a.chat.input)
		if err == nil {
			a.chat.input = ""
			a.chat.scroll = 0
		}
		return a, cmd

	case "backspace":
		a.chat.input = editRune(a.chat.input, "", true)
		return a, nil
	}

	a.chat.input = editRune(a.chat.input, keyText(msg), false)
	return a, nil
}

// runCommand executes a slash command typed in the input.
func (a App) runCommand(line string) (App, tea.Cmd) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/watch":
		if arg == "" {
			return a, a.ctrl.Notify("usage: /watch <url or video id>", room.SeverityError)
		}
		id, ok := video.ParseID(arg)
		if !ok {
			return a, a.ctrl.Notify("not a video link", room.SeverityError)
		}
		a.mailbox.Post(id)
		return a, nil

	case "/join":
		return a, a.ctrl.Join()

	case "/leave":
		return a, a.ctrl.Leave()

	case "/reconnect":
		return a, a.ctrl.Reconnect()

	case "/copy":
		id := a.ctrl.VideoID()
		if id == "" {
			return a, a.ctrl.Notify("open a video first", room.SeverityError)
		}
		if err := a.opts.Copy(video.WatchURL(id)); err != nil {
			log.Warn().Str("module", "tui").Err(err).Msg("clipboard write failed")
			return a, a.ctrl.Notify("could not copy the link", room.SeverityError)
		}
		return a, a.ctrl.Notify("copied video link", room.SeveritySuccess)

	case "/open":
		id := a.ctrl.VideoID()
		if id == "" {
			return a, a.ctrl.Notify("open a video first", room.SeverityError)
		}
		if err := a.opts.Open(video.WatchURL(id)); err != nil {
			log.Warn().Str("module", "tui").Err(err).Msg("browser open failed")
			return a, a.ctrl.Notify("could not open the browser", room.SeverityError)
		}
		return a, nil

	case "/login":
		switch {
		case a.ctrl.Session() != nil:
			return a, a.ctrl.Notify("already signed in", room.SeverityInfo)
		case a.opts.Login == nil:
			return a, a.ctrl.Notify("run: sidechat login", room.SeverityInfo)
		case a.signingIn:
			return a, nil
		}
		a.signingIn = true
		return a, tea.Batch(
			a.ctrl.Notify("finish signing in in your browser…", room.SeverityInfo),
			loginCmd(a.ctx, a.opts.Login),
		)

	case "/logout":
		if a.ctrl.Session() == nil {
			return a, a.ctrl.Notify("not signed in", room.SeverityInfo)
		}
		if a.opts.Logout != nil {
			if err := a.opts.Logout(); err != nil {
				log.Error().Str("module", "tui").Err(err).Msg("logout failed")
				return a, a.ctrl.Notify("could not sign out", room.SeverityError)
			}
		}
		return a, tea.Batch(a.ctrl.SetSession(nil), a.ctrl.Notify("signed out", room.SeveritySuccess))

	case "/quit":
		a.ctrl.Close()
		return a, tea.Quit
	}
	return a, a.ctrl.Notify("unknown command "+name, room.SeverityError)
}

// screen snapshots the controller for rendering.
func (a App) screen() screen {
	s := screen{
		state:    a.ctrl.State(),
		hasRoom:  a.ctrl.Room() != nil,
		messages: a.ctrl.Messages(),
		canSend:  a.ctrl.CanSend(),
		sending:  a.ctrl.Sending(),
		now:      a.opts.Now(),
	}
	if sess := a.ctrl.Session(); sess != nil {
		s.signedIn = true
		s.selfID = sess.UserID
		s.selfName = a.ctrl.Me().Name()
		if a.ctrl.Me() == nil && sess.Email != "" {
			s.selfName = sess.Email
		}
	}
	return s
}

// View renders the whole screen.
func (a App) View() string {
	s := a.screen()
	header := a.renderHeader(s)
	body := truncateToHeight(a.chat.View(s), a.chat.height+strings.Count(a.chat.input, "\n")+1)
	return fmt.Sprintf("%s\n%s\n%s\n%s", header, strings.TrimRight(body, "\n"), a.renderNotice(), a.renderHelp())
}

func (a App) renderHeader(s screen) string {
	left := " " + renderShimmerLogo(a.frame) + "  "
	switch {
	case s.state == room.StateEmpty:
		left += dimStyle.Render("no video")
	default:
		label := a.ctrl.VideoID()
		if r := a.ctrl.Room(); r != nil && r.Title != "" {
			label = truncStr(sanitize(r.Title), 40)
		}
		left += normalStyle.Render("▶ " + label)
		if a.ctrl.Live() {
			left += "  " + successStyle.Render("● live")
		}
	}

	var right string
	switch {
	case !s.signedIn:
		right = dimStyle.Render("signed out")
	default:
		right = normalStyle.Render(truncStr(sanitize(s.selfName), 24))
		switch {
		case a.ctrl.Joining():
			right += "  " + goldStyle.Render("joining…")
		case a.ctrl.Membership() != nil:
			right += "  " + memberStyle.Render("member")
		}
	}
	right += " "

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (a App) renderNotice() string {
	n, ok := a.ctrl.Notice()
	if !ok {
		return ""
	}
	return " " + noticeStyle(n.Severity).Render(n.Text)
}

func (a App) renderHelp() string {
	var help string
	if a.chat.inputFocused {
		help = " " + helpEntry("enter", "send") + "  " + helpEntry("/", "commands") + "  " + helpEntry("esc", "nav") + "  " + helpEntry("ctrl+c", "quit")
	} else {
		help = " " + helpEntry("j/k", "scroll") + "  " + helpEntry("enter", "type") + "  " + helpEntry("/", "command") + "  " + helpEntry("q", "quit")
	}
	if a.latest != "" {
		help += "  " + goldStyle.Render(a.latest+" available")
	}
	return help
}
