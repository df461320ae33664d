package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/naveenspark/sidechat/internal/auth"
	"github.com/naveenspark/sidechat/internal/bridge"
	"github.com/naveenspark/sidechat/internal/browser"
	"github.com/naveenspark/sidechat/internal/config"
	"github.com/naveenspark/sidechat/internal/logging"
	"github.com/naveenspark/sidechat/internal/room"
	"github.com/naveenspark/sidechat/internal/tui"
	"github.com/naveenspark/sidechat/internal/video"
	"github.com/naveenspark/sidechat/pkg/client"
	"github.com/naveenspark/sidechat/pkg/domain"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// invocation is a parsed command line.
type invocation struct {
	command string // run, login, logout, watch, version, help
	videoID string
}

func parseArgs(args []string) (invocation, error) {
	if len(args) == 0 {
		return invocation{command: "run"}, nil
	}
	switch args[0] {
	case "--version", "version", "-v":
		return invocation{command: "version"}, nil
	case "help", "--help", "-h":
		return invocation{command: "help"}, nil
	case "login", "logout":
		if len(args) > 1 {
			return invocation{}, fmt.Errorf("%s takes no arguments", args[0])
		}
		return invocation{command: args[0]}, nil
	case "watch":
		if len(args) != 2 {
			return invocation{}, errors.New("usage: sidechat watch <url|id>")
		}
		id, ok := video.ParseID(args[1])
		if !ok {
			return invocation{}, fmt.Errorf("not a video link: %q", args[1])
		}
		return invocation{command: "watch", videoID: id}, nil
	}
	if len(args) > 1 {
		return invocation{}, errors.New("usage: sidechat [url|id]")
	}
	id, ok := video.ParseID(args[0])
	if !ok {
		return invocation{}, fmt.Errorf("not a video link: %q (see: sidechat help)", args[0])
	}
	return invocation{command: "run", videoID: id}, nil
}

func run(args []string) error {
	inv, err := parseArgs(args)
	if err != nil {
		return err
	}
	switch inv.command {
	case "version":
		fmt.Println("sidechat " + version)
		return nil
	case "help":
		printHelp(os.Stdout)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch inv.command {
	case "login":
		return loginThenChat(ctx, cfg, os.Stdout, browser.Open, runTUI)
	case "logout":
		return runLogout(auth.Store{Path: cfg.TokenFile}, os.Stdout)
	case "watch":
		return runWatch(ctx, cfg, inv.videoID, os.Stdout)
	}
	return runTUI(ctx, cfg, inv.videoID)
}

// loadSession returns the stored token and the session it carries. An
// unreadable or expired token counts as signed out.
func loadSession(store auth.Store, now time.Time) (string, *domain.Session) {
	token := store.Load()
	if token == "" {
		return "", nil
	}
	sess, err := auth.SessionFromToken(token)
	if err != nil {
		log.Warn().Err(err).Str("module", "auth").Msg("ignoring unreadable token")
		return "", nil
	}
	if sess.Expired(now) {
		log.Info().Str("module", "auth").Time("expired_at", sess.ExpiresAt).Msg("token expired")
		return "", nil
	}
	return token, sess
}

func runTUI(ctx context.Context, cfg *config.Config, videoID string) error {
	closeLog, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
	}
	defer closeLog()
	if cfg.FileErr != nil {
		log.Warn().Err(cfg.FileErr).Str("file", cfg.File).Msg("config file ignored")
	}

	store := auth.Store{Path: cfg.TokenFile}
	token, sess := loadSession(store, time.Now())

	c := client.New(cfg.APIURL, token, client.WithRealtimeURL(cfg.RealtimeURL))
	ctrl := room.NewController(c, room.Options{
		FetchLimit:    cfg.FetchLimit,
		RateLimit:     cfg.RateLimit,
		NoticeTimeout: cfg.NoticeTimeout,
		Metadata:      video.Metadata,
	})
	defer ctrl.Close()

	mb := bridge.NewMailbox()
	if cfg.BridgeAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		srv, err := bridge.Start(cfg.BridgeAddr, mb)
		if err != nil {
			// Another instance may own the port; the TUI still works from /watch.
			log.Warn().Err(err).Str("module", "bridge").Msg("bridge disabled")
		} else {
			defer srv.Shutdown() //nolint:errcheck
		}
	}
	if videoID != "" {
		mb.Post(videoID)
	}

	app := tui.NewApp(ctx, ctrl, mb, tui.Options{
		Version: version,
		Session: sess,
		Login:   tuiLogin(cfg, store, c, browser.Open),
		Logout: func() error {
			if _, err := store.Remove(); err != nil {
				return err
			}
			c.SetToken("")
			return nil
		},
	})

	log.Info().Str("version", version).Bool("signed_in", sess != nil).Msg("starting")
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

// signIn runs the browser flow and saves the token it yields.
func signIn(ctx context.Context, cfg *config.Config, store auth.Store, open func(string) error, out io.Writer) (string, *domain.Session, error) {
	token, err := auth.Login(ctx, auth.LoginOptions{
		APIURL:    cfg.APIURL,
		SignInURL: cfg.SignInURL,
		Open:      open,
		Out:       out,
	})
	if err != nil {
		return "", nil, err
	}
	sess, err := auth.SessionFromToken(token)
	if err != nil {
		return "", nil, fmt.Errorf("sign-in returned an unusable token: %w", err)
	}
	if err := store.Save(token); err != nil {
		return "", nil, err
	}
	return token, sess, nil
}

// tuiLogin signs in from inside the running TUI. A valid token saved by a
// `sidechat login` elsewhere is used without opening the browser.
func tuiLogin(cfg *config.Config, store auth.Store, c *client.Client, open func(string) error) func(context.Context) (*domain.Session, error) {
	return func(ctx context.Context) (*domain.Session, error) {
		if token, sess := loadSession(store, time.Now()); sess != nil {
			c.SetToken(token)
			return sess, nil
		}
		// The TUI owns the terminal, so a browser that fails to open ends
		// the flow instead of printing the URL.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		openOrCancel := func(u string) error {
			if err := open(u); err != nil {
				log.Warn().Err(err).Str("module", "auth").Msg("browser open failed")
				cancel()
				return err
			}
			return nil
		}
		token, sess, err := signIn(ctx, cfg, store, openOrCancel, io.Discard)
		if err != nil {
			return nil, err
		}
		c.SetToken(token)
		return sess, nil
	}
}

// loginThenChat signs in and goes straight into the chat.
func loginThenChat(ctx context.Context, cfg *config.Config, out io.Writer, open func(string) error,
	chat func(context.Context, *config.Config, string) error) error {
	if err := runLogin(ctx, cfg, out, open); err != nil {
		return err
	}
	return chat(ctx, cfg, "")
}

func runLogin(ctx context.Context, cfg *config.Config, out io.Writer, open func(string) error) error {
	_, sess, err := signIn(ctx, cfg, auth.Store{Path: cfg.TokenFile}, open, out)
	if err != nil {
		return err
	}
	printSignedIn(out, sess)
	if os.Getenv(auth.TokenEnv) != "" {
		fmt.Fprintf(out, "note: %s is set and takes precedence over the saved token\n", auth.TokenEnv) //nolint:errcheck
	}
	return nil
}

func runLogout(store auth.Store, out io.Writer) error {
	removed, err := store.Remove()
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintln(out, "Already logged out.") //nolint:errcheck
		return nil
	}
	fmt.Fprintln(out, "Logged out.") //nolint:errcheck
	return nil
}

func runWatch(ctx context.Context, cfg *config.Config, videoID string, out io.Writer) error {
	if cfg.BridgeAddr == "" {
		return errors.New("bridge is disabled (bridge_addr is empty)")
	}
	s, err := bridge.Send(ctx, cfg.BridgeAddr, videoID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "sent %s to the running sidechat\n", s.VideoID) //nolint:errcheck
	return nil
}
