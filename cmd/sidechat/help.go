package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/sidechat/pkg/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22d3ee")).
			Bold(true)

	cmdStyle  = lipgloss.NewStyle().Bold(true)
	descStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func printHelp(out io.Writer) {
	tagline := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render("live chat next to whatever you're watching")

	commands := []struct{ cmd, desc string }{
		{"sidechat [url|id]", "Open the chat (interactive TUI)"},
		{"sidechat watch <url|id>", "Switch a running sidechat to a video"},
		{"sidechat login", "Sign in through the browser"},
		{"sidechat logout", "Clear your session"},
		{"sidechat --version", "Show version"},
		{"sidechat help", "You are here"},
	}

	fmt.Fprintf(out, "\n  %s\n  %s\n\n  Commands:\n", titleStyle.Render("s i d e c h a t"), tagline) //nolint:errcheck
	for _, c := range commands {
		fmt.Fprintf(out, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-24s", c.cmd)), descStyle.Render(c.desc)) //nolint:errcheck
	}
	fmt.Fprintf(out, "\n  %s\n\n", descStyle.Render("In the chat, type / to see commands.")) //nolint:errcheck
}

func printSignedIn(out io.Writer, sess *domain.Session) {
	who := sess.Email
	if who == "" {
		who = sess.UserID.String()
	}
	fmt.Fprintf(out, "\n  %s  %s\n", titleStyle.Render("sidechat"), descStyle.Render("signed in as "+who)) //nolint:errcheck
	if !sess.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "  %s\n", descStyle.Render("session valid until "+sess.ExpiresAt.Local().Format("Jan 2 15:04"))) //nolint:errcheck
	}
	fmt.Fprintln(out) //nolint:errcheck
}
