package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/sidechat/internal/room"
)

// Shimmer animation for the header logo.
type shimmerTickMsg time.Time

func shimmerTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return shimmerTickMsg(t)
	})
}

// renderShimmerLogo renders "sidechat" as a slow wave of cyan light.
// Deep teal (#123a40) -> bright cyan (#22d3ee).
func renderShimmerLogo(frame int) string {
	const text = "sidechat"
	n := len(text)

	var b strings.Builder
	t := float64(frame)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)

		phase := t*0.1 - x*3.0
		phase += math.Sin(t*0.023) * 2.0

		v := math.Sin(phase)*0.5 + 0.5
		v = math.Pow(v, 1.3)
		v = v*0.75 + math.Sin(t*0.035)*0.12 + 0.18
		if v > 1.0 {
			v = 1.0
		} else if v < 0.05 {
			v = 0.05
		}

		r := clampByte(18 + v*(34-18))
		g := clampByte(58 + v*(211-58))
		bl := clampByte(64 + v*(238-64))

		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
		b.WriteString(s.Render(string(text[i])))
	}
	return b.String()
}

func clampByte(v float64) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	// Help bar
	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22d3ee"))

	memberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34d474")).
			Bold(true)

	goldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4a844"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e06060"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ade80"))

	inputPlaceholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#343c4a"))

	// Chat styles
	chatSelfNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#e4e4ec"))

	chatNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a0a8b8"))

	chatInputNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#22d3ee"))

	chatSelfTextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#c0c4d0"))

	chatTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	chatComposingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#e4e4ec"))

	chatSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#404858"))

	chatTimeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))
)

// noticeStyle returns the style for a notice severity.
func noticeStyle(sev room.Severity) lipgloss.Style {
	switch sev {
	case room.SeverityError:
		return errorStyle
	case room.SeveritySuccess:
		return successStyle
	default:
		return dimStyle
	}
}

// helpEntry renders a key/label pair for the help bar.
func helpEntry(key, label string) string {
	return helpKeyStyle.Render(key) + " " + helpLabelStyle.Render(label)
}

// renderAnimatedName renders the composer's name with a light sweep that
// moves across it on each blink frame.
func renderAnimatedName(name string, frame int) string {
	runes := []rune(name)
	if len(runes) == 0 {
		return ""
	}
	lit := frame % (len(runes) + 4)
	var b strings.Builder
	for i, r := range runes {
		if i == lit {
			b.WriteString(chatSelfNameStyle.Render(string(r)))
			continue
		}
		b.WriteString(chatInputNameStyle.Render(string(r)))
	}
	return b.String()
}
