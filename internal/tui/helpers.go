package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// truncStr truncates a string to maxLen runes, appending an ellipsis if needed.
func truncStr(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return "…"
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}

// sanitize makes remote text safe to print: escape sequences are stripped,
// tabs become spaces and other control characters are dropped. Newlines are
// kept so multi-line messages still wrap as written.
func sanitize(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case unicode.IsControl(r), r == utf8.RuneError:
			return -1
		}
		return r
	}, s)
}

// formatChatTime formats a message timestamp as a short wall-clock time
// (H:MM) for today, or "Nd ago" for older messages.
func formatChatTime(t, now time.Time) string {
	t = t.Local()
	y1, mo1, d1 := t.Date()
	y2, mo2, d2 := now.Local().Date()
	if y1 == y2 && mo1 == mo2 && d1 == d2 {
		return fmt.Sprintf("%d:%02d", t.Hour(), t.Minute())
	}
	days := int(now.Sub(t).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return fmt.Sprintf("%dd ago", days)
}

// padLines writes blank lines to fill dead space above sparse message lists.
func padLines(n int, b *strings.Builder) {
	for i := 0; i < n; i++ {
		b.WriteByte('\n')
	}
}

// hardWrap scans each line and hard-breaks any that exceed width at the rune boundary.
// This handles long tokens (like URLs) that lipgloss word-wrap can't break.
func hardWrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	var result []string
	for _, line := range lines {
		if lipgloss.Width(line) <= width {
			result = append(result, line)
			continue
		}
		runes := []rune(line)
		for len(runes) > 0 {
			end := len(runes)
			for end > 0 && lipgloss.Width(string(runes[:end])) > width {
				end--
			}
			if end == 0 {
				end = 1
			}
			result = append(result, string(runes[:end]))
			runes = runes[end:]
		}
	}
	return strings.Join(result, "\n")
}
