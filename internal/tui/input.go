package tui

import (
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/sidechat/internal/room"
)

// maxInputLen is the maximum number of runes allowed in the chat input.
const maxInputLen = room.MaxMessageLength

// keyText returns the text a keystroke types, or "" for named keys.
// Pasted text arrives as a single multi-rune key.
func keyText(msg tea.KeyMsg) string {
	switch msg.Type {
	case tea.KeyRunes:
		return string(msg.Runes)
	case tea.KeySpace:
		return " "
	}
	return ""
}

// editRune applies typed text or a backspace to text. Typed text is
// clamped so the result never exceeds maxInputLen runes.
func editRune(text string, typed string, backspace bool) string {
	if backspace {
		if text == "" {
			return text
		}
		runes := []rune(text)
		return string(runes[:len(runes)-1])
	}
	if typed == "" {
		return text
	}
	left := maxInputLen - utf8.RuneCountInString(text)
	if left <= 0 {
		return text
	}
	if utf8.RuneCountInString(typed) > left {
		typed = string([]rune(typed)[:left])
	}
	return text + typed
}

// truncateToHeight limits output to maxLines newline-delimited lines.
// Returns the original string if it fits or maxLines is <= 0.
func truncateToHeight(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
			if n >= maxLines {
				return s[:i+1]
			}
		}
	}
	return s
}

// renderChatInput renders the inline text input with the composer's name,
// a blinking cursor and a placeholder when empty.
func renderChatInput(name, input, placeholder string, focused bool, animFrame int) string {
	const timeIndent = "        " // matches " " + 5-char timestamp + "  "

	sep := chatSepStyle.Render(" · ")
	namePart := renderAnimatedName(name, animFrame)
	if !focused {
		if input == "" {
			return timeIndent + namePart + sep + inputPlaceholderStyle.Render(placeholder)
		}
		return timeIndent + namePart + sep + dimStyle.Render(input)
	}
	cursor := " "
	if (animFrame/4)%2 == 0 {
		cursor = accentStyle.Render("█")
	}
	if input == "" {
		return timeIndent + namePart + sep + cursor
	}
	return timeIndent + namePart + sep + chatComposingStyle.Render(input) + cursor
}
