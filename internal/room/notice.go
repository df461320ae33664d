package room

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Severity classifies a notice.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityError:
		return "error"
	}
	return "unknown"
}

// Notice is a transient status line. A zero Timeout keeps it until replaced.
type Notice struct {
	Text     string
	Severity Severity
	Timeout  time.Duration
}

// noticeExpiredMsg dismisses the notice with the same sequence number.
type noticeExpiredMsg struct{ seq uint64 }

// notify replaces the current notice and schedules its dismissal.
func (c *Controller) notify(text string, sev Severity, timeout time.Duration) tea.Cmd {
	c.noticeSeq++
	c.notice = &Notice{Text: text, Severity: sev, Timeout: timeout}
	if timeout <= 0 {
		return nil
	}
	seq := c.noticeSeq
	return tea.Tick(timeout, func(time.Time) tea.Msg { return noticeExpiredMsg{seq: seq} })
}

// Notify shows a notice with the default dismissal timeout.
func (c *Controller) Notify(text string, sev Severity) tea.Cmd {
	return c.notify(text, sev, c.opts.NoticeTimeout)
}

func (c *Controller) info(text string) tea.Cmd {
	return c.notify(text, SeverityInfo, c.opts.NoticeTimeout)
}

func (c *Controller) success(text string) tea.Cmd {
	return c.notify(text, SeveritySuccess, c.opts.NoticeTimeout)
}

func (c *Controller) fail(text string) tea.Cmd {
	return c.notify(text, SeverityError, c.opts.NoticeTimeout)
}

// clearNotice drops the notice and invalidates pending dismissals.
func (c *Controller) clearNotice() {
	c.noticeSeq++
	c.notice = nil
}

func (c *Controller) expireNotice(msg noticeExpiredMsg) {
	if msg.seq == c.noticeSeq {
		c.notice = nil
	}
}
