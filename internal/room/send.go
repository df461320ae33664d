package room

import (
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/naveenspark/sidechat/pkg/domain"
)

// MaxMessageLength is the longest message accepted, in characters.
const MaxMessageLength = 2000

var validate = validator.New()

type sendRequest struct {
	Text string `validate:"required,max=2000"`
}

type sentMsg struct {
	gen     uint64
	text    string
	message *domain.Message
	err     error
}

// Send posts text to the active room. A rejected send returns the
// validation error, shows it as a notice and makes no remote call. An
// accepted send returns the command to run; the caller clears its input,
// and on failure the text comes back through TakeDraft.
func (c *Controller) Send(text string) (tea.Cmd, error) {
	body := strings.TrimSpace(text)
	if err := c.checkSend(body); err != nil {
		return c.fail(userText("send messages", err)), err
	}
	c.sending = true
	c.draft, c.hasDraft = "", false

	gen, roomID := c.gen, c.room.ID
	ctx, cancel := c.callContext()
	return func() tea.Msg {
		defer cancel()
		m, err := c.gw.InsertMessage(ctx, roomID, body)
		if err != nil {
			return sentMsg{gen: gen, text: text, err: &RemoteError{Op: "insert message", Err: err}}
		}
		return sentMsg{gen: gen, text: text, message: m}
	}, nil
}

func (c *Controller) checkSend(body string) error {
	if c.session == nil {
		return ErrAuthRequired
	}
	if c.room == nil || c.membership == nil {
		return invalid("join the chat to send messages")
	}
	if err := validate.Struct(sendRequest{Text: body}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
			return invalid("message is too long (max %d characters)", MaxMessageLength)
		}
		return invalid("message is empty")
	}
	if c.sending {
		return invalid("a message is already sending")
	}
	if wait := c.rateLimitRemaining(); wait > 0 {
		return invalid("slow down · try again in %s", wait.Round(100*time.Millisecond))
	}
	return nil
}

// rateLimitRemaining is how long until the next send is allowed.
func (c *Controller) rateLimitRemaining() time.Duration {
	if c.lastSentAt.IsZero() {
		return 0
	}
	return c.opts.RateLimit - c.opts.Now().Sub(c.lastSentAt)
}

func (c *Controller) handleSent(msg sentMsg) tea.Cmd {
	c.sending = false
	if msg.err != nil {
		log.Error().Err(msg.err).Str("module", "room").Msg("send failed")
		c.draft, c.hasDraft = msg.text, true
		if msg.gen != c.gen {
			return nil
		}
		return c.fail(userText("send the message", msg.err))
	}
	c.lastSentAt = c.opts.Now()
	if msg.gen != c.gen || msg.message == nil {
		c.stale("send", msg.gen)
		return nil
	}
	m := *msg.message
	cmd := c.hydrate(&m)
	c.msgs.ApplyInsert(m)
	return cmd
}

// Draft returns text from a failed send waiting to be put back into the input.
func (c *Controller) Draft() (string, bool) { return c.draft, c.hasDraft }

// TakeDraft returns the text of a failed send once.
func (c *Controller) TakeDraft() (string, bool) {
	text, ok := c.draft, c.hasDraft
	c.draft, c.hasDraft = "", false
	return text, ok
}
