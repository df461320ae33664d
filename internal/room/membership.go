package room

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/naveenspark/sidechat/pkg/domain"
)

type membershipMsg struct {
	gen, authGen uint64
	membership   *domain.Membership
	autoJoin     bool
	err          error
}

type joinedMsg struct {
	gen, authGen uint64
	room         *domain.Room
	membership   *domain.Membership
	err          error
}

type leftMsg struct {
	gen, authGen uint64
	err          error
}

// refreshMembership looks up the caller's membership in the active room and
// joins it when there is none. Failures only get logged.
func (c *Controller) refreshMembership() tea.Cmd {
	if c.session == nil || c.room == nil {
		return nil
	}
	gen, authGen, roomID := c.gen, c.authGen, c.room.ID
	ctx, cancel := c.callContext()
	return func() tea.Msg {
		defer cancel()
		m, err := c.gw.GetMembership(ctx, roomID)
		if err != nil {
			return membershipMsg{gen: gen, authGen: authGen, err: &RemoteError{Op: "get membership", Err: err}}
		}
		if m != nil {
			return membershipMsg{gen: gen, authGen: authGen, membership: m}
		}
		m, err = c.gw.JoinRoom(ctx, roomID)
		if err != nil {
			return membershipMsg{gen: gen, authGen: authGen, autoJoin: true, err: &RemoteError{Op: "join room", Err: err}}
		}
		return membershipMsg{gen: gen, authGen: authGen, membership: m, autoJoin: true}
	}
}

func (c *Controller) handleMembership(msg membershipMsg) {
	if msg.gen != c.gen || msg.authGen != c.authGen {
		c.stale("membership", msg.gen)
		return
	}
	if msg.err != nil {
		log.Warn().Err(msg.err).Str("module", "room").Bool("auto_join", msg.autoJoin).Msg("membership unavailable")
		c.membership = nil
		return
	}
	if msg.autoJoin {
		log.Info().Str("module", "room").Str("room", c.room.ID.String()).Msg("auto-joined")
	}
	c.membership = msg.membership
}

// Join adds the signed-in user to the active room, creating the room first
// when it does not exist yet.
func (c *Controller) Join() tea.Cmd {
	switch {
	case c.session == nil:
		return c.fail(userText("join the chat", ErrAuthRequired))
	case c.videoID == "":
		return c.fail("open a video first")
	case c.joining:
		return nil
	case c.membership != nil:
		return c.info("you are already in this chat")
	}
	c.joining = true

	gen, authGen, videoID, r := c.gen, c.authGen, c.videoID, c.room
	meta := c.opts.Metadata(videoID)
	ctx, cancel := c.callContext()
	join := func() tea.Msg {
		defer cancel()
		if r == nil {
			found, err := c.gw.FindRoomByVideoID(ctx, videoID)
			if err != nil {
				return joinedMsg{gen: gen, authGen: authGen, err: &RemoteError{Op: "find room", Err: err}}
			}
			if found == nil {
				found, err = c.gw.CreateRoom(ctx, videoID, meta)
				if err != nil {
					return joinedMsg{gen: gen, authGen: authGen, err: &RemoteError{Op: "create room", Err: err}}
				}
			}
			r = found
		}
		m, err := c.gw.JoinRoom(ctx, r.ID)
		if err != nil {
			return joinedMsg{gen: gen, authGen: authGen, room: r, err: &RemoteError{Op: "join room", Err: err}}
		}
		return joinedMsg{gen: gen, authGen: authGen, room: r, membership: m}
	}
	return tea.Batch(c.notify("joining…", SeverityInfo, 0), join)
}

func (c *Controller) handleJoined(msg joinedMsg) tea.Cmd {
	if msg.gen != c.gen || msg.authGen != c.authGen {
		c.stale("join", msg.gen)
		return nil
	}
	c.joining = false
	if msg.err != nil {
		log.Error().Err(msg.err).Str("module", "room").Msg("join failed")
		return c.fail(userText("join the chat", msg.err))
	}
	c.membership = msg.membership
	cmd := c.success("joined the chat")
	if c.room == nil && msg.room != nil {
		c.room = msg.room
		return tea.Batch(cmd, c.load())
	}
	return cmd
}

// Leave removes the signed-in user from the active room. The live
// subscription stays open.
func (c *Controller) Leave() tea.Cmd {
	switch {
	case c.session == nil:
		return c.fail(userText("leave the chat", ErrAuthRequired))
	case c.leaving:
		return nil
	case c.room == nil || c.membership == nil:
		return c.fail("you are not in this chat")
	}
	c.leaving = true

	gen, authGen, roomID := c.gen, c.authGen, c.room.ID
	ctx, cancel := c.callContext()
	return func() tea.Msg {
		defer cancel()
		if err := c.gw.LeaveRoom(ctx, roomID); err != nil {
			return leftMsg{gen: gen, authGen: authGen, err: &RemoteError{Op: "leave room", Err: err}}
		}
		return leftMsg{gen: gen, authGen: authGen}
	}
}

func (c *Controller) handleLeft(msg leftMsg) tea.Cmd {
	if msg.gen != c.gen || msg.authGen != c.authGen {
		c.stale("leave", msg.gen)
		return nil
	}
	c.leaving = false
	if msg.err != nil {
		log.Error().Err(msg.err).Str("module", "room").Msg("leave failed")
		return c.fail(userText("leave the chat", msg.err))
	}
	c.membership = nil
	return c.success("left the chat")
}
