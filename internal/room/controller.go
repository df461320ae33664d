package room

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/naveenspark/sidechat/pkg/domain"
)

// State is the lifecycle of the active room slot.
type State int

const (
	StateEmpty State = iota
	StateResolving
	StateActive
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateResolving:
		return "resolving"
	case StateActive:
		return "active"
	}
	return "unknown"
}

// Defaults for Options.
const (
	DefaultFetchLimit    = 50
	DefaultRateLimit     = time.Second
	DefaultNoticeTimeout = 4 * time.Second
	DefaultCallTimeout   = 15 * time.Second
)

// Options tunes a Controller. Zero values take the defaults.
type Options struct {
	FetchLimit    int
	RateLimit     time.Duration
	NoticeTimeout time.Duration
	CallTimeout   time.Duration
	// Now is the clock used for the send rate limit and profile freshness.
	Now func() time.Time
	// Metadata describes a video when its room has to be created.
	Metadata func(videoID string) domain.RoomMetadata
}

func (o Options) withDefaults() Options {
	if o.FetchLimit <= 0 {
		o.FetchLimit = DefaultFetchLimit
	}
	if o.RateLimit <= 0 {
		o.RateLimit = DefaultRateLimit
	}
	if o.NoticeTimeout <= 0 {
		o.NoticeTimeout = DefaultNoticeTimeout
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Metadata == nil {
		o.Metadata = func(string) domain.RoomMetadata { return domain.RoomMetadata{} }
	}
	return o
}

// Controller owns the active room: which video it follows, the live
// subscription, the message list, membership and the send pipeline.
//
// Every method must be called from the bubbletea update loop. Remote calls
// are returned as commands; their results come back through Update tagged
// with the generation they were issued under, and results from an older
// generation are dropped.
type Controller struct {
	gw   Gateway
	opts Options

	gen     uint64 // bumped on every room switch or reconnect
	authGen uint64 // bumped on every session change

	state   State
	videoID string
	room    *domain.Room
	sub     Subscription

	session    *domain.Session
	me         *domain.Profile
	membership *domain.Membership
	joining    bool
	leaving    bool

	msgs            *Reconciler
	profiles        *ProfileCache
	pendingProfiles map[uuid.UUID]struct{}

	notice    *Notice
	noticeSeq uint64

	sending    bool
	lastSentAt time.Time
	draft      string
	hasDraft   bool
}

// NewController returns a controller in the Empty state.
func NewController(gw Gateway, opts Options) *Controller {
	return &Controller{
		gw:              gw,
		opts:            opts.withDefaults(),
		msgs:            NewReconciler(),
		profiles:        NewProfileCache(),
		pendingProfiles: make(map[uuid.UUID]struct{}),
	}
}

// --- result messages ---

type roomResolvedMsg struct {
	gen     uint64
	videoID string
	room    *domain.Room
	err     error
}

type messagesLoadedMsg struct {
	gen  uint64
	rows []domain.Message
	err  error
}

type subscribedMsg struct {
	gen uint64
	sub Subscription
	err error
}

type liveEventMsg struct {
	gen   uint64
	sub   Subscription
	event domain.Event
	open  bool
}

type profileLoadedMsg struct {
	gen     uint64
	userID  uuid.UUID
	profile *domain.Profile
	asOf    time.Time
	err     error
}

type meLoadedMsg struct {
	authGen uint64
	profile *domain.Profile
	err     error
}

// Update applies a result message. Messages it does not own are ignored.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case roomResolvedMsg:
		return c.handleResolved(msg)
	case messagesLoadedMsg:
		return c.handleLoaded(msg)
	case subscribedMsg:
		return c.handleSubscribed(msg)
	case liveEventMsg:
		return c.handleLive(msg)
	case profileLoadedMsg:
		c.handleProfile(msg)
	case meLoadedMsg:
		if msg.authGen == c.authGen && msg.err == nil {
			c.me = msg.profile
		}
	case membershipMsg:
		c.handleMembership(msg)
	case joinedMsg:
		return c.handleJoined(msg)
	case leftMsg:
		return c.handleLeft(msg)
	case sentMsg:
		return c.handleSent(msg)
	case noticeExpiredMsg:
		c.expireNotice(msg)
	}
	return nil
}

// SwitchVideo makes videoID the active video. An empty id leaves the
// controller Empty. Switching to the current video does nothing.
func (c *Controller) SwitchVideo(videoID string) tea.Cmd {
	if videoID == c.videoID {
		return nil
	}
	log.Info().Str("module", "room").Str("from", c.videoID).Str("to", videoID).Msg("switching video")

	c.unsubscribe()
	c.gen++
	c.videoID = videoID
	c.room = nil
	c.msgs.Reset()
	c.profiles.Clear()
	c.pendingProfiles = make(map[uuid.UUID]struct{})
	c.membership = nil
	c.joining = false
	c.leaving = false
	c.clearNotice()

	if videoID == "" {
		c.state = StateEmpty
		return nil
	}
	return c.resolve()
}

// Reconnect reopens the active room: it resolves the room again if it is
// unresolved, otherwise it reloads messages and opens a fresh subscription.
func (c *Controller) Reconnect() tea.Cmd {
	if c.videoID == "" {
		return c.fail("open a video first")
	}
	log.Info().Str("module", "room").Str("video", c.videoID).Msg("reconnecting")
	c.unsubscribe()
	c.gen++
	c.pendingProfiles = make(map[uuid.UUID]struct{})
	c.joining = false
	c.leaving = false
	if c.room == nil {
		return tea.Batch(c.info("reconnecting…"), c.resolve())
	}
	return tea.Batch(c.info("reconnecting…"), c.load())
}

// SetSession reacts to sign-in and sign-out. Membership is recomputed; a
// sign-in while the room is unresolved resolves it again, creating it if
// needed.
func (c *Controller) SetSession(s *domain.Session) tea.Cmd {
	if sameSession(c.session, s) {
		return nil
	}
	c.authGen++
	c.session = s
	c.me = nil
	c.membership = nil
	c.joining = false
	c.leaving = false

	if s == nil {
		log.Info().Str("module", "room").Msg("signed out")
		return nil
	}
	log.Info().Str("module", "room").Str("user", s.UserID.String()).Msg("signed in")

	cmds := []tea.Cmd{c.loadMe()}
	switch {
	case c.videoID != "" && c.room == nil:
		c.unsubscribe()
		c.gen++
		cmds = append(cmds, c.resolve())
	case c.room != nil:
		cmds = append(cmds, c.refreshMembership())
	}
	return tea.Batch(cmds...)
}

// Close releases the live subscription. Results still in flight are dropped.
func (c *Controller) Close() {
	c.unsubscribe()
	c.gen++
}

// --- accessors ---

func (c *Controller) State() State                   { return c.state }
func (c *Controller) VideoID() string                { return c.videoID }
func (c *Controller) Room() *domain.Room             { return c.room }
func (c *Controller) Session() *domain.Session       { return c.session }
func (c *Controller) Me() *domain.Profile            { return c.me }
func (c *Controller) Membership() *domain.Membership { return c.membership }
func (c *Controller) Joining() bool                  { return c.joining }
func (c *Controller) Sending() bool                  { return c.sending }
func (c *Controller) Live() bool                     { return c.sub != nil }

// Messages returns the ordered message list.
func (c *Controller) Messages() []domain.Message { return c.msgs.Snapshot() }

// Notice returns the current status notice, if any.
func (c *Controller) Notice() (Notice, bool) {
	if c.notice == nil {
		return Notice{}, false
	}
	return *c.notice, true
}

// CanSend reports whether the send path is enabled.
func (c *Controller) CanSend() bool {
	return c.session != nil && c.room != nil && c.membership != nil && !c.sending
}

// --- room lifecycle ---

func (c *Controller) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.opts.CallTimeout)
}

func (c *Controller) resolve() tea.Cmd {
	c.state = StateResolving
	c.room = nil
	gen, videoID := c.gen, c.videoID
	canCreate := c.session != nil
	meta := c.opts.Metadata(videoID)
	ctx, cancel := c.callContext()
	return func() tea.Msg {
		defer cancel()
		r, err := c.gw.FindRoomByVideoID(ctx, videoID)
		if err != nil {
			return roomResolvedMsg{gen: gen, videoID: videoID, err: &RemoteError{Op: "find room", Err: err}}
		}
		if r == nil && canCreate {
			r, err = c.gw.CreateRoom(ctx, videoID, meta)
			if err != nil {
				return roomResolvedMsg{gen: gen, videoID: videoID, err: &RemoteError{Op: "create room", Err: err}}
			}
		}
		return roomResolvedMsg{gen: gen, videoID: videoID, room: r}
	}
}

func (c *Controller) handleResolved(msg roomResolvedMsg) tea.Cmd {
	if msg.gen != c.gen {
		c.stale("room", msg.gen)
		return nil
	}
	if msg.err != nil {
		c.state = StateEmpty
		log.Error().Err(msg.err).Str("module", "room").Str("video", msg.videoID).Msg("resolve room failed")
		return c.fail(userText("open the chat for this video", msg.err))
	}
	c.room = msg.room
	if msg.room == nil {
		log.Info().Str("module", "room").Str("video", msg.videoID).Msg("no room yet")
		c.state = StateActive
		return nil
	}
	log.Info().Str("module", "room").Str("video", msg.videoID).Str("room", msg.room.ID.String()).Msg("room resolved")
	return c.load()
}

func (c *Controller) load() tea.Cmd {
	if c.room == nil {
		return nil
	}
	gen, roomID, limit := c.gen, c.room.ID, c.opts.FetchLimit
	ctx, cancel := c.callContext()
	return func() tea.Msg {
		defer cancel()
		rows, err := c.gw.FetchMessages(ctx, roomID, limit)
		if err != nil {
			return messagesLoadedMsg{gen: gen, err: &RemoteError{Op: "fetch messages", Err: err}}
		}
		return messagesLoadedMsg{gen: gen, rows: rows}
	}
}

func (c *Controller) handleLoaded(msg messagesLoadedMsg) tea.Cmd {
	if msg.gen != c.gen {
		c.stale("messages", msg.gen)
		return nil
	}
	var cmds []tea.Cmd
	if msg.err != nil {
		log.Error().Err(msg.err).Str("module", "room").Msg("load messages failed")
		cmds = append(cmds, c.fail("could not load messages"))
	} else {
		rows := make([]domain.Message, len(msg.rows))
		copy(rows, msg.rows)
		for i := range rows {
			cmds = append(cmds, c.hydrate(&rows[i]))
		}
		c.msgs.LoadBulk(rows)
		log.Debug().Str("module", "room").Int("count", len(rows)).Msg("messages loaded")
	}
	c.state = StateActive
	cmds = append(cmds, c.subscribe(), c.refreshMembership())
	return tea.Batch(cmds...)
}

func (c *Controller) subscribe() tea.Cmd {
	if c.room == nil {
		return nil
	}
	gen, roomID := c.gen, c.room.ID
	ctx, cancel := c.callContext()
	return func() tea.Msg {
		defer cancel()
		sub, err := c.gw.Subscribe(ctx, roomID)
		if err != nil {
			return subscribedMsg{gen: gen, err: &RemoteError{Op: "subscribe", Err: err}}
		}
		return subscribedMsg{gen: gen, sub: sub}
	}
}

func (c *Controller) handleSubscribed(msg subscribedMsg) tea.Cmd {
	if msg.gen != c.gen {
		c.stale("subscription", msg.gen)
		if msg.sub != nil {
			_ = msg.sub.Unsubscribe() //nolint:errcheck // abandoned subscription
		}
		return nil
	}
	if msg.err != nil {
		log.Error().Err(msg.err).Str("module", "room").Msg("subscribe failed")
		return c.fail("live updates unavailable · /reconnect to retry")
	}
	c.unsubscribe()
	c.sub = msg.sub
	return waitForEvent(msg.gen, msg.sub)
}

// waitForEvent delivers the next event from sub.
func waitForEvent(gen uint64, sub Subscription) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub.Events()
		return liveEventMsg{gen: gen, sub: sub, event: ev, open: ok}
	}
}

func (c *Controller) handleLive(msg liveEventMsg) tea.Cmd {
	if msg.gen != c.gen || c.sub == nil || msg.sub != c.sub {
		return nil
	}
	if !msg.open || msg.event.Kind == domain.EventClosed {
		log.Error().Err(msg.event.Err).Str("module", "room").Msg("live subscription lost")
		c.unsubscribe()
		return c.fail("live updates disconnected · /reconnect to retry")
	}
	return tea.Batch(c.applyEvent(msg.event), waitForEvent(msg.gen, msg.sub))
}

func (c *Controller) applyEvent(ev domain.Event) tea.Cmd {
	switch ev.Kind {
	case domain.EventInserted, domain.EventUpdated:
		m := ev.Message
		if c.room != nil && m.RoomID != uuid.Nil && m.RoomID != c.room.ID {
			log.Debug().Str("module", "room").Str("room", m.RoomID.String()).Msg("event for another room")
			return nil
		}
		cmd := c.hydrate(&m)
		if ev.Kind == domain.EventInserted {
			c.msgs.ApplyInsert(m)
		} else {
			c.msgs.ApplyUpdate(m)
		}
		return cmd
	case domain.EventDeleted:
		c.msgs.ApplyDelete(ev.ID)
	}
	return nil
}

func (c *Controller) unsubscribe() {
	if c.sub == nil {
		return
	}
	if err := c.sub.Unsubscribe(); err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("unsubscribe failed")
	}
	c.sub = nil
}

func (c *Controller) stale(result string, gen uint64) {
	log.Debug().Str("module", "room").Str("result", result).Uint64("gen", gen).Uint64("current", c.gen).Msg("discarding stale result")
}

// --- profiles ---

// hydrate attaches an author profile to m from the message itself or the
// cache, or starts a fetch whose result is patched in later.
func (c *Controller) hydrate(m *domain.Message) tea.Cmd {
	if m.Profile != nil {
		c.profiles.Put(m.UserID, m.Profile, c.opts.Now())
		return nil
	}
	if m.UserID == uuid.Nil {
		return nil
	}
	if p, ok := c.profiles.Get(m.UserID); ok {
		m.Profile = p
		return nil
	}
	return c.fetchProfile(m.UserID)
}

func (c *Controller) fetchProfile(userID uuid.UUID) tea.Cmd {
	if _, ok := c.pendingProfiles[userID]; ok {
		return nil
	}
	c.pendingProfiles[userID] = struct{}{}
	gen, asOf := c.gen, c.opts.Now()
	ctx, cancel := c.callContext()
	return func() tea.Msg {
		defer cancel()
		p, err := c.gw.GetProfile(ctx, userID)
		return profileLoadedMsg{gen: gen, userID: userID, profile: p, asOf: asOf, err: err}
	}
}

func (c *Controller) handleProfile(msg profileLoadedMsg) {
	if msg.gen != c.gen {
		c.stale("profile", msg.gen)
		return
	}
	delete(c.pendingProfiles, msg.userID)
	if msg.err != nil {
		log.Error().Err(msg.err).Str("module", "room").Str("user", msg.userID.String()).Msg("profile fetch failed")
		return
	}
	if msg.profile == nil {
		return
	}
	c.profiles.Put(msg.userID, msg.profile, msg.asOf)
	if p, ok := c.profiles.Get(msg.userID); ok {
		c.msgs.FillProfile(msg.userID, p)
	}
}

func (c *Controller) loadMe() tea.Cmd {
	authGen, userID := c.authGen, c.session.UserID
	ctx, cancel := c.callContext()
	return func() tea.Msg {
		defer cancel()
		p, err := c.gw.GetProfile(ctx, userID)
		return meLoadedMsg{authGen: authGen, profile: p, err: err}
	}
}

func sameSession(a, b *domain.Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UserID == b.UserID && a.AccessToken == b.AccessToken
}
