package room

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/naveenspark/sidechat/pkg/domain"
)

// fakeGateway is an in-memory Gateway. Calls can be held with hold() and
// released later to finish them in any order.
type fakeGateway struct {
	mu          sync.Mutex
	rooms       map[string]*domain.Room
	messages    map[uuid.UUID][]domain.Message
	memberships map[uuid.UUID]*domain.Membership
	profiles    map[uuid.UUID]*domain.Profile
	errs        map[string]error
	gates       map[string]chan struct{}
	calls       map[string]int
	subs        []*fakeSub
	userID      uuid.UUID
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		rooms:       make(map[string]*domain.Room),
		messages:    make(map[uuid.UUID][]domain.Message),
		memberships: make(map[uuid.UUID]*domain.Membership),
		profiles:    make(map[uuid.UUID]*domain.Profile),
		errs:        make(map[string]error),
		gates:       make(map[string]chan struct{}),
		calls:       make(map[string]int),
		userID:      uuid.New(),
	}
}

func (g *fakeGateway) addRoom(videoID string, msgs ...domain.Message) *domain.Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := &domain.Room{ID: uuid.New(), VideoID: videoID}
	g.rooms[videoID] = r
	for i := range msgs {
		msgs[i].RoomID = r.ID
	}
	g.messages[r.ID] = msgs
	return r
}

func (g *fakeGateway) failOn(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[op] = err
}

// hold blocks calls to op with key until the returned func is called.
func (g *fakeGateway) hold(op, key string) func() {
	ch := make(chan struct{})
	g.mu.Lock()
	g.gates[op+":"+key] = ch
	g.mu.Unlock()
	return func() { close(ch) }
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) lastSub() *fakeSub {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.subs) == 0 {
		return nil
	}
	return g.subs[len(g.subs)-1]
}

// enter records a call, waits on its gate and returns the injected error.
func (g *fakeGateway) enter(op, key string) error {
	g.mu.Lock()
	g.calls[op]++
	gate := g.gates[op+":"+key]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.errs[op]
}

func (g *fakeGateway) FindRoomByVideoID(_ context.Context, videoID string) (*domain.Room, error) {
	if err := g.enter("FindRoomByVideoID", videoID); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rooms[videoID], nil
}

func (g *fakeGateway) CreateRoom(_ context.Context, videoID string, meta domain.RoomMetadata) (*domain.Room, error) {
	if err := g.enter("CreateRoom", videoID); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	r := &domain.Room{ID: uuid.New(), VideoID: videoID, Title: meta.Title}
	g.rooms[videoID] = r
	return r, nil
}

func (g *fakeGateway) FetchMessages(_ context.Context, roomID uuid.UUID, limit int) ([]domain.Message, error) {
	if err := g.enter("FetchMessages", roomID.String()); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	msgs := g.messages[roomID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return append([]domain.Message(nil), msgs...), nil
}

func (g *fakeGateway) InsertMessage(_ context.Context, roomID uuid.UUID, text string) (*domain.Message, error) {
	if err := g.enter("InsertMessage", roomID.String()); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	m := domain.Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		UserID:    g.userID,
		Text:      text,
		CreatedAt: time.Now(),
		Profile:   &domain.Profile{UserID: g.userID, DisplayName: "me"},
	}
	g.messages[roomID] = append(g.messages[roomID], m)
	return &m, nil
}

func (g *fakeGateway) Subscribe(_ context.Context, roomID uuid.UUID) (Subscription, error) {
	if err := g.enter("Subscribe", roomID.String()); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	s := &fakeSub{roomID: roomID, events: make(chan domain.Event, 16)}
	g.subs = append(g.subs, s)
	return s, nil
}

func (g *fakeGateway) GetMembership(_ context.Context, roomID uuid.UUID) (*domain.Membership, error) {
	if err := g.enter("GetMembership", roomID.String()); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.memberships[roomID], nil
}

func (g *fakeGateway) JoinRoom(_ context.Context, roomID uuid.UUID) (*domain.Membership, error) {
	if err := g.enter("JoinRoom", roomID.String()); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	m := &domain.Membership{RoomID: roomID, UserID: g.userID, JoinedAt: time.Now()}
	g.memberships[roomID] = m
	return m, nil
}

func (g *fakeGateway) LeaveRoom(_ context.Context, roomID uuid.UUID) error {
	if err := g.enter("LeaveRoom", roomID.String()); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.memberships, roomID)
	return nil
}

func (g *fakeGateway) GetProfile(_ context.Context, userID uuid.UUID) (*domain.Profile, error) {
	if err := g.enter("GetProfile", userID.String()); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.profiles[userID], nil
}

type fakeSub struct {
	roomID uuid.UUID
	events chan domain.Event
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

func (s *fakeSub) Events() <-chan domain.Event { return s.events }

func (s *fakeSub) Unsubscribe() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.events)
	})
	return nil
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSub) push(ev domain.Event) { s.events <- ev }

// harness runs controller commands the way the bubbletea runtime would.
// Commands still blocked after a short wait (held gateway calls, live event
// waits, notice timers) stay in flight and are picked up by later calls.
type harness struct {
	t        *testing.T
	c        *Controller
	gw       *fakeGateway
	now      time.Time
	inflight []chan tea.Msg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, gw: newFakeGateway(), now: base}
	h.c = NewController(h.gw, Options{
		FetchLimit:    50,
		RateLimit:     time.Second,
		NoticeTimeout: time.Hour,
		Now:           func() time.Time { return h.now },
		Metadata: func(videoID string) domain.RoomMetadata {
			return domain.RoomMetadata{Title: "video " + videoID}
		},
	})
	t.Cleanup(h.c.Close)
	return h
}

func (h *harness) signIn() {
	h.run(h.c.SetSession(&domain.Session{UserID: h.gw.userID, AccessToken: "tok"}))
}

func (h *harness) run(cmd tea.Cmd) {
	h.start(cmd)
	h.settle()
}

func (h *harness) start(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	h.inflight = append(h.inflight, ch)
}

func (h *harness) settle() {
	for idle := 0; idle < 5; {
		if h.poll() {
			idle = 0
			continue
		}
		idle++
		time.Sleep(5 * time.Millisecond)
	}
}

func (h *harness) poll() bool {
	inflight := h.inflight
	h.inflight = nil
	progressed := false
	for _, ch := range inflight {
		select {
		case msg := <-ch:
			progressed = true
			h.deliver(msg)
		default:
			h.inflight = append(h.inflight, ch)
		}
	}
	return progressed
}

func (h *harness) deliver(msg tea.Msg) {
	switch msg := msg.(type) {
	case nil:
	case tea.BatchMsg:
		for _, cmd := range msg {
			h.start(cmd)
		}
	default:
		h.start(h.c.Update(msg))
	}
}

func (h *harness) notice() string {
	n, ok := h.c.Notice()
	if !ok {
		return ""
	}
	return n.Text
}
