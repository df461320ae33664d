package room

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenspark/sidechat/pkg/domain"
)

func TestMembership_AutoJoin(t *testing.T) {
	h := newHarness(t)
	h.gw.addRoom("v1")
	h.signIn()

	h.run(h.c.SwitchVideo("v1"))

	require.NotNil(t, h.c.Membership())
	assert.Equal(t, h.c.Room().ID, h.c.Membership().RoomID)
	assert.Equal(t, 1, h.gw.count("JoinRoom"))
	assert.True(t, h.c.CanSend())
	assert.Empty(t, h.notice(), "auto-join is silent")
}

func TestMembership_ExistingMembershipSkipsJoin(t *testing.T) {
	h := newHarness(t)
	r := h.gw.addRoom("v1")
	h.gw.memberships[r.ID] = &domain.Membership{RoomID: r.ID, UserID: h.gw.userID}
	h.signIn()

	h.run(h.c.SwitchVideo("v1"))

	assert.NotNil(t, h.c.Membership())
	assert.Zero(t, h.gw.count("JoinRoom"))
}

func TestMembership_AutoJoinFailureIsSilent(t *testing.T) {
	for _, op := range []string{"GetMembership", "JoinRoom"} {
		t.Run(op, func(t *testing.T) {
			h := newHarness(t)
			h.gw.addRoom("v1", msgAt("m1", 1))
			h.gw.failOn(op, errors.New("service unavailable"))
			h.signIn()

			h.run(h.c.SwitchVideo("v1"))

			assert.Nil(t, h.c.Membership())
			assert.False(t, h.c.CanSend())
			assert.Empty(t, h.notice())
			assert.Equal(t, StateActive, h.c.State())
			assert.Equal(t, []string{"m1"}, texts(h.c.Messages()))
		})
	}
}

func TestJoin_RequiresSession(t *testing.T) {
	h := newHarness(t)
	h.gw.addRoom("v1")
	h.run(h.c.SwitchVideo("v1"))

	h.run(h.c.Join())

	assert.Equal(t, "sign in to join the chat", h.notice())
	assert.Zero(t, h.gw.count("JoinRoom"))
	assert.Nil(t, h.c.Membership())
}

func TestJoin_RequiresVideo(t *testing.T) {
	h := newHarness(t)
	h.signIn()

	h.run(h.c.Join())

	assert.Equal(t, "open a video first", h.notice())
	assert.Zero(t, h.gw.count("JoinRoom"))
}

func TestJoin_CreatesRoomWhenMissing(t *testing.T) {
	h := newHarness(t)
	h.gw.failOn("CreateRoom", errors.New("timeout"))
	h.signIn()
	h.run(h.c.SwitchVideo("v1"))
	require.Nil(t, h.c.Room())
	require.Equal(t, StateEmpty, h.c.State())

	h.gw.failOn("CreateRoom", nil)
	h.run(h.c.Join())

	require.NotNil(t, h.c.Room())
	assert.Equal(t, "v1", h.c.Room().VideoID)
	assert.NotNil(t, h.c.Membership())
	assert.True(t, h.c.Live())
	assert.Equal(t, "joined the chat", h.notice())
}

func TestJoin_AfterLeave(t *testing.T) {
	h := newHarness(t)
	h.gw.addRoom("v1")
	h.signIn()
	h.run(h.c.SwitchVideo("v1"))
	h.run(h.c.Leave())
	require.Nil(t, h.c.Membership())

	release := h.gw.hold("JoinRoom", h.c.Room().ID.String())
	h.start(h.c.Join())
	assert.True(t, h.c.Joining())
	assert.Equal(t, "joining…", h.notice())
	assert.Nil(t, h.c.Join(), "a pending join ignores repeats")

	release()
	h.settle()

	assert.False(t, h.c.Joining())
	assert.NotNil(t, h.c.Membership())
	assert.Equal(t, "joined the chat", h.notice())
	n, _ := h.c.Notice()
	assert.Equal(t, SeveritySuccess, n.Severity)
}

func TestJoin_FailureSurfaces(t *testing.T) {
	h := newHarness(t)
	h.gw.addRoom("v1")
	h.gw.failOn("GetMembership", errors.New("boom"))
	h.signIn()
	h.run(h.c.SwitchVideo("v1"))

	h.gw.failOn("JoinRoom", errors.New("boom"))
	h.run(h.c.Join())

	assert.Equal(t, "could not join the chat", h.notice())
	assert.Nil(t, h.c.Membership())
	assert.False(t, h.c.Joining())
}

func TestLeave(t *testing.T) {
	h := newHarness(t)
	h.gw.addRoom("v1")
	h.signIn()
	h.run(h.c.SwitchVideo("v1"))
	require.NotNil(t, h.c.Membership())

	h.run(h.c.Leave())

	assert.Nil(t, h.c.Membership())
	assert.False(t, h.c.CanSend())
	assert.True(t, h.c.Live(), "leaving keeps the subscription")
	assert.Equal(t, "left the chat", h.notice())
	assert.Equal(t, 1, h.gw.count("LeaveRoom"))
}

func TestLeave_RequiresMembership(t *testing.T) {
	h := newHarness(t)
	h.gw.addRoom("v1")
	h.gw.failOn("GetMembership", errors.New("boom"))
	h.signIn()
	h.run(h.c.SwitchVideo("v1"))

	h.run(h.c.Leave())

	assert.Equal(t, "you are not in this chat", h.notice())
	assert.Zero(t, h.gw.count("LeaveRoom"))
}

func TestLeave_RequiresSession(t *testing.T) {
	h := newHarness(t)

	h.run(h.c.Leave())

	assert.Equal(t, "sign in to leave the chat", h.notice())
}
