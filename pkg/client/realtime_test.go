package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/naveenspark/sidechat/pkg/domain"
)

// realtimeServer upgrades /realtime and hands the connection to fn.
func realtimeServer(t *testing.T, fn func(*websocket.Conn, *http.Request)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close() //nolint:errcheck
		fn(conn, r)
	}))
}

func nextEvent(t *testing.T, sub domain.Subscription) domain.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.Event{}
}

func TestSubscribe_DeliversEvents(t *testing.T) {
	roomID := uuid.New()
	msgID := uuid.New()
	release := make(chan struct{})

	srv := realtimeServer(t, func(conn *websocket.Conn, r *http.Request) {
		if got := r.URL.Query().Get("room_id"); got != roomID.String() {
			t.Errorf("room_id = %q, want %q", got, roomID)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		frames := []string{
			`{"type":"INSERT","record":{"id":"` + msgID.String() + `","message":"hi"}}`,
			`{"type":"BOGUS"}`,
			`{"type":"UPDATE","record":{"id":"` + msgID.String() + `","message":"hi (edited)"}}`,
			`{"type":"DELETE","old_record":{"id":"` + msgID.String() + `"}}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				t.Errorf("write: %v", err)
				return
			}
		}
		<-release
	})
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, "tok")
	sub, err := c.Subscribe(context.Background(), roomID)
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck

	ev := nextEvent(t, sub)
	if ev.Kind != domain.EventInserted || ev.Message.Text != "hi" {
		t.Errorf("first event = %+v, want insert 'hi'", ev)
	}
	ev = nextEvent(t, sub)
	if ev.Kind != domain.EventUpdated || ev.Message.Text != "hi (edited)" {
		t.Errorf("second event = %+v, want update", ev)
	}
	ev = nextEvent(t, sub)
	if ev.Kind != domain.EventDeleted || ev.ID != msgID {
		t.Errorf("third event = %+v, want delete of %s", ev, msgID)
	}
}

func TestSubscribe_ServerCloseEmitsClosed(t *testing.T) {
	srv := realtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		conn.WriteMessage(websocket.CloseMessage, msg) //nolint:errcheck
	})
	defer srv.Close()

	c := New(srv.URL, "")
	sub, err := c.Subscribe(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	ev := nextEvent(t, sub)
	if ev.Kind != domain.EventClosed {
		t.Fatalf("event = %+v, want closed", ev)
	}
	if !errors.Is(ev.Err, ErrSubscriptionClosed) {
		t.Errorf("Err = %v, want ErrSubscriptionClosed", ev.Err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("events channel should be closed after EventClosed")
	}
}

func TestSubscribe_UnsubscribeClosesQuietly(t *testing.T) {
	srv := realtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	c := New(srv.URL, "")
	sub, err := c.Subscribe(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	sub.Unsubscribe() //nolint:errcheck
	sub.Unsubscribe() //nolint:errcheck

	select {
	case ev, ok := <-sub.Events():
		if ok {
			t.Errorf("unexpected event after Unsubscribe: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after Unsubscribe")
	}
}

func TestSubscribe_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "bad")
	_, err := c.Subscribe(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error for rejected handshake")
	}
	if !errors.Is(err, ErrAuthRequired) {
		t.Errorf("err = %v, want ErrAuthRequired", err)
	}
	if !strings.Contains(err.Error(), "client.Subscribe") {
		t.Errorf("err = %q, want op prefix", err.Error())
	}
}
