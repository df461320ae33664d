package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/naveenspark/sidechat/pkg/domain"
)

// realtimeReadLimit caps a single websocket frame.
const realtimeReadLimit = 64 << 10

// realtimeFrame is one change notification on the realtime socket.
type realtimeFrame struct {
	Type      string          `json:"type"` // INSERT, UPDATE, DELETE
	Record    *domain.Message `json:"record,omitempty"`
	OldRecord *struct {
		ID uuid.UUID `json:"id"`
	} `json:"old_record,omitempty"`
}

// Subscription streams message changes for one room over a websocket.
type Subscription struct {
	roomID uuid.UUID
	conn   *websocket.Conn
	events chan domain.Event
	done   chan struct{}
	once   sync.Once
}

// Subscribe opens a live subscription for a room's message changes.
func (c *Client) Subscribe(ctx context.Context, roomID uuid.UUID) (domain.Subscription, error) {
	u, err := url.Parse(c.realtimeURL)
	if err != nil {
		return nil, fmt.Errorf("client.Subscribe: parse realtime url: %w", err)
	}
	q := u.Query()
	q.Set("room_id", roomID.String())
	u.RawQuery = q.Encode()

	header := http.Header{}
	if tok := c.currentToken(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client.Subscribe: %w", classify(&HTTPError{StatusCode: resp.StatusCode, Message: err.Error()}))
		}
		return nil, fmt.Errorf("client.Subscribe: %w", err)
	}
	conn.SetReadLimit(realtimeReadLimit)

	s := &Subscription{
		roomID: roomID,
		conn:   conn,
		events: make(chan domain.Event, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	log.Info().Str("module", "client").Str("room", roomID.String()).Msg("realtime subscribed")
	return s, nil
}

// Events returns the event stream.
func (s *Subscription) Events() <-chan domain.Event { return s.events }

// Unsubscribe closes the socket. It is safe to call more than once.
func (s *Subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)) //nolint:errcheck // best-effort close frame
		err = s.conn.Close()
		log.Info().Str("module", "client").Str("room", s.roomID.String()).Msg("realtime unsubscribed")
	})
	return err
}

func (s *Subscription) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = ErrSubscriptionClosed
			}
			log.Error().Err(err).Str("module", "client").Str("room", s.roomID.String()).Msg("realtime read error")
			s.emit(domain.Event{Kind: domain.EventClosed, Err: err})
			return
		}
		ev, ok := decodeFrame(data)
		if !ok {
			log.Warn().Str("module", "client").Bytes("frame", data).Msg("unknown realtime frame")
			continue
		}
		if !s.emit(ev) {
			return
		}
	}
}

// emit delivers ev unless the subscription has been closed.
func (s *Subscription) emit(ev domain.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func decodeFrame(data []byte) (domain.Event, bool) {
	var f realtimeFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return domain.Event{}, false
	}
	switch f.Type {
	case "INSERT":
		if f.Record == nil {
			return domain.Event{}, false
		}
		return domain.Event{Kind: domain.EventInserted, Message: *f.Record}, true
	case "UPDATE":
		if f.Record == nil {
			return domain.Event{}, false
		}
		return domain.Event{Kind: domain.EventUpdated, Message: *f.Record}, true
	case "DELETE":
		switch {
		case f.OldRecord != nil:
			return domain.Event{Kind: domain.EventDeleted, ID: f.OldRecord.ID}, true
		case f.Record != nil:
			return domain.Event{Kind: domain.EventDeleted, ID: f.Record.ID}, true
		}
	}
	return domain.Event{}, false
}

// ErrSubscriptionClosed is reported when the server ends a subscription normally.
var ErrSubscriptionClosed = errors.New("subscription closed by server")
