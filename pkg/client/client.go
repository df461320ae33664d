package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/naveenspark/sidechat/pkg/domain"
)

// Client is the sidechat API client. It implements the room gateway over
// REST and opens live subscriptions over a websocket.
type Client struct {
	baseURL     string
	realtimeURL string
	httpClient  *http.Client
	dialer      *websocket.Dialer

	mu    sync.RWMutex
	token string
}

// Option customizes a Client.
type Option func(*Client)

// WithRealtimeURL sets the websocket endpoint used by Subscribe.
func WithRealtimeURL(u string) Option {
	return func(c *Client) { c.realtimeURL = u }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new API client.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.realtimeURL == "" {
		c.realtimeURL = RealtimeURLFor(c.baseURL)
	}
	return c
}

// RealtimeURLFor derives the websocket endpoint from an API base URL.
func RealtimeURLFor(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime"
	return u.String()
}

// SetToken swaps the bearer token, e.g. after sign-in or sign-out.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) requireToken() error {
	if c.currentToken() == "" {
		return ErrAuthRequired
	}
	return nil
}

// --- Rooms ---

// FindRoomByVideoID returns the room attached to videoID, or nil if none exists yet.
func (c *Client) FindRoomByVideoID(ctx context.Context, videoID string) (*domain.Room, error) {
	params := url.Values{}
	params.Set("video_id", videoID)

	var rooms []domain.Room
	if err := c.get(ctx, "/api/rooms?"+params.Encode(), &rooms); err != nil {
		return nil, fmt.Errorf("client.FindRoomByVideoID: %w", err)
	}
	if len(rooms) == 0 {
		return nil, nil
	}
	return &rooms[0], nil
}

// createRoomRequest is the payload for creating a room record.
type createRoomRequest struct {
	VideoID string `json:"video_id"`
	domain.RoomMetadata
}

// CreateRoom creates the room record for videoID. Requires a session.
func (c *Client) CreateRoom(ctx context.Context, videoID string, meta domain.RoomMetadata) (*domain.Room, error) {
	if err := c.requireToken(); err != nil {
		return nil, fmt.Errorf("client.CreateRoom: %w", err)
	}
	var room domain.Room
	if err := c.post(ctx, "/api/rooms", createRoomRequest{VideoID: videoID, RoomMetadata: meta}, &room); err != nil {
		return nil, fmt.Errorf("client.CreateRoom: %w", err)
	}
	return &room, nil
}

// --- Messages ---

// FetchMessages returns up to limit of the most recent messages in a room.
// The server returns them newest first; callers sort as needed.
func (c *Client) FetchMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]domain.Message, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "desc")

	var msgs []domain.Message
	if err := c.get(ctx, "/api/rooms/"+roomID.String()+"/messages?"+params.Encode(), &msgs); err != nil {
		return nil, fmt.Errorf("client.FetchMessages: %w", err)
	}
	return msgs, nil
}

// InsertMessage posts a message to a room and returns the confirmed row,
// including its server-assigned id and the author profile. Requires a session.
func (c *Client) InsertMessage(ctx context.Context, roomID uuid.UUID, text string) (*domain.Message, error) {
	if err := c.requireToken(); err != nil {
		return nil, fmt.Errorf("client.InsertMessage: %w", err)
	}
	var msg domain.Message
	if err := c.post(ctx, "/api/rooms/"+roomID.String()+"/messages", map[string]string{"message": text}, &msg); err != nil {
		return nil, fmt.Errorf("client.InsertMessage: %w", err)
	}
	return &msg, nil
}

// --- Membership ---

// GetMembership returns the caller's membership in a room, or nil if there is
// none. Without a session there is never a membership.
func (c *Client) GetMembership(ctx context.Context, roomID uuid.UUID) (*domain.Membership, error) {
	if c.currentToken() == "" {
		return nil, nil
	}
	var m domain.Membership
	if err := c.get(ctx, "/api/rooms/"+roomID.String()+"/membership", &m); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("client.GetMembership: %w", err)
	}
	return &m, nil
}

// JoinRoom upserts the caller's membership in a room. Requires a session.
func (c *Client) JoinRoom(ctx context.Context, roomID uuid.UUID) (*domain.Membership, error) {
	if err := c.requireToken(); err != nil {
		return nil, fmt.Errorf("client.JoinRoom: %w", err)
	}
	var m domain.Membership
	if err := c.doRequest(ctx, http.MethodPut, "/api/rooms/"+roomID.String()+"/membership", struct{}{}, &m); err != nil {
		return nil, fmt.Errorf("client.JoinRoom: %w", err)
	}
	return &m, nil
}

// LeaveRoom deletes the caller's membership in a room. Requires a session.
func (c *Client) LeaveRoom(ctx context.Context, roomID uuid.UUID) error {
	if err := c.requireToken(); err != nil {
		return fmt.Errorf("client.LeaveRoom: %w", err)
	}
	if err := c.doRequest(ctx, http.MethodDelete, "/api/rooms/"+roomID.String()+"/membership", nil, nil); err != nil {
		return fmt.Errorf("client.LeaveRoom: %w", err)
	}
	return nil
}

// --- Profiles ---

// GetProfile fetches a user's display profile, or nil if the user has none.
func (c *Client) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.get(ctx, "/api/profiles/"+userID.String(), &p); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("client.GetProfile: %w", err)
	}
	return &p, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.currentToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		log.Debug().Str("module", "client").Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("request failed")
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return classify(&HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)})
		}
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return classify(&HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error})
		}
		return classify(&HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)})
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}
