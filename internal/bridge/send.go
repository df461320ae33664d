package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Send posts a signal for videoID to the bridge of a running sidechat at
// addr (host:port) and returns the signal it accepted.
func Send(ctx context.Context, addr, videoID string) (Signal, error) {
	body, err := json.Marshal(SignalRequest{VideoID: &videoID})
	if err != nil {
		return Signal{}, fmt.Errorf("bridge.Send: %w", err)
	}
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/signal", bytes.NewReader(body))
	if err != nil {
		return Signal{}, fmt.Errorf("bridge.Send: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		return Signal{}, fmt.Errorf("no sidechat listening on %s: %w", addr, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16)) //nolint:errcheck // best-effort read for error message
		return Signal{}, fmt.Errorf("bridge rejected signal: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var s Signal
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return Signal{}, fmt.Errorf("bridge.Send: decode: %w", err)
	}
	return s, nil
}
