package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// LoginOptions configures the browser sign-in flow.
type LoginOptions struct {
	APIURL    string // exchanges the one-time code at APIURL/auth/cli-exchange
	SignInURL string // page the browser is sent to
	Open      func(url string) error
	Out       io.Writer
	Timeout   time.Duration
}

// Login runs the browser sign-in flow: it serves a one-shot callback on
// localhost, sends the browser to the sign-in page and exchanges the code it
// receives for an access token.
func Login(ctx context.Context, opts LoginOptions) (string, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("start callback listener: %w", err)
	}
	defer listener.Close() //nolint:errcheck

	port := listener.Addr().(*net.TCPAddr).Port
	tokenCh := make(chan string, 1)
	errCh := make(chan error, 1)

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	expectedState := hex.EncodeToString(stateBytes)
	exchangeURL := strings.TrimRight(opts.APIURL, "/") + "/auth/cli-exchange"

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != expectedState {
			http.Error(w, "invalid state", http.StatusForbidden)
			report(errCh, errors.New("callback state mismatch (possible CSRF)"))
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			report(errCh, errors.New("callback received without code"))
			return
		}
		tok, err := exchangeCode(r.Context(), exchangeURL, code)
		if err != nil {
			http.Error(w, "exchange failed", http.StatusInternalServerError)
			report(errCh, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, callbackHTML) //nolint:errcheck
		// A repeated callback (e.g. a browser refresh) finds the slot taken.
		select {
		case tokenCh <- tok:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if srvErr := srv.Serve(listener); srvErr != nil && srvErr != http.ErrServerClosed {
			report(errCh, srvErr)
		}
	}()
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx) //nolint:errcheck
	}()

	params := url.Values{}
	params.Set("cli_port", strconv.Itoa(port))
	params.Set("state", expectedState)
	loginURL := opts.SignInURL + "?" + params.Encode()

	fmt.Fprintln(opts.Out, "Opening browser to sign in...") //nolint:errcheck
	if opts.Open == nil || opts.Open(loginURL) != nil {
		fmt.Fprintf(opts.Out, "Could not open browser. Visit this URL manually:\n  %s\n", loginURL) //nolint:errcheck
	}

	select {
	case tok := <-tokenCh:
		return tok, nil
	case err := <-errCh:
		return "", fmt.Errorf("sign-in failed: %w", err)
	case <-time.After(opts.Timeout):
		return "", fmt.Errorf("sign-in timed out after %s", opts.Timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func report(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

func exchangeCode(ctx context.Context, exchangeURL, code string) (string, error) {
	body, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return "", fmt.Errorf("cli code exchange marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, exchangeURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("cli code exchange: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cli code exchange: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) //nolint:errcheck // best-effort read for error message
		return "", fmt.Errorf("cli code exchange: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.Token == "" {
		return "", errors.New("cli code exchange: invalid response")
	}
	return result.Token, nil
}

const callbackHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>sidechat</title>
<style>
body{background:#0f0f14;color:#e4e4ec;font-family:ui-monospace,'SF Mono',monospace;
height:100vh;display:flex;align-items:center;justify-content:center;margin:0}
.msg{color:#5ad48c;font-weight:600;margin-bottom:8px}
.sub{color:#6b7080;font-size:12px}
</style>
</head>
<body>
<div>
  <div class="msg">signed in to sidechat</div>
  <div class="sub">you can close this tab and return to your terminal</div>
</div>
</body>
</html>`
