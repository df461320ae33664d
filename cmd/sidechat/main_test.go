package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenspark/sidechat/internal/auth"
	"github.com/naveenspark/sidechat/internal/bridge"
	"github.com/naveenspark/sidechat/internal/config"
	"github.com/naveenspark/sidechat/pkg/client"
	"github.com/naveenspark/sidechat/pkg/domain"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    invocation
		wantErr string
	}{
		{"no args", nil, invocation{command: "run"}, ""},
		{"version", []string{"--version"}, invocation{command: "version"}, ""},
		{"help", []string{"-h"}, invocation{command: "help"}, ""},
		{"login", []string{"login"}, invocation{command: "login"}, ""},
		{"logout extra arg", []string{"logout", "now"}, invocation{}, "takes no arguments"},
		{"video url", []string{"https://www.youtube.com/watch?v=dQw4w9WgXcQ"}, invocation{command: "run", videoID: "dQw4w9WgXcQ"}, ""},
		{"bare id", []string{"dQw4w9WgXcQ"}, invocation{command: "run", videoID: "dQw4w9WgXcQ"}, ""},
		{"not a video", []string{"https://example.com"}, invocation{}, "not a video link"},
		{"too many", []string{"dQw4w9WgXcQ", "extra"}, invocation{}, "usage"},
		{"watch", []string{"watch", "https://youtu.be/dQw4w9WgXcQ"}, invocation{command: "watch", videoID: "dQw4w9WgXcQ"}, ""},
		{"watch missing arg", []string{"watch"}, invocation{}, "usage"},
		{"watch bad arg", []string{"watch", "nope"}, invocation{}, "not a video link"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func mintToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(exp)}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestLoadSession(t *testing.T) {
	t.Setenv(auth.TokenEnv, "")
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	store := auth.Store{Path: filepath.Join(t.TempDir(), "token")}

	tok, sess := loadSession(store, now)
	assert.Empty(t, tok)
	assert.Nil(t, sess, "no token file means signed out")

	user := uuid.New()
	valid := mintToken(t, user.String(), now.Add(time.Hour))
	require.NoError(t, store.Save(valid))
	tok, sess = loadSession(store, now)
	assert.Equal(t, valid, tok)
	require.NotNil(t, sess)
	assert.Equal(t, user, sess.UserID)

	require.NoError(t, store.Save(mintToken(t, user.String(), now.Add(-time.Minute))))
	tok, sess = loadSession(store, now)
	assert.Empty(t, tok)
	assert.Nil(t, sess, "expired token means signed out")

	require.NoError(t, store.Save("garbage"))
	_, sess = loadSession(store, now)
	assert.Nil(t, sess)
}

func TestRunLogout(t *testing.T) {
	store := auth.Store{Path: filepath.Join(t.TempDir(), "token")}
	var out bytes.Buffer

	require.NoError(t, runLogout(store, &out))
	assert.Contains(t, out.String(), "Already logged out.")

	require.NoError(t, store.Save("tok"))
	out.Reset()
	require.NoError(t, runLogout(store, &out))
	assert.Contains(t, out.String(), "Logged out.")
	_, err := os.Stat(store.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestRunWatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mb := bridge.NewMailbox()
	srv := httptest.NewServer(bridge.SetupRouter(mb))
	defer srv.Close()

	cfg := &config.Config{BridgeAddr: strings.TrimPrefix(srv.URL, "http://")}
	var out bytes.Buffer
	require.NoError(t, runWatch(context.Background(), cfg, "dQw4w9WgXcQ", &out))
	assert.Contains(t, out.String(), "dQw4w9WgXcQ")

	s, ok := mb.Pending()
	require.True(t, ok)
	assert.Equal(t, "dQw4w9WgXcQ", s.VideoID)
}

func TestRunWatchBridgeDisabled(t *testing.T) {
	err := runWatch(context.Background(), &config.Config{}, "dQw4w9WgXcQ", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bridge is disabled")
}

func TestPrintHelp(t *testing.T) {
	var out bytes.Buffer
	printHelp(&out)
	for _, want := range []string{"sidechat login", "sidechat logout", "sidechat watch", "--version"} {
		assert.Contains(t, out.String(), want)
	}
}

func TestPrintSignedIn(t *testing.T) {
	var out bytes.Buffer
	printSignedIn(&out, &domain.Session{UserID: uuid.New(), Email: "ada@example.com"})
	assert.Contains(t, out.String(), "signed in as ada@example.com")
}

// exchangeServer answers the sign-in code exchange with token.
func exchangeServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/cli-exchange" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": token}) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

// followCallback plays the browser: it returns to the local callback with
// the state from the sign-in URL.
func followCallback(t *testing.T) func(string) error {
	return func(loginURL string) error {
		u, err := url.Parse(loginURL)
		if err != nil {
			return err
		}
		q := u.Query()
		cb := url.Values{}
		cb.Set("state", q.Get("state"))
		cb.Set("code", "one-time")
		go func() {
			resp, err := http.Get("http://127.0.0.1:" + q.Get("cli_port") + "/callback?" + cb.Encode())
			if err != nil {
				t.Errorf("callback: %v", err)
				return
			}
			resp.Body.Close() //nolint:errcheck
		}()
		return nil
	}
}

func TestTUILoginUsesStoredToken(t *testing.T) {
	t.Setenv(auth.TokenEnv, "")
	store := auth.Store{Path: filepath.Join(t.TempDir(), "token")}
	user := uuid.New()
	require.NoError(t, store.Save(mintToken(t, user.String(), time.Now().Add(time.Hour))))

	login := tuiLogin(&config.Config{}, store, client.New("http://127.0.0.1:1", ""), func(string) error {
		t.Error("browser must not open when a valid token is stored")
		return nil
	})
	sess, err := login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, user, sess.UserID)
}

func TestTUILoginBrowserFlow(t *testing.T) {
	t.Setenv(auth.TokenEnv, "")
	store := auth.Store{Path: filepath.Join(t.TempDir(), "token")}
	user := uuid.New()
	token := mintToken(t, user.String(), time.Now().Add(time.Hour))
	srv := exchangeServer(t, token)

	cfg := &config.Config{APIURL: srv.URL, SignInURL: "https://sidechat.test/cli-login", TokenFile: store.Path}
	sess, err := tuiLogin(cfg, store, client.New(srv.URL, ""), followCallback(t))(context.Background())
	require.NoError(t, err)
	assert.Equal(t, user, sess.UserID)
	assert.Equal(t, token, store.Load(), "token is saved for the next run")
}

func TestTUILoginBrowserUnavailable(t *testing.T) {
	t.Setenv(auth.TokenEnv, "")
	store := auth.Store{Path: filepath.Join(t.TempDir(), "token")}
	cfg := &config.Config{APIURL: "http://127.0.0.1:1", SignInURL: "https://sidechat.test/cli-login"}

	start := time.Now()
	_, err := tuiLogin(cfg, store, client.New(cfg.APIURL, ""), func(string) error {
		return errors.New("no display")
	})(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second, "a failed browser open ends the flow")
}

func TestLoginThenChat(t *testing.T) {
	t.Setenv(auth.TokenEnv, "")
	user := uuid.New()
	token := mintToken(t, user.String(), time.Now().Add(time.Hour))
	srv := exchangeServer(t, token)
	cfg := &config.Config{
		APIURL:    srv.URL,
		SignInURL: "https://sidechat.test/cli-login",
		TokenFile: filepath.Join(t.TempDir(), "token"),
	}

	var out bytes.Buffer
	chats := 0
	err := loginThenChat(context.Background(), cfg, &out, followCallback(t), func(_ context.Context, got *config.Config, videoID string) error {
		chats++
		assert.Same(t, cfg, got)
		assert.Empty(t, videoID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, chats, "the chat starts after sign-in")
	assert.Contains(t, out.String(), "signed in as "+user.String())
	assert.Equal(t, token, auth.Store{Path: cfg.TokenFile}.Load())
}

func TestLoginThenChatSkipsChatOnFailure(t *testing.T) {
	cfg := &config.Config{
		APIURL:    "http://127.0.0.1:1",
		SignInURL: "https://sidechat.test/cli-login",
		TokenFile: filepath.Join(t.TempDir(), "token"),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := loginThenChat(ctx, cfg, &bytes.Buffer{}, func(string) error { return nil }, func(context.Context, *config.Config, string) error {
		t.Error("chat must not start when sign-in fails")
		return nil
	})
	require.Error(t, err)
}
