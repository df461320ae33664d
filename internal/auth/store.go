// Package auth keeps the sidechat access token and derives the signed-in
// session from it.
package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TokenEnv overrides the token file when set.
const TokenEnv = "SIDECHAT_TOKEN"

// Store reads and writes the token file.
type Store struct {
	Path string
}

// Load returns the token using precedence: env var > file > empty.
func (s Store) Load() string {
	if tok := strings.TrimSpace(os.Getenv(TokenEnv)); tok != "" {
		return tok
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Save writes the token, readable only by the current user.
func (s Store) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(s.Path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Remove deletes the token file. It reports false if there was none.
func (s Store) Remove() (bool, error) {
	if err := os.Remove(s.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove token: %w", err)
	}
	return true, nil
}
