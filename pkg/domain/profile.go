package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Profile is a user's public display profile.
type Profile struct {
	UserID      uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Handle      string    `json:"handle,omitempty"`
}

// Name returns the best label for the profile: display name, then handle,
// then "anonymous". A nil profile is anonymous.
func (p *Profile) Name() string {
	if p == nil {
		return "anonymous"
	}
	if n := strings.TrimSpace(p.DisplayName); n != "" {
		return n
	}
	if h := strings.TrimSpace(p.Handle); h != "" {
		return h
	}
	return "anonymous"
}

// Initial returns the upper-cased first rune of Name, used when there is no avatar.
func (p *Profile) Initial() string {
	for _, r := range p.Name() {
		return strings.ToUpper(string(r))
	}
	return "?"
}
