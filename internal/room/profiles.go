package room

import (
	"time"

	"github.com/google/uuid"

	"github.com/naveenspark/sidechat/pkg/domain"
)

type cachedProfile struct {
	profile *domain.Profile
	asOf    time.Time
}

// ProfileCache memoizes author profiles for the active room. Each entry
// remembers when its data was observed so a slow fetch cannot overwrite a
// newer result.
type ProfileCache struct {
	entries map[uuid.UUID]cachedProfile
}

// NewProfileCache returns an empty cache.
func NewProfileCache() *ProfileCache {
	return &ProfileCache{entries: make(map[uuid.UUID]cachedProfile)}
}

// Get returns the cached profile for userID.
func (c *ProfileCache) Get(userID uuid.UUID) (*domain.Profile, bool) {
	e, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	return e.profile, true
}

// Put stores p as observed at asOf. It is ignored, returning false, when
// the cache already holds data observed later.
func (c *ProfileCache) Put(userID uuid.UUID, p *domain.Profile, asOf time.Time) bool {
	if p == nil {
		return false
	}
	if e, ok := c.entries[userID]; ok && e.asOf.After(asOf) {
		return false
	}
	c.entries[userID] = cachedProfile{profile: p, asOf: asOf}
	return true
}

// Clear drops every entry.
func (c *ProfileCache) Clear() {
	c.entries = make(map[uuid.UUID]cachedProfile)
}

// Len returns the number of cached profiles.
func (c *ProfileCache) Len() int { return len(c.entries) }
