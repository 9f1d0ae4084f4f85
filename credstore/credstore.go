// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package credstore

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/danielhkuo/quickly-elect/models"
)

// DefaultCleanupInterval is how often the cache janitor drops expired items.
const DefaultCleanupInterval = 10 * time.Minute

// Store is a TTL table for voting credentials and ballot grants.
type Store struct {
	c *cache.Cache
}

// New creates a store whose janitor runs every cleanupInterval. A
// non-positive interval disables the janitor; Purge still works.
func New(cleanupInterval time.Duration) *Store {
	return &Store{c: cache.New(cache.NoExpiration, cleanupInterval)}
}

// Put stores c under key, replacing any previous entry. The cache expires
// the entry at c.ExpiresAt by the wall clock.
func (s *Store) Put(key string, c models.VotingCredential) {
	ttl := time.Until(c.ExpiresAt)
	if ttl <= 0 {
		// Already past by the wall clock; readers check ExpiresAt anyway.
		ttl = cache.NoExpiration
	}
	s.c.Set(key, c, ttl)
}

func (s *Store) Get(key string) (models.VotingCredential, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		return models.VotingCredential{}, false
	}
	c, ok := v.(models.VotingCredential)
	return c, ok
}

func (s *Store) Delete(key string) {
	s.c.Delete(key)
}

// Purge removes every entry whose ExpiresAt is at or before now.
func (s *Store) Purge(now time.Time) int {
	removed := 0
	for key, item := range s.c.Items() {
		c, ok := item.Object.(models.VotingCredential)
		if !ok || !now.Before(c.ExpiresAt) {
			s.c.Delete(key)
			removed++
		}
	}
	return removed
}

// Len reports how many entries are held, expired or not.
func (s *Store) Len() int {
	return s.c.ItemCount()
}
