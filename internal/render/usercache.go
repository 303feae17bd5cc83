package render

import "github.com/solvect/activityfeed/internal/models"

// UserCache memoizes user lookups for the lifetime of one render pass, so a
// feed with many activities by the same user hits the store once.
type UserCache struct {
	lookup func(id uint) (*models.User, error)
	users  map[uint]*models.User
}

// NewUserCache creates a cache backed by the given lookup
func NewUserCache(lookup func(id uint) (*models.User, error)) *UserCache {
	return &UserCache{
		lookup: lookup,
		users:  make(map[uint]*models.User),
	}
}

// Get returns the user or nil when unknown. A nil cache always misses.
func (c *UserCache) Get(id uint) *models.User {
	if c == nil || id == 0 {
		return nil
	}
	if u, ok := c.users[id]; ok {
		return u
	}
	u, err := c.lookup(id)
	if err != nil {
		u = nil
	}
	c.users[id] = u
	return u
}
