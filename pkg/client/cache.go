package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// pendingPrefix marks ids of optimistic records not yet confirmed by the server.
const pendingPrefix = "pending-"

// Mutation is one optimistic change. Apply produces the speculative list from
// the current one; Do performs the server call.
type Mutation struct {
	Apply func(users []User) []User
	Do    func(ctx context.Context, c *Client) error
}

// Cache holds the last known user list and applies mutations optimistically:
// snapshot, apply, call the server, restore the snapshot on failure, and
// always reconcile with a fresh list afterwards.
type Cache struct {
	client *Client

	mu    sync.RWMutex
	users []User
}

func NewCache(c *Client) *Cache {
	return &Cache{client: c}
}

// Users returns a copy of the cached list.
func (c *Cache) Users() []User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.users)
}

// Refresh replaces the cached list with the server's.
func (c *Cache) Refresh(ctx context.Context) error {
	users, err := c.client.List(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.users = users
	c.mu.Unlock()
	return nil
}

// Mutate runs m. The server error, if any, takes precedence over a failed
// reconcile.
func (c *Cache) Mutate(ctx context.Context, m Mutation) error {
	c.mu.Lock()
	snapshot := slices.Clone(c.users)
	if m.Apply != nil {
		c.users = m.Apply(slices.Clone(snapshot))
	}
	c.mu.Unlock()

	err := m.Do(ctx, c.client)
	if err != nil {
		c.mu.Lock()
		c.users = snapshot
		c.mu.Unlock()
	}

	if rerr := c.Refresh(ctx); rerr != nil {
		if err == nil {
			return fmt.Errorf("reconcile: %w", rerr)
		}
		return errors.Join(err, fmt.Errorf("reconcile: %w", rerr))
	}
	return err
}

// Create shows a pending record immediately and returns the created one.
func (c *Cache) Create(ctx context.Context, req CreateRequest) (*User, error) {
	var created *User
	err := c.Mutate(ctx, Mutation{
		Apply: func(users []User) []User {
			return append(users, User{ID: pendingPrefix + uuid.NewString(), Name: req.Name, ZipCode: req.ZipCode})
		},
		Do: func(ctx context.Context, cl *Client) error {
			u, err := cl.Create(ctx, req)
			created = u
			return err
		},
	})
	return created, err
}

func (c *Cache) Update(ctx context.Context, id string, req UpdateRequest) (*User, error) {
	var updated *User
	err := c.Mutate(ctx, Mutation{
		Apply: func(users []User) []User {
			for i := range users {
				if users[i].ID != id {
					continue
				}
				if req.Name != nil {
					users[i].Name = *req.Name
				}
				if req.ZipCode != nil {
					users[i].ZipCode = *req.ZipCode
				}
			}
			return users
		},
		Do: func(ctx context.Context, cl *Client) error {
			u, err := cl.Update(ctx, id, req)
			updated = u
			return err
		},
	})
	return updated, err
}

func (c *Cache) Delete(ctx context.Context, id string) error {
	return c.Mutate(ctx, Mutation{
		Apply: func(users []User) []User {
			return slices.DeleteFunc(users, func(u User) bool { return u.ID == id })
		},
		Do: func(ctx context.Context, cl *Client) error {
			_, err := cl.Delete(ctx, id)
			return err
		},
	})
}

// BulkDelete hides every id at once. Any failed delete rolls the view back;
// the reconcile then shows what the server actually removed.
func (c *Cache) BulkDelete(ctx context.Context, ids []string) (BulkResult, error) {
	var res BulkResult
	err := c.Mutate(ctx, Mutation{
		Apply: func(users []User) []User {
			return slices.DeleteFunc(users, func(u User) bool { return slices.Contains(ids, u.ID) })
		},
		Do: func(ctx context.Context, cl *Client) error {
			res = cl.BulkDelete(ctx, ids)
			if len(res.Failed) > 0 {
				return fmt.Errorf("%d of %d deletes failed", len(res.Failed), len(ids))
			}
			return nil
		},
	})
	return res, err
}

// IsPending reports whether u is an optimistic placeholder.
func IsPending(u User) bool {
	return strings.HasPrefix(u.ID, pendingPrefix)
}
