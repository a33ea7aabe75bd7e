package chat

import (
	"sync"

	"github.com/vraj-wappnet/freelance-chat/internal/types"
)

// Directory tracks the counterpart users the local user may converse with
// and the subset holding an active conversation.
type Directory struct {
	mu     sync.RWMutex
	order  []string
	users  map[string]types.User
	active map[string]struct{}
}

func NewDirectory() *Directory {
	return &Directory{
		users:  make(map[string]types.User),
		active: make(map[string]struct{}),
	}
}

// SetUsers replaces the counterpart listing, preserving listing order. The
// active set carries over: an open conversation survives a directory
// reload.
func (d *Directory) SetUsers(users []types.User) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.order = d.order[:0]
	d.users = make(map[string]types.User, len(users))
	for _, u := range users {
		if _, ok := d.users[u.Id]; ok {
			continue
		}
		d.order = append(d.order, u.Id)
		d.users[u.Id] = u
	}
}

func (d *Directory) Get(id string) (types.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	return u, ok
}

// List returns the counterparts in listing order.
func (d *Directory) List() []types.User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]types.User, 0, len(d.order))
	for _, id := range d.order {
		users = append(users, d.users[id])
	}
	return users
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

// MarkActive records an open conversation with the given counterpart.
// Marking twice is a no-op.
func (d *Directory) MarkActive(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active[id] = struct{}{}
}

func (d *Directory) IsActive(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.active[id]
	return ok
}

func (d *Directory) NumActive() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.active)
}
