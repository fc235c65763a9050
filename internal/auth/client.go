package auth

import (
	"context"
	"slices"
	"sync"
)

// Listener receives the current identity; nil means signed out. ctx is the
// context of the call that caused the change.
type Listener func(ctx context.Context, id *Identity)

// Client is one browser's view of authentication. It holds the signed-in
// identity and notifies subscribers of every change.
type Client struct {
	provider Provider

	mu        sync.Mutex
	current   *Identity
	known     bool
	listeners map[int]Listener
	nextID    int
}

func NewClient(p Provider) *Client {
	return &Client{
		provider:  p,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers fn. Once the client has resolved its initial state
// fn is called immediately with the current identity, then again after every
// change. The returned func removes the subscription.
func (c *Client) Subscribe(ctx context.Context, fn Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	known := c.known
	cur := cloneIdentity(c.current)
	c.mu.Unlock()

	if known {
		fn(ctx, cur)
	}

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Resolve marks the initial state as known (signed out) if nothing has
// signed in yet, notifying subscribers.
func (c *Client) Resolve(ctx context.Context) {
	c.update(ctx, nil, true)
}

// Current returns the signed-in identity or nil.
func (c *Client) Current() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneIdentity(c.current)
}

// SignIn verifies credentials. On failure the current identity is
// unchanged and no listener fires.
func (c *Client) SignIn(ctx context.Context, email, password string) (Identity, error) {
	id, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return Identity{}, err
	}
	c.update(ctx, &id, false)
	return id, nil
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, email, password string) (Identity, error) {
	id, err := c.provider.Register(ctx, email, password)
	if err != nil {
		return Identity{}, err
	}
	c.update(ctx, &id, false)
	return id, nil
}

// SignOut clears the identity.
func (c *Client) SignOut(ctx context.Context) {
	c.update(ctx, nil, false)
}

// update stores id and notifies listeners outside the lock, in
// subscription order. With onlyIfUnknown it is a no-op once any state has
// been set.
func (c *Client) update(ctx context.Context, id *Identity, onlyIfUnknown bool) {
	c.mu.Lock()
	if onlyIfUnknown && c.known {
		c.mu.Unlock()
		return
	}
	c.current = cloneIdentity(id)
	c.known = true
	ids := make([]int, 0, len(c.listeners))
	for k := range c.listeners {
		ids = append(ids, k)
	}
	slices.Sort(ids)
	fns := make([]Listener, 0, len(ids))
	for _, k := range ids {
		fns = append(fns, c.listeners[k])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ctx, cloneIdentity(id))
	}
}

func cloneIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}
