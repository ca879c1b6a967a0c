// Package session holds what every view of one navigation shares: the query
// key derived from the path, who is logged in, and where toasts go.
package session

import (
	"context"
	"errors"

	"network/internal/models"
)

// ErrLoginRequired is returned for views that need a logged-in user.
var ErrLoginRequired = errors.New("login required")

// Notifier receives toast messages.
type Notifier interface {
	Notify(message string)
}

type Context struct {
	Key           models.QueryKey
	Authenticated bool
	Username      string

	toast Notifier
}

func New(boot models.Bootstrap, key models.QueryKey, toast Notifier) *Context {
	return &Context{
		Key:           key,
		Authenticated: boot.Auth,
		Username:      boot.Username,
		toast:         toast,
	}
}

// Page is the page number of the current view.
func (c *Context) Page() int {
	return c.Key.Page
}

func (c *Context) Notify(message string) {
	if c.toast != nil {
		c.toast.Notify(message)
	}
}

// RequireAuth reports whether the current view may be shown. Profile and
// following views are only for logged-in users.
func (c *Context) RequireAuth() error {
	if c.Authenticated {
		return nil
	}
	switch c.Key.Kind {
	case models.KindProfile, models.KindFollowing:
		return ErrLoginRequired
	}
	return nil
}

// IsOwnProfile reports whether the view is the logged-in user's profile.
func (c *Context) IsOwnProfile() bool {
	return c.Authenticated && c.Key.Kind == models.KindProfile && c.Key.Username == c.Username
}

// Navigate returns a copy of c showing key.
func (c *Context) Navigate(key models.QueryKey) *Context {
	next := *c
	next.Key = key
	return &next
}

type contextKey struct{}

func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(contextKey{}).(*Context)
	return c, ok && c != nil
}
