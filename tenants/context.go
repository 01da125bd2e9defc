package tenants

import (
	"context"

	"github.com/rusq/slack"

	"github.com/jrsteele09/slack-mcp-gateway/installations"
)

// Context is the per-request view of one workspace: its current installation
// and the Slack clients built from it. It is rebuilt on every call and never
// stored on a session.
type Context struct {
	TeamID       string
	Installation *installations.Installation
	Bot          *slack.Client
	// User is nil when the installation carries no user token.
	User *slack.Client
}

// UserOrBot prefers the user client.
func (c *Context) UserOrBot() *slack.Client {
	if c.User != nil {
		return c.User
	}
	return c.Bot
}

type contextKey struct{}

func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(*Context)
	return tc, ok && tc != nil
}
