package tenants

import (
	"context"
	"fmt"
	"strings"

	"github.com/rusq/slack"

	"github.com/jrsteele09/slack-mcp-gateway/installations"
	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
)

// ClientFactory builds a Slack client for a token.
type ClientFactory func(token string) *slack.Client

// NewClientFactory returns a factory that targets apiURL, or the public Slack
// API when apiURL is empty.
func NewClientFactory(apiURL string) ClientFactory {
	if apiURL == "" {
		return func(token string) *slack.Client {
			return slack.New(token)
		}
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	return func(token string) *slack.Client {
		return slack.New(token, slack.OptionAPIURL(apiURL))
	}
}

// Resolver maps a team id to a Context using the current installation.
type Resolver struct {
	repo      installations.Reader
	newClient ClientFactory
}

type ResolverOption func(*Resolver)

func WithClientFactory(f ClientFactory) ResolverOption {
	return func(r *Resolver) {
		r.newClient = f
	}
}

func NewResolver(repo installations.Reader, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		repo:      repo,
		newClient: NewClientFactory(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns ErrUnknownTenant when the team has no installation. Store
// failures keep their ErrStoreRead so callers can tell the two apart. Expired
// tokens are not refreshed here.
func (r *Resolver) Resolve(ctx context.Context, teamID string) (*Context, error) {
	if teamID == "" {
		return nil, fmt.Errorf("[Resolver Resolve] empty team id: %w", gwerrors.ErrUnknownTenant)
	}
	inst, found, err := r.repo.FindCurrentByTeam(ctx, teamID)
	if err != nil {
		if !gwerrors.Is(err, gwerrors.ErrStoreRead) {
			err = fmt.Errorf("%w: %w", gwerrors.ErrStoreRead, err)
		}
		return nil, fmt.Errorf("[Resolver Resolve] %w", err)
	}
	if !found {
		return nil, fmt.Errorf("[Resolver Resolve] team %s: %w", teamID, gwerrors.ErrUnknownTenant)
	}

	tc := &Context{
		TeamID:       teamID,
		Installation: inst,
		Bot:          r.newClient(inst.BotToken),
	}
	if inst.HasUserToken() {
		tc.User = r.newClient(inst.AuthedUser.AccessToken)
	}
	return tc, nil
}
