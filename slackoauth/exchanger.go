package slackoauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rusq/slack"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/slack-mcp-gateway/installations"
	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
	"github.com/jrsteele09/slack-mcp-gateway/internal/utils"
)

// Slack OAuth v2 endpoints.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://slack.com/oauth/v2/authorize",
	TokenURL:  "https://slack.com/api/oauth.v2.access",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Exchanger turns a one-time authorization code into an installation record.
type Exchanger interface {
	ExchangeCode(ctx context.Context, code string) (*installations.Installation, error)
}

// Config is the Slack app's OAuth registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	BotScopes    []string
	UserScopes   []string
}

// SlackExchanger calls Slack's oauth.v2.access.
type SlackExchanger struct {
	config     Config
	httpClient *http.Client
	nowTime    func() time.Time
}

var _ Exchanger = (*SlackExchanger)(nil)

// SlackExchangerOption modifies a SlackExchanger.
type SlackExchangerOption func(*SlackExchanger)

// WithHTTPClient sets the client used for the exchange call.
func WithHTTPClient(c *http.Client) SlackExchangerOption {
	return func(e *SlackExchanger) {
		e.httpClient = c
	}
}

// WithNowTime sets the clock used to stamp InstalledAt and expiry times.
func WithNowTime(nowFunc func() time.Time) SlackExchangerOption {
	return func(e *SlackExchanger) {
		e.nowTime = nowFunc
	}
}

func NewSlackExchanger(config Config, opts ...SlackExchangerOption) *SlackExchanger {
	e := &SlackExchanger{
		config:     config,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		nowTime:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AuthCodeURL returns the Slack authorize URL carrying state.
func (e *SlackExchanger) AuthCodeURL(state string) string {
	cfg := oauth2.Config{
		ClientID:    e.config.ClientID,
		RedirectURL: e.config.RedirectURI,
		Endpoint:    Endpoint,
	}
	// Slack takes comma separated scopes and a separate user_scope parameter.
	var params []oauth2.AuthCodeOption
	if len(e.config.BotScopes) > 0 {
		params = append(params, oauth2.SetAuthURLParam("scope", strings.Join(e.config.BotScopes, ",")))
	}
	if len(e.config.UserScopes) > 0 {
		params = append(params, oauth2.SetAuthURLParam("user_scope", strings.Join(e.config.UserScopes, ",")))
	}
	return cfg.AuthCodeURL(state, params...)
}

// ExchangeCode performs exactly one oauth.v2.access call. Codes are single
// use, so every failure is terminal for this attempt.
func (e *SlackExchanger) ExchangeCode(ctx context.Context, code string) (*installations.Installation, error) {
	if code == "" {
		return nil, fmt.Errorf("[SlackExchanger ExchangeCode] empty code: %w", gwerrors.ErrExchange)
	}
	resp, err := slack.GetOAuthV2ResponseContext(ctx, e.httpClient, e.config.ClientID, e.config.ClientSecret, code, e.config.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("[SlackExchanger ExchangeCode] %w: %w", gwerrors.ErrExchange, err)
	}
	if resp.Team.ID == "" || resp.AccessToken == "" {
		return nil, fmt.Errorf("[SlackExchanger ExchangeCode] response missing team or bot token: %w", gwerrors.ErrExchange)
	}
	return e.toInstallation(resp), nil
}

func (e *SlackExchanger) toInstallation(resp *slack.OAuthV2Response) *installations.Installation {
	now := e.nowTime().UTC()
	inst := &installations.Installation{
		TeamID:          resp.Team.ID,
		TeamName:        resp.Team.Name,
		AppID:           resp.AppID,
		BotUserID:       resp.BotUserID,
		BotToken:        resp.AccessToken,
		BotRefreshToken: utils.StringPtrIfSet(resp.RefreshToken),
		BotExpiresAt:    expiresAt(now, resp.ExpiresIn),
		InstalledAt:     now,
	}
	if resp.AuthedUser.AccessToken != "" {
		inst.AuthedUser = &installations.AuthedUser{
			UserID:       utils.StringPtrIfSet(resp.AuthedUser.ID),
			AccessToken:  resp.AuthedUser.AccessToken,
			RefreshToken: utils.StringPtrIfSet(resp.AuthedUser.RefreshToken),
			ExpiresAt:    expiresAt(now, resp.AuthedUser.ExpiresIn),
		}
	}
	return inst
}

func expiresAt(now time.Time, expiresIn int) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	return utils.Ptr(now.Add(time.Duration(expiresIn) * time.Second))
}
