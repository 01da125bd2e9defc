package tools

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/rusq/slack"

	"github.com/jrsteele09/slack-mcp-gateway/tenants"
)

type memberView struct {
	ID         string `json:"id"`
	TeamID     string `json:"team_id,omitempty"`
	Name       string `json:"name,omitempty"`
	RealName   string `json:"real_name,omitempty"`
	Deleted    bool   `json:"deleted,omitempty"`
	IsAdmin    bool   `json:"is_admin,omitempty"`
	IsOwner    bool   `json:"is_owner,omitempty"`
	IsBot      bool   `json:"is_bot,omitempty"`
	IsAppUser  bool   `json:"is_app_user,omitempty"`
	Restricted bool   `json:"is_restricted,omitempty"`
	Updated    int64  `json:"updated,omitempty"`
}

// ─── slack_get_users ──────────────────────────────────────────────────────────

func toolGetUsers() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_get_users",
		mcplib.WithDescription("Retrieve basic profile information of users in the workspace (bot)."),
		mcplib.WithNumber("limit", mcplib.Description("Maximum number of users to return (default 100, max 1000)")),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleGetUsers}
}

func handleGetUsers(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := botClient(ctx)
	if failed != nil {
		return failed, nil
	}
	limit := intArg(req, "limit", 100, 1, 1000)

	page, err := client.GetUsersPaginated(slack.GetUsersOptionLimit(limit)).Next(ctx)
	if err = page.Failure(err); err != nil {
		return resultErr(fmt.Errorf("slack_get_users: %w", err)), nil
	}

	users := page.Users
	if len(users) > limit {
		users = users[:limit]
	}
	members := make([]memberView, 0, len(users))
	for _, u := range users {
		members = append(members, memberView{
			ID:         u.ID,
			TeamID:     u.TeamID,
			Name:       u.Name,
			RealName:   u.RealName,
			Deleted:    u.Deleted,
			IsAdmin:    u.IsAdmin,
			IsOwner:    u.IsOwner,
			IsBot:      u.IsBot,
			IsAppUser:  u.IsAppUser,
			Restricted: u.IsRestricted,
			Updated:    int64(u.Updated),
		})
	}
	return resultJSON(map[string]any{"members": members})
}

// ─── slack_get_user_profile ───────────────────────────────────────────────────

type profileView struct {
	DisplayName string `json:"display_name,omitempty"`
	RealName    string `json:"real_name,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Title       string `json:"title,omitempty"`
	StatusText  string `json:"status_text,omitempty"`
	StatusEmoji string `json:"status_emoji,omitempty"`
}

func toolGetUserProfile() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_get_user_profile",
		mcplib.WithDescription("Get a user's profile information (bot)."),
		mcplib.WithString("user_id", mcplib.Description("The ID of the user"), mcplib.Required()),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleGetUserProfile}
}

func handleGetUserProfile(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := botClient(ctx)
	if failed != nil {
		return failed, nil
	}
	userID, err := requiredString(req, "user_id")
	if err != nil {
		return resultErr(fmt.Errorf("slack_get_user_profile: %w", err)), nil
	}

	p, err := client.GetUserProfileContext(ctx, &slack.GetUserProfileParameters{UserID: userID})
	if err != nil {
		return resultErr(fmt.Errorf("slack_get_user_profile: %w", err)), nil
	}
	return resultJSON(profileView{
		DisplayName: p.DisplayName,
		RealName:    p.RealName,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		Phone:       p.Phone,
		Title:       p.Title,
		StatusText:  p.StatusText,
		StatusEmoji: p.StatusEmoji,
	})
}

// ─── slack_get_current_user ───────────────────────────────────────────────────

type identityView struct {
	UserID string `json:"user_id"`
	User   string `json:"user"`
	TeamID string `json:"team_id"`
	Team   string `json:"team"`
	URL    string `json:"url"`
	AsBot  bool   `json:"as_bot"`
}

func toolGetCurrentUser() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_get_current_user",
		mcplib.WithDescription("Get information about the identity behind the workspace token (user token when installed, otherwise bot)."),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleGetCurrentUser}
}

func handleGetCurrentUser(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	tc, ok := tenants.FromContext(ctx)
	if !ok {
		return resultErr(errNoTenant), nil
	}
	resp, err := tc.UserOrBot().AuthTestContext(ctx)
	if err != nil {
		return resultErr(fmt.Errorf("slack_get_current_user: %w", err)), nil
	}
	return resultJSON(identityView{
		UserID: resp.UserID,
		User:   resp.User,
		TeamID: resp.TeamID,
		Team:   resp.Team,
		URL:    resp.URL,
		AsBot:  tc.User == nil,
	})
}

// ─── slack_get_user_channels ──────────────────────────────────────────────────

type channelView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPrivate  bool   `json:"is_private"`
	IsMember   bool   `json:"is_member,omitempty"`
	NumMembers int    `json:"num_members,omitempty"`
}

func toolGetUserChannels() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_get_user_channels",
		mcplib.WithDescription("Get all channels, including private ones, the user is a member of (user token)."),
		mcplib.WithNumber("limit", mcplib.Description("Maximum number of channels (default 100, max 1000)")),
		mcplib.WithString("cursor", mcplib.Description("Pagination cursor for the next page of results")),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleGetUserChannels}
}

func handleGetUserChannels(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := userClient(ctx)
	if failed != nil {
		return failed, nil
	}
	cursor, _ := stringArg(req, "cursor")

	channels, next, err := userChannels(ctx, client, intArg(req, "limit", 100, 1, 1000), cursor)
	if err != nil {
		return resultErr(fmt.Errorf("slack_get_user_channels: %w", err)), nil
	}
	return resultJSON(map[string]any{
		"channels":    channels,
		"next_cursor": next,
	})
}

func userChannels(ctx context.Context, client *slack.Client, limit int, cursor string) ([]channelView, string, error) {
	chans, next, err := client.GetConversationsForUserContext(ctx, &slack.GetConversationsForUserParameters{
		Cursor:          cursor,
		Types:           []string{"public_channel", "private_channel"},
		Limit:           limit,
		ExcludeArchived: true,
	})
	if err != nil {
		return nil, "", err
	}
	out := make([]channelView, 0, len(chans))
	for _, c := range chans {
		out = append(out, channelView{
			ID:         c.ID,
			Name:       c.Name,
			IsPrivate:  c.IsPrivate,
			IsMember:   c.IsMember,
			NumMembers: c.NumMembers,
		})
	}
	return out, next, nil
}
