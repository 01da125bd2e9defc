package tools

import (
	"context"
	"fmt"
	"sort"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/rusq/slack"
	"golang.org/x/sync/errgroup"
)

// concurrent conversations.history calls per activity request
const activityFetchLimit = 4

type channelActivity struct {
	ChannelID    string   `json:"channel_id"`
	ChannelName  string   `json:"channel_name"`
	IsPrivate    bool     `json:"is_private"`
	MessageCount int      `json:"message_count"`
	ThreadCount  int      `json:"thread_count"`
	ActiveUsers  []string `json:"active_users"`
	LatestTS     string   `json:"latest_ts,omitempty"`
	Error        string   `json:"error,omitempty"`
}

type activityView struct {
	ChannelCount  int               `json:"channel_count"`
	TotalMessages int               `json:"total_messages"`
	Channels      []channelActivity `json:"channels"`
}

// ─── slack_get_user_channel_activity ──────────────────────────────────────────

func toolGetUserChannelActivity() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_get_user_channel_activity",
		mcplib.WithDescription("Summarise recent activity across the channels the user is a member of (user token)."),
		mcplib.WithNumber("limit_channels", mcplib.Description("Maximum number of channels to inspect (default 10, max 50)")),
		mcplib.WithNumber("messages_per_channel", mcplib.Description("Recent messages to read per channel (default 20, max 200)")),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleGetUserChannelActivity}
}

func handleGetUserChannelActivity(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := userClient(ctx)
	if failed != nil {
		return failed, nil
	}
	limitChannels := intArg(req, "limit_channels", 10, 1, 50)
	perChannel := intArg(req, "messages_per_channel", 20, 1, 200)

	channels, _, err := userChannels(ctx, client, limitChannels, "")
	if err != nil {
		return resultErr(fmt.Errorf("slack_get_user_channel_activity: %w", err)), nil
	}
	if len(channels) > limitChannels {
		channels = channels[:limitChannels]
	}

	// A failing channel is reported in its own entry rather than failing the
	// whole summary; only cancellation aborts the group.
	results := make([]channelActivity, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(activityFetchLimit)
	for i, ch := range channels {
		g.Go(func() error {
			results[i] = summariseChannel(gctx, client, ch, perChannel)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return resultErr(fmt.Errorf("slack_get_user_channel_activity: %w", err)), nil
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].LatestTS > results[b].LatestTS
	})
	view := activityView{ChannelCount: len(results), Channels: results}
	for _, r := range results {
		view.TotalMessages += r.MessageCount
	}
	return resultJSON(view)
}

func summariseChannel(ctx context.Context, client *slack.Client, ch channelView, limit int) channelActivity {
	out := channelActivity{
		ChannelID:   ch.ID,
		ChannelName: ch.Name,
		IsPrivate:   ch.IsPrivate,
		ActiveUsers: []string{},
	}
	resp, err := client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: ch.ID,
		Limit:     limit,
	})
	if err != nil {
		out.Error = err.Error()
		return out
	}

	users := map[string]struct{}{}
	for _, m := range resp.Messages {
		out.MessageCount++
		if m.ReplyCount > 0 {
			out.ThreadCount++
		}
		if m.User != "" {
			users[m.User] = struct{}{}
		}
		if m.Timestamp > out.LatestTS {
			out.LatestTS = m.Timestamp
		}
	}
	for u := range users {
		out.ActiveUsers = append(out.ActiveUsers, u)
	}
	sort.Strings(out.ActiveUsers)
	return out
}
