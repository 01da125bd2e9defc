package tools

import (
	"context"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/rusq/slack"
)

type messageView struct {
	Type       string         `json:"type,omitempty"`
	Subtype    string         `json:"subtype,omitempty"`
	User       string         `json:"user,omitempty"`
	Text       string         `json:"text,omitempty"`
	TS         string         `json:"ts,omitempty"`
	ThreadTS   string         `json:"thread_ts,omitempty"`
	ReplyCount int            `json:"reply_count,omitempty"`
	ReplyUsers []string       `json:"reply_users,omitempty"`
	Reactions  []reactionView `json:"reactions,omitempty"`
}

type reactionView struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Users []string `json:"users,omitempty"`
}

func toMessageViews(msgs []slack.Message) []messageView {
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		v := messageView{
			Type:       m.Type,
			Subtype:    m.SubType,
			User:       m.User,
			Text:       m.Text,
			TS:         m.Timestamp,
			ThreadTS:   m.ThreadTimestamp,
			ReplyCount: m.ReplyCount,
			ReplyUsers: m.ReplyUsers,
		}
		for _, r := range m.Reactions {
			v.Reactions = append(v.Reactions, reactionView{Name: r.Name, Count: r.Count, Users: r.Users})
		}
		out = append(out, v)
	}
	return out
}

type postedView struct {
	OK      bool   `json:"ok"`
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

// ─── slack_post_message ───────────────────────────────────────────────────────

func toolPostMessage() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_post_message",
		mcplib.WithDescription("Post a new message to a Slack channel (bot)."),
		mcplib.WithString("channel_id", mcplib.Description("The ID of the channel to post to"), mcplib.Required()),
		mcplib.WithString("text", mcplib.Description("The message text to post"), mcplib.Required()),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handlePostMessage}
}

func handlePostMessage(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := botClient(ctx)
	if failed != nil {
		return failed, nil
	}
	channel, err := requiredString(req, "channel_id")
	if err != nil {
		return resultErr(fmt.Errorf("slack_post_message: %w", err)), nil
	}
	text, err := requiredString(req, "text")
	if err != nil {
		return resultErr(fmt.Errorf("slack_post_message: %w", err)), nil
	}

	ch, ts, err := client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return resultErr(fmt.Errorf("slack_post_message: %w", err)), nil
	}
	return resultJSON(postedView{OK: true, Channel: ch, TS: ts})
}

// ─── slack_reply_to_thread ────────────────────────────────────────────────────

func toolReplyToThread() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_reply_to_thread",
		mcplib.WithDescription("Reply to a specific message thread in Slack (bot)."),
		mcplib.WithString("channel_id", mcplib.Description("The ID of the channel containing the thread"), mcplib.Required()),
		mcplib.WithString("thread_ts", mcplib.Description("Timestamp of the parent message, e.g. '1234567890.123456'"), mcplib.Required()),
		mcplib.WithString("text", mcplib.Description("The reply text"), mcplib.Required()),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleReplyToThread}
}

func handleReplyToThread(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := botClient(ctx)
	if failed != nil {
		return failed, nil
	}
	channel, err := requiredString(req, "channel_id")
	if err != nil {
		return resultErr(fmt.Errorf("slack_reply_to_thread: %w", err)), nil
	}
	threadTS, err := timestampArg(req, "thread_ts")
	if err != nil {
		return resultErr(fmt.Errorf("slack_reply_to_thread: %w", err)), nil
	}
	text, err := requiredString(req, "text")
	if err != nil {
		return resultErr(fmt.Errorf("slack_reply_to_thread: %w", err)), nil
	}

	ch, ts, err := client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false), slack.MsgOptionTS(threadTS))
	if err != nil {
		return resultErr(fmt.Errorf("slack_reply_to_thread: %w", err)), nil
	}
	return resultJSON(postedView{OK: true, Channel: ch, TS: ts})
}

// ─── slack_add_reaction ───────────────────────────────────────────────────────

func toolAddReaction() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_add_reaction",
		mcplib.WithDescription("Add a reaction emoji to a message (bot)."),
		mcplib.WithString("channel_id", mcplib.Description("The ID of the channel containing the message"), mcplib.Required()),
		mcplib.WithString("timestamp", mcplib.Description("Timestamp of the message, e.g. '1234567890.123456'"), mcplib.Required()),
		mcplib.WithString("reaction", mcplib.Description("Emoji name without colons"), mcplib.Required()),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleAddReaction}
}

func handleAddReaction(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := botClient(ctx)
	if failed != nil {
		return failed, nil
	}
	channel, err := requiredString(req, "channel_id")
	if err != nil {
		return resultErr(fmt.Errorf("slack_add_reaction: %w", err)), nil
	}
	ts, err := timestampArg(req, "timestamp")
	if err != nil {
		return resultErr(fmt.Errorf("slack_add_reaction: %w", err)), nil
	}
	reaction, err := requiredString(req, "reaction")
	if err != nil {
		return resultErr(fmt.Errorf("slack_add_reaction: %w", err)), nil
	}

	if err := client.AddReactionContext(ctx, strings.Trim(reaction, ":"), slack.NewRefToMessage(channel, ts)); err != nil {
		return resultErr(fmt.Errorf("slack_add_reaction: %w", err)), nil
	}
	return resultJSON(map[string]bool{"ok": true})
}

// ─── slack_get_channel_history ────────────────────────────────────────────────

type historyView struct {
	Messages   []messageView `json:"messages"`
	HasMore    bool          `json:"has_more"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

func toolGetChannelHistory() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_get_channel_history",
		mcplib.WithDescription("Get recent messages from a channel (bot)."),
		mcplib.WithString("channel_id", mcplib.Description("The ID of the channel"), mcplib.Required()),
		mcplib.WithNumber("limit", mcplib.Description("Number of messages to retrieve (default 100, max 1000)")),
		mcplib.WithString("cursor", mcplib.Description("Pagination cursor for the next page of results")),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleGetChannelHistory}
}

func handleGetChannelHistory(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := botClient(ctx)
	if failed != nil {
		return failed, nil
	}
	channel, err := requiredString(req, "channel_id")
	if err != nil {
		return resultErr(fmt.Errorf("slack_get_channel_history: %w", err)), nil
	}
	cursor, _ := stringArg(req, "cursor")

	resp, err := client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channel,
		Cursor:    cursor,
		Limit:     intArg(req, "limit", 100, 1, 1000),
	})
	if err != nil {
		return resultErr(fmt.Errorf("slack_get_channel_history: %w", err)), nil
	}
	return resultJSON(historyView{
		Messages:   toMessageViews(resp.Messages),
		HasMore:    resp.HasMore,
		NextCursor: resp.ResponseMetaData.NextCursor,
	})
}

// ─── slack_get_thread_replies ─────────────────────────────────────────────────

func toolGetThreadReplies() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_get_thread_replies",
		mcplib.WithDescription("Get all replies in a message thread (bot)."),
		mcplib.WithString("channel_id", mcplib.Description("The ID of the channel containing the thread"), mcplib.Required()),
		mcplib.WithString("thread_ts", mcplib.Description("Timestamp of the parent message, e.g. '1234567890.123456'"), mcplib.Required()),
		mcplib.WithNumber("limit", mcplib.Description("Number of replies to retrieve (default 100, max 1000)")),
		mcplib.WithString("cursor", mcplib.Description("Pagination cursor for the next page of results")),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleGetThreadReplies}
}

func handleGetThreadReplies(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := botClient(ctx)
	if failed != nil {
		return failed, nil
	}
	channel, err := requiredString(req, "channel_id")
	if err != nil {
		return resultErr(fmt.Errorf("slack_get_thread_replies: %w", err)), nil
	}
	threadTS, err := timestampArg(req, "thread_ts")
	if err != nil {
		return resultErr(fmt.Errorf("slack_get_thread_replies: %w", err)), nil
	}
	cursor, _ := stringArg(req, "cursor")

	msgs, hasMore, next, err := client.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: channel,
		Timestamp: threadTS,
		Cursor:    cursor,
		Limit:     intArg(req, "limit", 100, 1, 1000),
	})
	if err != nil {
		return resultErr(fmt.Errorf("slack_get_thread_replies: %w", err)), nil
	}
	return resultJSON(historyView{Messages: toMessageViews(msgs), HasMore: hasMore, NextCursor: next})
}

// ─── slack_search_messages ────────────────────────────────────────────────────

type searchMatchView struct {
	ChannelID   string `json:"channel_id,omitempty"`
	ChannelName string `json:"channel_name,omitempty"`
	User        string `json:"user,omitempty"`
	Text        string `json:"text,omitempty"`
	TS          string `json:"ts,omitempty"`
	Permalink   string `json:"permalink,omitempty"`
}

type searchView struct {
	Query     string            `json:"query"`
	Total     int               `json:"total"`
	Page      int               `json:"page"`
	PageCount int               `json:"page_count"`
	Matches   []searchMatchView `json:"matches"`
}

func toolSearchMessages() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_search_messages",
		mcplib.WithDescription("Search for messages in the workspace (user token)."),
		mcplib.WithString("query", mcplib.Description("Basic search query")),
		mcplib.WithString("in_channel", mcplib.Description("Search within a specific channel (name or ID)")),
		mcplib.WithString("in_group", mcplib.Description("Search within a specific private group (name or ID)")),
		mcplib.WithString("in_dm", mcplib.Description("Search within a direct message with a user (user ID)")),
		mcplib.WithString("from_user", mcplib.Description("Search for messages from a specific user (name or ID)")),
		mcplib.WithString("from_bot", mcplib.Description("Search for messages from a specific bot (bot name)")),
		mcplib.WithBoolean("highlight", mcplib.Description("Enable highlighting of search results")),
		mcplib.WithString("sort", mcplib.Description("Sort by score or timestamp"), mcplib.Enum("score", "timestamp")),
		mcplib.WithString("sort_dir", mcplib.Description("Sort direction"), mcplib.Enum("asc", "desc")),
		mcplib.WithNumber("count", mcplib.Description("Results per page (default 20, max 100)")),
		mcplib.WithNumber("page", mcplib.Description("Page number (default 1, max 100)")),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleSearchMessages}
}

func handleSearchMessages(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := userClient(ctx)
	if failed != nil {
		return failed, nil
	}

	var terms []string
	if q, _ := stringArg(req, "query"); q != "" {
		terms = append(terms, q)
	}
	terms = append(terms, searchModifiers(req)...)
	if len(terms) == 0 {
		return resultErr(fmt.Errorf("slack_search_messages: query or a filter is required")), nil
	}

	params := slack.NewSearchParameters()
	params.Highlight = boolArg(req, "highlight", false)
	if sort, _ := stringArg(req, "sort"); sort != "" {
		params.Sort = sort
	}
	if dir, _ := stringArg(req, "sort_dir"); dir != "" {
		params.SortDirection = dir
	}
	params.Count = intArg(req, "count", 20, 1, 100)
	params.Page = intArg(req, "page", 1, 1, 100)

	return search(ctx, client, "slack_search_messages", strings.Join(terms, " "), params)
}

// ─── slack_search_mentions ────────────────────────────────────────────────────

// searchModifiers turns the filter arguments into Slack search modifiers.
func searchModifiers(req mcplib.CallToolRequest) []string {
	var mods []string
	if v, _ := stringArg(req, "in_channel"); v != "" {
		mods = append(mods, "in:"+v)
	}
	if v, _ := stringArg(req, "in_group"); v != "" {
		mods = append(mods, "in:"+v)
	}
	if v, _ := stringArg(req, "in_dm"); v != "" {
		mods = append(mods, "in:<@"+strings.Trim(v, "<@>")+">")
	}
	if v, _ := stringArg(req, "from_user"); v != "" {
		mods = append(mods, "from:"+v)
	}
	if v, _ := stringArg(req, "from_bot"); v != "" {
		mods = append(mods, "from:"+v)
	}
	return mods
}

func toolSearchMentions() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_search_mentions",
		mcplib.WithDescription("Search for messages that mention a specific user (user token)."),
		mcplib.WithString("user_id", mcplib.Description("ID of the user to search for mentions"), mcplib.Required()),
		mcplib.WithNumber("limit", mcplib.Description("Maximum number of messages to retrieve (default 20, max 100)")),
		mcplib.WithNumber("count", mcplib.Description("Alias for limit")),
		mcplib.WithString("after", mcplib.Description("Only mentions after this date (YYYY-MM-DD)")),
		mcplib.WithString("before", mcplib.Description("Only mentions before this date (YYYY-MM-DD)")),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleSearchMentions}
}

func handleSearchMentions(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := userClient(ctx)
	if failed != nil {
		return failed, nil
	}
	userID, err := requiredString(req, "user_id")
	if err != nil {
		return resultErr(fmt.Errorf("slack_search_mentions: %w", err)), nil
	}

	query := fmt.Sprintf("<@%s>", userID)
	if after, _ := stringArg(req, "after"); after != "" {
		query += " after:" + after
	}
	if before, _ := stringArg(req, "before"); before != "" {
		query += " before:" + before
	}

	params := slack.NewSearchParameters()
	params.Sort = "timestamp"
	params.Count = intArg(req, "limit", intArg(req, "count", 20, 1, 100), 1, 100)
	return search(ctx, client, "slack_search_mentions", query, params)
}

func search(ctx context.Context, client *slack.Client, tool, query string, params slack.SearchParameters) (*mcplib.CallToolResult, error) {
	res, err := client.SearchMessagesContext(ctx, query, params)
	if err != nil {
		return resultErr(fmt.Errorf("%s: %w", tool, err)), nil
	}
	view := searchView{
		Query:     query,
		Total:     res.Total,
		Page:      res.Paging.Page,
		PageCount: res.Paging.Pages,
		Matches:   make([]searchMatchView, 0, len(res.Matches)),
	}
	for _, m := range res.Matches {
		view.Matches = append(view.Matches, searchMatchView{
			ChannelID:   m.Channel.ID,
			ChannelName: m.Channel.Name,
			User:        m.User,
			Text:        m.Text,
			TS:          m.Timestamp,
			Permalink:   m.Permalink,
		})
	}
	return resultJSON(view)
}
