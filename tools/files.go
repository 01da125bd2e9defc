package tools

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/rusq/slack"
)

type fileView struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Title      string `json:"title,omitempty"`
	Mimetype   string `json:"mimetype,omitempty"`
	Filetype   string `json:"filetype,omitempty"`
	Size       int    `json:"size,omitempty"`
	URLPrivate string `json:"url_private,omitempty"`
	Preview    string `json:"preview,omitempty"`
	Created    int64  `json:"created,omitempty"`
	User       string `json:"user,omitempty"`
	Editable   bool   `json:"editable,omitempty"`
}

type pagingView struct {
	Count int `json:"count"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

func toFileView(f slack.File) fileView {
	return fileView{
		ID:         f.ID,
		Name:       f.Name,
		Title:      f.Title,
		Mimetype:   f.Mimetype,
		Filetype:   f.Filetype,
		Size:       f.Size,
		URLPrivate: f.URLPrivate,
		Preview:    f.Preview,
		Created:    int64(f.Created),
		User:       f.User,
		Editable:   f.Editable,
	}
}

func toPagingView(p *slack.Paging) *pagingView {
	if p == nil {
		return nil
	}
	return &pagingView{Count: p.Count, Total: p.Total, Page: p.Page, Pages: p.Pages}
}

// isCanvas matches the ways Slack marks canvases, including legacy quip docs.
func isCanvas(f slack.File) bool {
	return f.Filetype == "canvas" || f.Mode == "canvas" || f.PrettyType == "canvas" || f.Filetype == "quip"
}

func channelFiles(ctx context.Context, client *slack.Client, channel string, count, page int) ([]slack.File, *slack.Paging, error) {
	params := slack.NewGetFilesParameters()
	params.Channel = channel
	params.Count = count
	params.Page = page
	return client.GetFilesContext(ctx, params)
}

// ─── slack_list_files_in_channel ──────────────────────────────────────────────

func toolListFilesInChannel() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_list_files_in_channel",
		mcplib.WithDescription("Get the list of files shared in a channel (user token)."),
		mcplib.WithString("channel_id", mcplib.Description("The ID of the channel"), mcplib.Required()),
		mcplib.WithNumber("count", mcplib.Description("Files per page (default 100, max 1000)")),
		mcplib.WithNumber("page", mcplib.Description("Page number (default 1)")),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleListFilesInChannel}
}

func handleListFilesInChannel(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := userClient(ctx)
	if failed != nil {
		return failed, nil
	}
	channel, err := requiredString(req, "channel_id")
	if err != nil {
		return resultErr(fmt.Errorf("slack_list_files_in_channel: %w", err)), nil
	}

	files, paging, err := channelFiles(ctx, client, channel, intArg(req, "count", 100, 1, 1000), intArg(req, "page", 1, 1, 0))
	if err != nil {
		return resultErr(fmt.Errorf("slack_list_files_in_channel: %w", err)), nil
	}
	views := make([]fileView, 0, len(files))
	for _, f := range files {
		views = append(views, toFileView(f))
	}
	return resultJSON(map[string]any{"files": views, "paging": toPagingView(paging)})
}

// ─── slack_get_file_info ──────────────────────────────────────────────────────

func toolGetFileInfo() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_get_file_info",
		mcplib.WithDescription("Get information about a specific file (user token)."),
		mcplib.WithString("file_id", mcplib.Description("The ID of the file"), mcplib.Required()),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleGetFileInfo}
}

func handleGetFileInfo(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := userClient(ctx)
	if failed != nil {
		return failed, nil
	}
	fileID, err := requiredString(req, "file_id")
	if err != nil {
		return resultErr(fmt.Errorf("slack_get_file_info: %w", err)), nil
	}

	f, _, _, err := client.GetFileInfoContext(ctx, fileID, 1, 1)
	if err != nil {
		return resultErr(fmt.Errorf("slack_get_file_info: %w", err)), nil
	}
	return resultJSON(map[string]any{"file": toFileView(*f)})
}

// ─── slack_list_channel_canvases ──────────────────────────────────────────────

func toolListChannelCanvases() mcpsrv.ServerTool {
	tool := mcplib.NewTool("slack_list_channel_canvases",
		mcplib.WithDescription("Get the list of canvases in a channel (user token)."),
		mcplib.WithString("channel_id", mcplib.Description("The ID of the channel"), mcplib.Required()),
		mcplib.WithNumber("count", mcplib.Description("Files to scan for canvases (default 100, max 1000)")),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: handleListChannelCanvases}
}

func handleListChannelCanvases(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	client, failed := userClient(ctx)
	if failed != nil {
		return failed, nil
	}
	channel, err := requiredString(req, "channel_id")
	if err != nil {
		return resultErr(fmt.Errorf("slack_list_channel_canvases: %w", err)), nil
	}

	files, _, err := channelFiles(ctx, client, channel, intArg(req, "count", 100, 1, 1000), 1)
	if err != nil {
		return resultErr(fmt.Errorf("slack_list_channel_canvases: %w", err)), nil
	}
	canvases := make([]fileView, 0)
	for _, f := range files {
		if isCanvas(f) {
			canvases = append(canvases, toFileView(f))
		}
	}
	return resultJSON(map[string]any{"channel_id": channel, "canvases": canvases})
}
