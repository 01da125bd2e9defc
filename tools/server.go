// Package tools defines the Slack tool catalog served over MCP. Handlers take
// their workspace credentials from the request context, never from the
// session.
package tools

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"github.com/rusq/slack"

	"github.com/jrsteele09/slack-mcp-gateway/tenants"
)

const (
	serverName    = "slack-mcp-gateway"
	serverVersion = "0.1.0"
)

const instructions = `You are connected to a Slack workspace through the Slack MCP gateway.

Tools marked "bot" act as the installed Slack app. Tools that search or read
the installing user's channels and files need a user token; they fail with an
error when the workspace was installed without one.

Timestamps use Slack's format, e.g. "1234567890.123456".`

var (
	errNoTenant    = errors.New("no Slack workspace is bound to this request")
	errNoUserToken = errors.New("this workspace was installed without a user token; reinstall with user scopes")

	timestampPattern = regexp.MustCompile(`^\d{10}\.\d{6}$`)
)

// NewServer builds the MCP server with the full catalog registered.
func NewServer(opts ...mcpsrv.ServerOption) *mcpsrv.MCPServer {
	base := []mcpsrv.ServerOption{
		mcpsrv.WithToolCapabilities(false),
		mcpsrv.WithRecovery(),
		mcpsrv.WithInstructions(instructions),
		mcpsrv.WithToolHandlerMiddleware(logCalls),
	}
	s := mcpsrv.NewMCPServer(serverName, serverVersion, append(base, opts...)...)
	for _, t := range Catalog() {
		s.AddTool(t.Tool, t.Handler)
	}
	return s
}

// Catalog returns every tool the gateway exposes.
func Catalog() []mcpsrv.ServerTool {
	return []mcpsrv.ServerTool{
		toolPostMessage(),
		toolReplyToThread(),
		toolAddReaction(),
		toolGetChannelHistory(),
		toolGetThreadReplies(),
		toolGetUsers(),
		toolGetUserProfile(),
		toolGetCurrentUser(),
		toolSearchMessages(),
		toolSearchMentions(),
		toolGetUserChannels(),
		toolListFilesInChannel(),
		toolGetFileInfo(),
		toolListChannelCanvases(),
		toolGetUserChannelActivity(),
	}
}

func logCalls(next mcpsrv.ToolHandlerFunc) mcpsrv.ToolHandlerFunc {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		start := time.Now()
		result, err := next(ctx, req)

		ev := log.Debug()
		if err != nil || (result != nil && result.IsError) {
			ev = log.Warn()
		}
		if tc, ok := tenants.FromContext(ctx); ok {
			ev = ev.Str("team_id", tc.TeamID)
		}
		ev.Str("tool", req.Params.Name).Dur("elapsed", time.Since(start)).Err(err).Msg("tool call")
		return result, err
	}
}

// botClient returns the tenant's bot client or a tool error result.
func botClient(ctx context.Context) (*slack.Client, *mcplib.CallToolResult) {
	tc, ok := tenants.FromContext(ctx)
	if !ok {
		return nil, resultErr(errNoTenant)
	}
	return tc.Bot, nil
}

// userClient returns the tenant's user client or a tool error result.
func userClient(ctx context.Context) (*slack.Client, *mcplib.CallToolResult) {
	tc, ok := tenants.FromContext(ctx)
	if !ok {
		return nil, resultErr(errNoTenant)
	}
	if tc.User == nil {
		return nil, resultErr(errNoUserToken)
	}
	return tc.User, nil
}

func resultErr(err error) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(err.Error())},
		IsError: true,
	}
}

func resultJSON(v any) (*mcplib.CallToolResult, error) {
	return mcplib.NewToolResultJSON(v)
}

func stringArg(req mcplib.CallToolRequest, name string) (string, bool) {
	args := req.GetArguments()
	if args == nil {
		return "", false
	}
	s, ok := args[name].(string)
	return s, ok
}

func requiredString(req mcplib.CallToolRequest, name string) (string, error) {
	s, ok := stringArg(req, name)
	if !ok || s == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return s, nil
}

// intArg reads a numeric argument clamped to [lo, hi]. JSON numbers arrive as
// float64.
func intArg(req mcplib.CallToolRequest, name string, defaultVal, lo, hi int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	var n int
	switch v := args[name].(type) {
	case float64:
		n = int(v)
	case int:
		n = v
	default:
		return defaultVal
	}
	if n < lo {
		return lo
	}
	if hi > 0 && n > hi {
		return hi
	}
	return n
}

func boolArg(req mcplib.CallToolRequest, name string, defaultVal bool) bool {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	b, ok := args[name].(bool)
	if !ok {
		return defaultVal
	}
	return b
}

func timestampArg(req mcplib.CallToolRequest, name string) (string, error) {
	ts, err := requiredString(req, name)
	if err != nil {
		return "", err
	}
	if !timestampPattern.MatchString(ts) {
		return "", fmt.Errorf("%s must be in the format '1234567890.123456'", name)
	}
	return ts, nil
}
