package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/rusq/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/slack-mcp-gateway/tenants"
)

// fakeSlack serves canned Web API responses keyed by method and records the
// form of each call.
type fakeSlack struct {
	t         *testing.T
	responses map[string]string
	lock      sync.Mutex
	calls     map[string][]map[string]string
	tokens    []string
}

func newFakeSlack(t *testing.T, responses map[string]string) (*fakeSlack, *httptest.Server) {
	t.Helper()
	fs := &fakeSlack{t: t, responses: responses, calls: map[string][]map[string]string{}}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeSlack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := r.URL.Path[1:]
	form := map[string]string{}
	for k := range r.Form {
		form[k] = r.Form.Get(k)
	}

	fs.lock.Lock()
	fs.calls[method] = append(fs.calls[method], form)
	fs.tokens = append(fs.tokens, r.Header.Get("Authorization")+form["token"])
	body, ok := fs.responses[method]
	fs.lock.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		_, _ = w.Write([]byte(`{"ok":false,"error":"unknown_method"}`))
		return
	}
	_, _ = w.Write([]byte(body))
}

func (fs *fakeSlack) callsTo(method string) []map[string]string {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.calls[method]
}

func tenantCtx(srv *httptest.Server, withUser bool) context.Context {
	api := slack.OptionAPIURL(srv.URL + "/")
	tc := &tenants.Context{TeamID: "T1", Bot: slack.New("xoxb-bot", api)}
	if withUser {
		tc.User = slack.New("xoxp-user", api)
	}
	return tenants.WithContext(context.Background(), tc)
}

func callReq(name string, args map[string]any) mcplib.CallToolRequest {
	req := mcplib.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func firstText(t *testing.T, r *mcplib.CallToolResult) string {
	t.Helper()
	require.NotNil(t, r)
	require.NotEmpty(t, r.Content, "result has no content")
	txt, ok := r.Content[0].(mcplib.TextContent)
	require.True(t, ok, "first content item is not TextContent")
	return txt.Text
}

func decode(t *testing.T, r *mcplib.CallToolResult, v any) {
	t.Helper()
	require.False(t, r.IsError, firstText(t, r))
	require.NoError(t, json.Unmarshal([]byte(firstText(t, r)), v))
}

func TestCatalogNames(t *testing.T) {
	want := []string{
		"slack_post_message", "slack_reply_to_thread", "slack_add_reaction",
		"slack_get_channel_history", "slack_get_thread_replies", "slack_get_users",
		"slack_get_user_profile", "slack_get_current_user", "slack_search_messages",
		"slack_search_mentions", "slack_get_user_channels", "slack_list_files_in_channel",
		"slack_get_file_info", "slack_list_channel_canvases", "slack_get_user_channel_activity",
	}
	var got []string
	for _, tool := range Catalog() {
		got = append(got, tool.Tool.Name)
	}
	require.Equal(t, want, got)
	require.NotNil(t, NewServer())
}

func TestNoTenantBound(t *testing.T) {
	for _, tool := range Catalog() {
		res, err := tool.Handler(context.Background(), callReq(tool.Tool.Name, map[string]any{}))
		require.NoError(t, err)
		require.True(t, res.IsError, tool.Tool.Name)
		assert.Contains(t, firstText(t, res), errNoTenant.Error(), tool.Tool.Name)
	}
}

func TestUserToolsRequireUserToken(t *testing.T) {
	_, srv := newFakeSlack(t, nil)
	ctx := tenantCtx(srv, false)

	userTools := map[string]bool{
		"slack_search_messages": true, "slack_search_mentions": true, "slack_get_user_channels": true,
		"slack_list_files_in_channel": true, "slack_get_file_info": true,
		"slack_list_channel_canvases": true, "slack_get_user_channel_activity": true,
	}
	for _, tool := range Catalog() {
		if !userTools[tool.Tool.Name] {
			continue
		}
		res, err := tool.Handler(ctx, callReq(tool.Tool.Name, map[string]any{"channel_id": "C1", "user_id": "U1", "file_id": "F1", "query": "x"}))
		require.NoError(t, err)
		require.True(t, res.IsError, tool.Tool.Name)
		assert.Contains(t, firstText(t, res), errNoUserToken.Error(), tool.Tool.Name)
	}
}

func TestPostMessage(t *testing.T) {
	fs, srv := newFakeSlack(t, map[string]string{
		"chat.postMessage": `{"ok":true,"channel":"C1","ts":"1700000000.000100"}`,
	})

	res, err := handlePostMessage(tenantCtx(srv, true), callReq("slack_post_message", map[string]any{"channel_id": "C1", "text": "hello"}))
	require.NoError(t, err)
	var got postedView
	decode(t, res, &got)
	require.Equal(t, postedView{OK: true, Channel: "C1", TS: "1700000000.000100"}, got)

	calls := fs.callsTo("chat.postMessage")
	require.Len(t, calls, 1)
	require.Equal(t, "C1", calls[0]["channel"])
	require.Equal(t, "hello", calls[0]["text"])
}

func TestPostMessageMissingText(t *testing.T) {
	fs, srv := newFakeSlack(t, nil)
	res, err := handlePostMessage(tenantCtx(srv, true), callReq("slack_post_message", map[string]any{"channel_id": "C1"}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, firstText(t, res), "text is required")
	require.Empty(t, fs.callsTo("chat.postMessage"))
}

func TestReplyToThread(t *testing.T) {
	fs, srv := newFakeSlack(t, map[string]string{
		"chat.postMessage": `{"ok":true,"channel":"C1","ts":"1700000001.000200"}`,
	})
	ctx := tenantCtx(srv, true)

	res, err := handleReplyToThread(ctx, callReq("slack_reply_to_thread", map[string]any{"channel_id": "C1", "thread_ts": "1700000000.000100", "text": "re"}))
	require.NoError(t, err)
	require.False(t, res.IsError, firstText(t, res))
	require.Equal(t, "1700000000.000100", fs.callsTo("chat.postMessage")[0]["thread_ts"])

	res, err = handleReplyToThread(ctx, callReq("slack_reply_to_thread", map[string]any{"channel_id": "C1", "thread_ts": "1700000000", "text": "re"}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, firstText(t, res), "1234567890.123456")
	require.Len(t, fs.callsTo("chat.postMessage"), 1)
}

func TestAddReaction(t *testing.T) {
	fs, srv := newFakeSlack(t, map[string]string{"reactions.add": `{"ok":true}`})

	res, err := handleAddReaction(tenantCtx(srv, true), callReq("slack_add_reaction", map[string]any{"channel_id": "C1", "timestamp": "1700000000.000100", "reaction": ":thumbsup:"}))
	require.NoError(t, err)
	require.False(t, res.IsError, firstText(t, res))

	call := fs.callsTo("reactions.add")[0]
	require.Equal(t, "thumbsup", call["name"])
	require.Equal(t, "C1", call["channel"])
	require.Equal(t, "1700000000.000100", call["timestamp"])
}

func TestGetChannelHistory(t *testing.T) {
	fs, srv := newFakeSlack(t, map[string]string{
		"conversations.history": `{"ok":true,"has_more":true,"response_metadata":{"next_cursor":"dXNlcjpVMDYxTkZUVDI="},
			"messages":[{"type":"message","user":"U1","text":"hi","ts":"1700000000.000100","reply_count":2,"reactions":[{"name":"eyes","count":1,"users":["U2"]}]}]}`,
	})

	res, err := handleGetChannelHistory(tenantCtx(srv, true), callReq("slack_get_channel_history", map[string]any{"channel_id": "C1", "limit": float64(5000)}))
	require.NoError(t, err)
	var got historyView
	decode(t, res, &got)
	require.True(t, got.HasMore)
	require.Equal(t, "dXNlcjpVMDYxTkZUVDI=", got.NextCursor)
	require.Len(t, got.Messages, 1)
	require.Equal(t, "hi", got.Messages[0].Text)
	require.Equal(t, 2, got.Messages[0].ReplyCount)
	require.Equal(t, "eyes", got.Messages[0].Reactions[0].Name)
	require.Equal(t, "1000", fs.callsTo("conversations.history")[0]["limit"], "limit is clamped")
}

func TestGetThreadReplies(t *testing.T) {
	_, srv := newFakeSlack(t, map[string]string{
		"conversations.replies": `{"ok":true,"has_more":false,"messages":[{"user":"U1","text":"parent","ts":"1700000000.000100"},{"user":"U2","text":"child","ts":"1700000001.000100","thread_ts":"1700000000.000100"}]}`,
	})

	res, err := handleGetThreadReplies(tenantCtx(srv, true), callReq("slack_get_thread_replies", map[string]any{"channel_id": "C1", "thread_ts": "1700000000.000100"}))
	require.NoError(t, err)
	var got historyView
	decode(t, res, &got)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "1700000000.000100", got.Messages[1].ThreadTS)
}

func TestGetUserProfile(t *testing.T) {
	_, srv := newFakeSlack(t, map[string]string{
		"users.profile.get": `{"ok":true,"profile":{"display_name":"ada","real_name":"Ada Lovelace","email":"ada@example.com","title":"Analyst"}}`,
	})

	res, err := handleGetUserProfile(tenantCtx(srv, false), callReq("slack_get_user_profile", map[string]any{"user_id": "U1"}))
	require.NoError(t, err)
	var got profileView
	decode(t, res, &got)
	require.Equal(t, "Ada Lovelace", got.RealName)
	require.Equal(t, "ada@example.com", got.Email)
}

func TestGetCurrentUserPrefersUserToken(t *testing.T) {
	for _, withUser := range []bool{true, false} {
		fs, srv := newFakeSlack(t, map[string]string{
			"auth.test": `{"ok":true,"url":"https://acme.slack.com/","team":"Acme","user":"someone","team_id":"T1","user_id":"U1"}`,
		})
		res, err := handleGetCurrentUser(tenantCtx(srv, withUser), callReq("slack_get_current_user", nil))
		require.NoError(t, err)
		var got identityView
		decode(t, res, &got)
		require.Equal(t, "T1", got.TeamID)
		require.Equal(t, !withUser, got.AsBot)

		wantToken := "xoxb-bot"
		if withUser {
			wantToken = "xoxp-user"
		}
		fs.lock.Lock()
		require.Contains(t, fs.tokens[0], wantToken)
		fs.lock.Unlock()
	}
}

func TestSearchMessages(t *testing.T) {
	fs, srv := newFakeSlack(t, map[string]string{
		"search.messages": `{"ok":true,"query":"deploy in:C1","messages":{"total":1,
			"paging":{"count":20,"total":1,"page":1,"pages":1},
			"matches":[{"type":"message","user":"U1","text":"deploy done","ts":"1700000000.000100","permalink":"https://acme.slack.com/archives/C1/p1700000000000100","channel":{"id":"C1","name":"ops"}}]}}`,
	})

	res, err := handleSearchMessages(tenantCtx(srv, true), callReq("slack_search_messages", map[string]any{"query": "deploy", "in_channel": "C1", "count": float64(500)}))
	require.NoError(t, err)
	var got searchView
	decode(t, res, &got)
	require.Equal(t, "deploy in:C1", got.Query)
	require.Equal(t, 1, got.Total)
	require.Equal(t, "ops", got.Matches[0].ChannelName)

	call := fs.callsTo("search.messages")[0]
	require.Equal(t, "deploy in:C1", call["query"])
	require.Equal(t, "100", call["count"])
}

func TestSearchMessagesFilters(t *testing.T) {
	fs, srv := newFakeSlack(t, map[string]string{
		"search.messages": `{"ok":true,"messages":{"total":0,"paging":{"count":20,"total":0,"page":1,"pages":0},"matches":[]}}`,
	})

	args := map[string]any{"query": "deploy", "in_group": "release-team", "in_dm": "U9", "from_bot": "ci"}
	res, err := handleSearchMessages(tenantCtx(srv, true), callReq("slack_search_messages", args))
	require.NoError(t, err)
	require.False(t, res.IsError, firstText(t, res))
	require.Equal(t, "deploy in:release-team in:<@U9> from:ci", fs.callsTo("search.messages")[0]["query"])

	// Filters alone are enough to search.
	res, err = handleSearchMessages(tenantCtx(srv, true), callReq("slack_search_messages", map[string]any{"from_bot": "ci"}))
	require.NoError(t, err)
	require.False(t, res.IsError, firstText(t, res))
	require.Equal(t, "from:ci", fs.callsTo("search.messages")[1]["query"])
}

func TestSearchMessagesRequiresQuery(t *testing.T) {
	_, srv := newFakeSlack(t, nil)
	res, err := handleSearchMessages(tenantCtx(srv, true), callReq("slack_search_messages", map[string]any{}))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestSearchMentions(t *testing.T) {
	fs, srv := newFakeSlack(t, map[string]string{
		"search.messages": `{"ok":true,"messages":{"total":0,"paging":{"count":20,"total":0,"page":1,"pages":0},"matches":[]}}`,
	})

	res, err := handleSearchMentions(tenantCtx(srv, true), callReq("slack_search_mentions", map[string]any{"user_id": "U1", "after": "2026-01-01"}))
	require.NoError(t, err)
	require.False(t, res.IsError, firstText(t, res))
	require.Equal(t, "<@U1> after:2026-01-01", fs.callsTo("search.messages")[0]["query"])
	require.Equal(t, "20", fs.callsTo("search.messages")[0]["count"])
}

func TestSearchMentionsLimit(t *testing.T) {
	fs, srv := newFakeSlack(t, map[string]string{
		"search.messages": `{"ok":true,"messages":{"total":0,"paging":{"count":5,"total":0,"page":1,"pages":0},"matches":[]}}`,
	})
	ctx := tenantCtx(srv, true)

	tests := []struct {
		args map[string]any
		want string
	}{
		{args: map[string]any{"user_id": "U1", "limit": float64(5)}, want: "5"},
		{args: map[string]any{"user_id": "U1", "count": float64(7)}, want: "7"},
		{args: map[string]any{"user_id": "U1", "limit": float64(500)}, want: "100"},
	}
	for i, tt := range tests {
		res, err := handleSearchMentions(ctx, callReq("slack_search_mentions", tt.args))
		require.NoError(t, err)
		require.False(t, res.IsError, firstText(t, res))
		require.Equal(t, tt.want, fs.callsTo("search.messages")[i]["count"])
	}
}

func TestListChannelCanvases(t *testing.T) {
	_, srv := newFakeSlack(t, map[string]string{
		"files.list": `{"ok":true,"files":[
			{"id":"F1","name":"notes.txt","filetype":"text"},
			{"id":"F2","title":"Roadmap","filetype":"canvas"},
			{"id":"F3","title":"Legacy","filetype":"quip"}],
			"paging":{"count":100,"total":3,"page":1,"pages":1}}`,
	})

	res, err := handleListChannelCanvases(tenantCtx(srv, true), callReq("slack_list_channel_canvases", map[string]any{"channel_id": "C1"}))
	require.NoError(t, err)
	var got struct {
		Canvases []fileView `json:"canvases"`
	}
	decode(t, res, &got)
	require.Len(t, got.Canvases, 2)
	require.Equal(t, "F2", got.Canvases[0].ID)
	require.Equal(t, "F3", got.Canvases[1].ID)
}

func TestGetFileInfoSlackError(t *testing.T) {
	_, srv := newFakeSlack(t, map[string]string{"files.info": `{"ok":false,"error":"file_not_found"}`})

	res, err := handleGetFileInfo(tenantCtx(srv, true), callReq("slack_get_file_info", map[string]any{"file_id": "F404"}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, firstText(t, res), "file_not_found")
}

func TestGetUserChannelActivity(t *testing.T) {
	fs, srv := newFakeSlack(t, map[string]string{
		"users.conversations": `{"ok":true,"channels":[{"id":"C1","name":"general"},{"id":"C2","name":"random","is_private":true}],"response_metadata":{"next_cursor":""}}`,
		"conversations.history": `{"ok":true,"messages":[
			{"user":"U2","text":"b","ts":"1700000002.000000","reply_count":1},
			{"user":"U1","text":"a","ts":"1700000001.000000"},
			{"user":"U2","text":"c","ts":"1700000000.000000"}]}`,
	})

	res, err := handleGetUserChannelActivity(tenantCtx(srv, true), callReq("slack_get_user_channel_activity", map[string]any{"messages_per_channel": float64(3)}))
	require.NoError(t, err)
	var got activityView
	decode(t, res, &got)
	require.Equal(t, 2, got.ChannelCount)
	require.Equal(t, 6, got.TotalMessages)
	for _, ch := range got.Channels {
		require.Equal(t, 3, ch.MessageCount)
		require.Equal(t, 1, ch.ThreadCount)
		require.Equal(t, []string{"U1", "U2"}, ch.ActiveUsers)
		require.Equal(t, "1700000002.000000", ch.LatestTS)
	}
	require.Len(t, fs.callsTo("conversations.history"), 2)
}
