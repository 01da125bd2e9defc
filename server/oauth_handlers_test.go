package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/slack-mcp-gateway/installations/repotest"
)

func (h *harness) get(target string) *httptest.ResponseRecorder {
	h.t.Helper()
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestInstallRedirectsToSlack(t *testing.T) {
	h := newHarness(t)

	rec := h.get(RouteSlackInstall)
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "slack.com", loc.Host)
	assert.Equal(t, "/oauth/v2/authorize", loc.Path)
	assert.Equal(t, "client-id", loc.Query().Get("client_id"))
	assert.Equal(t, "chat:write,users:read", loc.Query().Get("scope"))
	require.NoError(t, h.state.Verify(loc.Query().Get("state")))
}

func TestInstallWithoutAuthorizeURL(t *testing.T) {
	h := newHarness(t, func(_ *testConfig, s *Services) { s.Authorize = nil })
	assert.Equal(t, http.StatusNotFound, h.get(RouteSlackInstall).Code)
}

func TestOAuthCallbackInstallsWorkspace(t *testing.T) {
	h := newHarness(t)

	routes := []string{RouteOAuthCallback, RouteSlackOAuthRedirect, RouteOAuthRedirect}
	for i, route := range routes {
		code := fmt.Sprintf("code-%d", i)
		h.exchanger.AddGrant(code, *repotest.NewInstallation("T9", 0))

		rec := h.get(route + "?code=" + code)
		require.Equal(t, http.StatusOK, rec.Code, route)
		assert.Contains(t, rec.Body.String(), "Team T9")
		assert.Contains(t, rec.Body.String(), "X-Team-Id")
		assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	}
	assert.Equal(t, len(routes), h.repo.Count("T9"))

	// The new workspace can open a session straight away.
	rec := h.do(http.MethodPost, "T9", "", initializeBody)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOAuthCallbackAcceptsFormPost(t *testing.T) {
	h := newHarness(t)
	h.exchanger.AddGrant("form-code", *repotest.NewInstallation("T9", 0))

	req := httptest.NewRequest(http.MethodPost, RouteOAuthCallback, nil)
	req.PostForm = url.Values{"code": {"form-code"}}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.repo.Count("T9"))
}

func TestOAuthCallbackRejections(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		saveErr    error
		wantStatus int
		wantBody   string
	}{
		{name: "missing code", query: "", wantStatus: http.StatusBadRequest, wantBody: "Authorization code is required"},
		{name: "access denied", query: "error=access_denied", wantStatus: http.StatusBadRequest, wantBody: "access_denied"},
		{name: "unknown code", query: "code=never-issued", wantStatus: http.StatusInternalServerError, wantBody: "Installation failed"},
		{name: "save failure", query: "code=good-code", saveErr: errors.New("read-only"), wantStatus: http.StatusInternalServerError, wantBody: "saving"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.exchanger.AddGrant("good-code", *repotest.NewInstallation("T9", 0))
			if tt.saveErr != nil {
				h.repo.SetSaveError(tt.saveErr)
			}

			rec := h.get(RouteOAuthCallback + "?" + tt.query)
			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.Contains(t, rec.Body.String(), RouteSlackInstall)
			assert.Equal(t, 0, h.repo.Count("T9"))
		})
	}
}

func TestOAuthCallbackEnforcesState(t *testing.T) {
	h := newHarness(t, func(c *testConfig, _ *Services) { c.requireState = true })
	h.exchanger.AddGrant("good-code", *repotest.NewInstallation("T9", 0))

	rec := h.get(RouteOAuthCallback + "?code=good-code&state=forged")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid state parameter")
	assert.Equal(t, 0, h.exchanger.Calls())

	state, err := h.state.Issue()
	require.NoError(t, err)
	rec = h.get(RouteOAuthCallback + "?code=good-code&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.repo.Count("T9"))
}
