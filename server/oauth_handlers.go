package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
)

type installSuccessData struct {
	AppName      string
	TeamID       string
	TeamName     string
	TenantHeader string
}

type installFailedData struct {
	AppName  string
	Message  string
	RetryURL string
}

// SlackInstallHandler redirects to Slack's authorize page with a signed state.
func (s *Server) SlackInstallHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			http.Error(w, "Slack install is not configured", http.StatusNotFound)
			return
		}
		var state string
		if s.state != nil {
			var err error
			if state, err = s.state.Issue(); err != nil {
				log.Error().Err(err).Msg("failed to issue oauth state")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}
		http.Redirect(w, r, s.auth.AuthCodeURL(state), http.StatusFound)
	}
}

// OAuthCallbackHandler completes the install from Slack's redirect.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	success := mustParseTemplate("install_success.html")
	failed := mustParseTemplate("install_failed.html")

	fail := func(w http.ResponseWriter, status int, message string) {
		data := installFailedData{AppName: s.config.GetAppName(), Message: message}
		if s.auth != nil {
			data.RetryURL = RouteSlackInstall
		}
		renderHTML(w, status, failed, data)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue works for both query params and POST form data
		code := r.FormValue("code")
		state := r.FormValue("state")

		if errorParam := r.FormValue("error"); errorParam != "" {
			log.Warn().Str("error", errorParam).Msg("slack authorization was not granted")
			fail(w, http.StatusBadRequest, "Authorization failed: "+errorParam)
			return
		}
		if code == "" {
			fail(w, http.StatusBadRequest, "Authorization code is required")
			return
		}
		if s.config.GetRequireOAuthState() {
			if err := s.state.Verify(state); err != nil {
				log.Warn().Err(err).Msg("rejected oauth callback")
				fail(w, http.StatusBadRequest, "Invalid state parameter")
				return
			}
		}

		inst, err := s.install.Install(r.Context(), code)
		if err != nil {
			msg := "Installation failed"
			if gwerrors.Is(err, gwerrors.ErrPersistence) {
				msg = "Installation failed while saving the workspace credentials. Please install again."
			}
			fail(w, http.StatusInternalServerError, msg)
			return
		}

		renderHTML(w, http.StatusOK, success, installSuccessData{
			AppName:      s.config.GetAppName(),
			TeamID:       inst.TeamID,
			TeamName:     inst.TeamName,
			TenantHeader: s.config.GetTenantHeader(),
		})
	}
}
