package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/rusq/slack"

	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
)

const maxSlackBodyBytes = 1 << 20

// verifySlackRequest checks Slack's request signature and returns the raw
// body. It writes 401 and returns false on failure.
func (s *Server) verifySlackRequest(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	secret := s.config.GetSlackSigningSecret()
	if secret == "" {
		log.Warn().Msg("slack callback rejected: signing secret is not configured")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSlackBodyBytes))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return nil, false
	}

	sv, err := slack.NewSecretsVerifier(r.Header, secret)
	if err == nil {
		_, _ = sv.Write(body)
		err = sv.Ensure()
	}
	if err != nil {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("slack signature verification failed")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return body, true
}

// SlackEventsHandler acknowledges Events API deliveries and answers the
// url_verification handshake.
func (s *Server) SlackEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := s.verifySlackRequest(w, r)
		if !ok {
			return
		}

		var envelope struct {
			Type      string `json:"type"`
			Challenge string `json:"challenge"`
			TeamID    string `json:"team_id"`
			Event     struct {
				Type string `json:"type"`
			} `json:"event"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		if envelope.Type == "url_verification" {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(envelope.Challenge))
			return
		}
		log.Debug().Str("team_id", envelope.TeamID).Str("event", envelope.Event.Type).Msg("slack event received")
		w.WriteHeader(http.StatusOK)
	}
}

// SlackCommandsHandler answers slash commands with the workspace's connection
// status.
func (s *Server) SlackCommandsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := s.verifySlackRequest(w, r)
		if !ok {
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		cmd, err := slack.SlashCommandParse(r)
		if err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		text := fmt.Sprintf("This workspace is connected to %s. Use Team ID `%s` in the `%s` header of your MCP client.",
			s.config.GetAppName(), cmd.TeamID, s.config.GetTenantHeader())
		if _, err := s.resolver.Resolve(r.Context(), cmd.TeamID); err != nil {
			if !gwerrors.Is(err, gwerrors.ErrUnknownTenant) {
				log.Error().Err(err).Str("team_id", cmd.TeamID).Msg("slash command tenant lookup failed")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			text = fmt.Sprintf("%s is not installed in this workspace yet.", s.config.GetAppName())
		}

		writeJSON(w, http.StatusOK, slack.Msg{ResponseType: slack.ResponseTypeEphemeral, Text: text})
	}
}
