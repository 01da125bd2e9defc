package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
	"github.com/jrsteele09/slack-mcp-gateway/sessions"
	"github.com/jrsteele09/slack-mcp-gateway/tenants"
)

const maxMCPBodyBytes = 4 << 20

// JSON-RPC error codes used at the HTTP boundary.
const (
	codeParseError    = -32700
	codeInternalError = -32603
	codeBadSession    = -32000
	codeUnauthorized  = -32001
	codeRateLimited   = -32002
)

type jsonRPCErrorBody struct {
	JSONRPC string          `json:"jsonrpc"`
	Error   jsonRPCErrorObj `json:"error"`
	ID      any             `json:"id"`
}

type jsonRPCErrorObj struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, jsonRPCErrorBody{
		JSONRPC: mcp.JSONRPC_VERSION,
		Error:   jsonRPCErrorObj{Code: code, Message: message},
		ID:      nil,
	})
}

func writeBadSession(w http.ResponseWriter) {
	writeJSONRPCError(w, http.StatusBadRequest, codeBadSession, "Bad Request: No valid session ID provided")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

// bindTenant resolves the caller's workspace. It writes the error response
// and returns false when the request cannot proceed.
func (s *Server) bindTenant(w http.ResponseWriter, r *http.Request) (*tenants.Context, bool) {
	header := s.config.GetTenantHeader()
	teamID := r.Header.Get(header)
	if teamID == "" {
		writeJSONRPCError(w, http.StatusUnauthorized, codeUnauthorized, fmt.Sprintf("Unauthorized: missing %s header", header))
		return nil, false
	}

	tc, err := s.resolver.Resolve(r.Context(), teamID)
	switch {
	case err == nil:
	case gwerrors.Is(err, gwerrors.ErrUnknownTenant):
		writeJSONRPCError(w, http.StatusUnauthorized, codeUnauthorized, "Unauthorized: workspace is not installed")
		return nil, false
	default:
		log.Error().Err(err).Str("team_id", teamID).Msg("tenant resolution failed")
		writeJSONRPCError(w, http.StatusInternalServerError, codeInternalError, "Internal error")
		return nil, false
	}

	if !s.limiter.Allow(tc.TeamID) {
		s.metrics.RateLimited()
		w.Header().Set("Retry-After", "1")
		writeJSONRPCError(w, http.StatusTooManyRequests, codeRateLimited, "Too Many Requests")
		return nil, false
	}
	return tc, true
}

// knownSession returns the transport named by the session header, or writes
// the error response and returns false.
func (s *Server) knownSession(w http.ResponseWriter, r *http.Request) (*sessions.Transport, bool) {
	t, err := s.registry.Lookup(r.Header.Get(HeaderSessionID))
	if err != nil {
		writeSessionError(w, err)
		return nil, false
	}
	return t, true
}

// writeSessionError maps session failures onto HTTP responses. Unknown and
// already closed sessions are the client's fault.
func writeSessionError(w http.ResponseWriter, err error) {
	if gwerrors.Is(err, gwerrors.ErrUnknownSession) || gwerrors.Is(err, gwerrors.ErrSessionClosed) {
		log.Debug().Err(err).Msg("rejected request for unknown session")
		writeBadSession(w)
		return
	}
	log.Error().Err(err).Msg("session dispatch failed")
	writeJSONRPCError(w, http.StatusInternalServerError, codeInternalError, "Internal error")
}

// MCPPostHandler dispatches client to server messages. A request without a
// session id must be an initialize request, which creates the session.
func (s *Server) MCPPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := s.bindTenant(w, r)
		if !ok {
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMCPBodyBytes))
		if err != nil || !json.Valid(body) {
			writeJSONRPCError(w, http.StatusBadRequest, codeParseError, "Parse error")
			return
		}
		ctx := tenants.WithContext(r.Context(), tc)

		if r.Header.Get(HeaderSessionID) != "" {
			t, ok := s.knownSession(w, r)
			if !ok {
				return
			}
			s.forward(ctx, w, t, body)
			return
		}

		if !isInitializeRequest(body) {
			writeBadSession(w)
			return
		}
		s.handshake(ctx, w, tc.TeamID, body)
	}
}

func (s *Server) handshake(ctx context.Context, w http.ResponseWriter, teamID string, body json.RawMessage) {
	t, err := s.registry.Create(ctx)
	if gwerrors.Is(err, gwerrors.ErrSessionClosed) {
		log.Debug().Err(err).Str("team_id", teamID).Msg("initialize refused during shutdown")
		writeJSONRPCError(w, http.StatusServiceUnavailable, codeInternalError, "Server shutting down")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("team_id", teamID).Msg("session create failed")
		writeJSONRPCError(w, http.StatusInternalServerError, codeInternalError, "Internal error")
		return
	}

	resp, err := t.Handle(ctx, body)
	if err == nil && resp != nil && !isJSONRPCError(resp) {
		log.Info().Str("team_id", teamID).Str("session_id", t.SessionID()).Msg("mcp session started")
		w.Header().Set(HeaderSessionID, t.SessionID())
		writeJSON(w, http.StatusOK, resp)
		return
	}

	s.registry.TerminateWithReason(ctx, t.SessionID(), sessions.ReasonBadHandshake)
	hsErr := fmt.Errorf("session %s: %w", t.SessionID(), gwerrors.ErrBadHandshake)
	if err != nil {
		hsErr = fmt.Errorf("%w: %w", hsErr, err)
	}
	log.Warn().Err(hsErr).Str("team_id", teamID).Msg("initialize rejected")
	if resp != nil {
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	writeJSONRPCError(w, http.StatusBadRequest, codeBadSession, "Bad Request: "+gwerrors.ErrBadHandshake.Error())
}

func (s *Server) forward(ctx context.Context, w http.ResponseWriter, t *sessions.Transport, body json.RawMessage) {
	resp, err := t.Handle(ctx, body)
	if err != nil {
		// ErrSessionClosed here means a lost race with DELETE or eviction.
		writeSessionError(w, fmt.Errorf("session %s: %w", t.SessionID(), err))
		return
	}
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// MCPStreamHandler serves server to client notifications for a session as
// server-sent events until the client disconnects or the session ends.
func (s *Server) MCPStreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.bindTenant(w, r); !ok {
			return
		}
		t, ok := s.knownSession(w, r)
		if !ok {
			return
		}

		rc := http.NewResponseController(w)
		_ = rc.SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set(HeaderSessionID, t.SessionID())
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			log.Error().Err(err).Msg("response writer cannot stream")
			return
		}

		err := t.Stream(r.Context(), func(n mcp.JSONRPCNotification) error {
			data, err := json.Marshal(n)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
				return err
			}
			return rc.Flush()
		})
		if err != nil && !gwerrors.Is(err, gwerrors.ErrSessionClosed) {
			log.Debug().Err(err).Str("session_id", t.SessionID()).Msg("notification stream ended")
		}
	}
}

// MCPDeleteHandler terminates a session.
func (s *Server) MCPDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := s.bindTenant(w, r)
		if !ok {
			return
		}
		t, ok := s.knownSession(w, r)
		if !ok {
			return
		}
		s.registry.Terminate(r.Context(), t.SessionID())
		log.Info().Str("team_id", tc.TeamID).Str("session_id", t.SessionID()).Msg("mcp session deleted")
		w.WriteHeader(http.StatusOK)
	}
}

func isInitializeRequest(body []byte) bool {
	var envelope struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return envelope.Method == string(mcp.MethodInitialize) && len(envelope.ID) > 0 && string(envelope.ID) != "null"
}

func isJSONRPCError(msg mcp.JSONRPCMessage) bool {
	raw, err := json.Marshal(msg)
	if err != nil {
		return true
	}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return true
	}
	return len(envelope.Error) > 0 && string(envelope.Error) != "null"
}
