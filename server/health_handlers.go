package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Store    string `json:"store,omitempty"`
}

// HealthHandler reports liveness and, when the store supports it, store
// reachability.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Sessions: s.registry.Len()}
		status := http.StatusOK

		if s.store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := s.store.Ping(ctx); err != nil {
				log.Warn().Err(err).Msg("health check: store unreachable")
				resp.Status = "degraded"
				resp.Store = "unreachable"
				status = http.StatusServiceUnavailable
			} else {
				resp.Store = "ok"
			}
		}
		writeJSON(w, status, resp)
	}
}
