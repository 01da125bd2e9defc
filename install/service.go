package install

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/slack-mcp-gateway/installations"
	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
	"github.com/jrsteele09/slack-mcp-gateway/internal/metrics"
	"github.com/jrsteele09/slack-mcp-gateway/slackoauth"
)

// Service completes an OAuth installation. It is the only writer of
// installation records.
type Service struct {
	exchanger slackoauth.Exchanger
	repo      installations.Repo
	metrics   *metrics.Metrics
}

type ServiceOption func(*Service)

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(exchanger slackoauth.Exchanger, repo installations.Repo, opts ...ServiceOption) *Service {
	s := &Service{
		exchanger: exchanger,
		repo:      repo,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Install exchanges code and appends the resulting installation. Neither step
// is retried: the code is spent after the exchange, so a failed save means the
// workspace has to go through the OAuth flow again.
func (s *Service) Install(ctx context.Context, code string) (*installations.Installation, error) {
	inst, err := s.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		s.metrics.Install(metrics.InstallExchangeFailed)
		log.Warn().Err(err).Msg("oauth code exchange failed")
		return nil, fmt.Errorf("[Service Install] %w", err)
	}

	if err := s.repo.Save(ctx, inst); err != nil {
		s.metrics.Install(metrics.InstallPersistFailed)
		log.Error().Err(err).Str("team_id", inst.TeamID).Msg("installation exchanged but not saved; reinstall required")
		if !gwerrors.Is(err, gwerrors.ErrPersistence) {
			err = fmt.Errorf("%w: %w", gwerrors.ErrPersistence, err)
		}
		return nil, fmt.Errorf("[Service Install] %w", err)
	}

	s.metrics.Install(metrics.InstallOK)
	log.Info().
		Str("team_id", inst.TeamID).
		Str("team_name", inst.TeamName).
		Bool("user_token", inst.HasUserToken()).
		Msg("slack workspace installed")
	return inst, nil
}
