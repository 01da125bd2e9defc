package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/slack-mcp-gateway/installations"
	"github.com/jrsteele09/slack-mcp-gateway/installations/redisstore"
	installationrepofakes "github.com/jrsteele09/slack-mcp-gateway/installations/repofakes"
	"github.com/jrsteele09/slack-mcp-gateway/installations/sqlitestore"
	"github.com/jrsteele09/slack-mcp-gateway/internal/config"
)

// installationStore is what the gateway needs from a backend.
type installationStore interface {
	installations.Repo
	installations.Pinger
}

type openedStore struct {
	installationStore
	closer io.Closer
}

func (s openedStore) close() {
	if s.closer == nil {
		return
	}
	if err := s.closer.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close installation store")
	}
}

func openStore(ctx context.Context, c config.StoreConfig) (openedStore, error) {
	switch backend := c.GetStoreBackend(); backend {
	case config.StoreBackendMemory:
		log.Warn().Msg("using the in-memory installation store; installs are lost on restart")
		return openedStore{installationStore: installationrepofakes.NewFakeInstallationRepo()}, nil
	case config.StoreBackendSQLite:
		s, err := openSQLite(ctx, c.GetSQLitePath())
		if err != nil {
			return openedStore{}, err
		}
		return openedStore{installationStore: s, closer: s}, nil
	case config.StoreBackendRedis:
		s, err := redisstore.Open(ctx, c.GetRedisURL(), c.GetRedisKeyPrefix())
		if err != nil {
			return openedStore{}, err
		}
		return openedStore{installationStore: s, closer: s}, nil
	default:
		return openedStore{}, fmt.Errorf("[openStore] unknown store backend %q", backend)
	}
}

func openSQLite(ctx context.Context, path string) (*sqlitestore.Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("[openSQLite] %w", err)
		}
	}
	return sqlitestore.Open(ctx, path)
}
