package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jrsteele09/slack-mcp-gateway/install"
	"github.com/jrsteele09/slack-mcp-gateway/internal/config"
	"github.com/jrsteele09/slack-mcp-gateway/internal/metrics"
	"github.com/jrsteele09/slack-mcp-gateway/server"
	"github.com/jrsteele09/slack-mcp-gateway/sessions"
	"github.com/jrsteele09/slack-mcp-gateway/slackoauth"
	"github.com/jrsteele09/slack-mcp-gateway/tenants"
	"github.com/jrsteele09/slack-mcp-gateway/tools"
)

var errPanicRecovered = errors.New("panic recovered")

const shutdownTimeout = 5 * time.Second

func run(ctx context.Context, c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errPanicRecovered
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.close()

	m := metrics.New()
	exchanger := slackoauth.NewSlackExchanger(slackoauth.Config{
		ClientID:     c.GetSlackClientID(),
		ClientSecret: c.GetSlackClientSecret(),
		RedirectURI:  c.GetSlackRedirectURI(),
		BotScopes:    c.GetSlackScopes(),
		UserScopes:   c.GetSlackUserScopes(),
	})
	if c.GetSlackClientID() == "" || c.GetSlackClientSecret() == "" {
		log.Warn().Msg("SLACK_CLIENT_ID or SLACK_CLIENT_SECRET is not set; installs will fail")
	}
	if c.GetSlackSigningSecret() == "" {
		log.Warn().Msg("SLACK_SIGNING_SECRET is not set; Slack events and commands will be rejected")
	}

	var state *slackoauth.StateSigner
	if secret := c.GetStateSecret(); secret != "" {
		if state, err = slackoauth.NewStateSigner(secret, c.GetStateTTL(), time.Now); err != nil {
			return fmt.Errorf("[run] state signer: %w", err)
		}
	}

	registry := sessions.NewRegistry(tools.NewServer(), sessions.WithMetrics(m))
	handler, err := server.New(c, server.Services{
		Registry:  registry,
		Resolver:  tenants.NewResolver(store, tenants.WithClientFactory(tenants.NewClientFactory(c.GetSlackAPIURL()))),
		Installer: install.NewService(exchanger, store, install.WithMetrics(m)),
		Authorize: exchanger,
		State:     state,
		Store:     store,
		Metrics:   m,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().
		Str("store", c.GetStoreBackend()).
		Dur("session_idle_ttl", c.GetSessionIdleTTL()).
		Msg("MCP sessions live in this process; run one replica or route by Mcp-Session-Id")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listenAndServe(httpServer)
	})
	g.Go(func() error {
		return registry.RunSweeper(gctx, c.GetSessionSweepInterval(), c.GetSessionIdleTTL())
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(httpServer, registry)
	})
	return g.Wait()
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server, registry *sessions.Registry) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Close sessions first so open notification streams end and Shutdown can drain.
	// CloseAll also refuses any initialize still in flight.
	registry.CloseAll(ctx)
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
