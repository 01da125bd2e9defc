package install_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/slack-mcp-gateway/install"
	"github.com/jrsteele09/slack-mcp-gateway/installations"
	installationrepofakes "github.com/jrsteele09/slack-mcp-gateway/installations/repofakes"
	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
	"github.com/jrsteele09/slack-mcp-gateway/internal/metrics"
	"github.com/jrsteele09/slack-mcp-gateway/slackoauth/exchangefakes"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func setup(t *testing.T) (*install.Service, *exchangefakes.FakeExchanger, *installationrepofakes.FakeInstallationRepo, *clock, *metrics.Metrics) {
	t.Helper()
	c := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	ex := exchangefakes.NewFakeExchanger(c.Now)
	repo := installationrepofakes.NewFakeInstallationRepo()
	m := metrics.New()
	return install.NewService(ex, repo, install.WithMetrics(m)), ex, repo, c, m
}

// A workspace installed twice resolves to the second installation.
func TestInstallReinstallLatestWins(t *testing.T) {
	svc, ex, repo, c, m := setup(t)
	ctx := context.Background()

	ex.AddGrant("c1", installations.Installation{TeamID: "T1", BotToken: "xoxb-a"})
	ex.AddGrant("c2", installations.Installation{TeamID: "T1", BotToken: "xoxb-b"})

	first, err := svc.Install(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "xoxb-a", first.BotToken)

	c.now = c.now.Add(time.Hour)
	second, err := svc.Install(ctx, "c2")
	require.NoError(t, err)
	require.True(t, second.InstalledAt.After(first.InstalledAt))

	current, found, err := repo.FindCurrentByTeam(ctx, "T1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "xoxb-b", current.BotToken)
	require.Equal(t, 2, repo.Count("T1"))

	expected := `
# HELP slack_mcp_installs_total OAuth installations by result.
# TYPE slack_mcp_installs_total counter
slack_mcp_installs_total{result="ok"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "slack_mcp_installs_total"))
}

func TestInstallExchangeFailureSavesNothing(t *testing.T) {
	svc, _, repo, _, _ := setup(t)

	_, err := svc.Install(context.Background(), "never-issued")
	require.ErrorIs(t, err, gwerrors.ErrExchange)
	require.Equal(t, 0, repo.Count("T1"))
}

func TestInstallCodeIsSingleUse(t *testing.T) {
	svc, ex, repo, _, _ := setup(t)
	ex.AddGrant("c1", installations.Installation{TeamID: "T1", BotToken: "xoxb-a"})

	_, err := svc.Install(context.Background(), "c1")
	require.NoError(t, err)
	_, err = svc.Install(context.Background(), "c1")
	require.ErrorIs(t, err, gwerrors.ErrExchange)
	require.Equal(t, 1, repo.Count("T1"))
}

func TestInstallSaveFailureIsSurfaced(t *testing.T) {
	svc, ex, repo, _, _ := setup(t)
	ex.AddGrant("c1", installations.Installation{TeamID: "T1", BotToken: "xoxb-a"})
	repo.SetSaveError(errors.New("disk full"))

	inst, err := svc.Install(context.Background(), "c1")
	require.Nil(t, inst)
	require.ErrorIs(t, err, gwerrors.ErrPersistence)
	require.Equal(t, 1, ex.Calls(), "exchange must not be retried")

	repo.SetSaveError(nil)
	_, found, err := repo.FindCurrentByTeam(context.Background(), "T1")
	require.NoError(t, err)
	require.False(t, found)
}
