// Package repotest holds the behaviour every installations.Repo must share.
package repotest

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/slack-mcp-gateway/installations"
	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
	"github.com/jrsteele09/slack-mcp-gateway/internal/utils"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// NewInstallation builds a fully populated record for teamID installed at
// baseTime plus offset.
func NewInstallation(teamID string, offset time.Duration) *installations.Installation {
	expires := baseTime.Add(offset + 12*time.Hour)
	return &installations.Installation{
		TeamID:          teamID,
		TeamName:        "Team " + teamID,
		AppID:           "A-" + teamID,
		BotUserID:       "U-BOT",
		BotToken:        fmt.Sprintf("xoxb-%s-%d", teamID, offset),
		BotRefreshToken: utils.Ptr("xoxe-1-bot"),
		BotExpiresAt:    &expires,
		AuthedUser: &installations.AuthedUser{
			UserID:       utils.Ptr("U123"),
			AccessToken:  fmt.Sprintf("xoxp-%s-%d", teamID, offset),
			RefreshToken: utils.Ptr("xoxe-1-user"),
			ExpiresAt:    &expires,
		},
		InstalledAt: baseTime.Add(offset),
	}
}

// Run exercises newRepo against the installation store contract.
func Run(t *testing.T, newRepo func(t *testing.T) installations.Repo) {
	t.Helper()
	ctx := context.Background()

	t.Run("not found is not an error", func(t *testing.T) {
		repo := newRepo(t)
		inst, found, err := repo.FindCurrentByTeam(ctx, "T-NEVER")
		require.NoError(t, err)
		require.False(t, found)
		require.Nil(t, inst)
	})

	t.Run("round trips every field", func(t *testing.T) {
		repo := newRepo(t)
		want := NewInstallation("T-ROUND", 0)
		require.NoError(t, repo.Save(ctx, want))

		got, found, err := repo.FindCurrentByTeam(ctx, "T-ROUND")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, want.TeamID, got.TeamID)
		require.Equal(t, want.TeamName, got.TeamName)
		require.Equal(t, want.AppID, got.AppID)
		require.Equal(t, want.BotUserID, got.BotUserID)
		require.Equal(t, want.BotToken, got.BotToken)
		require.Equal(t, *want.BotRefreshToken, utils.Value(got.BotRefreshToken))
		require.NotNil(t, got.BotExpiresAt)
		require.True(t, want.BotExpiresAt.Equal(*got.BotExpiresAt))
		require.True(t, want.InstalledAt.Equal(got.InstalledAt))
		require.NotNil(t, got.AuthedUser)
		require.Equal(t, want.AuthedUser.AccessToken, got.AuthedUser.AccessToken)
		require.Equal(t, "U123", utils.Value(got.AuthedUser.UserID))
		require.Equal(t, "xoxe-1-user", utils.Value(got.AuthedUser.RefreshToken))
		require.NotNil(t, got.AuthedUser.ExpiresAt)
		require.True(t, want.AuthedUser.ExpiresAt.Equal(*got.AuthedUser.ExpiresAt))
	})

	t.Run("optional fields stay absent", func(t *testing.T) {
		repo := newRepo(t)
		want := &installations.Installation{
			TeamID:      "T-MIN",
			AppID:       "A-MIN",
			BotToken:    "xoxb-min",
			InstalledAt: baseTime,
		}
		require.NoError(t, repo.Save(ctx, want))

		got, found, err := repo.FindCurrentByTeam(ctx, "T-MIN")
		require.NoError(t, err)
		require.True(t, found)
		require.Nil(t, got.BotRefreshToken)
		require.Nil(t, got.BotExpiresAt)
		require.Nil(t, got.AuthedUser)
		require.False(t, got.HasUserToken())
	})

	t.Run("latest installedAt wins regardless of insertion order", func(t *testing.T) {
		repo := newRepo(t)
		offsets := []time.Duration{0, time.Hour, 2 * time.Hour, 3 * time.Hour, 4 * time.Hour, 5 * time.Hour}
		rng := rand.New(rand.NewSource(42))
		rng.Shuffle(len(offsets), func(i, j int) { offsets[i], offsets[j] = offsets[j], offsets[i] })

		for _, offset := range offsets {
			require.NoError(t, repo.Save(ctx, NewInstallation("T-ORDER", offset)))
		}

		got, found, err := repo.FindCurrentByTeam(ctx, "T-ORDER")
		require.NoError(t, err)
		require.True(t, found)
		require.True(t, baseTime.Add(5*time.Hour).Equal(got.InstalledAt))
		require.Equal(t, NewInstallation("T-ORDER", 5*time.Hour).BotToken, got.BotToken)
	})

	t.Run("equal installedAt resolves to the later save", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 5; i++ {
			inst := NewInstallation("T-TIE", time.Hour)
			inst.BotToken = fmt.Sprintf("xoxb-tie-%d", i)
			require.NoError(t, repo.Save(ctx, inst))
		}

		got, found, err := repo.FindCurrentByTeam(ctx, "T-TIE")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "xoxb-tie-4", got.BotToken)
	})

	t.Run("an older reinstall does not shadow the current record", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, NewInstallation("T-OLD", 2*time.Hour)))
		require.NoError(t, repo.Save(ctx, NewInstallation("T-OLD", time.Hour)))

		got, _, err := repo.FindCurrentByTeam(ctx, "T-OLD")
		require.NoError(t, err)
		require.True(t, baseTime.Add(2*time.Hour).Equal(got.InstalledAt))
	})

	t.Run("teams are isolated", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, NewInstallation("T-A", time.Hour)))
		require.NoError(t, repo.Save(ctx, NewInstallation("T-B", 2*time.Hour)))

		a, found, err := repo.FindCurrentByTeam(ctx, "T-A")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "A-T-A", a.AppID)
		require.True(t, baseTime.Add(time.Hour).Equal(a.InstalledAt))
	})

	t.Run("concurrent saves for one team all persist", func(t *testing.T) {
		repo := newRepo(t)
		const n = 16
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- repo.Save(ctx, NewInstallation("T-RACE", time.Duration(i)*time.Minute))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, found, err := repo.FindCurrentByTeam(ctx, "T-RACE")
		require.NoError(t, err)
		require.True(t, found)
		require.True(t, baseTime.Add((n-1)*time.Minute).Equal(got.InstalledAt))
	})

	t.Run("invalid records are rejected as persistence errors", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.Save(ctx, &installations.Installation{TeamID: "T-BAD", InstalledAt: baseTime})
		require.ErrorIs(t, err, gwerrors.ErrPersistence)

		_, found, err := repo.FindCurrentByTeam(ctx, "T-BAD")
		require.NoError(t, err)
		require.False(t, found)
	})
}
