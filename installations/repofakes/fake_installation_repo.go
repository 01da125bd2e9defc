package installationrepofakes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jrsteele09/slack-mcp-gateway/installations"
	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
)

var _ installations.Repo = (*FakeInstallationRepo)(nil)

// FakeInstallationRepo is an in-memory append-only installation store. Each
// team's history is kept sorted by InstalledAt so the current record is the
// last element.
type FakeInstallationRepo struct {
	history map[string][]installations.Installation
	saveErr error
	findErr error
	lock    sync.RWMutex
}

func NewFakeInstallationRepo() *FakeInstallationRepo {
	return &FakeInstallationRepo{
		history: make(map[string][]installations.Installation),
	}
}

// SetSaveError makes every subsequent Save fail with err (nil clears it).
func (ir *FakeInstallationRepo) SetSaveError(err error) {
	ir.lock.Lock()
	defer ir.lock.Unlock()
	ir.saveErr = err
}

// SetFindError makes every subsequent FindCurrentByTeam fail with err.
func (ir *FakeInstallationRepo) SetFindError(err error) {
	ir.lock.Lock()
	defer ir.lock.Unlock()
	ir.findErr = err
}

func (ir *FakeInstallationRepo) Save(_ context.Context, installation *installations.Installation) error {
	if err := installation.Validate(); err != nil {
		return fmt.Errorf("[FakeInstallationRepo Save] %w: %w", gwerrors.ErrPersistence, err)
	}

	ir.lock.Lock()
	defer ir.lock.Unlock()
	if ir.saveErr != nil {
		return fmt.Errorf("[FakeInstallationRepo Save] %w: %w", gwerrors.ErrPersistence, ir.saveErr)
	}

	team := ir.history[installation.TeamID]
	// Insert after any record with an equal timestamp so the later write wins ties.
	idx := sort.Search(len(team), func(i int) bool {
		return team[i].InstalledAt.After(installation.InstalledAt)
	})
	team = append(team, installations.Installation{})
	copy(team[idx+1:], team[idx:])
	team[idx] = *installation
	ir.history[installation.TeamID] = team
	return nil
}

func (ir *FakeInstallationRepo) FindCurrentByTeam(_ context.Context, teamID string) (*installations.Installation, bool, error) {
	ir.lock.RLock()
	defer ir.lock.RUnlock()
	if ir.findErr != nil {
		return nil, false, fmt.Errorf("[FakeInstallationRepo FindCurrentByTeam] %w: %w", gwerrors.ErrStoreRead, ir.findErr)
	}

	team := ir.history[teamID]
	if len(team) == 0 {
		return nil, false, nil
	}
	current := team[len(team)-1]
	return &current, true, nil
}

// Count returns the number of records held for a team.
func (ir *FakeInstallationRepo) Count(teamID string) int {
	ir.lock.RLock()
	defer ir.lock.RUnlock()
	return len(ir.history[teamID])
}

// Ping always succeeds.
func (ir *FakeInstallationRepo) Ping(context.Context) error {
	return nil
}
