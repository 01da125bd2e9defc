package installations

import "context"

// Repo is the durable installation store.
//
// Save appends and never overwrites. FindCurrentByTeam returns the record
// with the greatest InstalledAt for the team; a team that never installed
// yields found == false with a nil error.
type Repo interface {
	Save(ctx context.Context, installation *Installation) error
	FindCurrentByTeam(ctx context.Context, teamID string) (inst *Installation, found bool, err error)
}

// Reader is the read half of Repo, used by the tenant resolver.
type Reader interface {
	FindCurrentByTeam(ctx context.Context, teamID string) (inst *Installation, found bool, err error)
}

// Pinger is implemented by stores that can report their connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
