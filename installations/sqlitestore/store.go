package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jrsteele09/slack-mcp-gateway/installations"
	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
	"github.com/jrsteele09/slack-mcp-gateway/internal/utils"
)

const (
	Driver = "sqlite"

	entityType = "slack_installation"
)

var _ installations.Repo = (*Store)(nil)

// Store keeps installation history in SQLite. Every Save is an INSERT; the
// current installation is read through idx_installations_team_installed.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open(Driver, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("[sqlitestore Open] %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" coherent.
	db.SetMaxOpenConns(1)
	if err := Migrate(ctx, db.DB, false); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("[sqlitestore Open] %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate applies any pending migrations, logging each step when verbose.
func (s *Store) Migrate(ctx context.Context, verbose bool) error {
	return Migrate(ctx, s.db.DB, verbose)
}

// New wraps an existing, already migrated connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// dbInstallation is the row shape of the installations table.
type dbInstallation struct {
	ID                     int64          `db:"id"`
	TeamID                 string         `db:"team_id"`
	TeamName               sql.NullString `db:"team_name"`
	AppID                  string         `db:"app_id"`
	BotUserID              sql.NullString `db:"bot_user_id"`
	BotToken               string         `db:"bot_token"`
	BotRefreshToken        sql.NullString `db:"bot_refresh_token"`
	BotExpiresAt           sql.NullString `db:"bot_expires_at"`
	AuthedUserID           sql.NullString `db:"authed_user_id"`
	AuthedUserAccessToken  sql.NullString `db:"authed_user_access_token"`
	AuthedUserRefreshToken sql.NullString `db:"authed_user_refresh_token"`
	AuthedUserExpiresAt    sql.NullString `db:"authed_user_expires_at"`
	InstalledAt            string         `db:"installed_at"`
	EntityType             string         `db:"entity_type"`
}

func toRow(i *installations.Installation) dbInstallation {
	row := dbInstallation{
		TeamID:          i.TeamID,
		TeamName:        nullString(utils.StringPtrIfSet(i.TeamName)),
		AppID:           i.AppID,
		BotUserID:       nullString(utils.StringPtrIfSet(i.BotUserID)),
		BotToken:        i.BotToken,
		BotRefreshToken: nullString(i.BotRefreshToken),
		BotExpiresAt:    nullTime(i.BotExpiresAt),
		InstalledAt:     installations.FormatTime(i.InstalledAt),
		EntityType:      entityType,
	}
	if u := i.AuthedUser; u != nil {
		row.AuthedUserID = nullString(u.UserID)
		row.AuthedUserAccessToken = nullString(&u.AccessToken)
		row.AuthedUserRefreshToken = nullString(u.RefreshToken)
		row.AuthedUserExpiresAt = nullTime(u.ExpiresAt)
	}
	return row
}

func (row dbInstallation) toInstallation() (*installations.Installation, error) {
	installedAt, err := installations.ParseTime(row.InstalledAt)
	if err != nil {
		return nil, fmt.Errorf("installed_at: %w", err)
	}
	botExpiresAt, err := parseNullTime(row.BotExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("bot_expires_at: %w", err)
	}
	inst := &installations.Installation{
		TeamID:          row.TeamID,
		TeamName:        row.TeamName.String,
		AppID:           row.AppID,
		BotUserID:       row.BotUserID.String,
		BotToken:        row.BotToken,
		BotRefreshToken: stringPtr(row.BotRefreshToken),
		BotExpiresAt:    botExpiresAt,
		InstalledAt:     installedAt,
	}
	if row.AuthedUserAccessToken.Valid {
		userExpiresAt, err := parseNullTime(row.AuthedUserExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("authed_user_expires_at: %w", err)
		}
		inst.AuthedUser = &installations.AuthedUser{
			UserID:       stringPtr(row.AuthedUserID),
			AccessToken:  row.AuthedUserAccessToken.String,
			RefreshToken: stringPtr(row.AuthedUserRefreshToken),
			ExpiresAt:    userExpiresAt,
		}
	}
	return inst, nil
}

const insertInstallation = `INSERT INTO installations (
	team_id, team_name, app_id, bot_user_id, bot_token, bot_refresh_token, bot_expires_at,
	authed_user_id, authed_user_access_token, authed_user_refresh_token, authed_user_expires_at,
	installed_at, entity_type
) VALUES (
	:team_id, :team_name, :app_id, :bot_user_id, :bot_token, :bot_refresh_token, :bot_expires_at,
	:authed_user_id, :authed_user_access_token, :authed_user_refresh_token, :authed_user_expires_at,
	:installed_at, :entity_type
)`

func (s *Store) Save(ctx context.Context, installation *installations.Installation) error {
	if err := installation.Validate(); err != nil {
		return fmt.Errorf("[sqlitestore Save] %w: %w", gwerrors.ErrPersistence, err)
	}
	if _, err := s.db.NamedExecContext(ctx, insertInstallation, toRow(installation)); err != nil {
		return fmt.Errorf("[sqlitestore Save] team %s: %w: %w", installation.TeamID, gwerrors.ErrPersistence, err)
	}
	return nil
}

const selectCurrent = `SELECT * FROM installations
WHERE team_id = ?
ORDER BY installed_at DESC, id DESC
LIMIT 1`

func (s *Store) FindCurrentByTeam(ctx context.Context, teamID string) (*installations.Installation, bool, error) {
	var row dbInstallation
	if err := s.db.GetContext(ctx, &row, selectCurrent, teamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("[sqlitestore FindCurrentByTeam] team %s: %w: %w", teamID, gwerrors.ErrStoreRead, err)
	}
	inst, err := row.toInstallation()
	if err != nil {
		return nil, false, fmt.Errorf("[sqlitestore FindCurrentByTeam] team %s: %w: %w", teamID, gwerrors.ErrStoreRead, err)
	}
	return inst, true, nil
}

// History returns every record for a team, newest first.
func (s *Store) History(ctx context.Context, teamID string) ([]installations.Installation, error) {
	var rows []dbInstallation
	const q = `SELECT * FROM installations WHERE team_id = ? ORDER BY installed_at DESC, id DESC`
	if err := s.db.SelectContext(ctx, &rows, q, teamID); err != nil {
		return nil, fmt.Errorf("[sqlitestore History] team %s: %w: %w", teamID, gwerrors.ErrStoreRead, err)
	}
	out := make([]installations.Installation, 0, len(rows))
	for _, row := range rows {
		inst, err := row.toInstallation()
		if err != nil {
			return nil, fmt.Errorf("[sqlitestore History] team %s: %w: %w", teamID, gwerrors.ErrStoreRead, err)
		}
		out = append(out, *inst)
	}
	return out, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: installations.FormatTime(*t), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := installations.ParseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
