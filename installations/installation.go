package installations

import (
	"encoding/json"
	"fmt"
	"time"

	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
)

// Installation is the credential record produced by one completed Slack OAuth
// grant for a team. Records are append-only: a reinstall or token rotation adds
// a new record and the one with the greatest InstalledAt is current.
type Installation struct {
	TeamID          string      `json:"teamId"`
	TeamName        string      `json:"teamName,omitempty"`
	AppID           string      `json:"appId"`
	BotUserID       string      `json:"botUserId,omitempty"`
	BotToken        string      `json:"botToken"`
	BotRefreshToken *string     `json:"botRefreshToken,omitempty"`
	BotExpiresAt    *time.Time  `json:"botExpiresAt,omitempty"`
	AuthedUser      *AuthedUser `json:"authedUser,omitempty"`
	InstalledAt     time.Time   `json:"installedAt"`
}

// AuthedUser is the user-level credential granted during the same OAuth grant.
type AuthedUser struct {
	UserID       *string    `json:"userId,omitempty"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken *string    `json:"refreshToken,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// Validate checks the fields every store requires before appending.
func (i *Installation) Validate() error {
	switch {
	case i == nil:
		return fmt.Errorf("installation is nil: %w", gwerrors.ErrInvalidRequest)
	case i.TeamID == "":
		return fmt.Errorf("installation team id is required: %w", gwerrors.ErrInvalidRequest)
	case i.BotToken == "":
		return fmt.Errorf("installation bot token is required: %w", gwerrors.ErrInvalidRequest)
	case i.InstalledAt.IsZero():
		return fmt.Errorf("installation installedAt is required: %w", gwerrors.ErrInvalidRequest)
	}
	return nil
}

// HasUserToken reports whether the installation carries a user-scoped token.
func (i *Installation) HasUserToken() bool {
	return i != nil && i.AuthedUser != nil && i.AuthedUser.AccessToken != ""
}

// Redacted returns a copy with every token masked, for logs and CLI output.
func (i Installation) Redacted() Installation {
	i.BotToken = redact(i.BotToken)
	if i.BotRefreshToken != nil {
		r := redact(*i.BotRefreshToken)
		i.BotRefreshToken = &r
	}
	if i.AuthedUser != nil {
		u := *i.AuthedUser
		u.AccessToken = redact(u.AccessToken)
		if u.RefreshToken != nil {
			r := redact(*u.RefreshToken)
			u.RefreshToken = &r
		}
		i.AuthedUser = &u
	}
	return i
}

func redact(token string) string {
	const keep = 8
	if len(token) <= keep {
		return "****"
	}
	return token[:keep] + "****"
}

// TimeLayout is the fixed-width ISO-8601 layout used for every persisted
// datetime. Values are always written in UTC so lexical order is
// chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts TimeLayout and any RFC 3339 timestamp.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// MarshalJSON writes InstalledAt in the persisted layout.
func (i Installation) MarshalJSON() ([]byte, error) {
	type alias Installation
	return json.Marshal(struct {
		alias
		BotExpiresAt *string `json:"botExpiresAt,omitempty"`
		InstalledAt  string  `json:"installedAt"`
	}{
		alias:        alias(i),
		BotExpiresAt: formatOptional(i.BotExpiresAt),
		InstalledAt:  FormatTime(i.InstalledAt),
	})
}

// UnmarshalJSON reads the persisted layout.
func (i *Installation) UnmarshalJSON(data []byte) error {
	type alias Installation
	aux := struct {
		*alias
		BotExpiresAt *string `json:"botExpiresAt,omitempty"`
		InstalledAt  string  `json:"installedAt"`
	}{alias: (*alias)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	if i.BotExpiresAt, err = parseOptional(aux.BotExpiresAt); err != nil {
		return err
	}
	if aux.InstalledAt != "" {
		if i.InstalledAt, err = ParseTime(aux.InstalledAt); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON writes ExpiresAt in the persisted layout.
func (u AuthedUser) MarshalJSON() ([]byte, error) {
	type alias AuthedUser
	return json.Marshal(struct {
		alias
		ExpiresAt *string `json:"expiresAt,omitempty"`
	}{alias: alias(u), ExpiresAt: formatOptional(u.ExpiresAt)})
}

// UnmarshalJSON reads the persisted layout.
func (u *AuthedUser) UnmarshalJSON(data []byte) error {
	type alias AuthedUser
	aux := struct {
		*alias
		ExpiresAt *string `json:"expiresAt,omitempty"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	u.ExpiresAt, err = parseOptional(aux.ExpiresAt)
	return err
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTime(*t)
	return &s
}

func parseOptional(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := ParseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
