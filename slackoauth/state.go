package slackoauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
)

const (
	stateIssuer     = "slack-mcp-gateway/install"
	DefaultStateTTL = 10 * time.Minute
)

// StateSigner issues and verifies the OAuth state parameter as a short lived
// HS256 token, so any instance can validate a callback without shared state.
type StateSigner struct {
	secret  []byte
	ttl     time.Duration
	nowTime func() time.Time
}

func NewStateSigner(secret string, ttl time.Duration, nowFunc func() time.Time) (*StateSigner, error) {
	if secret == "" {
		return nil, errors.New("state signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &StateSigner{secret: []byte(secret), ttl: ttl, nowTime: nowFunc}, nil
}

// Issue returns a new signed state value.
func (s *StateSigner) Issue() (string, error) {
	now := s.nowTime()
	claims := jwt.RegisteredClaims{
		Issuer:    stateIssuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("[StateSigner Issue] %w", err)
	}
	return signed, nil
}

// Verify checks the signature, issuer and expiry of a state value.
func (s *StateSigner) Verify(state string) error {
	if state == "" {
		return fmt.Errorf("missing state: %w", gwerrors.ErrInvalidState)
	}
	_, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{},
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.nowTime),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", gwerrors.ErrInvalidState, err)
	}
	return nil
}
