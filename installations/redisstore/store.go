package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/slack-mcp-gateway/installations"
	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second

	DefaultKeyPrefix = "slackmcp:"
)

var _ installations.Repo = (*Store)(nil)

// Store keeps installation history in Redis.
//
// Each record is a JSON document under {prefix}installation:{team}:{seq}; a
// per-team sorted set {prefix}installations:{team} scores the record keys by
// installedAt so the current record is ZREVRANGE 0 0. seq comes from a per-team
// INCR counter and is zero padded, so members with equal scores sort by save
// order and the later save wins a tie.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
}

// Open connects to the Redis server described by url (redis://...) and
// verifies the connection.
func Open(ctx context.Context, url, keyPrefix string) (*Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("[redisstore Open] parse url: %w", err)
	}
	if opt.DialTimeout == 0 {
		opt.DialTimeout = DefaultDialTimeout
	}
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = DefaultReadTimeout
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = DefaultWriteTimeout
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[redisstore Open] ping: %w", err)
	}
	return NewWithClient(client, keyPrefix), nil
}

// NewWithClient wraps a pre-configured client. Useful with miniredis.
func NewWithClient(client redis.UniversalClient, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

// Close closes the Redis client connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) indexKey(teamID string) string {
	return s.keyPrefix + "installations:" + teamID
}

func (s *Store) seqKey(teamID string) string {
	return s.keyPrefix + "installations:" + teamID + ":seq"
}

func (s *Store) recordKey(teamID string, seq int64) string {
	return fmt.Sprintf("%sinstallation:%s:%020d", s.keyPrefix, teamID, seq)
}

// score orders records by installedAt. Microseconds keep the value inside
// float64's exact integer range.
func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func (s *Store) Save(ctx context.Context, installation *installations.Installation) error {
	if err := installation.Validate(); err != nil {
		return fmt.Errorf("[redisstore Save] %w: %w", gwerrors.ErrPersistence, err)
	}
	payload, err := json.Marshal(installation)
	if err != nil {
		return fmt.Errorf("[redisstore Save] marshal: %w: %w", gwerrors.ErrPersistence, err)
	}

	seq, err := s.client.Incr(ctx, s.seqKey(installation.TeamID)).Result()
	if err != nil {
		return fmt.Errorf("[redisstore Save] team %s: sequence: %w: %w", installation.TeamID, gwerrors.ErrPersistence, err)
	}
	key := s.recordKey(installation.TeamID, seq)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, payload, 0)
		pipe.ZAdd(ctx, s.indexKey(installation.TeamID), redis.Z{
			Score:  score(installation.InstalledAt),
			Member: key,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("[redisstore Save] team %s: %w: %w", installation.TeamID, gwerrors.ErrPersistence, err)
	}
	return nil
}

func (s *Store) FindCurrentByTeam(ctx context.Context, teamID string) (*installations.Installation, bool, error) {
	keys, err := s.client.ZRevRange(ctx, s.indexKey(teamID), 0, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("[redisstore FindCurrentByTeam] team %s: %w: %w", teamID, gwerrors.ErrStoreRead, err)
	}
	if len(keys) == 0 {
		return nil, false, nil
	}

	payload, err := s.client.Get(ctx, keys[0]).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// An index entry without its record means the store is inconsistent, not that the team is unknown.
			return nil, false, fmt.Errorf("[redisstore FindCurrentByTeam] team %s: record %s missing: %w", teamID, keys[0], gwerrors.ErrStoreRead)
		}
		return nil, false, fmt.Errorf("[redisstore FindCurrentByTeam] team %s: %w: %w", teamID, gwerrors.ErrStoreRead, err)
	}

	var inst installations.Installation
	if err := json.Unmarshal(payload, &inst); err != nil {
		return nil, false, fmt.Errorf("[redisstore FindCurrentByTeam] team %s: decode: %w: %w", teamID, gwerrors.ErrStoreRead, err)
	}
	return &inst, true, nil
}
