package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps wizard state in Redis between wizard requests. Sessions
// are ephemeral: the TTL doubles as abandonment, and commit deletes the key.
// Nothing in a session is a reservation.
type SessionStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

const defaultSessionTTL = 30 * time.Minute

func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{rdb: rdb, ttl: ttl, prefix: "booking:session:"}
}

func (s *SessionStore) Save(ctx context.Context, w *Wizard) error {
	body, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+w.SessionID, body, s.ttl).Err()
}

// Load returns (nil, false, nil) when the session does not exist or has
// expired.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*Wizard, bool, error) {
	body, err := s.rdb.Get(ctx, s.prefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var w Wizard
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, false, err
	}
	return &w, true, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, s.prefix+sessionID).Err()
}

func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
