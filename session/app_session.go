package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned for unknown or expired session ids.
var ErrNoSession = errors.New("session not found")

// AppSessionStore keeps admin login sessions in Redis. Each account also
// has a set of its session ids so all of them can be revoked at once.
type AppSessionStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewAppSessionStore(rdb redis.UniversalClient, ttl time.Duration) *AppSessionStore {
	return &AppSessionStore{rdb: rdb, ttl: ttl}
}

func (s *AppSessionStore) TTL() time.Duration { return s.ttl }

type AppSession struct {
	AccountID string `json:"aid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	// Method is "passkey" or "password".
	Method    string `json:"m"`
}

func key(id string) string                  { return fmt.Sprintf("laptops:sess:%s", id) }
func accountSetKey(accountID string) string { return fmt.Sprintf("laptops:account_sessions:%s", accountID) }

func (s *AppSessionStore) Create(ctx context.Context, id, accountID, method string) error {
	now := time.Now()
	b, err := json.Marshal(AppSession{
		AccountID: accountID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
		Method:    method,
	})
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key(id), b, s.ttl)
	pipe.SAdd(ctx, accountSetKey(accountID), id)
	pipe.Expire(ctx, accountSetKey(accountID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *AppSessionStore) Get(ctx context.Context, id string) (*AppSession, error) {
	b, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var as AppSession
	if err := json.Unmarshal(b, &as); err != nil {
		return nil, err
	}
	return &as, nil
}

func (s *AppSessionStore) Delete(ctx context.Context, id string) error {
	as, _ := s.Get(ctx, id)
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key(id))
	if as != nil {
		pipe.SRem(ctx, accountSetKey(as.AccountID), id)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// RevokeAllForAccount ends every session of an account; used when the
// account is deleted or loses admin rights.
func (s *AppSessionStore) RevokeAllForAccount(ctx context.Context, accountID string) error {
	ids, err := s.rdb.SMembers(ctx, accountSetKey(accountID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := s.rdb.TxPipeline()
	for _, sid := range ids {
		pipe.Del(ctx, key(sid))
	}
	pipe.Del(ctx, accountSetKey(accountID))
	_, err = pipe.Exec(ctx)
	return err
}
