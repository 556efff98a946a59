package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// Store keeps WebAuthn ceremony state between the begin and finish calls.
type Store struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewStore(rdb redis.UniversalClient, ttl time.Duration) *Store { return &Store{rdb: rdb, ttl: ttl} }

func regKey(accountID string) string  { return fmt.Sprintf("laptops:webauthn:reg:%s", accountID) }
func regTokenKey(token string) string { return fmt.Sprintf("laptops:webauthn:reg:inv:%s", token) }
func authKey(sid string) string       { return fmt.Sprintf("laptops:webauthn:auth:%s", sid) }

func (s *Store) save(ctx context.Context, k string, sd *webauthn.SessionData) error {
	b, err := json.Marshal(sd)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, k, b, s.ttl).Err()
}

// take loads and deletes the ceremony state so it cannot be replayed.
func (s *Store) take(ctx context.Context, k string) (*webauthn.SessionData, error) {
	b, err := s.rdb.GetDel(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var sd webauthn.SessionData
	if err := json.Unmarshal(b, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}

// Adding a passkey to a signed-in account.
func (s *Store) SaveReg(ctx context.Context, accountID string, sd *webauthn.SessionData) error {
	return s.save(ctx, regKey(accountID), sd)
}

func (s *Store) TakeReg(ctx context.Context, accountID string) (*webauthn.SessionData, error) {
	return s.take(ctx, regKey(accountID))
}

// Registering through an invite.
func (s *Store) SaveRegByToken(ctx context.Context, token string, sd *webauthn.SessionData) error {
	return s.save(ctx, regTokenKey(token), sd)
}

func (s *Store) TakeRegByToken(ctx context.Context, token string) (*webauthn.SessionData, error) {
	return s.take(ctx, regTokenKey(token))
}

// Login.
func (s *Store) SaveAuth(ctx context.Context, sid string, sd *webauthn.SessionData) error {
	return s.save(ctx, authKey(sid), sd)
}

func (s *Store) TakeAuth(ctx context.Context, sid string) (*webauthn.SessionData, error) {
	return s.take(ctx, authKey(sid))
}
