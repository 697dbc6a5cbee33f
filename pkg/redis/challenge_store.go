package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"walletcore.backend/pkg/crypto"
)

const DefaultChallengeTTL = 120 * time.Second

// ChallengeStore issues single-use random challenges keyed by user and device.
type ChallengeStore struct {
	client goredis.Cmdable
	ttl    time.Duration
}

func NewChallengeStore(client goredis.Cmdable, ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeStore{client: client, ttl: ttl}
}

func challengeKey(userID, deviceID string) string {
	return fmt.Sprintf("challenge:%s:%s", userID, deviceID)
}

// TTL is the lifetime of an issued challenge.
func (s *ChallengeStore) TTL() time.Duration {
	return s.ttl
}

// Issue stores a fresh challenge, replacing any outstanding one.
func (s *ChallengeStore) Issue(ctx context.Context, userID, deviceID string) (string, error) {
	challenge, err := crypto.GenerateRandomToken(32)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, challengeKey(userID, deviceID), challenge, s.ttl).Err(); err != nil {
		return "", err
	}
	return challenge, nil
}

// Consume atomically fetches and deletes the challenge. A missing or
// expired challenge yields "" and no error.
func (s *ChallengeStore) Consume(ctx context.Context, userID, deviceID string) (string, error) {
	challenge, err := s.client.GetDel(ctx, challengeKey(userID, deviceID)).Result()
	if err != nil {
		if IsNil(err) {
			return "", nil
		}
		return "", err
	}
	return challenge, nil
}
