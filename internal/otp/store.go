// Package otp はワンタイムコードの発行と検証を提供する。
// コードはRedisにTTL付きで保存し、検証成功または試行回数超過で消費される。
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/wasteman/internal/auth"
)

const keyPrefix = "wasteman:otp"

// RedisStore はRedisを使用したワンタイムコードストア。
type RedisStore struct {
	client      *redis.Client
	ttl         time.Duration
	maxAttempts int
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client *redis.Client, ttl time.Duration, maxAttempts int) *RedisStore {
	return &RedisStore{
		client:      client,
		ttl:         ttl,
		maxAttempts: maxAttempts,
	}
}

func codeKey(purpose auth.OTPPurpose, email string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, purpose, email)
}

func attemptsKey(purpose auth.OTPPurpose, email string) string {
	return codeKey(purpose, email) + ":attempts"
}

// Issue は6桁の数字コードを発行して保存する。
// 同一キーの既存コードと試行カウンタは破棄される。
func (s *RedisStore) Issue(ctx context.Context, purpose auth.OTPPurpose, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	if err := s.client.Set(ctx, codeKey(purpose, email), code, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store otp: %w", err)
	}
	if err := s.client.Del(ctx, attemptsKey(purpose, email)).Err(); err != nil {
		return "", fmt.Errorf("failed to reset otp attempts: %w", err)
	}
	return code, nil
}

// Verify はコードを検証する。一致した場合はコードを消費して再利用を防ぐ。
// 未発行・期限切れ・不一致・試行回数超過はすべてfalseを返す。
func (s *RedisStore) Verify(ctx context.Context, purpose auth.OTPPurpose, email, code string) (bool, error) {
	ck := codeKey(purpose, email)
	ak := attemptsKey(purpose, email)

	stored, err := s.client.Get(ctx, ck).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load otp: %w", err)
	}

	// 試行回数を先にカウントする。総当たりを防ぐため、
	// 上限に達したらコード自体を破棄する
	attempts, err := s.client.Incr(ctx, ak).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count otp attempt: %w", err)
	}
	if attempts == 1 {
		if err := s.client.Expire(ctx, ak, s.ttl).Err(); err != nil {
			return false, fmt.Errorf("failed to expire otp attempts: %w", err)
		}
	}
	if attempts > int64(s.maxAttempts) {
		if err := s.client.Del(ctx, ck, ak).Err(); err != nil {
			return false, fmt.Errorf("failed to discard otp: %w", err)
		}
		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false, nil
	}

	// 一致したコードは消費する
	if err := s.client.Del(ctx, ck, ak).Err(); err != nil {
		return false, fmt.Errorf("failed to consume otp: %w", err)
	}
	return true, nil
}

// generateCode は000000から999999までの6桁コードを生成する。
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

var _ auth.OTPStore = (*RedisStore)(nil)
