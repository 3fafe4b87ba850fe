package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/manabi-dev/manabi/internal/domain"
)

// Key namespaces. A refresh token entry maps the token value to the id of the
// user it was issued to; a blacklist entry marks an access token as revoked
// for the remainder of its signed lifetime. Both expire natively in Redis,
// so no application-side cleanup runs.
const (
	refreshTokenPrefix = "refreshToken:"
	blacklistPrefix    = "blacklist:"
)

// ErrNotFound is returned when a key has no live entry (never written,
// expired, or explicitly invalidated).
var ErrNotFound = errors.New("session: key not found")

const defaultTimeout = 3 * time.Second

// Registry tracks live refresh tokens and blacklisted access tokens in a
// TTL-capable key/value store. The redis client is constructed by the caller
// and injected; the Registry does not own its lifecycle.
type Registry struct {
	client  *redis.Client
	timeout time.Duration
}

func New(client *redis.Client, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Registry{client: client, timeout: timeout}
}

// opCtx bounds every store call so a registry outage surfaces as an error
// instead of a hung request.
func (r *Registry) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Registry) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Registry) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return value, err
}

func (r *Registry) Delete(ctx context.Context, key string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	return r.client.Del(ctx, key).Err()
}

func (r *Registry) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ScanKeysByPrefix collects every key under prefix using cursor-based SCAN,
// so the store is never blocked the way KEYS would block it.
func (r *Registry) ScanKeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// SaveRefreshToken records a freshly issued refresh token. The TTL mirrors
// the token's signed lifetime, so the entry and the signature expire together.
func (r *Registry) SaveRefreshToken(ctx context.Context, token string, userId domain.UserId, ttl time.Duration) error {
	return r.Set(ctx, refreshTokenPrefix+token, strconv.FormatInt(userId, 10), ttl)
}

// RefreshTokenOwner returns the user id a live refresh token was issued to.
// ErrNotFound means the token was never registered, expired, or was revoked.
func (r *Registry) RefreshTokenOwner(ctx context.Context, token string) (domain.UserId, error) {
	value, err := r.Get(ctx, refreshTokenPrefix+token)
	if err != nil {
		return 0, err
	}
	userId, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return userId, nil
}

func (r *Registry) InvalidateRefreshToken(ctx context.Context, token string) error {
	return r.Delete(ctx, refreshTokenPrefix+token)
}

// InvalidateAllSessions removes every live refresh token belonging to userId.
// This is a linear scan over all refreshToken:* keys; fine at expected session
// counts, callers must not assume it is cheap at very large ones. Calling it
// for a user with no live sessions is a no-op, so it is safe to retry.
func (r *Registry) InvalidateAllSessions(ctx context.Context, userId domain.UserId) error {
	keys, err := r.ScanKeysByPrefix(ctx, refreshTokenPrefix)
	if err != nil {
		return err
	}

	want := strconv.FormatInt(userId, 10)
	for _, key := range keys {
		owner, err := r.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue // expired between scan and get
		}
		if err != nil {
			return err
		}
		if owner != want {
			continue
		}
		if err := r.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// BlacklistToken marks an access token as revoked for the remainder of its
// signed lifetime. A non-positive ttl means the token is already expired and
// there is nothing to record.
func (r *Registry) BlacklistToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.Set(ctx, blacklistPrefix+token, "true", ttl)
}

func (r *Registry) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	return r.Exists(ctx, blacklistPrefix+token)
}
