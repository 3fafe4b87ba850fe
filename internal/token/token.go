package token

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/manabi-dev/manabi/internal/domain"
	"github.com/manabi-dev/manabi/internal/logger"
	"github.com/manabi-dev/manabi/internal/session"
)

// Verification failures are tagged so callers can distinguish an expired
// token from a malformed or forged one.
var (
	ErrExpired   = errors.New("token expired")
	ErrMalformed = errors.New("token malformed")
	ErrInvalid   = errors.New("token invalid")
)

// emailChangeTTL bounds how long an email-change confirmation link stays valid.
const emailChangeTTL = time.Hour

// AccessClaims is the verified payload of an access token.
type AccessClaims struct {
	UserId domain.UserId
	Role   domain.Role
}

// Registry is the slice of the session registry the token service needs:
// recording refresh tokens on issue and resolving their owner on verify.
type Registry interface {
	SaveRefreshToken(ctx context.Context, token string, userId domain.UserId, ttl time.Duration) error
	RefreshTokenOwner(ctx context.Context, token string) (domain.UserId, error)
}

// Service signs and verifies the two token kinds. Access and refresh tokens
// use separate secrets so one leaking does not compromise the other.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	registry      Registry
}

func New(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, registry Registry) *Service {
	return &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		registry:      registry,
	}
}

func (s *Service) AccessTTL() time.Duration  { return s.accessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// NewAccessToken signs a short-lived token carrying identity and role.
// Pure: no I/O, validity is determined later by signature plus blacklist.
func (s *Service) NewAccessToken(userId domain.UserId, role domain.Role) (string, error) {
	claims := jwt.MapClaims{
		"jti":  uuid.NewString(),
		"uid":  userId,
		"role": string(role),
		"exp":  time.Now().Add(s.accessTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

// NewRefreshToken signs a long-lived token and records it in the registry
// with a TTL matching its lifetime. Each token carries a unique id, so two
// sessions opened in the same second never share a token value and revoking
// one cannot revoke the other. When the registry write fails the signed
// token is still returned together with the error: the caller decides whether
// to degrade (login does) or to give up.
func (s *Service) NewRefreshToken(ctx context.Context, userId domain.UserId) (string, error) {
	claims := jwt.MapClaims{
		"jti": uuid.NewString(),
		"uid": userId,
		"exp": time.Now().Add(s.refreshTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", err
	}
	return token, s.registry.SaveRefreshToken(ctx, token, userId, s.refreshTTL)
}

// VerifyAccessToken checks signature and expiry and requires the payload to
// carry a user id and a known role. Failures are ErrExpired, ErrMalformed or
// ErrInvalid.
func (s *Service) VerifyAccessToken(tokenStr string) (*AccessClaims, error) {
	claims, err := s.parse(tokenStr, s.accessSecret)
	if err != nil {
		return nil, err
	}

	uid, ok := claims["uid"].(float64)
	if !ok {
		return nil, ErrMalformed
	}
	roleStr, ok := claims["role"].(string)
	if !ok {
		return nil, ErrMalformed
	}
	role := domain.Role(roleStr)
	if !role.Valid() {
		return nil, ErrMalformed
	}

	return &AccessClaims{UserId: domain.UserId(uid), Role: role}, nil
}

// VerifyRefreshToken applies the dual check that makes revocation work: the
// signature must verify AND the registry must still hold the token mapped to
// the same user. A leaked-but-revoked token fails the second check even
// though its signature is fine. Soft-fails to (0, false) on any problem,
// including registry errors (fail closed).
func (s *Service) VerifyRefreshToken(ctx context.Context, tokenStr string) (domain.UserId, bool) {
	claims, err := s.parse(tokenStr, s.refreshSecret)
	if err != nil {
		return 0, false
	}
	uid, ok := claims["uid"].(float64)
	if !ok {
		return 0, false
	}
	userId := domain.UserId(uid)

	owner, err := s.registry.RefreshTokenOwner(ctx, tokenStr)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			logger.Log.Warn("refresh token registry lookup failed", "error", err)
		}
		return 0, false
	}
	if owner != userId {
		return 0, false
	}
	return userId, true
}

// NewEmailChangeToken signs a one-hour token binding a pending email change
// to the requesting user.
func (s *Service) NewEmailChangeToken(userId domain.UserId, newEmail domain.Email) (string, error) {
	claims := jwt.MapClaims{
		"uid":       userId,
		"new_email": newEmail,
		"exp":       time.Now().Add(emailChangeTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

func (s *Service) VerifyEmailChangeToken(tokenStr string) (domain.UserId, domain.Email, error) {
	claims, err := s.parse(tokenStr, s.accessSecret)
	if err != nil {
		return 0, "", err
	}
	uid, ok := claims["uid"].(float64)
	if !ok {
		return 0, "", ErrMalformed
	}
	newEmail, ok := claims["new_email"].(string)
	if !ok || newEmail == "" {
		return 0, "", ErrMalformed
	}
	return domain.UserId(uid), newEmail, nil
}

// RemainingLifetime reports how long the token's signed expiry is still in
// the future, without verifying the signature. Used to size blacklist TTLs;
// returns 0 for unparsable or already expired tokens.
func (s *Service) RemainingLifetime(tokenStr string) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return 0
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return 0
	}
	remaining := time.Until(time.Unix(int64(exp), 0))
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *Service) parse(tokenStr string, secret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformed
	default:
		return nil, ErrInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	return claims, nil
}

// ParseExpiry converts a configured lifetime like "15m" or "7d" to a
// duration. Units: s, m, h, d. Unknown units parse to 0 (immediate expiry),
// so configured values must be validated at startup.
func ParseExpiry(v string) time.Duration {
	if len(v) < 2 {
		return 0
	}
	value, err := strconv.Atoi(v[:len(v)-1])
	if err != nil || value < 0 {
		return 0
	}
	switch v[len(v)-1] {
	case 's':
		return time.Duration(value) * time.Second
	case 'm':
		return time.Duration(value) * time.Minute
	case 'h':
		return time.Duration(value) * time.Hour
	case 'd':
		return time.Duration(value) * 24 * time.Hour
	default:
		return 0
	}
}
