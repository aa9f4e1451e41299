// Package token implements the signed claims envelope shared by access,
// refresh and password-reset credentials. One codec, one secret; the three
// credential kinds differ only in TTL and the typ claim.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"callcenter-ops/internal/model"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindReset   Kind = "reset"
)

var (
	// ErrExpired is returned for structurally valid tokens past their expiry.
	ErrExpired = errors.New("token expired")
	// ErrInvalid covers every other verification failure: bad signature,
	// malformed input, wrong kind, missing subject. Callers must not leak
	// which check failed.
	ErrInvalid = errors.New("token invalid")
)

// Claims is the payload carried inside a signed credential.
type Claims struct {
	UserID            int64
	Email             string
	Role              model.Role
	IsPasswordChanged bool
	TokenGeneration   int
	Kind              Kind
}

type jwtClaims struct {
	Email             string `json:"email,omitempty"`
	Role              string `json:"role,omitempty"`
	IsPasswordChanged bool   `json:"is_password_changed"`
	TokenGeneration   int    `json:"gen"`
	Kind              string `json:"typ"`
	jwt.RegisteredClaims
}

// Codec signs and verifies claims with a single HMAC-SHA256 secret. The
// secret is fixed at construction and never mutated, so a Codec is safe for
// concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token: signing secret is required")
	}
	return &Codec{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs claims with expiry now+ttl.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("token: ttl must be positive")
	}

	now := c.now().UTC()
	jc := jwtClaims{
		Email:             claims.Email,
		Role:              string(claims.Role),
		IsPasswordChanged: claims.IsPasswordChanged,
		TokenGeneration:   claims.TokenGeneration,
		Kind:              string(claims.Kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(claims.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jc).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and kind. Any failure other than expiry
// collapses into ErrInvalid: tampered input never surfaces partial claims.
func (c *Codec) Verify(raw string, kind Kind) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrInvalid
	}

	jc, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalid
	}
	if jc.Kind != string(kind) {
		return Claims{}, ErrInvalid
	}

	userID, err := strconv.ParseInt(jc.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Claims{}, ErrInvalid
	}

	return Claims{
		UserID:            userID,
		Email:             jc.Email,
		Role:              model.Role(jc.Role),
		IsPasswordChanged: jc.IsPasswordChanged,
		TokenGeneration:   jc.TokenGeneration,
		Kind:              Kind(jc.Kind),
	}, nil
}
