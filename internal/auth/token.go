package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// refreshTokenBytes is the entropy of an opaque refresh token (hex encoded).
const refreshTokenBytes = 32

// ErrInvalidToken covers every access-token verification failure: bad
// signature, expired, malformed, wrong issuer.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the access-token claims: the registered set plus the owning
// user ID. The subject carries the same value for interoperability.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"uid"`
}

// TokenIssuer mints and verifies tokens. The signing key and clock-skew
// leeway are process-wide configuration, loaded once at startup.
type TokenIssuer struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer with the given HS256 signing secret.
func NewTokenIssuer(secret []byte, issuer string, leeway time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: secret,
		issuer: issuer,
		leeway: leeway,
		now:    time.Now,
	}
}

// IssueAccess mints a signed, self-contained access token for the user.
// Verification needs no store lookup.
func (i *TokenIssuer) IssueAccess(userID int64, ttl time.Duration) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccess validates the signature and expiry of an access token and
// returns the user ID it was issued for. All failures collapse into
// ErrInvalidToken.
func (i *TokenIssuer) VerifyAccess(tokenString string) (int64, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithLeeway(i.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}

// NewRefreshToken generates an opaque, unguessable refresh token value.
// The caller persists it; the stored row is what makes it revocable.
func NewRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewActivationToken generates a unique activation token value.
func NewActivationToken() string {
	return uuid.New().String()
}
