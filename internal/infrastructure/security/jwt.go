package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/classhub/identity-service/internal/application/identity"
	"github.com/classhub/identity-service/internal/domain"
)

type JWTSigner struct {
	secret []byte
	issuer string
}

func NewJWTSigner(secret string, issuer string) *JWTSigner {
	return &JWTSigner{
		secret: []byte(secret),
		issuer: issuer,
	}
}

type accessClaims struct {
	UserID  string `json:"uid"`
	Account string `json:"account"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

func (s *JWTSigner) SignAccessToken(u domain.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := accessClaims{
		UserID:  u.ID,
		Account: u.Account,
		Email:   u.Email,
		Role:    u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}
	return signed, nil
}

func (s *JWTSigner) VerifyAccessToken(token string) (identity.AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method != jwt.SigningMethodHS256 {
			return nil, domain.ErrTokenInvalid()
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if isJWTExpired(err) {
			return identity.AccessClaims{}, domain.ErrTokenExpired()
		}
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return identity.AccessClaims{}, domain.ErrTokenMalformed()
		}
		return identity.AccessClaims{}, domain.ErrTokenInvalid()
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return identity.AccessClaims{}, domain.ErrTokenInvalid()
	}

	exp := time.Time{}
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	return identity.AccessClaims{
		UserID:  claims.UserID,
		Account: claims.Account,
		Email:   claims.Email,
		Role:    claims.Role,
		Exp:     exp,
	}, nil
}

func isJWTExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
