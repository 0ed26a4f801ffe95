package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quiz-learning-service/internal/domain"
)

const issuer = "quiz-learning-service"

// JWTIssuer signs HS256 identity tokens carrying the user id and role.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (j *JWTIssuer) Issue(user domain.User) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(j.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (j *JWTIssuer) Parse(raw string) (domain.Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return domain.Identity{}, err
	}
	if c.Subject == "" {
		return domain.Identity{}, errors.New("token has no subject")
	}
	if c.Role != domain.RoleAdministrator && c.Role != domain.RoleStudent {
		return domain.Identity{}, fmt.Errorf("token has unknown role %q", c.Role)
	}
	return domain.Identity{UserID: c.Subject, Role: c.Role}, nil
}
