package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/attendance/pkg/clock"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer token payload.
type Claims struct {
	EmployeeID string `json:"employee_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

type TokenGenerator interface {
	GenerateToken(employeeID, role string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// JWTTokenGenerator issues HS256 tokens that carry the employee id and role.
type JWTTokenGenerator struct {
	Secret   []byte
	TokenTTL time.Duration
	clock    clock.Clock
}

var (
	errTokenInvalid = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

func NewJWTTokenGenerator(secret string, ttl time.Duration, clk clock.Clock) *JWTTokenGenerator {
	if clk == nil {
		clk = clock.Real()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTTokenGenerator{Secret: []byte(secret), TokenTTL: ttl, clock: clk}
}

func (j *JWTTokenGenerator) GenerateToken(employeeID, role string) (string, error) {
	now := j.clock.Now()
	claims := &Claims{
		EmployeeID: employeeID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   employeeID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
}

func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired
		}
		return nil, errTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.EmployeeID == "" {
		return nil, errTokenInvalid
	}
	return claims, nil
}
