package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/requestdata"
)

// JWTClaims is the token payload the platform issues for learners. Staff and
// country are asserted by the issuer; this service only verifies the
// signature and lifts the claims into the request context.
type JWTClaims struct {
	Staff   bool   `json:"staff,omitempty"`
	Country string `json:"country,omitempty"`
	jwt.RegisteredClaims
}

type Service interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	IssueToken(learnerID uuid.UUID, staff bool, country string) (string, error)
	GetAccessTTL() time.Duration
}

type service struct {
	log          *logger.Logger
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewService(baseLog *logger.Logger, jwtSecretKey string, accessTTL time.Duration) Service {
	return &service{
		log:          baseLog.With("service", "Auth"),
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

// IssueToken mints a signed access token. The HTTP surface only verifies
// tokens; issuing is exposed for local development and tests.
func (as *service) IssueToken(learnerID uuid.UUID, staff bool, country string) (string, error) {
	claims := JWTClaims{
		Staff:   staff,
		Country: country,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   learnerID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *service) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, nil
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return ctx, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return ctx, fmt.Errorf("invalid or expired token")
	}
	learnerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("invalid learner id in token: %w", err)
	}
	rd := &requestdata.RequestData{
		TokenString: tokenString,
		LearnerID:   learnerID,
		IsStaff:     claims.Staff,
		Country:     claims.Country,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (as *service) GetAccessTTL() time.Duration {
	return as.accessTTL
}
