package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/senyabanana/tender-platform/internal/models"
	"github.com/senyabanana/tender-platform/internal/repository"

	"github.com/golang-jwt/jwt/v5"
)

// Claims - JWT-утверждения сессии. Subject содержит идентификатор пользователя.
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken выпускает токен сессии для пользователя.
func GenerateToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ActorResolver определяет пользователя по bearer-токену и загружает его членство в организациях.
type ActorResolver struct {
	Secret        []byte
	Organizations func() repository.OrganizationRepository
}

// NewActorResolver создаёт новый экземпляр ActorResolver.
func NewActorResolver(secret string, store repository.Store) *ActorResolver {
	return &ActorResolver{
		Secret: []byte(secret),
		Organizations: func() repository.OrganizationRepository {
			return store.Repos().Organizations
		},
	}
}

var errUnauthenticated = models.NewErrorResponse(http.StatusUnauthorized, "invalid or missing bearer token")

// Resolve возвращает актора запроса.
func (a *ActorResolver) Resolve(ctx context.Context, r *http.Request) (models.Actor, error) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return models.Actor{}, errUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return models.Actor{}, errUnauthenticated
	}

	memberships, err := a.Organizations().ListMemberships(ctx, claims.Subject)
	if err != nil {
		return models.Actor{}, fmt.Errorf("failed to load memberships: %w", err)
	}
	return models.Actor{UserID: claims.Subject, Memberships: memberships}, nil
}
