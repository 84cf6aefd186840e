package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"
)

const (
	actorIDHeader     = "x-actor-id"
	actorRoleHeader   = "x-actor-role"
	actorSalonsHeader = "x-actor-salons"
	authorizationKey  = "authorization"
)

var errNoActor = errors.New("missing actor credentials")

// ActorClaims is the bearer token payload. Subject is the actor id.
type ActorClaims struct {
	Role   string   `json:"role"`
	Salons []string `json:"salons,omitempty"`
	jwt.RegisteredClaims
}

// ActorResolver identifies the client or manager behind a request. With a
// JWT secret only signed bearer tokens are accepted; without one the plain
// x-actor-* headers are trusted, which is meant for local development.
type ActorResolver struct {
	secret []byte
}

func NewActorResolver(cfg config.APIAuthConfig) *ActorResolver {
	return &ActorResolver{secret: []byte(cfg.JWTSecret)}
}

// IssueToken signs an HS256 token for actor.
func IssueToken(secret string, actor models.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ActorClaims{
		Role:   string(actor.Role),
		Salons: actor.Salons,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (r *ActorResolver) fromToken(raw string) (models.Actor, error) {
	var claims ActorClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Actor{}, fmt.Errorf("invalid bearer token: %w", err)
	}
	return buildActor(claims.Subject, claims.Role, claims.Salons)
}

func buildActor(id, role string, salons []string) (models.Actor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Actor{}, errNoActor
	}
	r := models.Role(strings.ToLower(strings.TrimSpace(role)))
	switch r {
	case models.RoleClient, models.RoleManager:
	default:
		return models.Actor{}, fmt.Errorf("unknown actor role %q", role)
	}
	return models.Actor{ID: id, Role: r, Salons: salons}, nil
}

func bearer(value string) string {
	const prefix = "bearer "
	value = strings.TrimSpace(value)
	if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		return strings.TrimSpace(value[len(prefix):])
	}
	return ""
}

func (r *ActorResolver) resolve(authorization, id, role, salons string) (models.Actor, error) {
	if len(r.secret) > 0 {
		token := bearer(authorization)
		if token == "" {
			return models.Actor{}, errNoActor
		}
		return r.fromToken(token)
	}
	return buildActor(id, role, splitCSV(salons))
}

func (r *ActorResolver) FromHTTP(req *http.Request) (models.Actor, error) {
	return r.resolve(
		req.Header.Get(authorizationKey),
		req.Header.Get(actorIDHeader),
		req.Header.Get(actorRoleHeader),
		req.Header.Get(actorSalonsHeader),
	)
}

func (r *ActorResolver) FromContext(ctx context.Context) (models.Actor, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return models.Actor{}, errNoActor
	}
	return r.resolve(
		first(md.Get(authorizationKey)),
		first(md.Get(actorIDHeader)),
		first(md.Get(actorRoleHeader)),
		first(md.Get(actorSalonsHeader)),
	)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
