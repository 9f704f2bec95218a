package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"busticket/internal/domain"
	"busticket/internal/domain/models"
)

const (
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

// AgentClaims is the JWT body issued to boarding agents.
type AgentClaims struct {
	AgentID int64  `json:"agent_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	Agents AgentStore
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func (s AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Login checks credentials and returns a signed token. Unknown email and
// wrong password give the same error.
func (s AuthService) Login(ctx context.Context, email, password string) (string, models.Agent, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", models.Agent{}, domain.ValidationError{Field: "email", Msg: "email and password required"}
	}
	agent, err := s.Agents.GetByEmail(ctx, email)
	if err != nil {
		if domain.IsNotFound(err) {
			return "", models.Agent{}, domain.UnauthorizedError{Msg: "invalid credentials"}
		}
		return "", models.Agent{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(agent.PasswordHash), []byte(password)); err != nil {
		return "", models.Agent{}, domain.UnauthorizedError{Msg: "invalid credentials"}
	}
	token, err := s.Issue(agent)
	if err != nil {
		return "", models.Agent{}, err
	}
	return token, agent, nil
}

func (s AuthService) Issue(agent models.Agent) (string, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	now := s.now()
	claims := AgentClaims{
		AgentID: agent.ID,
		Role:    agent.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", domain.InternalError{Msg: "sign token", Err: err}
	}
	return signed, nil
}

// Parse validates a bearer token and returns who holds it.
func (s AuthService) Parse(token string) (domain.RequestContext, error) {
	var claims AgentClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.Secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return domain.RequestContext{}, domain.UnauthorizedError{Msg: "invalid token"}
	}
	return domain.RequestContext{AgentID: domain.ID(claims.AgentID), Role: claims.Role}, nil
}

// CreateAgent hashes the password and stores a new agent.
func (s AuthService) CreateAgent(ctx context.Context, name, email, password, role string) (models.Agent, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = RoleAgent
	}
	switch {
	case name == "":
		return models.Agent{}, domain.ValidationError{Field: "name", Msg: "required"}
	case !strings.Contains(email, "@"):
		return models.Agent{}, domain.ValidationError{Field: "email", Msg: "invalid"}
	case len(password) < 8:
		return models.Agent{}, domain.ValidationError{Field: "password", Msg: "at least 8 characters"}
	case role != RoleAgent && role != RoleAdmin:
		return models.Agent{}, domain.ValidationError{Field: "role", Msg: "must be agent or admin"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Agent{}, domain.InternalError{Msg: "hash password", Err: err}
	}
	a := models.Agent{Name: name, Email: email, PasswordHash: string(hash), Role: role}
	id, err := s.Agents.Create(ctx, a)
	if err != nil {
		return models.Agent{}, err
	}
	a.ID = id
	return a, nil
}
