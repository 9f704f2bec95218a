package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	intconfig "busticket/internal/config"
	"busticket/internal/domain"
	"busticket/internal/domain/models"
)

type AgentRepository struct {
	DB *sql.DB
}

func (r AgentRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r AgentRepository) GetByEmail(ctx context.Context, email string) (models.Agent, error) {
	db := r.db()
	if db == nil {
		return models.Agent{}, fmt.Errorf("db not available")
	}
	var a models.Agent
	err := db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role
		FROM agents
		WHERE email = ?
		LIMIT 1`, strings.ToLower(strings.TrimSpace(email)),
	).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Agent{}, domain.NotFoundError{Resource: "agent", Err: err}
		}
		return models.Agent{}, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// Create stores a new agent with an already hashed password.
func (r AgentRepository) Create(ctx context.Context, a models.Agent) (int64, error) {
	db := r.db()
	if db == nil {
		return 0, fmt.Errorf("db not available")
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO agents (name, email, password_hash, role)
		VALUES (?, ?, ?, ?)`,
		a.Name, strings.ToLower(strings.TrimSpace(a.Email)), a.PasswordHash, a.Role)
	if err != nil {
		if duplicateKey(err, "") {
			return 0, domain.ConflictError{Resource: "agent", Msg: "email already registered", Err: err}
		}
		return 0, fmt.Errorf("create agent: %w", err)
	}
	return res.LastInsertId()
}
