package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busticket/internal/domain"
	"busticket/internal/domain/models"
)

func TestAgentGetByEmailNormalizesInput(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM agents").WithArgs("desk@example.com").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role"}).
			AddRow(4, "Desk", "desk@example.com", "$2a$10$hash", "agent"),
	)
	mock.ExpectQuery("FROM agents").WithArgs("nobody@example.com").WillReturnError(sql.ErrNoRows)

	repo := AgentRepository{DB: db}
	a, err := repo.GetByEmail(context.Background(), "  Desk@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, int64(4), a.ID)
	assert.Equal(t, "agent", a.Role)

	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.True(t, domain.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAgentCreateDuplicateIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO agents").WithArgs("Desk", "desk@example.com", "h", "agent").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO agents").WillReturnError(duplicateEntry("agents.uniq_agent_email"))

	repo := AgentRepository{DB: db}
	id, err := repo.Create(context.Background(), models.Agent{Name: "Desk", Email: "Desk@example.com", PasswordHash: "h", Role: "agent"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	_, err = repo.Create(context.Background(), models.Agent{Name: "Desk", Email: "desk@example.com", PasswordHash: "h", Role: "agent"})
	assert.True(t, domain.IsConflict(err))
}

func TestStatusCacheWithoutClientIsNoop(t *testing.T) {
	c := PaymentStatusCache{}
	require.NoError(t, c.Set(context.Background(), "tx-1", domain.ProviderPending))
	_, ok, err := c.Get(context.Background(), "tx-1")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(context.Background(), "tx-1"))
}

func TestStatusCacheSurfacesRedisErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := PaymentStatusCache{Client: client}

	_, ok, err := c.Get(context.Background(), "tx-1")
	assert.Error(t, err)
	assert.False(t, ok)

	assert.NoError(t, c.Set(context.Background(), "tx-1", domain.ProviderSuccessful), "terminal answers are never cached")
	assert.Error(t, c.Set(context.Background(), "tx-1", domain.ProviderPending))
	assert.Equal(t, "payment:status:tx-1", c.key("tx-1"))
}
