package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/kiramarket/kirama-backend/pkg/db"
	"github.com/kiramarket/kirama-backend/pkg/db/models"
)

func setupTokensTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	tokens := `
CREATE TABLE IF NOT EXISTS delivery_tokens (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  code TEXT NOT NULL UNIQUE,
  expires_at DATETIME NOT NULL,
  used INTEGER NOT NULL DEFAULT 0,
  used_at DATETIME,
  customer_confirmed INTEGER NOT NULL DEFAULT 0,
  counterparty_confirmed INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(tokens).Error)
	return db
}

func insertToken(t *testing.T, repo Repository, orderID uuid.UUID, code string, expiresAt time.Time) *models.DeliveryToken {
	t.Helper()
	token, err := repo.Create(context.Background(), &models.DeliveryToken{
		ID:        uuid.New(),
		OrderID:   orderID,
		Code:      code,
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)
	return token
}

func TestTokenRepoConsumeIsSingleUse(t *testing.T) {
	db := setupTokensTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	token := insertToken(t, repo, uuid.New(), "RACECODE"+uuid.NewString(), now.Add(time.Hour))

	rows, err := repo.Consume(ctx, token.ID, now, true, true)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	rows, err = repo.Consume(ctx, token.ID, now, true, true)
	require.NoError(t, err)
	require.EqualValues(t, 0, rows)

	stored, err := repo.FindByID(ctx, token.ID)
	require.NoError(t, err)
	require.True(t, stored.Used)
	require.NotNil(t, stored.UsedAt)
	require.True(t, stored.CustomerConfirmed)
}

func TestTokenRepoConsumeRefusesExpired(t *testing.T) {
	db := setupTokensTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	token := insertToken(t, repo, uuid.New(), "EXPIRED"+uuid.NewString(), now.Add(-time.Minute))

	rows, err := repo.Consume(ctx, token.ID, now, true, true)
	require.NoError(t, err)
	require.EqualValues(t, 0, rows)
}

func TestTokenRepoFindActiveByOrder(t *testing.T) {
	db := setupTokensTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	orderID := uuid.New()

	// Expired and used tokens are not active.
	insertToken(t, repo, orderID, "OLD"+uuid.NewString(), now.Add(-time.Hour))
	used := insertToken(t, repo, orderID, "USED"+uuid.NewString(), now.Add(time.Hour))
	_, err := repo.Consume(ctx, used.ID, now, true, true)
	require.NoError(t, err)

	_, err = repo.FindActiveByOrder(ctx, orderID, now)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	live := insertToken(t, repo, orderID, "LIVE"+uuid.NewString(), now.Add(time.Hour))
	found, err := repo.FindActiveByOrder(ctx, orderID, now)
	require.NoError(t, err)
	require.Equal(t, live.ID, found.ID)
}

func TestTokenRepoCodeUniqueness(t *testing.T) {
	db := setupTokensTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	code := "SAMECODE" + uuid.NewString()
	insertToken(t, repo, uuid.New(), code, time.Now().Add(time.Hour))

	_, err := repo.Create(ctx, &models.DeliveryToken{
		ID:        uuid.New(),
		OrderID:   uuid.New(),
		Code:      code,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.Error(t, err)
	require.True(t, dbpkg.IsUniqueViolation(err, ""))
}
