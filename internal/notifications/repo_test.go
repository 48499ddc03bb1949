package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
)

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  recipient_user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	require.NoError(t, db.Exec("DELETE FROM notifications").Error)
	return db
}

func seedNotification(t *testing.T, repo Repository, recipient uuid.UUID, createdAt time.Time) *models.Notification {
	t.Helper()
	notification := &models.Notification{
		ID:              uuid.New(),
		RecipientUserID: recipient,
		Type:            enums.NotificationTypeOrderUpdate,
		Title:           "Order update",
		Message:         "Your order moved along.",
		CreatedAt:       createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), notification))
	return notification
}

func TestNotificationRepoListKeysetPagination(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	recipient := uuid.New()
	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		seedNotification(t, repo, recipient, base.Add(time.Duration(i)*time.Minute))
	}
	seedNotification(t, repo, uuid.New(), base)

	first, cursor, err := repo.List(ctx, listNotificationsParams{RecipientUserID: recipient, Limit: 3})
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.NotNil(t, cursor)

	rest, cursor, err := repo.List(ctx, listNotificationsParams{RecipientUserID: recipient, Limit: 3, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.Nil(t, cursor)

	// Newest first, no overlap between pages.
	require.True(t, first[0].CreatedAt.After(rest[len(rest)-1].CreatedAt))
}

func TestNotificationRepoMarkRead(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	recipient := uuid.New()
	notification := seedNotification(t, repo, recipient, time.Now().UTC())
	now := time.Now().UTC()

	result, err := repo.MarkRead(ctx, recipient, notification.ID, now)
	require.NoError(t, err)
	require.True(t, result.Updated)
	require.True(t, result.Found)

	// Already read: found but nothing updated.
	result, err = repo.MarkRead(ctx, recipient, notification.ID, now)
	require.NoError(t, err)
	require.False(t, result.Updated)
	require.True(t, result.Found)

	// Another user's id never matches.
	result, err = repo.MarkRead(ctx, uuid.New(), notification.ID, now)
	require.NoError(t, err)
	require.False(t, result.Found)
}

func TestNotificationRepoMarkAllRead(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	recipient := uuid.New()
	seedNotification(t, repo, recipient, time.Now().UTC())
	seedNotification(t, repo, recipient, time.Now().UTC())
	seedNotification(t, repo, uuid.New(), time.Now().UTC())

	count, err := repo.MarkAllRead(ctx, recipient, time.Now().UTC())
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	unread, _, err := repo.List(ctx, listNotificationsParams{RecipientUserID: recipient, Limit: 10, UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, unread)
}

func TestNotificationRepoDeleteOlderThan(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	recipient := uuid.New()
	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	seedNotification(t, repo, recipient, old)
	fresh := seedNotification(t, repo, recipient, time.Now().UTC())

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	remaining, _, err := repo.List(ctx, listNotificationsParams{RecipientUserID: recipient, Limit: 10})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, fresh.ID, remaining[0].ID)
}
