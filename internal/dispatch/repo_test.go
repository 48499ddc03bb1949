package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	"github.com/kiramarket/kirama-backend/pkg/pagination"
)

func setupDispatchTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS delivery_assignments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  vendor_user_id TEXT NOT NULL,
  mode TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  candidate_courier_id TEXT,
  courier_id TEXT,
  distance_km TEXT NOT NULL DEFAULT '0',
  commission_amount TEXT NOT NULL DEFAULT '0',
  bonus_amount TEXT NOT NULL DEFAULT '0',
  expires_at DATETIME,
  accepted_at DATETIME,
  picked_up_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  expired_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	require.NoError(t, db.Exec("DELETE FROM delivery_assignments").Error)
	return db
}

func seedAssignment(t *testing.T, repo Repository, mutate func(a *models.DeliveryAssignment)) *models.DeliveryAssignment {
	t.Helper()
	assignment := &models.DeliveryAssignment{
		ID:               uuid.New(),
		OrderID:          uuid.New(),
		VendorUserID:     uuid.New(),
		Mode:             enums.AssignmentModeMarketplace,
		Status:           enums.AssignmentStatusPending,
		DistanceKM:       decimal.RequireFromString("10"),
		CommissionAmount: decimal.RequireFromString("20000"),
		BonusAmount:      decimal.Zero,
	}
	if mutate != nil {
		mutate(assignment)
	}
	created, err := repo.Create(context.Background(), assignment)
	require.NoError(t, err)
	return created
}

func TestAssignmentRepoAcceptGuard(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	assignment := seedAssignment(t, repo, nil)
	now := time.Now().UTC()

	first := uuid.New()
	rows, err := repo.Accept(ctx, assignment.ID, first, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	// Second claim hits a non-pending row and must not match.
	rows, err = repo.Accept(ctx, assignment.ID, uuid.New(), now)
	require.NoError(t, err)
	require.EqualValues(t, 0, rows)

	stored, err := repo.FindByID(ctx, assignment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.AssignmentStatusAccepted, stored.Status)
	require.NotNil(t, stored.CourierID)
	require.Equal(t, first, *stored.CourierID)
}

func TestAssignmentRepoAcceptRefusesExpired(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute)
	assignment := seedAssignment(t, repo, func(a *models.DeliveryAssignment) {
		a.Mode = enums.AssignmentModeDirected
		a.ExpiresAt = &past
	})

	rows, err := repo.Accept(ctx, assignment.ID, uuid.New(), time.Now().UTC())
	require.NoError(t, err)
	require.EqualValues(t, 0, rows)
}

func TestAssignmentRepoClearCandidate(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	candidate := uuid.New()
	assignment := seedAssignment(t, repo, func(a *models.DeliveryAssignment) {
		a.Mode = enums.AssignmentModeDirected
		a.CandidateCourierID = &candidate
	})

	// Wrong courier cannot clear the offer.
	rows, err := repo.ClearCandidate(ctx, assignment.ID, uuid.New())
	require.NoError(t, err)
	require.EqualValues(t, 0, rows)

	rows, err = repo.ClearCandidate(ctx, assignment.ID, candidate)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	stored, err := repo.FindByID(ctx, assignment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.AssignmentModeMarketplace, stored.Mode)
	require.Nil(t, stored.CandidateCourierID)
}

func TestAssignmentRepoUpdateStatusGuard(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	assignment := seedAssignment(t, repo, nil)
	now := time.Now().UTC()

	rows, err := repo.UpdateStatus(ctx, assignment.ID, enums.AssignmentStatusPending, enums.AssignmentStatusCancelled, map[string]any{
		"cancelled_at": now,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	rows, err = repo.UpdateStatus(ctx, assignment.ID, enums.AssignmentStatusPending, enums.AssignmentStatusExpired, map[string]any{
		"expired_at": now,
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, rows)
}

func TestAssignmentRepoListOpenForCourier(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	me := uuid.New()
	other := uuid.New()
	future := time.Now().UTC().Add(time.Hour)
	past := time.Now().UTC().Add(-time.Hour)

	open := seedAssignment(t, repo, nil)
	mine := seedAssignment(t, repo, func(a *models.DeliveryAssignment) {
		a.Mode = enums.AssignmentModeDirected
		a.CandidateCourierID = &me
		a.ExpiresAt = &future
	})
	seedAssignment(t, repo, func(a *models.DeliveryAssignment) {
		a.Mode = enums.AssignmentModeDirected
		a.CandidateCourierID = &other
		a.ExpiresAt = &future
	})
	seedAssignment(t, repo, func(a *models.DeliveryAssignment) {
		a.Mode = enums.AssignmentModeDirected
		a.CandidateCourierID = &me
		a.ExpiresAt = &past
	})

	list, err := repo.ListOpenForCourier(ctx, me, time.Now().UTC(), pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Assignments, 2)

	ids := map[uuid.UUID]bool{}
	for _, row := range list.Assignments {
		ids[row.ID] = true
	}
	require.True(t, ids[open.ID])
	require.True(t, ids[mine.ID])
}

func TestAssignmentRepoListExpiredPending(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute)
	future := time.Now().UTC().Add(time.Hour)
	stale := seedAssignment(t, repo, func(a *models.DeliveryAssignment) {
		a.Mode = enums.AssignmentModeDirected
		a.ExpiresAt = &past
	})
	seedAssignment(t, repo, func(a *models.DeliveryAssignment) {
		a.Mode = enums.AssignmentModeDirected
		a.ExpiresAt = &future
	})
	seedAssignment(t, repo, nil)

	rows, err := repo.ListExpiredPending(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, stale.ID, rows[0].ID)
}

func TestAssignmentRepoHasActiveForCourier(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	courier := uuid.New()
	busy := seedAssignment(t, repo, func(a *models.DeliveryAssignment) {
		a.Status = enums.AssignmentStatusAccepted
		a.CourierID = &courier
	})

	active, err := repo.HasActiveForCourier(ctx, courier)
	require.NoError(t, err)
	require.True(t, active)

	// A finished delivery no longer counts as active.
	rows, err := repo.UpdateStatus(ctx, busy.ID, enums.AssignmentStatusAccepted, enums.AssignmentStatusDelivered, map[string]any{
		"delivered_at": time.Now().UTC(),
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	active, err = repo.HasActiveForCourier(ctx, courier)
	require.NoError(t, err)
	require.False(t, active)

	active, err = repo.HasActiveForCourier(ctx, uuid.New())
	require.NoError(t, err)
	require.False(t, active)
}

func TestAssignmentRepoFindActiveByOrder(t *testing.T) {
	db := setupDispatchTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	seedAssignment(t, repo, func(a *models.DeliveryAssignment) {
		a.OrderID = orderID
		a.Status = enums.AssignmentStatusCancelled
	})
	active := seedAssignment(t, repo, func(a *models.DeliveryAssignment) {
		a.OrderID = orderID
		a.Status = enums.AssignmentStatusAccepted
	})

	found, err := repo.FindActiveByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, active.ID, found.ID)

	_, err = repo.FindActiveByOrder(ctx, uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
