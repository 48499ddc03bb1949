package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiramarket/kirama-backend/pkg/logger"
)

type fakeSweeper struct {
	expired   int
	err       error
	lastLimit int
}

func (f *fakeSweeper) ExpireSweep(ctx context.Context, limit int) (int, error) {
	f.lastLimit = limit
	if f.err != nil {
		return 0, f.err
	}
	return f.expired, nil
}

func TestAssignmentExpiryJobRunsSweep(t *testing.T) {
	sweeper := &fakeSweeper{expired: 3}
	job, err := NewAssignmentExpiryJob(AssignmentExpiryJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Dispatch: sweeper,
		Batch:    50,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.lastLimit != 50 {
		t.Fatalf("limit = %d, want 50", sweeper.lastLimit)
	}
}

func TestAssignmentExpiryJobPropagatesErrors(t *testing.T) {
	job, err := NewAssignmentExpiryJob(AssignmentExpiryJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Dispatch: &fakeSweeper{err: errors.New("boom")},
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeCleanupRepo struct {
	lastCutoff time.Time
	deleted    int64
	err        error
}

func (f *fakeCleanupRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.lastCutoff = cutoff
	return f.deleted, f.err
}

func TestNotificationCleanupJobUsesRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	repo := &fakeCleanupRepo{deleted: 42}
	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job := jobIface.(*notificationCleanupJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	wantCutoff := now.Add(-defaultNotificationRetention)
	if !repo.lastCutoff.Equal(wantCutoff) {
		t.Fatalf("cutoff = %s, want %s", repo.lastCutoff, wantCutoff)
	}
}

func TestNotificationCleanupJobPropagatesErrors(t *testing.T) {
	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: &fakeCleanupRepo{err: errors.New("boom")},
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeRetentionRepo struct {
	lastCutoff time.Time
	deleted    int64
	err        error
}

func (f *fakeRetentionRepo) DeletePublishedBefore(cutoff time.Time) (int64, error) {
	f.lastCutoff = cutoff
	return f.deleted, f.err
}

func TestOutboxRetentionJobUsesRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	repo := &fakeRetentionRepo{deleted: 7}
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
		Retention:  7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job := jobIface.(*outboxRetentionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	wantCutoff := now.Add(-7 * 24 * time.Hour)
	if !repo.lastCutoff.Equal(wantCutoff) {
		t.Fatalf("cutoff = %s, want %s", repo.lastCutoff, wantCutoff)
	}
}

type fakeRedisStore struct {
	values map[string]string
}

func newFakeRedisStore() *fakeRedisStore {
	return &fakeRedisStore{values: make(map[string]string)}
}

func (f *fakeRedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedisStore) Get(ctx context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeRedisStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLockSingleHolder(t *testing.T) {
	store := newFakeRedisStore()
	first, err := NewRedisLock(store, "km:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, err := NewRedisLock(store, "km:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}

	ok, err := first.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v, want true", ok, err)
	}
	ok, err = second.Acquire(context.Background())
	if err != nil || ok {
		t.Fatalf("second acquire = %v, %v, want false", ok, err)
	}

	if err := first.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = second.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("acquire after release = %v, %v, want true", ok, err)
	}
}
