package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/profile-service/internal/config"
	"github.com/spec-kit/profile-service/internal/events"
	"github.com/spec-kit/profile-service/internal/service"
	"github.com/spec-kit/profile-service/internal/worker"
)

func TestNotificationWorkerDeliversAsync(t *testing.T) {
	inner := events.NewInMemoryDispatcher()
	w := worker.NewNotificationWorker(inner, zap.NewNop(), 8)

	var (
		mu       sync.Mutex
		received []string
	)
	w.Subscribe(events.EventUserRegistered, func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e.UserID)
		return nil
	})

	notifier := service.NewNotificationService(w, zap.NewNop(), config.NotificationConfig{EmailFrom: "noreply@example.com"})
	worker.StartNotificationWorker(notifier, w)

	ctx := context.Background()
	require.NoError(t, w.Publish(ctx, events.Event{Type: events.EventUserRegistered, UserID: "u1",
		Payload: events.UserRegisteredPayload{Email: "a@x.com", Name: "A"}}))
	require.NoError(t, w.Publish(ctx, events.Event{Type: events.EventUserRegistered, UserID: "u2"}))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"u1", "u2"}, received)
}

func TestNotificationWorkerRejectsAfterStop(t *testing.T) {
	w := worker.NewNotificationWorker(events.NewInMemoryDispatcher(), zap.NewNop(), 1)
	worker.StartNotificationWorker(nil, w)

	require.NoError(t, w.Stop(context.Background()))
	require.NoError(t, w.Stop(context.Background()))

	err := w.Publish(context.Background(), events.Event{Type: events.EventUserRegistered})
	require.ErrorIs(t, err, worker.ErrStopped)
}

func TestNotificationWorkerDropsWhenFull(t *testing.T) {
	w := worker.NewNotificationWorker(events.NewInMemoryDispatcher(), zap.NewNop(), 1)

	require.NoError(t, w.Publish(context.Background(), events.Event{Type: events.EventUserRegistered}))
	err := w.Publish(context.Background(), events.Event{Type: events.EventUserRegistered})
	require.ErrorIs(t, err, worker.ErrQueueFull)
}
