package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/service"
)

func TestWorkerStopsWithContext(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	n := service.NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := StartNotificationWorker(ctx, n, zap.NewNop())
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerWithoutService(t *testing.T) {
	done := StartNotificationWorker(context.Background(), nil, nil)
	_, open := <-done
	assert.False(t, open)
}
