package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
)

func receive(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
		return events.Event{}
	}
}

func TestNotificationWebhookDelivery(t *testing.T) {
	received := make(chan events.Event, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e events.Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		received <- e
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher := events.NewInMemoryDispatcher()
	n := NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{WebhookURL: srv.URL}, srv.Client())
	n.RegisterHandlers()
	go n.Run(ctx)

	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventAccountRegistered, "alice", time.Now(), nil)))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventAccountRevoked, "alice", time.Now(), events.AccountRevokedPayload{Reason: "spam"})))

	first := receive(t, received)
	second := receive(t, received)
	assert.Equal(t, events.EventAccountRegistered, first.Type)
	assert.Equal(t, "alice", second.Username)
	assert.Equal(t, map[string]any{"reason": "spam"}, second.Payload)
}

func TestSlowWebhookDoesNotBlockPublish(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher := events.NewInMemoryDispatcher()
	n := NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{WebhookURL: srv.URL}, srv.Client())
	n.RegisterHandlers()
	go n.Run(ctx)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventAccountApproved, "bob", time.Now(), nil)))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestNotificationWebhookFailureIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher := events.NewInMemoryDispatcher()
	n := NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{WebhookURL: srv.URL}, nil)
	n.RegisterHandlers()
	go n.Run(ctx)

	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventAccountDeleted, "bob", time.Now(), nil)))

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("webhook delivery failed").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
	entry := logs.FilterMessage("webhook delivery failed").All()[0]
	assert.Contains(t, entry.ContextMap()["error"], "status 500")
}

func TestFullQueueReportsDrop(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	n := NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{WebhookURL: "http://127.0.0.1:1", WebhookQueueSize: 1}, nil)
	n.RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventAccountApproved, "bob", time.Now(), nil)))
	err := dispatcher.Publish(ctx, events.NewEvent(events.EventAccountApproved, "bob", time.Now(), nil))
	assert.ErrorContains(t, err, "webhook queue full")
}

func TestRunFlushesQueueOnStop(t *testing.T) {
	received := make(chan events.Event, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e events.Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		received <- e
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	dispatcher := events.NewInMemoryDispatcher()
	n := NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{WebhookURL: srv.URL}, srv.Client())
	n.RegisterHandlers()
	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventAccountRestored, "carol", time.Now(), nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Run(ctx)

	assert.Equal(t, "carol", receive(t, received).Username)
}

func TestNotificationWithoutWebhook(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{}, nil).RegisterHandlers()

	assert.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventAccountApproved, "bob", time.Now(), nil)))
}
