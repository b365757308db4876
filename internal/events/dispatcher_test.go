package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []string

	d.Subscribe(EventAccountApproved, func(_ context.Context, e Event) error {
		seen = append(seen, "first:"+e.Username)
		return errors.New("webhook down")
	})
	d.Subscribe(EventAccountApproved, func(_ context.Context, e Event) error {
		seen = append(seen, "second:"+e.Username)
		return nil
	})
	d.Subscribe(EventAccountDeleted, func(context.Context, Event) error {
		t.Fatal("unrelated handler called")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventAccountApproved, "alice", time.Now(), nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook down")
	assert.Equal(t, []string{"first:alice", "second:alice"}, seen)
}

func TestPublishWithoutListeners(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), NewEvent(EventAccountCreated, "bob", time.Now(), nil)))
}

func TestNewEventAssignsID(t *testing.T) {
	a := NewEvent(EventAccountRevoked, "bob", time.Now(), AccountRevokedPayload{Reason: "spam"})
	b := NewEvent(EventAccountRevoked, "bob", time.Now(), nil)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "spam", a.Payload.(AccountRevokedPayload).Reason)
}

func TestPanickingHandlerIsContained(t *testing.T) {
	d := NewInMemoryDispatcher()
	called := false
	d.Subscribe(EventAccountRestored, func(context.Context, Event) error {
		panic("boom")
	})
	d.Subscribe(EventAccountRestored, func(context.Context, Event) error {
		called = true
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventAccountRestored, "alice", time.Now(), nil))
	assert.ErrorContains(t, err, "panic: boom")
	assert.True(t, called)
}
