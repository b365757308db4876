package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
)

const defaultWebhookQueueSize = 256

// NotificationService logs account lifecycle events and forwards them to a
// webhook when one is configured. Event handlers only queue deliveries; Run
// sends them, so a slow webhook never delays the request that caused the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	httpClient *http.Client
	queue      chan events.Event
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, httpClient *http.Client) *NotificationService {
	if httpClient == nil {
		timeout := time.Duration(cfg.WebhookTimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	size := cfg.WebhookQueueSize
	if size <= 0 {
		size = defaultWebhookQueueSize
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		httpClient: httpClient,
		queue:      make(chan events.Event, size),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAccountRegistered, n.handleAwaitingApproval)
	n.dispatcher.Subscribe(events.EventAccountCreated, n.handleLifecycle)
	n.dispatcher.Subscribe(events.EventAccountApproved, n.handleLifecycle)
	n.dispatcher.Subscribe(events.EventAccountRevoked, n.handleLifecycle)
	n.dispatcher.Subscribe(events.EventAccountRestored, n.handleLifecycle)
	n.dispatcher.Subscribe(events.EventAccountDeleted, n.handleLifecycle)
}

// WebhookEnabled reports whether events are forwarded to a webhook.
func (n *NotificationService) WebhookEnabled() bool {
	return strings.TrimSpace(n.cfg.WebhookURL) != ""
}

// Run delivers queued events until ctx is done, then flushes what is already
// queued and returns. Deliveries are bounded by the HTTP client timeout, not
// by ctx.
func (n *NotificationService) Run(ctx context.Context) {
	deliveryCtx := context.WithoutCancel(ctx)
	for {
		select {
		case event := <-n.queue:
			n.deliver(deliveryCtx, event)
		case <-ctx.Done():
			n.flush(deliveryCtx)
			return
		}
	}
}

func (n *NotificationService) flush(ctx context.Context) {
	for {
		select {
		case event := <-n.queue:
			n.deliver(ctx, event)
		default:
			return
		}
	}
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event) {
	if err := n.sendWebhook(ctx, event); err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

func (n *NotificationService) handleAwaitingApproval(_ context.Context, event events.Event) error {
	n.logger.Info("account awaiting approval", zap.String("username", event.Username), zap.String("event_id", event.ID))
	return n.enqueue(event)
}

func (n *NotificationService) handleLifecycle(_ context.Context, event events.Event) error {
	n.logger.Info("account lifecycle",
		zap.String("event_type", string(event.Type)),
		zap.String("username", event.Username),
		zap.Any("payload", event.Payload))
	return n.enqueue(event)
}

func (n *NotificationService) enqueue(event events.Event) error {
	if !n.WebhookEnabled() {
		return nil
	}
	select {
	case n.queue <- event:
		return nil
	default:
		return fmt.Errorf("webhook queue full, dropping %s %s", event.Type, event.ID)
	}
}

func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", event.Type, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: status %d", event.Type, resp.StatusCode)
	}

	n.logger.Debug("webhook delivered", zap.String("event_type", string(event.Type)), zap.String("event_id", event.ID))
	return nil
}
