package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/service"
)

// StartNotificationWorker subscribes the notification handlers to account
// events and delivers webhooks in the background until ctx is done. The
// returned channel closes once queued deliveries are flushed.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if notificationService == nil {
		close(done)
		return done
	}
	notificationService.RegisterHandlers()
	if logger != nil {
		logger.Info("notification worker started", zap.Bool("webhook", notificationService.WebhookEnabled()))
	}

	go func() {
		defer close(done)
		notificationService.Run(ctx)
	}()
	return done
}
