package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/service"
)

// StartNotificationWorker subscribes the Slack notifier to analysis events.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	if !notificationService.Enabled() {
		logger.Warn("SLACK_WEBHOOK_URL not set; analysis notifications are logged only")
	}
}
