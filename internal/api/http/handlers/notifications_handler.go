package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itsm-sla/internal/api/dto"
	"github.com/spec-kit/itsm-sla/internal/service"
)

// NotificationsHandler triggers delivery of stored notifications.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notificationService}
}

// ProcessPending POST /notifications/process-pending?limit=50.
func (h *NotificationsHandler) ProcessPending(c *fiber.Ctx) error {
	result, err := h.notifications.ProcessPending(c.UserContext(), parseIntQuery(c, "limit", 0))
	if err != nil {
		return err
	}
	errs := make([]dto.NotificationErrorDTO, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, dto.NotificationErrorDTO{NotificationID: e.NotificationID, Error: e.Error})
	}
	return c.JSON(fiber.Map{"data": dto.ProcessPendingResponse{
		Processed: result.Processed,
		Success:   result.Success,
		Failed:    result.Failed,
		Errors:    errs,
	}})
}
