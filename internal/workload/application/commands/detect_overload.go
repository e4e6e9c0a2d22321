package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/teamflow/internal/workload/domain"
	"github.com/felixgeelhaar/teamflow/internal/workload/infrastructure/notify"
)

// OverloadEvent is a member's capacity status transition.
type OverloadEvent struct {
	UserID          string                `json:"user_id"`
	UserName        string                `json:"user_name"`
	OldStatus       domain.CapacityStatus `json:"old_status"`
	NewStatus       domain.CapacityStatus `json:"new_status"`
	CapacityPercent int                   `json:"capacity_percent"`
}

// OverloadResult reports whether an alert went out.
type OverloadResult struct {
	Notified     bool                 `json:"notified"`
	Reason       string               `json:"reason,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

// DetectOverloadHandler alerts the management channel when a member flips
// into Overloaded or Critical.
type DetectOverloadHandler struct {
	settings domain.SettingsRepository
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewDetectOverloadHandler creates a new overload handler. A nil notifier
// only logs.
func NewDetectOverloadHandler(settings domain.SettingsRepository, notifier notify.Notifier, logger *slog.Logger) *DetectOverloadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &DetectOverloadHandler{settings: settings, notifier: notifier, logger: logger}
}

// Handle sends at most one notification for ev.
func (h *DetectOverloadHandler) Handle(ctx context.Context, ev OverloadEvent) (*OverloadResult, error) {
	if !ev.NewStatus.IsAlerting() {
		return &OverloadResult{Reason: "status not alerting"}, nil
	}
	if ev.NewStatus == ev.OldStatus {
		return &OverloadResult{Reason: "status unchanged"}, nil
	}

	settings, err := h.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.HasChannel() {
		h.logger.WarnContext(ctx, "no management channel configured, overload alert dropped", "user_id", ev.UserID)
		return &OverloadResult{Reason: "no channel configured"}, nil
	}

	n := notify.Notification{
		Message:   OverloadMessage(ev),
		ChannelID: settings.ChannelID,
	}
	if err := h.notifier.Notify(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to send overload alert for %s: %w", ev.UserID, err)
	}

	h.logger.InfoContext(ctx, "overload alert sent",
		"user_id", ev.UserID,
		"old_status", ev.OldStatus,
		"new_status", ev.NewStatus,
		"capacity_percent", ev.CapacityPercent,
	)
	return &OverloadResult{Notified: true, Notification: &n}, nil
}

// OverloadMessage renders the alert text.
func OverloadMessage(ev OverloadEvent) string {
	name := ev.UserName
	if name == "" {
		name = ev.UserID
	}
	return fmt.Sprintf("Capacity Alert: %s is now %s (%d%%).", name, ev.NewStatus, ev.CapacityPercent)
}
