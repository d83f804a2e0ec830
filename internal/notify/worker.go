package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-travel/cormorant/internal/domain"
)

// Worker consumes alert events from the bus and emails the property owner.
// Delivery failures are logged and dropped; alerting is best-effort and must
// never feed back into the scoring path.
type Worker struct {
	bus    domain.EventBus
	sender Sender
	cfg    domain.NotifierConfig

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates an alert notification worker.
func NewWorker(bus domain.EventBus, sender Sender, cfg domain.NotifierConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		sender: sender,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the alert topic for the given tenants.
func (w *Worker) Start(tenantIDs []string) error {
	if len(tenantIDs) == 0 {
		tenantIDs = []string{"_global"}
	}

	for _, tenantID := range tenantIDs {
		sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicAlert, w.handleAlert)
		if err != nil {
			slog.Error("failed to subscribe to alert topic",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("notification worker started",
		"tenant_count", len(tenantIDs),
		"topic", domain.TopicAlert,
	)
	return nil
}

// handleAlert renders and sends one alert email, then publishes a
// notification-sent event for downstream consumers.
func (w *Worker) handleAlert(ctx context.Context, msg *domain.Message) error {
	var event domain.AlertEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to unmarshal alert event",
			"message_id", msg.ID,
			"error", err,
		)
		return nil
	}

	to := event.OwnerEmail
	if to == "" {
		to = w.cfg.OwnerEmail
	}
	if to == "" {
		slog.Warn("alert has no recipient, skipping",
			"evaluation_id", event.EvaluationID,
			"tenant_id", event.TenantID,
		)
		return nil
	}

	subject := Subject(event.FraudProbability)
	body := RenderAlert(&event, time.Now())

	if err := w.sender.Send(to, subject, body); err != nil {
		slog.Error("failed to send fraud alert email",
			"evaluation_id", event.EvaluationID,
			"tenant_id", event.TenantID,
			"error", err,
		)
		return nil
	}

	slog.Info("fraud alert sent",
		"evaluation_id", event.EvaluationID,
		"tenant_id", event.TenantID,
		"risk_level", event.RiskLevel,
	)

	sent := map[string]string{
		"evaluationId": event.EvaluationID,
		"recipient":    to,
		"sentAt":       time.Now().UTC().Format(time.RFC3339),
	}
	payload, _ := json.Marshal(sent)
	if err := w.bus.Publish(ctx, msg.TenantID, domain.TopicNotificationSent, payload); err != nil {
		slog.Warn("failed to publish notification-sent event",
			"evaluation_id", event.EvaluationID,
			"error", err,
		)
	}
	return nil
}

// Stop unsubscribes and halts processing.
func (w *Worker) Stop() {
	w.cancel()
	for _, sub := range w.subscriptions {
		_ = sub.Unsubscribe()
	}
	slog.Info("notification worker stopped")
}
