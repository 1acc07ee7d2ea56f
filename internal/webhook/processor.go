package webhook

import (
	"context"
	"log/slog"

	"github.com/VictoriaMetrics/metrics"
)

var (
	eventPaymentCompletedCounter = metrics.GetOrCreateCounter(`webhook_events_total{type="payment_completed"}`)
	eventPaymentFailedCounter    = metrics.GetOrCreateCounter(`webhook_events_total{type="payment_failed"}`)
	eventChargeSuccessfulCounter = metrics.GetOrCreateCounter(`webhook_events_total{type="charge_successful"}`)
	eventChargeFailedCounter     = metrics.GetOrCreateCounter(`webhook_events_total{type="charge_failed"}`)
	eventAgreementStoppedCounter = metrics.GetOrCreateCounter(`webhook_events_total{type="agreement_stopped"}`)
	eventUnknownCounter          = metrics.GetOrCreateCounter(`webhook_events_total{type="unknown"}`)
)

// Processor classifies payment-outcome events. Events are transient: each
// branch only logs. Donation records are not persisted anywhere in this
// service.
type Processor struct {
	logger *slog.Logger
}

func NewProcessor(logger *slog.Logger) *Processor {
	return &Processor{logger: logger}
}

func (p *Processor) Process(ctx context.Context, event Event) {
	p.logger.InfoContext(ctx, "Webhook event received",
		"type", event.EventType,
		"subject", event.Subject(),
		"timestamp", event.Timestamp,
	)

	switch event.EventType {
	case EventPaymentCompleted:
		p.logger.InfoContext(ctx, "Payment completed", "reference", event.Reference)
		eventPaymentCompletedCounter.Inc()
		// TODO: record the donation once a ledger exists downstream

	case EventPaymentFailed:
		p.logger.WarnContext(ctx, "Payment failed", "reference", event.Reference)
		eventPaymentFailedCounter.Inc()

	case EventChargeSuccessful:
		p.logger.InfoContext(ctx, "Recurring charge successful", "agreementId", event.AgreementID, "chargeId", event.ChargeID)
		eventChargeSuccessfulCounter.Inc()

	case EventChargeFailed:
		p.logger.WarnContext(ctx, "Recurring charge failed", "agreementId", event.AgreementID, "chargeId", event.ChargeID)
		eventChargeFailedCounter.Inc()
		// TODO: notify the donor to update payment details once mail is wired up

	case EventAgreementStopped:
		p.logger.InfoContext(ctx, "Recurring agreement stopped", "agreementId", event.AgreementID)
		eventAgreementStoppedCounter.Inc()

	default:
		p.logger.WarnContext(ctx, "Unknown webhook event type", "type", event.EventType)
		eventUnknownCounter.Inc()
	}
}
