package webhook

// Event types delivered by the wallet provider.
const (
	EventPaymentCompleted = "PAYMENT_COMPLETED"
	EventPaymentFailed    = "PAYMENT_FAILED"
	EventChargeSuccessful = "CHARGE_SUCCESSFUL"
	EventChargeFailed     = "CHARGE_FAILED"
	EventAgreementStopped = "AGREEMENT_STOPPED"
)

// Event is an asynchronous payment-outcome notification. One-time payments
// carry a reference; recurring events carry an agreementId (and, for charges,
// a chargeId).
type Event struct {
	EventType   string `json:"eventType"`
	Reference   string `json:"reference,omitempty"`
	AgreementID string `json:"agreementId,omitempty"`
	ChargeID    string `json:"chargeId,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// Subject is the identifier this event is about, whichever of the two the
// provider sent.
func (e Event) Subject() string {
	if e.Reference != "" {
		return e.Reference
	}
	return e.AgreementID
}
