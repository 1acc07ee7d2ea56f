package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"donation-service/internal/config"
	"donation-service/internal/donation"
	"donation-service/internal/stripe"
	"donation-service/internal/vipps"
	"donation-service/internal/webhook"
	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
)

var (
	checkoutSuccessCounter     = metrics.GetOrCreateCounter(`donation_request_total{endpoint="create-checkout",result="success"}`)
	checkoutInvalidCounter     = metrics.GetOrCreateCounter(`donation_request_total{endpoint="create-checkout",result="invalid_amount"}`)
	checkoutErrorCounter       = metrics.GetOrCreateCounter(`donation_request_total{endpoint="create-checkout",result="error"}`)
	walletSuccessCounter       = metrics.GetOrCreateCounter(`donation_request_total{endpoint="create-vipps-payment",result="success"}`)
	walletInvalidCounter       = metrics.GetOrCreateCounter(`donation_request_total{endpoint="create-vipps-payment",result="invalid_amount"}`)
	walletErrorCounter         = metrics.GetOrCreateCounter(`donation_request_total{endpoint="create-vipps-payment",result="error"}`)
	recurringSuccessCounter    = metrics.GetOrCreateCounter(`donation_request_total{endpoint="create-vipps-recurring",result="success"}`)
	recurringInvalidCounter    = metrics.GetOrCreateCounter(`donation_request_total{endpoint="create-vipps-recurring",result="invalid_amount"}`)
	recurringErrorCounter      = metrics.GetOrCreateCounter(`donation_request_total{endpoint="create-vipps-recurring",result="error"}`)
	webhookReceivedCounter     = metrics.GetOrCreateCounter(`donation_request_total{endpoint="vipps-webhook",result="received"}`)
	webhookParseErrorCounter   = metrics.GetOrCreateCounter(`donation_request_total{endpoint="vipps-webhook",result="parse_error"}`)
	webhookUnauthorizedCounter = metrics.GetOrCreateCounter(`donation_request_total{endpoint="vipps-webhook",result="unauthorized"}`)
)

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Handler owns the four donation endpoints. All state is per-request: nothing
// is shared between concurrent requests beyond the provider clients, which
// are stateless.
type Handler struct {
	cfg       *config.Config
	stripe    *stripe.Client
	vipps     *vipps.Client
	processor *webhook.Processor
	verifier  *webhook.Verifier
	logger    *slog.Logger
}

func NewHandler(cfg *config.Config, stripeClient *stripe.Client, vippsClient *vipps.Client, processor *webhook.Processor, verifier *webhook.Verifier, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		stripe:    stripeClient,
		vipps:     vippsClient,
		processor: processor,
		verifier:  verifier,
		logger:    logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /liveness", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/donation-presets", h.DonationPresets)
	mux.HandleFunc("POST /api/create-checkout", h.CreateCheckout)
	mux.HandleFunc("POST /api/create-vipps-payment", h.CreateVippsPayment)
	mux.HandleFunc("POST /api/create-vipps-recurring", h.CreateVippsRecurring)
	mux.HandleFunc("POST /api/vipps-webhook", h.VippsWebhook)
}

type preset struct {
	Children int     `json:"children"`
	Amount   float64 `json:"amount"`
}

// DonationPresets returns the suggested amounts the frontend renders, ordered
// by the number of children supported.
func (h *Handler) DonationPresets(w http.ResponseWriter, r *http.Request) {
	presets := make([]preset, 0, len(donation.Presets))
	for children, amount := range donation.Presets {
		presets = append(presets, preset{Children: children, Amount: amount})
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Children < presets[j].Children })

	writeJSON(w, http.StatusOK, map[string]any{"presets": presets})
}

// CreateCheckout starts a card checkout session. The client performs a
// browser redirect to the returned url.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req donation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		checkoutInvalidCounter.Inc()
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}

	if err := donation.ValidateAmount(req.Amount, donation.MinCardAmount); err != nil {
		checkoutInvalidCounter.Inc()
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("Amount must be at least NOK %d", donation.MinCardAmount)})
		return
	}

	session, err := h.stripe.CreateCheckoutSession(ctx, stripe.SessionParams{
		Amount:    req.Amount,
		Recurring: req.Recurring,
		Currency:  h.cfg.App.Currency,
		AppURL:    h.cfg.App.BaseURL,
	})
	if err != nil {
		checkoutErrorCounter.Inc()
		h.logger.ErrorContext(ctx, "Error creating checkout session", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to create checkout session"})
		return
	}

	checkoutSuccessCounter.Inc()
	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId": session.ID,
		"url":       session.URL,
	})
}

// CreateVippsPayment starts a one-time wallet checkout. The reference is
// generated before the provider call so failures still correlate in logs.
func (h *Handler) CreateVippsPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req donation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		walletInvalidCounter.Inc()
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}

	if err := donation.ValidateAmount(req.Amount, donation.MinWalletAmount); err != nil {
		walletInvalidCounter.Inc()
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("Amount must be at least NOK %d", donation.MinWalletAmount)})
		return
	}

	if !h.vipps.Configured() {
		walletErrorCounter.Inc()
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Vipps is not configured. Please add credentials."})
		return
	}

	reference := donation.NewReference()

	session, err := h.vipps.CreateCheckout(ctx, vipps.CheckoutParams{
		Amount:        req.Amount,
		Currency:      h.cfg.App.Currency,
		Reference:     reference,
		CallbackURL:   h.cfg.App.BaseURL + "/api/vipps-webhook",
		ReturnURL:     fmt.Sprintf("%s/donate/success?reference=%s&provider=vipps", h.cfg.App.BaseURL, reference),
		CallbackToken: h.verifier.TokenFor(reference),
	})
	if err != nil {
		walletErrorCounter.Inc()
		h.logger.ErrorContext(ctx, "Vipps payment error", "reference", reference, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "Failed to create Vipps payment",
			Details: err.Error(),
		})
		return
	}

	walletSuccessCounter.Inc()
	writeJSON(w, http.StatusOK, map[string]string{
		"url":       session.URL,
		"reference": reference,
	})
}

// CreateVippsRecurring starts a monthly donation agreement. Token fetch and
// agreement create are strictly ordered.
func (h *Handler) CreateVippsRecurring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req donation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		recurringInvalidCounter.Inc()
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}

	if err := donation.ValidateAmount(req.Amount, donation.MinWalletAmount); err != nil {
		recurringInvalidCounter.Inc()
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("Amount must be at least NOK %d for monthly donations", donation.MinWalletAmount)})
		return
	}

	if !h.vipps.Configured() {
		recurringErrorCounter.Inc()
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Vipps is not configured. Please add credentials."})
		return
	}

	token, err := h.vipps.FetchToken(ctx)
	if err != nil {
		recurringErrorCounter.Inc()
		h.logger.ErrorContext(ctx, "Vipps recurring error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "Failed to create recurring donation",
			Details: err.Error(),
		})
		return
	}

	// Local id for the success page; the provider assigns its own.
	localID := donation.NewAgreementID()

	agreement, err := h.vipps.CreateAgreement(ctx, token, vipps.AgreementParams{
		Amount:               req.Amount,
		Currency:             h.cfg.App.Currency,
		MerchantRedirectURL:  fmt.Sprintf("%s/donate/recurring-success?agreementId=%s", h.cfg.App.BaseURL, localID),
		MerchantAgreementURL: h.cfg.App.BaseURL + "/donate",
		Description:          donation.RecurringDescription(req.Amount),
	})
	if err != nil {
		recurringErrorCounter.Inc()
		h.logger.ErrorContext(ctx, "Vipps recurring error", "localAgreementId", localID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "Failed to create recurring donation",
			Details: err.Error(),
		})
		return
	}

	recurringSuccessCounter.Inc()
	writeJSON(w, http.StatusOK, map[string]string{
		"url":         agreement.URL,
		"agreementId": agreement.ID,
	})
}

// VippsWebhook acknowledges every delivery with 200, including unparseable
// and unverified payloads, so the provider does not re-deliver.
func (h *Handler) VippsWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var event webhook.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		webhookParseErrorCounter.Inc()
		h.logger.ErrorContext(ctx, "Vipps webhook error", "error", err)
		writeJSON(w, http.StatusOK, errorBody{Error: "Webhook processing failed"})
		return
	}

	// Only one-time checkout callbacks carry the authorization token minted
	// at session-create time; recurring events have no reference to check.
	if event.Reference != "" && !h.verifier.VerifyAuthorization(r.Header.Get("Authorization"), event.Reference) {
		webhookUnauthorizedCounter.Inc()
		h.logger.WarnContext(ctx, "Webhook authorization mismatch, skipping event", "subject", event.Subject())
		writeJSON(w, http.StatusOK, map[string]any{
			"received":  true,
			"eventType": event.EventType,
		})
		return
	}

	h.processor.Process(ctx, event)

	webhookReceivedCounter.Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"received":  true,
		"eventType": event.EventType,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error encoding response", "error", errors.Wrap(err, "writing JSON"))
	}
}
