package stripe

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"donation-service/internal/config"
	"donation-service/internal/donation"
	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
)

const (
	defaultBaseURL   = "https://api.stripe.com"
	defaultTimeoutMs = 10_000

	oneTimeProductName   = "Donation to Good Shepherd Lanka"
	recurringProductName = "Monthly Donation to Good Shepherd Lanka"
	productDescription   = "Supporting education and care for children in Batticaloa, Sri Lanka"
)

var (
	sessionSuccessCounter  = metrics.GetOrCreateCounter(`stripe_session_total{result="success"}`)
	sessionAPIErrorCounter = metrics.GetOrCreateCounter(`stripe_session_total{result="api_error"}`)

	sessionDurationHistogram = metrics.GetOrCreateHistogram(`stripe_session_duration_milliseconds`)
)

// CheckoutSession is the narrow slice of the provider's session object the
// rest of the flow needs: an opaque id and the hosted page to redirect to.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SessionParams describes one donation checkout to be hosted by Stripe.
type SessionParams struct {
	Amount    float64
	Recurring bool
	Currency  string
	AppURL    string
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	secretKey string
	baseURL   string
	client    *http.Client
	logger    *slog.Logger
}

func NewClient(cfg config.Stripe, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}

	return &Client{
		secretKey: cfg.SecretKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		logger:    logger,
	}
}

func (c *Client) Configured() bool {
	return c.secretKey != ""
}

// CreateCheckoutSession creates a hosted checkout session for the given
// donation and returns the session id and redirect URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, params SessionParams) (*CheckoutSession, error) {
	if !c.Configured() {
		return nil, errors.Wrap(donation.ErrProviderNotConfigured, "stripe secret key is not set")
	}

	startTime := time.Now()
	defer func() {
		sessionDurationHistogram.Update(float64(time.Since(startTime).Milliseconds()))
	}()

	form := c.sessionForm(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		sessionAPIErrorCounter.Inc()
		return nil, errors.Wrap(donation.ErrProviderAPI, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		sessionAPIErrorCounter.Inc()
		return nil, errors.Wrap(err, "reading response body")
	}

	if resp.StatusCode >= 400 {
		sessionAPIErrorCounter.Inc()
		c.logger.ErrorContext(ctx, "Stripe session create failed", "status", resp.Status, "body", string(respBody))

		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, errors.Wrap(donation.ErrProviderAPI, errResp.Error.Message)
		}
		return nil, errors.Wrapf(donation.ErrProviderAPI, "unexpected status %s", resp.Status)
	}

	var session CheckoutSession
	if err := json.Unmarshal(respBody, &session); err != nil {
		sessionAPIErrorCounter.Inc()
		return nil, errors.Wrap(donation.ErrProviderAPI, err.Error())
	}

	if session.ID == "" || session.URL == "" {
		sessionAPIErrorCounter.Inc()
		return nil, errors.Wrap(donation.ErrProviderAPI, "no session id or url in response")
	}

	c.logger.InfoContext(ctx, "Stripe checkout session created", "sessionId", session.ID, "mode", form.Get("mode"))
	sessionSuccessCounter.Inc()

	return &session, nil
}

// sessionForm flattens the session request into Stripe's bracketed form
// encoding. Amounts are converted to minor units here and nowhere else.
func (c *Client) sessionForm(params SessionParams) url.Values {
	mode := "payment"
	productName := oneTimeProductName
	donationType := "one_time"
	if params.Recurring {
		mode = "subscription"
		productName = recurringProductName
		donationType = "monthly"
	}

	form := url.Values{}
	form.Set("mode", mode)
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(params.Currency))
	form.Set("line_items[0][price_data][product_data][name]", productName)
	form.Set("line_items[0][price_data][product_data][description]", productDescription)
	form.Set("line_items[0][price_data][product_data][images][0]", params.AppURL+"/logo.jpg")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(donation.MinorUnits(params.Amount), 10))
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.AppURL+"/donate/success?session_id={CHECKOUT_SESSION_ID}")
	form.Set("cancel_url", params.AppURL+"/donate/cancel")
	form.Set("metadata[donation_type]", donationType)

	if params.Recurring {
		form.Set("line_items[0][price_data][recurring][interval]", "month")
		form.Set("payment_method_options[card][setup_future_usage]", "off_session")
	}

	return form
}
