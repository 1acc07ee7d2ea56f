package vipps

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"donation-service/internal/config"
	"donation-service/internal/donation"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	productionBaseURL = "https://api.vipps.no"
	testBaseURL       = "https://apitest.vipps.no"

	defaultTimeoutMs = 10_000

	paymentDescription   = "Donation to Good Shepherd Lanka"
	recurringProductName = "Monthly Support - Good Shepherd Lanka"
)

var (
	tokenSuccessCounter = metrics.GetOrCreateCounter(`vipps_request_total{call="token",result="success"}`)
	tokenErrorCounter   = metrics.GetOrCreateCounter(`vipps_request_total{call="token",result="error"}`)

	checkoutSuccessCounter = metrics.GetOrCreateCounter(`vipps_request_total{call="checkout",result="success"}`)
	checkoutErrorCounter   = metrics.GetOrCreateCounter(`vipps_request_total{call="checkout",result="error"}`)

	agreementSuccessCounter = metrics.GetOrCreateCounter(`vipps_request_total{call="agreement",result="success"}`)
	agreementErrorCounter   = metrics.GetOrCreateCounter(`vipps_request_total{call="agreement",result="error"}`)

	requestDurationHistogram = metrics.GetOrCreateHistogram(`vipps_request_duration_milliseconds`)
)

// CheckoutSession is the normalized result of a one-time checkout create.
type CheckoutSession struct {
	URL string
}

// Agreement is the normalized result of a recurring agreement create.
type Agreement struct {
	ID  string
	URL string
}

// CheckoutParams describes one one-time wallet donation.
type CheckoutParams struct {
	Amount        float64
	Currency      string
	Reference     string
	CallbackURL   string
	ReturnURL     string
	CallbackToken string
}

// AgreementParams describes one monthly donation agreement. The first charge
// is captured by the provider immediately after donor approval.
type AgreementParams struct {
	Amount               float64
	Currency             string
	MerchantRedirectURL  string
	MerchantAgreementURL string
	Description          string
}

type amountBody struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

type checkoutRequest struct {
	Type        string              `json:"type"`
	Transaction checkoutTransaction `json:"transaction"`
	Merchant    checkoutMerchant    `json:"merchantInfo"`
}

type checkoutTransaction struct {
	Amount             amountBody `json:"amount"`
	Reference          string     `json:"reference"`
	PaymentDescription string     `json:"paymentDescription"`
}

type checkoutMerchant struct {
	CallbackURL string `json:"callbackUrl"`
	ReturnURL   string `json:"returnUrl"`
	// Empty when no webhook secret is configured; the field is dropped so
	// the provider does not store a blank token.
	CallbackAuthorizationToken string `json:"callbackAuthorizationToken,omitempty"`
}

type checkoutResponse struct {
	CheckoutFrontendURL string `json:"checkoutFrontendUrl"`
}

type agreementInterval struct {
	Unit  string `json:"unit"`
	Count int    `json:"count"`
}

type agreementPricing struct {
	Type     string `json:"type"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type initialCharge struct {
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Description     string `json:"description"`
	TransactionType string `json:"transactionType"`
}

type agreementRequest struct {
	Pricing              agreementPricing  `json:"pricing"`
	Interval             agreementInterval `json:"interval"`
	MerchantRedirectURL  string            `json:"merchantRedirectUrl"`
	MerchantAgreementURL string            `json:"merchantAgreementUrl"`
	ProductName          string            `json:"productName"`
	ProductDescription   string            `json:"productDescription"`
	InitialCharge        initialCharge     `json:"initialCharge"`
}

type agreementResponse struct {
	AgreementID          string `json:"agreementId"`
	VippsConfirmationURL string `json:"vippsConfirmationUrl"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type Client struct {
	cfg     config.Vipps
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(cfg config.Vipps, logger *slog.Logger) *Client {
	baseURL := productionBaseURL
	if cfg.UseTestMode {
		baseURL = testBaseURL
	}

	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}

	return &Client{
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		logger:  logger,
	}
}

func (c *Client) Configured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// FetchToken performs the client-credentials exchange. The token is used for
// exactly one follow-up call and never cached across requests.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/accesstoken/get", nil)
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}
	req.Header.Set("client_id", c.cfg.ClientID)
	req.Header.Set("client_secret", c.cfg.ClientSecret)
	c.setCommonHeaders(req)

	body, err := c.do(req, tokenSuccessCounter, tokenErrorCounter)
	if err != nil {
		return "", err
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		tokenErrorCounter.Inc()
		return "", errors.Wrap(donation.ErrProviderAPI, err.Error())
	}

	if token.AccessToken == "" {
		return "", errors.Wrap(donation.ErrAuthFailure, "no access token in response")
	}

	return token.AccessToken, nil
}

// CreateCheckout creates a hosted wallet-checkout session for a one-time
// donation. The reference is caller-generated so it survives provider
// failures.
func (c *Client) CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	payload := checkoutRequest{
		Type: "PAYMENT",
		Transaction: checkoutTransaction{
			Amount: amountBody{
				Value:    donation.MinorUnits(params.Amount),
				Currency: params.Currency,
			},
			Reference:          params.Reference,
			PaymentDescription: paymentDescription,
		},
		Merchant: checkoutMerchant{
			CallbackURL:                params.CallbackURL,
			ReturnURL:                  params.ReturnURL,
			CallbackAuthorizationToken: params.CallbackToken,
		},
	}

	req, err := c.newJSONRequest(ctx, "/checkout/v3/session", payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("client_id", c.cfg.ClientID)
	req.Header.Set("client_secret", c.cfg.ClientSecret)

	body, err := c.do(req, checkoutSuccessCounter, checkoutErrorCounter)
	if err != nil {
		return nil, err
	}

	var resp checkoutResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		checkoutErrorCounter.Inc()
		return nil, errors.Wrap(donation.ErrProviderAPI, err.Error())
	}

	if resp.CheckoutFrontendURL == "" {
		return nil, errors.Wrap(donation.ErrProviderAPI, "no checkout URL in response")
	}

	c.logger.InfoContext(ctx, "Vipps checkout created", "reference", params.Reference)

	return &CheckoutSession{URL: resp.CheckoutFrontendURL}, nil
}

// CreateAgreement creates a monthly recurring agreement using a token from
// FetchToken. The two calls are strictly ordered; there is no retry here
// beyond what the transport provides.
func (c *Client) CreateAgreement(ctx context.Context, token string, params AgreementParams) (*Agreement, error) {
	minorUnits := donation.MinorUnits(params.Amount)

	payload := agreementRequest{
		Pricing: agreementPricing{
			Type:     "LEGACY",
			Amount:   minorUnits,
			Currency: params.Currency,
		},
		Interval: agreementInterval{
			Unit:  "MONTH",
			Count: 1,
		},
		MerchantRedirectURL:  params.MerchantRedirectURL,
		MerchantAgreementURL: params.MerchantAgreementURL,
		ProductName:          recurringProductName,
		ProductDescription:   params.Description,
		InitialCharge: initialCharge{
			Amount:          minorUnits,
			Currency:        params.Currency,
			Description:     "First month donation",
			TransactionType: "DIRECT_CAPTURE",
		},
	}

	req, err := c.newJSONRequest(ctx, "/recurring/v3/agreements", payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", uuid.New().String())

	body, err := c.do(req, agreementSuccessCounter, agreementErrorCounter)
	if err != nil {
		return nil, err
	}

	var resp agreementResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		agreementErrorCounter.Inc()
		return nil, errors.Wrap(donation.ErrProviderAPI, err.Error())
	}

	if resp.VippsConfirmationURL == "" {
		return nil, errors.Wrap(donation.ErrProviderAPI, "no confirmation URL in response")
	}

	c.logger.InfoContext(ctx, "Vipps recurring agreement created", "agreementId", resp.AgreementID)

	return &Agreement{ID: resp.AgreementID, URL: resp.VippsConfirmationURL}, nil
}

func (c *Client) newJSONRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.setCommonHeaders(req)

	return req, nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)
	req.Header.Set("Merchant-Serial-Number", c.cfg.MerchantSerialNumber)
	req.Header.Set("Vipps-System-Name", "donation-service")
	req.Header.Set("Vipps-System-Version", "1.0.0")
}

func (c *Client) do(req *http.Request, success, failure *metrics.Counter) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		requestDurationHistogram.Update(float64(time.Since(startTime).Milliseconds()))
	}()

	resp, err := c.client.Do(req)
	if err != nil {
		failure.Inc()
		return nil, errors.Wrap(donation.ErrProviderAPI, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		failure.Inc()
		return nil, errors.Wrap(err, "reading response body")
	}

	if resp.StatusCode >= 400 {
		failure.Inc()
		c.logger.Error("Vipps API error", "url", req.URL.Path, "status", resp.Status, "body", string(body))
		return nil, errors.Wrapf(donation.ErrProviderAPI, "unexpected status %s: %s", resp.Status, string(body))
	}

	success.Inc()
	return body, nil
}
