package stripe

import (
	"context"
	"log/slog"
	"testing"

	"donation-service/internal/config"
	"donation-service/internal/donation"
	"github.com/h2non/gock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return NewClient(config.Stripe{
		SecretKey: "sk_test_123",
		BaseURL:   "https://api.stripe.com",
	}, slog.Default())
}

func TestCreateCheckoutSession_OneTime(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.stripe.com").
		Post("/v1/checkout/sessions").
		MatchHeader("Authorization", "Bearer sk_test_123").
		BodyString(`line_items%5B0%5D%5Bprice_data%5D%5Bunit_amount%5D=25000.*mode=payment`).
		Reply(200).
		JSON(map[string]string{
			"id":  "cs_test_abc",
			"url": "https://checkout.stripe.com/c/pay/cs_test_abc",
		})

	session, err := testClient().CreateCheckoutSession(context.Background(), SessionParams{
		Amount:   250,
		Currency: "NOK",
		AppURL:   "https://example.org",
	})

	require.NoError(t, err)
	assert.Equal(t, "cs_test_abc", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_abc", session.URL)
	assert.True(t, gock.IsDone())
}

func TestCreateCheckoutSession_Recurring(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.stripe.com").
		Post("/v1/checkout/sessions").
		BodyString(`recurring%5D%5Binterval%5D=month.*mode=subscription.*setup_future_usage%5D=off_session`).
		Reply(200).
		JSON(map[string]string{
			"id":  "cs_test_sub",
			"url": "https://checkout.stripe.com/c/pay/cs_test_sub",
		})

	session, err := testClient().CreateCheckoutSession(context.Background(), SessionParams{
		Amount:    250,
		Recurring: true,
		Currency:  "NOK",
		AppURL:    "https://example.org",
	})

	require.NoError(t, err)
	assert.Equal(t, "cs_test_sub", session.ID)
	assert.True(t, gock.IsDone())
}

func TestCreateCheckoutSession_APIError(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.stripe.com").
		Post("/v1/checkout/sessions").
		Reply(400).
		JSON(map[string]any{
			"error": map[string]string{"message": "Invalid currency: xxx"},
		})

	_, err := testClient().CreateCheckoutSession(context.Background(), SessionParams{
		Amount:   250,
		Currency: "xxx",
		AppURL:   "https://example.org",
	})

	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), donation.ErrProviderAPI)
	assert.Contains(t, err.Error(), "Invalid currency")
}

func TestCreateCheckoutSession_EmptySession(t *testing.T) {
	defer gock.Off()

	// A 2xx reply without a session id or redirect url is no use to the
	// client and must not pass as success.
	gock.New("https://api.stripe.com").
		Post("/v1/checkout/sessions").
		Reply(200).
		JSON(map[string]string{})

	_, err := testClient().CreateCheckoutSession(context.Background(), SessionParams{
		Amount:   250,
		Currency: "NOK",
		AppURL:   "https://example.org",
	})

	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), donation.ErrProviderAPI)
	assert.Contains(t, err.Error(), "no session id or url")
}

func TestCreateCheckoutSession_NotConfigured(t *testing.T) {
	client := NewClient(config.Stripe{}, slog.Default())

	_, err := client.CreateCheckoutSession(context.Background(), SessionParams{
		Amount:   250,
		Currency: "NOK",
		AppURL:   "https://example.org",
	})

	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), donation.ErrProviderNotConfigured)
}

func TestSessionForm_Fields(t *testing.T) {
	form := testClient().sessionForm(SessionParams{
		Amount:    99.5,
		Recurring: false,
		Currency:  "NOK",
		AppURL:    "https://example.org",
	})

	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "card", form.Get("payment_method_types[0]"))
	assert.Equal(t, "nok", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "9950", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, oneTimeProductName, form.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "https://example.org/donate/success?session_id={CHECKOUT_SESSION_ID}", form.Get("success_url"))
	assert.Equal(t, "https://example.org/donate/cancel", form.Get("cancel_url"))
	assert.Equal(t, "one_time", form.Get("metadata[donation_type]"))
	assert.Empty(t, form.Get("line_items[0][price_data][recurring][interval]"))
	assert.Empty(t, form.Get("payment_method_options[card][setup_future_usage]"))
}

func TestSessionForm_RecurringFields(t *testing.T) {
	form := testClient().sessionForm(SessionParams{
		Amount:    250,
		Recurring: true,
		Currency:  "NOK",
		AppURL:    "https://example.org",
	})

	assert.Equal(t, "subscription", form.Get("mode"))
	assert.Equal(t, recurringProductName, form.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "month", form.Get("line_items[0][price_data][recurring][interval]"))
	assert.Equal(t, "off_session", form.Get("payment_method_options[card][setup_future_usage]"))
	assert.Equal(t, "monthly", form.Get("metadata[donation_type]"))
}
