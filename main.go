package main

import (
	"log"
	"net/http"

	"donation-service/internal/config"
	"donation-service/internal/logging"
	"donation-service/internal/metrics"
	"donation-service/internal/server"
	"donation-service/internal/stripe"
	"donation-service/internal/vipps"
	"donation-service/internal/webhook"
)

func main() {
	cfg := config.MustLoadConfig(".")

	logger := logging.GetLogger(cfg.Logs)
	metrics.Setup(cfg.Metrics)

	// Missing provider credentials are reported per-endpoint, not at startup,
	// so one unconfigured provider does not take the whole site down.
	stripeClient := stripe.NewClient(cfg.Stripe, logger)
	vippsClient := vipps.NewClient(cfg.Vipps, logger)

	verifier := webhook.NewVerifier(cfg.Vipps.WebhookSecret)
	if !verifier.Enabled() {
		logger.Warn("Vipps webhook secret is not set, callback verification is disabled")
	}
	processor := webhook.NewProcessor(logger)

	handler := server.NewHandler(cfg, stripeClient, vippsClient, processor, verifier, logger)

	mux := http.NewServeMux()
	handler.Register(mux)

	logger.Info("Starting donation service", "port", cfg.Server.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Server.Port, server.RequestLogging(logger, mux)))
}
