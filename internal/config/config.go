package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Server struct {
	Port string `mapstructure:"port"`
}

type App struct {
	// BaseURL is the public URL of the site, used to build the redirect and
	// callback URLs handed to the payment providers.
	BaseURL  string `mapstructure:"base-url"`
	Currency string `mapstructure:"currency"`
}

type Stripe struct {
	SecretKey string `mapstructure:"secret-key"`
	BaseURL   string `mapstructure:"base-url"`
	TimeoutMs int    `mapstructure:"timeout-ms"`
}

type Vipps struct {
	ClientID             string `mapstructure:"client-id"`
	ClientSecret         string `mapstructure:"client-secret"`
	MerchantSerialNumber string `mapstructure:"merchant-serial-number"`
	SubscriptionKey      string `mapstructure:"subscription-key"`
	WebhookSecret        string `mapstructure:"webhook-secret"`
	UseTestMode          bool   `mapstructure:"use-test-mode"`
	TimeoutMs            int    `mapstructure:"timeout-ms"`
}

type Metrics struct {
	URL          string `mapstructure:"url"`
	IntervalMs   int    `mapstructure:"interval-ms"`
	CommonLabels string `mapstructure:"common-labels"`
}

type Logs struct {
	URL string `mapstructure:"url"`
}

type Config struct {
	Server  Server  `mapstructure:"server"`
	App     App     `mapstructure:"app"`
	Stripe  Stripe  `mapstructure:"stripe"`
	Vipps   Vipps   `mapstructure:"vipps"`
	Metrics Metrics `mapstructure:"metrics"`
	Logs    Logs    `mapstructure:"logs"`
}

func LoadConfig(path string) (*Config, error) {
	// Local development keeps provider credentials in .env; absence is fine.
	_ = godotenv.Load()

	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func MustLoadConfig(path string) *Config {
	config, err := LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return config
}
