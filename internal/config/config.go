package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"development"`
	DBConnectionString string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret          string `envconfig:"JWT_SECRET" required:"true"`

	// Entitlement limits per classification. Trial capacities are the daily
	// free-message refill sizes; the per-day maxima feed the legacy usage view.
	GuestTrialCapacity     int `envconfig:"GUEST_TRIAL_CAPACITY" default:"2"`
	RegularTrialCapacity   int `envconfig:"REGULAR_TRIAL_CAPACITY" default:"10"`
	GuestMaxPerDayLegacy   int `envconfig:"GUEST_MAX_PER_DAY_LEGACY" default:"2"`
	RegularMaxPerDayLegacy int `envconfig:"REGULAR_MAX_PER_DAY_LEGACY" default:"10"`

	// Telegram payment webhook settings. The secret token is compared against
	// the X-Telegram-Bot-Api-Secret-Token header; in production it can be
	// loaded from Secret Manager instead via TELEGRAM_WEBHOOK_SECRET_NAME.
	TelegramWebhookSecret     string `envconfig:"TELEGRAM_WEBHOOK_SECRET"`
	TelegramWebhookSecretName string `envconfig:"TELEGRAM_WEBHOOK_SECRET_NAME"`

	// GCP settings (Pub/Sub ledger events, Secret Manager).
	GCPProjectID      string `envconfig:"GCP_PROJECT_ID"`
	LedgerEventsTopic string `envconfig:"LEDGER_EVENTS_TOPIC" default:"ledger-events"`

	// Payment confirmation queue settings (pgmq).
	PaymentQueueName           string `envconfig:"PAYMENT_QUEUE_NAME" default:"payment_confirmations"`
	PaymentPollTimeoutSec      int    `envconfig:"PAYMENT_POLL_TIMEOUT_SEC" default:"30"`
	PaymentPollMaxMsg          int    `envconfig:"PAYMENT_POLL_MAX_MSG" default:"1"`
	PaymentMaxRetries          int    `envconfig:"PAYMENT_MAX_RETRIES" default:"5"`
	PaymentBackoffInitialSec   int    `envconfig:"PAYMENT_BACKOFF_INITIAL_SEC" default:"1"`
	PaymentBackoffMaxSec       int    `envconfig:"PAYMENT_BACKOFF_MAX_SEC" default:"60"`
	PaymentDeadLetterQueueName string `envconfig:"PAYMENT_DEAD_LETTER_QUEUE_NAME" default:"payment_confirmations_dlq"`

	// Consume retry settings for transient storage failures. After the
	// attempts are exhausted the request is denied (fail closed).
	ConsumeMaxRetries       int `envconfig:"CONSUME_MAX_RETRIES" default:"3"`
	ConsumeBackoffInitialMs int `envconfig:"CONSUME_BACKOFF_INITIAL_MS" default:"50"`

	// Trial reset maintenance pass.
	ResetScanIntervalMin int `envconfig:"RESET_SCAN_INTERVAL_MIN" default:"15"`
	ResetScanBatchSize   int `envconfig:"RESET_SCAN_BATCH_SIZE" default:"500"`

	// Balance snapshot export to S3-compatible storage.
	S3URL               string `envconfig:"S3_URL"`
	S3Bucket            string `envconfig:"S3_BUCKET"`
	S3Region            string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey         string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey         string `envconfig:"S3_SECRET_KEY"`
	ExportIntervalHours int    `envconfig:"EXPORT_INTERVAL_HOURS" default:"24"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
