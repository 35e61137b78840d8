package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string   `envconfig:"APP_PORT" default:"3000"`
	AppEnv         string   `envconfig:"APP_ENV" default:"development"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string   `envconfig:"LOG_FORMAT" default:"text"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"` // CORS allowed origins

	AWSRegion      string `envconfig:"AWS_REGION" default:"us-east-1"`
	AWSEndpointURL string `envconfig:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `envconfig:"AWS_SECRET_ACCESS_KEY"`
	S3BucketName   string `envconfig:"S3_BUCKET_NAME" default:"lendi-attachments"`
	SNSRegion      string `envconfig:"SNS_REGION" default:"us-east-1"`

	DynamoTables DynamoTables `envconfig:"DYNAMO_TABLE"`

	JWTSecret              string `envconfig:"JWT_SECRET" default:"change-me"`
	JWTExpiryDays          int    `envconfig:"JWT_EXPIRY_DAYS" default:"7"`
	RefreshTokenExpiryDays int    `envconfig:"REFRESH_TOKEN_EXPIRY_DAYS" default:"30"`

	NowPayments NowPayments `envconfig:"NOWPAYMENTS"`

	TokensPerUSD  int64  `envconfig:"TOKENS_PER_USD" default:"2"`
	BalanceSymbol string `envconfig:"BALANCE_SYMBOL" default:"LENDI"`

	MaturitySchedule string `envconfig:"MATURITY_SCHEDULE" default:"@every 1m"`
	RedisURL         string `envconfig:"REDIS_URL"` // optional; enables the cross-instance push relay

	Admin Admin `envconfig:"ADMIN"`
}

// Admin configures admin onboarding. SecretKey guards super admin creation
// over HTTP; an empty key disables that route. When SuperAdminEmail and
// SuperAdminPassword are set the first super admin is created at startup.
type Admin struct {
	SecretKey          string        `envconfig:"SECRET_KEY"`
	InviteTTL          time.Duration `envconfig:"INVITE_TTL" default:"24h"`
	SuperAdminUsername string        `envconfig:"SUPER_ADMIN_USERNAME" default:"superadmin"`
	SuperAdminEmail    string        `envconfig:"SUPER_ADMIN_EMAIL"`
	SuperAdminPassword string        `envconfig:"SUPER_ADMIN_PASSWORD"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users          string `envconfig:"USERS" default:"users"`
	Sessions       string `envconfig:"SESSIONS" default:"sessions"`
	Notifications  string `envconfig:"NOTIFICATIONS" default:"notifications"`
	Transactions   string `envconfig:"TRANSACTIONS" default:"transactions"`
	Investments    string `envconfig:"INVESTMENTS" default:"investments"`
	SupportTickets string `envconfig:"SUPPORT_TICKETS" default:"support_tickets"`
	AdminInvites   string `envconfig:"ADMIN_INVITES" default:"admin_invites"`
}

// NowPayments configures the crypto payment gateway client.
type NowPayments struct {
	BaseURL     string        `envconfig:"BASE_URL" default:"https://api.nowpayments.io/v1"`
	APIKey      string        `envconfig:"API_KEY"`
	IPNSecret   string        `envconfig:"IPN_SECRET"`
	PayCurrency string        `envconfig:"PAY_CURRENCY" default:"btc"`
	CallbackURL string        `envconfig:"CALLBACK_URL"`
	SuccessURL  string        `envconfig:"SUCCESS_URL"`
	CancelURL   string        `envconfig:"CANCEL_URL"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"15s"`
}

// Load reads an optional .env file and then all configuration from
// environment variables.
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file loaded", "err", err)
		}
	}

	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return nil, err
	}
	return c, nil
}
