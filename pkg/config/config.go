package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the lexvoice server
type Config struct {
	HTTP       HTTPConfig
	Engine     EngineConfig
	Mail       MailConfig
	Twilio     TwilioConfig
	Stripe     StripeConfig
	Scheduling SchedulingConfig
	AMQP       AMQPConfig
	Logging    LoggingConfig
}

// HTTPConfig holds the HTTP/WebSocket server configuration
type HTTPConfig struct {
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	EnableMetrics bool
	Greeting      string
}

// EngineConfig holds the reasoning engine connection configuration
type EngineConfig struct {
	APIKey       string
	Model        string
	Voice        string
	Instructions string
}

// MailConfig holds outbound email configuration
type MailConfig struct {
	APIKey          string
	From            string
	FirmEmail       string
	EscalationEmail string
}

// TwilioConfig holds carrier credentials and the escalation dial-out settings
type TwilioConfig struct {
	AccountSID         string
	AuthToken          string
	PhoneNumber        string
	EscalationNumber   string
	EscalationTwiMLURL string
}

// StripeConfig holds the payment-link service configuration
type StripeConfig struct {
	APIKey  string
	PriceID string
}

// SchedulingConfig maps consultation types to scheduling links
type SchedulingConfig struct {
	FreePhoneURL    string
	FreeZoomURL     string
	PaidZoomURL     string
	PaidInPersonURL string
}

// AMQPConfig holds the optional live transcript queue configuration
type AMQPConfig struct {
	URL       string
	QueueName string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, consulting a .env file if present
func Load(logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:          getEnvAsIntOrDefault("PORT", 8080),
			ReadTimeout:   getEnvAsDurationOrDefault("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getEnvAsDurationOrDefault("HTTP_WRITE_TIMEOUT", 10*time.Second),
			EnableMetrics: getEnvAsBoolOrDefault("ENABLE_METRICS", true),
			Greeting:      getEnvOrDefault("CALL_GREETING", "Thank you for calling. Please hold while I connect you to our assistant."),
		},
		Engine: EngineConfig{
			APIKey:       os.Getenv("OPENAI_API_KEY"),
			Model:        getEnvOrDefault("REALTIME_MODEL", "gpt-realtime"),
			Voice:        getEnvOrDefault("REALTIME_VOICE", "alloy"),
			Instructions: getEnvOrDefault("AGENT_INSTRUCTIONS", defaultInstructions),
		},
		Mail: MailConfig{
			APIKey:          os.Getenv("RESEND_API_KEY"),
			From:            getEnvOrDefault("MAIL_FROM", "Reception <reception@localhost>"),
			FirmEmail:       os.Getenv("FIRM_EMAIL"),
			EscalationEmail: os.Getenv("ESCALATION_EMAIL"),
		},
		Twilio: TwilioConfig{
			AccountSID:         os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:          os.Getenv("TWILIO_AUTH_TOKEN"),
			PhoneNumber:        os.Getenv("TWILIO_PHONE_NUMBER"),
			EscalationNumber:   os.Getenv("ESCALATION_PHONE_NUMBER"),
			EscalationTwiMLURL: os.Getenv("TWILIO_ESCALATION_TWIML_URL"),
		},
		Stripe: StripeConfig{
			APIKey:  os.Getenv("STRIPE_API_KEY"),
			PriceID: os.Getenv("STRIPE_PRICE_ID"),
		},
		Scheduling: SchedulingConfig{
			FreePhoneURL:    os.Getenv("SCHEDULING_FREE_PHONE_URL"),
			FreeZoomURL:     os.Getenv("SCHEDULING_FREE_ZOOM_URL"),
			PaidZoomURL:     os.Getenv("SCHEDULING_PAID_ZOOM_URL"),
			PaidInPersonURL: os.Getenv("SCHEDULING_PAID_IN_PERSON_URL"),
		},
		AMQP: AMQPConfig{
			URL:       os.Getenv("AMQP_URL"),
			QueueName: getEnvOrDefault("AMQP_QUEUE_NAME", "call_transcripts"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

// Validate checks the mandatory startup configuration. This is the only
// place a configuration problem is allowed to terminate the process.
func (c *Config) Validate() error {
	if c.Engine.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Mail.FirmEmail == "" {
		return fmt.Errorf("FIRM_EMAIL is required")
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

// EscalationRecipient returns the escalation address, falling back to the
// general firm address when no dedicated one is configured.
func (c *Config) EscalationRecipient() string {
	if c.Mail.EscalationEmail != "" {
		return c.Mail.EscalationEmail
	}
	return c.Mail.FirmEmail
}

const defaultInstructions = "You are the virtual receptionist for a law firm. " +
	"Greet callers politely, answer questions about the firm's consultation options, " +
	"and use the available tools to schedule appointments, book consultations, record payments, " +
	"or escalate to a human team member. Keep responses brief and conversational."

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
