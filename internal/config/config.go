// README: Config loader with env defaults; every external integration is optional and disabled when empty.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTP struct {
		Addr            string
		ShutdownTimeout time.Duration
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr     string
		LockWait time.Duration
	}
	Firebase struct {
		ProjectID       string
		DatabaseURL     string
		CredentialsFile string
		// DriversTopic is the FCM topic every driver app subscribes to.
		DriversTopic string
	}
	Twilio struct {
		AccountSID  string
		AuthToken   string
		From        string
		WebhookBase string
	}
	Kafka struct {
		Brokers []string
		Topic   string
	}
	AMQP struct {
		URL      string
		Exchange string
	}
	Maps struct {
		APIKey string
		// NearbyRadiusKm is the search radius used when a nearby query gives none.
		NearbyRadiusKm float64
	}
	AI struct {
		GeminiKey string
		Model     string
	}
	Notify struct {
		SafetyDesk string
		Timeout    time.Duration
		Async      bool
		Seed       uint64
	}
	Log struct {
		Level string
	}
}

func Load() (Config, error) {
	var cfg Config
	var errs []error

	cfg.HTTP.Addr = envOrDefault("WERIDE_HTTP_ADDR", ":8080")
	cfg.HTTP.ShutdownTimeout = envOrDefaultDuration("WERIDE_SHUTDOWN_TIMEOUT", 10*time.Second, &errs)
	cfg.DB.DSN = envOrDefault("WERIDE_DB_DSN", "")
	cfg.Redis.Addr = envOrDefault("WERIDE_REDIS_ADDR", "")
	cfg.Redis.LockWait = envOrDefaultDuration("WERIDE_LOCK_WAIT", 5*time.Second, &errs)

	cfg.Firebase.ProjectID = envOrDefault("WERIDE_FIREBASE_PROJECT_ID", "")
	cfg.Firebase.DatabaseURL = envOrDefault("WERIDE_FIREBASE_DATABASE_URL", "")
	cfg.Firebase.CredentialsFile = envOrDefault("WERIDE_FIREBASE_CREDENTIALS", "")
	cfg.Firebase.DriversTopic = envOrDefault("WERIDE_DRIVERS_TOPIC", "drivers")

	cfg.Twilio.AccountSID = envOrDefault("WERIDE_TWILIO_ACCOUNT_SID", "")
	cfg.Twilio.AuthToken = envOrDefault("WERIDE_TWILIO_AUTH_TOKEN", "")
	cfg.Twilio.From = envOrDefault("WERIDE_TWILIO_FROM", "")
	cfg.Twilio.WebhookBase = strings.TrimRight(envOrDefault("WERIDE_WEBHOOK_BASE", ""), "/")

	if brokers := envOrDefault("WERIDE_KAFKA_BROKERS", ""); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Kafka.Topic = envOrDefault("WERIDE_KAFKA_TOPIC", "ride-snapshots")
	cfg.AMQP.URL = envOrDefault("WERIDE_AMQP_URL", "")
	cfg.AMQP.Exchange = envOrDefault("WERIDE_AMQP_EXCHANGE", "ride_topic")

	cfg.Maps.APIKey = envOrDefault("WERIDE_MAPS_API_KEY", "")
	cfg.Maps.NearbyRadiusKm = envOrDefaultFloat("WERIDE_NEARBY_RADIUS_KM", 3.0, &errs)
	cfg.AI.GeminiKey = envOrDefault("GEMINI_API_KEY", "")
	cfg.AI.Model = envOrDefault("WERIDE_GEMINI_MODEL", "gemini-1.5-flash")

	cfg.Notify.SafetyDesk = envOrDefault("WERIDE_SAFETY_DESK", "")
	cfg.Notify.Timeout = envOrDefaultDuration("WERIDE_NOTIFY_TIMEOUT", 10*time.Second, &errs)
	cfg.Notify.Async = envOrDefaultBool("WERIDE_NOTIFY_ASYNC", true, &errs)
	cfg.Notify.Seed = uint64(envOrDefaultInt("WERIDE_NOTIFY_SEED", 0, &errs))

	cfg.Log.Level = envOrDefault("WERIDE_LOG_LEVEL", "info")

	errs = append(errs, cfg.validate()...)
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("WERIDE_HTTP_ADDR must not be empty"))
	}
	if c.Twilio.AccountSID != "" && (c.Twilio.AuthToken == "" || c.Twilio.From == "") {
		errs = append(errs, errors.New("twilio needs WERIDE_TWILIO_AUTH_TOKEN and WERIDE_TWILIO_FROM when an account sid is set"))
	}
	if c.Firebase.DatabaseURL != "" && c.Firebase.ProjectID == "" {
		errs = append(errs, errors.New("WERIDE_FIREBASE_PROJECT_ID is required with a database url"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("WERIDE_KAFKA_TOPIC must not be empty"))
	}
	if c.Maps.NearbyRadiusKm <= 0 {
		errs = append(errs, errors.New("WERIDE_NEARBY_RADIUS_KM must be positive"))
	}
	if c.Notify.Timeout <= 0 {
		errs = append(errs, errors.New("WERIDE_NOTIFY_TIMEOUT must be positive"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("WERIDE_LOG_LEVEL %q is not one of debug, info, warn, error", c.Log.Level))
	}
	return errs
}

// TwilioEnabled reports whether voice and SMS delivery is configured; otherwise dispatch runs in demo mode.
func (c Config) TwilioEnabled() bool { return c.Twilio.AccountSID != "" }

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int, errs *[]error) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return n
	}
	return def
}

func envOrDefaultFloat(key string, def float64, errs *[]error) float64 {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return n
	}
	return def
}

func envOrDefaultBool(key string, def bool, errs *[]error) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return b
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration, errs *[]error) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return d
	}
	return def
}
