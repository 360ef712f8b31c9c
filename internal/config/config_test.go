package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.DB.DSN != "" || cfg.Redis.Addr != "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TwilioEnabled() {
		t.Fatal("twilio enabled without an account sid")
	}
	if cfg.Notify.Timeout != 10*time.Second || !cfg.Notify.Async {
		t.Fatalf("notify defaults = %+v", cfg.Notify)
	}
	if cfg.AMQP.Exchange != "ride_topic" || cfg.Firebase.DriversTopic != "drivers" {
		t.Fatalf("topic defaults = %q %q", cfg.AMQP.Exchange, cfg.Firebase.DriversTopic)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WERIDE_HTTP_ADDR", ":9090")
	t.Setenv("WERIDE_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("WERIDE_WEBHOOK_BASE", "https://weride.example/")
	t.Setenv("WERIDE_NOTIFY_TIMEOUT", "3s")
	t.Setenv("WERIDE_NOTIFY_ASYNC", "false")
	t.Setenv("WERIDE_NEARBY_RADIUS_KM", "7.5")
	t.Setenv("WERIDE_TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("WERIDE_TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("WERIDE_TWILIO_FROM", "+15550000000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" || len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Twilio.WebhookBase != "https://weride.example" {
		t.Fatalf("webhook base = %q", cfg.Twilio.WebhookBase)
	}
	if cfg.Notify.Timeout != 3*time.Second || cfg.Notify.Async || cfg.Maps.NearbyRadiusKm != 7.5 {
		t.Fatalf("parsed values wrong: %+v %v", cfg.Notify, cfg.Maps.NearbyRadiusKm)
	}
	if !cfg.TwilioEnabled() {
		t.Fatal("twilio should be enabled")
	}
}

func TestLoadAggregatesErrors(t *testing.T) {
	t.Setenv("WERIDE_NOTIFY_TIMEOUT", "soon")
	t.Setenv("WERIDE_NOTIFY_ASYNC", "maybe")
	t.Setenv("WERIDE_LOG_LEVEL", "loud")
	t.Setenv("WERIDE_TWILIO_ACCOUNT_SID", "AC123")

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"WERIDE_NOTIFY_TIMEOUT", "WERIDE_NOTIFY_ASYNC", "WERIDE_LOG_LEVEL", "WERIDE_TWILIO_AUTH_TOKEN"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s: %v", want, err)
		}
	}
}
