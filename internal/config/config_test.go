package config

import (
	"strings"
	"testing"
	"time"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_PASSWORD", "x")
	t.Setenv("DB_NAME", "dialer")
	t.Setenv("DB_SSLMODE", "")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_ACCESS_TTL", "")
	t.Setenv("JWT_REFRESH_TTL", "")
	t.Setenv("PROVIDER_ACCOUNT_SID", "AC123")
	t.Setenv("PROVIDER_AUTH_TOKEN", "token")
	t.Setenv("PROVIDER_CALLER_ID", "+15550001111")
	t.Setenv("PROVIDER_MEDIA_WS_URL", "ws://localhost:9090/stream")
	t.Setenv("DIALER_STATUS_POLL_INTERVAL", "")
	t.Setenv("DIALER_NO_ANSWER_TIMEOUT", "")
	t.Setenv("DIALER_RECONNECT_DELAY", "")
	t.Setenv("DIALER_MAX_CONCURRENT", "")
	t.Setenv("AUDIO_SAMPLE_RATE", "")
	t.Setenv("AUDIO_FRAME_SAMPLES", "")
	t.Setenv("AUDIO_RMS_THRESHOLD", "")
}

func TestLoad_AppliesDefaults(t *testing.T) {
	setValidEnv(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected 15m access TTL default, got %v", c.Auth.AccessTokenTTL)
	}
	if c.Auth.RefreshTokenTTL != 30*24*time.Hour {
		t.Fatalf("expected 30d refresh TTL default, got %v", c.Auth.RefreshTokenTTL)
	}
	if c.Dialer.StatusPollInterval != 2*time.Second {
		t.Fatalf("expected 2s poll interval default, got %v", c.Dialer.StatusPollInterval)
	}
	if c.Dialer.NoAnswerTimeout != 30*time.Second {
		t.Fatalf("expected 30s no-answer default, got %v", c.Dialer.NoAnswerTimeout)
	}
	if c.Dialer.ReconnectDelay != 2*time.Second {
		t.Fatalf("expected 2s reconnect delay default, got %v", c.Dialer.ReconnectDelay)
	}
	if c.Dialer.MaxConcurrent != 1 {
		t.Fatalf("expected max concurrent 1 default, got %d", c.Dialer.MaxConcurrent)
	}
	if c.Audio.SampleRate != 8000 || c.Audio.FrameSamples != 160 {
		t.Fatalf("unexpected audio defaults: rate=%d samples=%d", c.Audio.SampleRate, c.Audio.FrameSamples)
	}
	if c.Audio.RMSThreshold != 0.01 {
		t.Fatalf("expected rms threshold 0.01 default, got %v", c.Audio.RMSThreshold)
	}
	if c.HTTPAddr() != ":8080" {
		t.Fatalf("unexpected http addr %q", c.HTTPAddr())
	}
}

func TestLoad_AccumulatesMissingRequired(t *testing.T) {
	setValidEnv(t)
	t.Setenv("DB_HOST", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PROVIDER_CALLER_ID", "")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "config errors:") {
		t.Fatalf("expected accumulated error list, got %q", msg)
	}
	for _, want := range []string{"DB_HOST is required", "JWT_SECRET is required", "PROVIDER_CALLER_ID is required"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in error, got %q", want, msg)
		}
	}
}

func TestLoad_RejectsNonIntegerPort(t *testing.T) {
	setValidEnv(t)
	t.Setenv("APP_PORT", "http")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "APP_PORT must be an integer") {
		t.Fatalf("expected integer parse error, got %v", err)
	}
}

func TestValidate_ProductionRequiresSecureMediaWS(t *testing.T) {
	setValidEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_SSLMODE", "require")
	t.Setenv("PROVIDER_MEDIA_WS_URL", "ws://media.example.com/stream")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "wss:// in production") {
		t.Fatalf("expected wss requirement error, got %v", err)
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	setValidEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("PROVIDER_MEDIA_WS_URL", "wss://media.example.com/stream")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DB_SSLMODE is required in production") {
		t.Fatalf("expected sslmode requirement error, got %v", err)
	}
}

func TestValidate_RejectsBadMediaWSScheme(t *testing.T) {
	setValidEnv(t)
	t.Setenv("PROVIDER_MEDIA_WS_URL", "https://media.example.com/stream")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "PROVIDER_MEDIA_WS_URL must be a ws:// or wss:// URL") {
		t.Fatalf("expected scheme error, got %v", err)
	}
}

func TestValidate_NoAnswerMustExceedPollInterval(t *testing.T) {
	setValidEnv(t)
	t.Setenv("DIALER_STATUS_POLL_INTERVAL", "5s")
	t.Setenv("DIALER_NO_ANSWER_TIMEOUT", "5s")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DIALER_NO_ANSWER_TIMEOUT must be greater than DIALER_STATUS_POLL_INTERVAL") {
		t.Fatalf("expected no-answer ordering error, got %v", err)
	}
}

func TestValidate_RejectsRMSThresholdAtOrAboveOne(t *testing.T) {
	setValidEnv(t)
	t.Setenv("AUDIO_RMS_THRESHOLD", "1.5")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "AUDIO_RMS_THRESHOLD must be below 1.0") {
		t.Fatalf("expected threshold error, got %v", err)
	}
}

func TestValidate_RefreshTTLMustExceedAccessTTL(t *testing.T) {
	setValidEnv(t)
	t.Setenv("JWT_ACCESS_TTL", "1h")
	t.Setenv("JWT_REFRESH_TTL", "30m")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL") {
		t.Fatalf("expected TTL ordering error, got %v", err)
	}
}
