package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the dialer process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Provider ProviderConfig
	Dialer   DialerConfig
	Audio    AudioConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// ProviderConfig carries telephony provider credentials and endpoints.
type ProviderConfig struct {
	AccountSID string
	AuthToken  string

	// CallerID is the default outbound caller number (E.164).
	CallerID string

	// APIBaseURL overrides the provider REST endpoint; empty means the
	// provider default.
	APIBaseURL string

	// MediaWSURL is the provider media-stream websocket endpoint the relay
	// dials, e.g. wss://media.example.com/stream.
	MediaWSURL string

	// StatusCallbackURL is the public webhook the provider posts call status
	// changes to. Optional; status polling covers deployments without a
	// reachable callback.
	StatusCallbackURL string
}

// DialerConfig tunes the orchestration loops.
// Duration env vars are optional; defaults applied in Validate().
type DialerConfig struct {
	// StatusPollInterval is the per-session provider status poll tick.
	StatusPollInterval time.Duration

	// NoAnswerTimeout force-hangs-up a call that never reaches in_progress.
	NoAnswerTimeout time.Duration

	// ReconnectDelay is the fixed wait before the relay's single reconnect
	// attempt after an unexpected transport close.
	ReconnectDelay time.Duration

	// MaxConcurrent caps simultaneous placements per agent.
	MaxConcurrent int
}

// AudioConfig fixes the capture frame format.
type AudioConfig struct {
	SampleRate int

	// FrameSamples is the number of 16-bit samples per capture frame.
	FrameSamples int

	// RMSThreshold gates silent frames; normalized 0.0..1.0.
	RMSThreshold float64
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optDuration("JWT_REFRESH_TTL")

	c.Provider.AccountSID = strings.TrimSpace(os.Getenv("PROVIDER_ACCOUNT_SID"))
	c.Provider.AuthToken = os.Getenv("PROVIDER_AUTH_TOKEN")
	c.Provider.CallerID = strings.TrimSpace(os.Getenv("PROVIDER_CALLER_ID"))
	c.Provider.APIBaseURL = strings.TrimSpace(os.Getenv("PROVIDER_API_BASE_URL"))
	c.Provider.MediaWSURL = strings.TrimSpace(os.Getenv("PROVIDER_MEDIA_WS_URL"))
	c.Provider.StatusCallbackURL = strings.TrimSpace(os.Getenv("PROVIDER_STATUS_CALLBACK_URL"))

	c.Dialer.StatusPollInterval = optDuration("DIALER_STATUS_POLL_INTERVAL")
	c.Dialer.NoAnswerTimeout = optDuration("DIALER_NO_ANSWER_TIMEOUT")
	c.Dialer.ReconnectDelay = optDuration("DIALER_RECONNECT_DELAY")
	c.Dialer.MaxConcurrent = optInt("DIALER_MAX_CONCURRENT")

	c.Audio.SampleRate = optInt("AUDIO_SAMPLE_RATE")
	c.Audio.FrameSamples = optInt("AUDIO_FRAME_SAMPLES")
	c.Audio.RMSThreshold = optFloat("AUDIO_RMS_THRESHOLD")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Provider.AccountSID == "" {
		errs = append(errs, errors.New("PROVIDER_ACCOUNT_SID is required"))
	}
	if c.Provider.AuthToken == "" {
		errs = append(errs, errors.New("PROVIDER_AUTH_TOKEN is required"))
	}
	if c.Provider.CallerID == "" {
		errs = append(errs, errors.New("PROVIDER_CALLER_ID is required"))
	}
	if c.Provider.MediaWSURL == "" {
		errs = append(errs, errors.New("PROVIDER_MEDIA_WS_URL is required"))
	} else if !strings.HasPrefix(c.Provider.MediaWSURL, "ws://") && !strings.HasPrefix(c.Provider.MediaWSURL, "wss://") {
		errs = append(errs, fmt.Errorf("PROVIDER_MEDIA_WS_URL must be a ws:// or wss:// URL, got %q", c.Provider.MediaWSURL))
	}
	if c.IsProduction() && strings.HasPrefix(c.Provider.MediaWSURL, "ws://") {
		errs = append(errs, errors.New("PROVIDER_MEDIA_WS_URL must use wss:// in production"))
	}

	if c.Dialer.StatusPollInterval <= 0 {
		c.Dialer.StatusPollInterval = 2 * time.Second
	}
	if c.Dialer.NoAnswerTimeout <= 0 {
		c.Dialer.NoAnswerTimeout = 30 * time.Second
	}
	if c.Dialer.ReconnectDelay <= 0 {
		c.Dialer.ReconnectDelay = 2 * time.Second
	}
	if c.Dialer.MaxConcurrent <= 0 {
		c.Dialer.MaxConcurrent = 1
	}
	if c.Dialer.NoAnswerTimeout <= c.Dialer.StatusPollInterval {
		errs = append(errs, errors.New("DIALER_NO_ANSWER_TIMEOUT must be greater than DIALER_STATUS_POLL_INTERVAL"))
	}

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 8000
	}
	if c.Audio.FrameSamples <= 0 {
		c.Audio.FrameSamples = 160
	}
	if c.Audio.RMSThreshold <= 0 {
		c.Audio.RMSThreshold = 0.01
	}
	if c.Audio.RMSThreshold >= 1.0 {
		errs = append(errs, fmt.Errorf("AUDIO_RMS_THRESHOLD must be below 1.0, got %v", c.Audio.RMSThreshold))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optFloat(key string) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
