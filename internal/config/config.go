package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type (
	// Config holds configuration settings for the relay
	Config struct {
		// API Server
		APIHost         string
		APIPort         int
		CallbackRootURL string
		LogLevel        string

		// Outbound
		Platform    PlatformConfig
		Trigger     TriggerConfig
		Translation TranslationConfig
		Export      ExportConfig

		// Stores
		LedgerDSN string

		ShutdownTimeout time.Duration
	}

	// PlatformConfig selects how requests reach the CAD platform: through
	// the proxy Flow, or directly with API keys
	PlatformConfig struct {
		Mode         string
		ProxyFlowURL string
		APIURL       string
		AccessKey    string
		SecretKey    string
		Timeout      time.Duration
	}

	// TriggerConfig selects who issues translation requests
	TriggerConfig struct {
		Mode    string
		FlowURL string
	}

	// TranslationConfig holds the caller-supplied translation parameters
	TranslationConfig struct {
		Format             string
		Resolution         string
		DistanceTolerance  float64
		AngularTolerance   float64
		MaximumChordLength float64
	}

	// ExportConfig configures the export destination sinks
	ExportConfig struct {
		FlowURL     string
		BucketURL   string
		Prefix      string
		ClearPolicy string
	}
)

const (
	ModeFlow   = "flow"
	ModeDirect = "direct"

	// ClearAlways dispatches asynchronously and clears the ledger at once
	ClearAlways = "always"

	// ClearOnSuccess keeps the ledger when dispatch fails, so the batch can
	// be closed again by a re-delivered completion event
	ClearOnSuccess = "on-success"
)

const (
	DefaultAPIPort         = 8080
	DefaultAPIHost         = "0.0.0.0"
	MaxTCPPort             = 65535
	DefaultPlatformTimeout = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLedgerDSN       = "memory://"
	DefaultPlatformAPIURL  = "https://cad.onshape.com/api/v6"
	DefaultExportPrefix    = "exports"

	DefaultTranslationFormat     = "GLTF"
	DefaultTranslationResolution = "medium"
	DefaultDistanceTolerance     = 0.00012
	DefaultAngularTolerance      = 0.1090830782496456
	DefaultMaximumChordLength    = 10.0
)

var (
	ErrInvalidAPIPort         = errors.New("invalid API port")
	ErrInvalidCallbackRootURL = errors.New("invalid webhook callback root URL")
	ErrInvalidPlatformMode    = errors.New("invalid platform mode")
	ErrInvalidTriggerMode     = errors.New("invalid trigger mode")
	ErrInvalidClearPolicy     = errors.New("invalid export clear policy")
	ErrProxyFlowURLRequired   = errors.New(
		"PLATFORM_PROXY_FLOW_URL is required in flow mode",
	)
	ErrPlatformKeysRequired = errors.New(
		"PLATFORM_API_URL, PLATFORM_ACCESS_KEY and PLATFORM_SECRET_KEY " +
			"are required in direct mode",
	)
	ErrTriggerFlowURLRequired = errors.New(
		"TRIGGER_FLOW_URL is required in flow mode",
	)
	ErrExportFlowURLRequired = errors.New("EXPORT_FLOW_URL is required")
	ErrInvalidTimeout        = errors.New("timeout must be positive")
	ErrInvalidTranslation    = errors.New("invalid translation parameters")
)

// NewDefaultConfig creates a configuration with defaults for everything
// except the deployment-specific Flow URLs
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:         DefaultAPIHost,
		APIPort:         DefaultAPIPort,
		CallbackRootURL: "http://localhost:8080",
		LogLevel:        "info",
		Platform: PlatformConfig{
			Mode:    ModeFlow,
			APIURL:  DefaultPlatformAPIURL,
			Timeout: DefaultPlatformTimeout,
		},
		Trigger: TriggerConfig{
			Mode: ModeFlow,
		},
		Translation: TranslationConfig{
			Format:             DefaultTranslationFormat,
			Resolution:         DefaultTranslationResolution,
			DistanceTolerance:  DefaultDistanceTolerance,
			AngularTolerance:   DefaultAngularTolerance,
			MaximumChordLength: DefaultMaximumChordLength,
		},
		Export: ExportConfig{
			Prefix:      DefaultExportPrefix,
			ClearPolicy: ClearAlways,
		},
		LedgerDSN:       DefaultLedgerDSN,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadDotEnv loads variables from an env file when one exists. A missing
// file is not an error
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	loadEnvString("API_HOST", &c.APIHost)
	loadEnvString("WEBHOOK_CALLBACK_ROOT_URL", &c.CallbackRootURL)
	loadEnvString("LOG_LEVEL", &c.LogLevel)
	loadEnvString("LEDGER_DSN", &c.LedgerDSN)

	loadEnvString("PLATFORM_MODE", &c.Platform.Mode)
	loadEnvString("PLATFORM_PROXY_FLOW_URL", &c.Platform.ProxyFlowURL)
	loadEnvString("PLATFORM_API_URL", &c.Platform.APIURL)
	loadEnvString("PLATFORM_ACCESS_KEY", &c.Platform.AccessKey)
	loadEnvString("PLATFORM_SECRET_KEY", &c.Platform.SecretKey)

	loadEnvString("TRIGGER_MODE", &c.Trigger.Mode)
	loadEnvString("TRIGGER_FLOW_URL", &c.Trigger.FlowURL)

	loadEnvString("TRANSLATION_FORMAT", &c.Translation.Format)
	loadEnvString("TRANSLATION_RESOLUTION", &c.Translation.Resolution)

	loadEnvString("EXPORT_FLOW_URL", &c.Export.FlowURL)
	loadEnvString("EXPORT_BUCKET_URL", &c.Export.BucketURL)
	loadEnvString("EXPORT_PREFIX", &c.Export.Prefix)
	loadEnvString("EXPORT_CLEAR_POLICY", &c.Export.ClearPolicy)

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}

	if err := loadEnvDuration(
		"PLATFORM_TIMEOUT", &c.Platform.Timeout,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout,
	); err != nil {
		return err
	}

	if err := loadEnvFloat(
		"TRANSLATION_DISTANCE_TOLERANCE", &c.Translation.DistanceTolerance,
	); err != nil {
		return err
	}
	if err := loadEnvFloat(
		"TRANSLATION_ANGULAR_TOLERANCE", &c.Translation.AngularTolerance,
	); err != nil {
		return err
	}
	if err := loadEnvFloat(
		"TRANSLATION_MAX_CHORD_LENGTH", &c.Translation.MaximumChordLength,
	); err != nil {
		return err
	}

	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if u, err := url.Parse(c.CallbackRootURL); err != nil ||
		u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidCallbackRootURL, c.CallbackRootURL)
	}

	switch c.Platform.Mode {
	case ModeFlow:
		if c.Platform.ProxyFlowURL == "" {
			return ErrProxyFlowURLRequired
		}
	case ModeDirect:
		if c.Platform.APIURL == "" || c.Platform.AccessKey == "" ||
			c.Platform.SecretKey == "" {
			return ErrPlatformKeysRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidPlatformMode, c.Platform.Mode)
	}

	if c.Platform.Timeout <= 0 || c.ShutdownTimeout <= 0 {
		return ErrInvalidTimeout
	}

	switch c.Trigger.Mode {
	case ModeFlow:
		if c.Trigger.FlowURL == "" {
			return ErrTriggerFlowURLRequired
		}
	case ModeDirect:
		if err := c.Translation.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTriggerMode, c.Trigger.Mode)
	}

	if c.Export.FlowURL == "" {
		return ErrExportFlowURLRequired
	}

	if c.Export.ClearPolicy != ClearAlways &&
		c.Export.ClearPolicy != ClearOnSuccess {
		return fmt.Errorf("%w: %s",
			ErrInvalidClearPolicy, c.Export.ClearPolicy)
	}

	return nil
}

// Validate checks that every translation parameter has been supplied
func (t TranslationConfig) Validate() error {
	switch {
	case t.Format == "":
		return fmt.Errorf("%w: format is required", ErrInvalidTranslation)
	case t.Resolution == "":
		return fmt.Errorf("%w: resolution is required", ErrInvalidTranslation)
	case t.DistanceTolerance <= 0:
		return fmt.Errorf("%w: distance tolerance must be positive",
			ErrInvalidTranslation)
	case t.AngularTolerance <= 0:
		return fmt.Errorf("%w: angular tolerance must be positive",
			ErrInvalidTranslation)
	case t.MaximumChordLength <= 0:
		return fmt.Errorf("%w: maximum chord length must be positive",
			ErrInvalidTranslation)
	}
	return nil
}

// CallbackURL is the address the platform posts webhook events to
func (c *Config) CallbackURL() string {
	return c.CallbackRootURL + "/api/event"
}

func loadEnvString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

func loadEnvFloat(key string, dst *float64) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	*dst = v
	return nil
}

func loadEnvDuration(key string, dst *time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	*dst = d
	return nil
}
