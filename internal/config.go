package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/inkmath/internal/recognition"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Canvas      CanvasConfig      `yaml:"canvas"`
	Journal     JournalConfig     `yaml:"journal"`
	Watch       WatchConfig       `yaml:"watch"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Recognition, &c.Canvas, &c.Journal, &c.Watch, &c.Auth} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RecognitionConfig holds the handwriting recognition service settings.
type RecognitionConfig struct {
	URL            string        `yaml:"url"`
	ApplicationKey string        `yaml:"application_key"`
	HMACKey        string        `yaml:"hmac_key"`
	Timeout        time.Duration `yaml:"timeout"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	Burst          int           `yaml:"burst"`
	// RecognizeAfterErase re-runs recognition over the remaining ink after
	// every erase.
	RecognizeAfterErase bool `yaml:"recognize_after_erase"`
	// ScribbleErase treats a dense back-and-forth stroke as an eraser.
	ScribbleErase bool          `yaml:"scribble_erase"`
	ScribbleHold  time.Duration `yaml:"scribble_hold"`
}

// Validate validates the recognition configuration.
func (c *RecognitionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.RatePerSecond, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Min(0)),
		validation.Field(&c.ScribbleHold, validation.Min(time.Duration(0))),
	)
}

func absoluteURL(v any) error {
	u, err := url.Parse(v.(string))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

// Options converts the section into client options.
func (c *RecognitionConfig) Options() recognition.Options {
	return recognition.Options{
		URL:            c.URL,
		ApplicationKey: c.ApplicationKey,
		HMACKey:        c.HMACKey,
		Timeout:        c.Timeout,
		RatePerSecond:  c.RatePerSecond,
		Burst:          c.Burst,
	}
}

// CanvasConfig is the drawing surface size sent with each recognition request.
type CanvasConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Validate validates the canvas configuration.
func (c *CanvasConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Width, validation.Required, validation.Min(1)),
		validation.Field(&c.Height, validation.Required, validation.Min(1)),
	)
}

// JournalConfig holds the SQLite journal settings. An empty Path disables
// journaling.
type JournalConfig struct {
	Path    string `yaml:"path"`
	Session string `yaml:"session"`
}

// Validate validates the journal configuration.
func (c *JournalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Session, validation.Required),
	)
}

// WatchConfig holds the drop directory settings.
type WatchConfig struct {
	Dir     string `yaml:"dir"`
	Enabled bool   `yaml:"enabled"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.When(c.Enabled, validation.Required)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Recognition: RecognitionConfig{
			URL:                 recognition.DefaultURL,
			Timeout:             10 * time.Second,
			RatePerSecond:       5,
			Burst:               2,
			RecognizeAfterErase: true,
			ScribbleHold:        300 * time.Millisecond,
		},
		Canvas: CanvasConfig{
			Width:  1280,
			Height: 720,
		},
		Journal: JournalConfig{
			Path:    "./inkmath.db",
			Session: "default",
		},
		Watch: WatchConfig{
			Dir: "./drop",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
