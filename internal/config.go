package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/almanac/internal/index"
	pkgconfig "github.com/starford/almanac/pkg/config"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app" toml:"app"`
	Notes NotesConfig       `yaml:"notes" toml:"notes"`
	Diary DiaryConfig       `yaml:"diary" toml:"diary"`
	Index IndexConfig       `yaml:"index" toml:"index"`
	Auth  AuthConfig        `yaml:"auth" toml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Notes.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ResolvePaths expands "~" in every configured path.
func (c *Config) ResolvePaths() error {
	for _, p := range []*string{&c.App.LogFile, &c.Notes.Path, &c.Diary.Path, &c.Index.StatePath} {
		expanded, err := pkgconfig.ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	// LogFile redirects logs from stdout to a file when set.
	LogFile string     `yaml:"log_file" toml:"log_file"`
	HTTP    HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
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

// NotesConfig holds the notes directory and the path substrings the scanner
// skips.
type NotesConfig struct {
	Path    string   `yaml:"path" toml:"path"`
	Exclude []string `yaml:"exclude" toml:"exclude"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Exclude, validation.Each(validation.Required)),
	)
}

// DiaryConfig holds the diary directory. An empty path disables the diary
// routes.
type DiaryConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// IndexConfig holds task index configuration.
type IndexConfig struct {
	Workers      int    `yaml:"workers" toml:"workers"`
	StateBackend string `yaml:"state_backend" toml:"state_backend"`
	StatePath    string `yaml:"state_path" toml:"state_path"`
	// Watch enables the fsnotify watcher on the notes directory.
	Watch bool `yaml:"watch" toml:"watch"`
	// RefreshInterval, when positive, invalidates the index periodically.
	RefreshInterval time.Duration `yaml:"refresh_interval" toml:"refresh_interval"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	if c.StateBackend == "" {
		c.StateBackend = index.StateNone
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.StateBackend, validation.In(index.StateNone, index.StateJSON, index.StateSQLite)),
		validation.Field(&c.StatePath, validation.When(c.StateBackend != index.StateNone, validation.Required)),
		validation.Field(&c.RefreshInterval, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
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
		Notes: NotesConfig{
			Path:    "~/notes",
			Exclude: []string{"templates/", ".zk/"},
		},
		Diary: DiaryConfig{
			Path: "~/diary",
		},
		Index: IndexConfig{
			Workers:      8,
			StateBackend: index.StateJSON,
			StatePath:    "~/.config/almanac/index_state.json",
			Watch:        true,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
