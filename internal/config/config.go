package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/grandprix/internal/models"
)

// DefaultFileName is looked up in the credentials directory when no config
// file is given.
const DefaultFileName = "config.yaml"

// MinPollInterval is the shortest accepted availability poll interval.
const MinPollInterval = time.Second

// Config holds the client settings.
type Config struct {
	Services Services `yaml:"services"`

	CredentialsDir string `yaml:"credentials_dir"`
	CacheDir       string `yaml:"cache_dir"`
	DefaultView    string `yaml:"default_view"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	ReconcileDelay time.Duration `yaml:"reconcile_delay"`
	NoticeTTL      time.Duration `yaml:"notice_ttl"`
	RedirectDelay  time.Duration `yaml:"redirect_delay"`

	CancelableStatuses []models.ReservationStatus `yaml:"cancelable_statuses"`

	Telemetry Telemetry `yaml:"telemetry"`
}

// Services holds the base URLs of the backends.
type Services struct {
	Identity           string `yaml:"identity"`
	Inventory          string `yaml:"inventory"`
	Reservations       string `yaml:"reservations"`
	MyReservationsPath string `yaml:"my_reservations_path"`
}

type Telemetry struct {
	Enabled     bool    `yaml:"enabled"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Services: Services{
			Identity:           "http://localhost:8081",
			Inventory:          "http://localhost:8082",
			Reservations:       "http://localhost:8083",
			MyReservationsPath: "/api/users/{id}/myreservations",
		},
		DefaultView:        "/",
		RequestTimeout:     30 * time.Second,
		PollInterval:       30 * time.Second,
		ReconcileDelay:     500 * time.Millisecond,
		NoticeTTL:          3 * time.Second,
		RedirectDelay:      2 * time.Second,
		CancelableStatuses: append([]models.ReservationStatus(nil), models.DefaultCancelableStatuses...),
		Telemetry:          Telemetry{SampleRatio: 1},
	}
}

// LoadEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
		log.Debug().Str("file", f).Msg("loaded env file")
	}
	return nil
}

// Load reads the YAML file at path over the defaults. An empty path looks
// for DefaultFileName in dir and silently uses the defaults if it is absent.
func Load(path, dir string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if dir == "" {
			return cfg, nil
		}
		path = filepath.Join(dir, DefaultFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	log.Debug().Str("path", path).Msg("loaded config file")

	return cfg, cfg.Validate()
}

// Overrides are values from flags or the environment. Zero values are ignored.
type Overrides struct {
	IdentityURL     string
	InventoryURL    string
	ReservationsURL string
	CredentialsDir  string
	CacheDir        string
	RequestTimeout  time.Duration
	PollInterval    time.Duration
	Tracing         bool
}

// Apply layers o over c.
func (c *Config) Apply(o Overrides) {
	setString(&c.Services.Identity, o.IdentityURL)
	setString(&c.Services.Inventory, o.InventoryURL)
	setString(&c.Services.Reservations, o.ReservationsURL)
	setString(&c.CredentialsDir, o.CredentialsDir)
	setString(&c.CacheDir, o.CacheDir)
	if o.RequestTimeout > 0 {
		c.RequestTimeout = o.RequestTimeout
	}
	if o.PollInterval > 0 {
		c.PollInterval = o.PollInterval
	}
	if o.Tracing {
		c.Telemetry.Enabled = true
	}
}

// Validate checks the settings that would otherwise fail later and obscurely.
func (c Config) Validate() error {
	var errs []error

	for name, u := range map[string]string{
		"identity":     c.Services.Identity,
		"inventory":    c.Services.Inventory,
		"reservations": c.Services.Reservations,
	} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Errorf("services.%s must be an http(s) URL, got %q", name, u))
		}
	}

	if !strings.Contains(c.Services.MyReservationsPath, "{id}") {
		errs = append(errs, errors.New("services.my_reservations_path must contain {id}"))
	}
	if !strings.HasPrefix(c.DefaultView, "/") {
		errs = append(errs, fmt.Errorf("default_view must start with /, got %q", c.DefaultView))
	}
	if c.PollInterval < MinPollInterval {
		errs = append(errs, fmt.Errorf("poll_interval must be at least %s, got %s", MinPollInterval, c.PollInterval))
	}
	if len(c.CancelableStatuses) == 0 {
		errs = append(errs, errors.New("cancelable_statuses must not be empty"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio must be between 0 and 1, got %v", c.Telemetry.SampleRatio))
	}

	return errors.Join(errs...)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
