// Package config loads lectern settings from an optional TOML file, a .env
// file and the process environment, in that order of increasing priority.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"lectern/internal/pkg/errors"
)

// PathEnv names the variable holding the TOML config path.
const PathEnv = "LECTERN_CONFIG"

// HTTP contains the API listener settings.
type HTTP struct {
	Addr                   string `toml:"addr"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
	// APIToken gates the JSON API and /proxy. Empty leaves them open.
	APIToken string `toml:"api_token"`
}

// Log contains configuration for log output.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Source bool   `toml:"source"`
}

// GDrive holds OAuth client credentials for the Drive backend.
type GDrive struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	FolderID     string `toml:"folder_id"`
}

// Storage selects and configures the object storage backend.
type Storage struct {
	Provider      string `toml:"provider"`
	LocalRoot     string `toml:"local_root"`
	PublicBaseURL string `toml:"public_base_url"`
	NATSURL       string `toml:"nats_url"`
	GDrive        GDrive `toml:"gdrive"`
}

// Render points at the remote render service and its default target.
type Render struct {
	ServiceURL string `toml:"service_url"`
	APIKey     string `toml:"api_key"`
	Region     string `toml:"region"`
	Function   string `toml:"function"`
	Bucket     string `toml:"bucket"`
}

// Bundler points at the composition bundling service.
type Bundler struct {
	ServiceURL string `toml:"service_url"`
	APIKey     string `toml:"api_key"`
	EntryPoint string `toml:"entry_point"`
}

// TTS configures the speech synthesizer used for previews.
type TTS struct {
	ServiceURL    string `toml:"service_url"`
	APIKey        string `toml:"api_key"`
	VoiceID       string `toml:"voice_id"`
	Model         string `toml:"model"`
	MinAudioBytes int64  `toml:"min_audio_bytes"`
}

// Ledger selects where dispatched renders and previews are recorded.
type Ledger struct {
	Driver string `toml:"driver"` // none, postgres, sqlite
	DSN    string `toml:"dsn"`
}

// Redis is optional; an empty address disables it.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// RateLimit bounds preview synthesis per client IP.
type RateLimit struct {
	PreviewsPerMinute int `toml:"previews_per_minute"`
}

// Proxy limits the hosts GET /proxy?url= may fetch from. Empty allows any
// host.
type Proxy struct {
	AllowedHosts []string `toml:"allowed_hosts"`
}

// CORS lists browser origins allowed on the JSON API routes.
type CORS struct {
	AllowedOrigins []string `toml:"allowed_origins"`
	Debug          bool     `toml:"debug"`
}

// Config encapsulates all configuration values for lectern.
type Config struct {
	HTTP      HTTP      `toml:"http"`
	Log       Log       `toml:"log"`
	Storage   Storage   `toml:"storage"`
	Render    Render    `toml:"render"`
	Bundler   Bundler   `toml:"bundler"`
	TTS       TTS       `toml:"tts"`
	Ledger    Ledger    `toml:"ledger"`
	Redis     Redis     `toml:"redis"`
	RateLimit RateLimit `toml:"ratelimit"`
	Proxy     Proxy     `toml:"proxy"`
	CORS      CORS      `toml:"cors"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTP{Addr: ":8080", ShutdownTimeoutSeconds: 30},
		Log:  Log{Level: "info", Format: "json"},
		Storage: Storage{
			Provider:      "localfs",
			LocalRoot:     "./data/storage",
			PublicBaseURL: "http://localhost:8080",
		},
		Bundler:   Bundler{EntryPoint: "src/index.ts"},
		TTS:       TTS{Model: "eleven_multilingual_v2", MinAudioBytes: DefaultMinAudioBytes},
		Ledger:    Ledger{Driver: "none"},
		RateLimit: RateLimit{PreviewsPerMinute: 20},
		CORS:      CORS{AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"}},
	}
}

// DefaultMinAudioBytes is the smallest synthesized file accepted as real
// audio. Anything shorter cannot hold a single MP3 frame sequence.
const DefaultMinAudioBytes = 1024

// Load reads the TOML file at path (or $LECTERN_CONFIG when path is empty),
// applies environment overrides and validates the result. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = Env(PathEnv, "")
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WrapWithCode(err, errors.CodeConfig, "config.load", "open config")
	}
	defer file.Close()

	if err := toml.NewDecoder(file).Decode(cfg); err != nil {
		return errors.WrapWithCode(err, errors.CodeConfig, "config.load", "parse config").
			WithField("path", path)
	}
	return nil
}

// LoadDotEnv loads the nearest .env file from the working directory or one
// of its parents. Variables already set in the environment win.
func LoadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func (c *Config) applyEnv() {
	c.HTTP.Addr = Env("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.ShutdownTimeoutSeconds = IntEnv("HTTP_SHUTDOWN_TIMEOUT_SECONDS", c.HTTP.ShutdownTimeoutSeconds)
	c.HTTP.APIToken = Env("API_TOKEN", c.HTTP.APIToken)

	c.Log.Level = Env("LOG_LEVEL", c.Log.Level)
	c.Log.Format = Env("LOG_FORMAT", c.Log.Format)
	c.Log.Source = BoolEnv("LOG_SOURCE", c.Log.Source)

	c.Storage.Provider = Env("STORAGE_PROVIDER", c.Storage.Provider)
	c.Storage.LocalRoot = Env("STORAGE_LOCAL_ROOT", c.Storage.LocalRoot)
	c.Storage.PublicBaseURL = Env("STORAGE_PUBLIC_BASE_URL", c.Storage.PublicBaseURL)
	c.Storage.NATSURL = Env("NATS_URL", c.Storage.NATSURL)
	c.Storage.GDrive.ClientID = Env("GDRIVE_CLIENT_ID", c.Storage.GDrive.ClientID)
	c.Storage.GDrive.ClientSecret = Env("GDRIVE_CLIENT_SECRET", c.Storage.GDrive.ClientSecret)
	c.Storage.GDrive.RefreshToken = Env("GDRIVE_REFRESH_TOKEN", c.Storage.GDrive.RefreshToken)
	c.Storage.GDrive.FolderID = Env("GDRIVE_FOLDER_ID", c.Storage.GDrive.FolderID)

	c.Render.ServiceURL = Env("RENDER_SERVICE_URL", c.Render.ServiceURL)
	c.Render.APIKey = Env("RENDER_API_KEY", c.Render.APIKey)
	c.Render.Region = Env("RENDER_REGION", c.Render.Region)
	c.Render.Function = Env("RENDER_FUNCTION", c.Render.Function)
	c.Render.Bucket = Env("RENDER_BUCKET", c.Render.Bucket)

	c.Bundler.ServiceURL = Env("BUNDLER_SERVICE_URL", c.Bundler.ServiceURL)
	c.Bundler.APIKey = Env("BUNDLER_API_KEY", c.Bundler.APIKey)
	c.Bundler.EntryPoint = Env("BUNDLER_ENTRY_POINT", c.Bundler.EntryPoint)

	c.TTS.ServiceURL = Env("TTS_SERVICE_URL", c.TTS.ServiceURL)
	c.TTS.APIKey = Env("TTS_API_KEY", c.TTS.APIKey)
	c.TTS.VoiceID = Env("TTS_VOICE_ID", c.TTS.VoiceID)
	c.TTS.Model = Env("TTS_MODEL", c.TTS.Model)
	c.TTS.MinAudioBytes = int64(IntEnv("TTS_MIN_AUDIO_BYTES", int(c.TTS.MinAudioBytes)))

	c.Ledger.Driver = Env("LEDGER_DRIVER", c.Ledger.Driver)
	c.Ledger.DSN = Env("LEDGER_DSN", Env("DATABASE_URL", c.Ledger.DSN))

	c.Redis.Addr = Env("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = Env("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = IntEnv("REDIS_DB", c.Redis.DB)

	c.RateLimit.PreviewsPerMinute = IntEnv("RATELIMIT_PREVIEWS_PER_MINUTE", c.RateLimit.PreviewsPerMinute)

	c.Proxy.AllowedHosts = CSVEnv("PROXY_ALLOWED_HOSTS", c.Proxy.AllowedHosts)

	c.CORS.AllowedOrigins = CSVEnv("CORS_ALLOWED_ORIGINS", c.CORS.AllowedOrigins)
	c.CORS.Debug = BoolEnv("CORS_DEBUG", c.CORS.Debug)
}

func (c *Config) normalize() {
	c.Storage.Provider = strings.ToLower(strings.TrimSpace(c.Storage.Provider))
	c.Storage.PublicBaseURL = strings.TrimRight(c.Storage.PublicBaseURL, "/")
	c.Ledger.Driver = strings.ToLower(strings.TrimSpace(c.Ledger.Driver))
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "none"
	}
	if c.TTS.MinAudioBytes <= 0 {
		c.TTS.MinAudioBytes = DefaultMinAudioBytes
	}
	if c.HTTP.ShutdownTimeoutSeconds <= 0 {
		c.HTTP.ShutdownTimeoutSeconds = 30
	}
}

// Validate checks the settings the process cannot start without. Remote
// service credentials are checked by each component at call time.
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case "localfs":
		if c.Storage.LocalRoot == "" {
			return errors.Config("storage.local_root", "local storage root is required")
		}
	case "natsobj":
		if c.Storage.NATSURL == "" {
			return errors.Config("storage.nats_url", "nats url is required for the natsobj provider")
		}
	case "gdrive":
		g := c.Storage.GDrive
		if g.ClientID == "" || g.ClientSecret == "" || g.RefreshToken == "" {
			return errors.Config("storage.gdrive", "gdrive client id, secret and refresh token are required")
		}
	default:
		return errors.Config("storage.provider", "unknown storage provider: "+c.Storage.Provider)
	}

	switch c.Ledger.Driver {
	case "none":
	case "postgres", "sqlite":
		if c.Ledger.DSN == "" {
			return errors.Config("ledger.dsn", "ledger dsn is required for driver "+c.Ledger.Driver)
		}
	default:
		return errors.Config("ledger.driver", "unknown ledger driver: "+c.Ledger.Driver)
	}

	if c.RateLimit.PreviewsPerMinute < 0 {
		return errors.Config("ratelimit.previews_per_minute", "previews per minute must not be negative")
	}
	return nil
}
