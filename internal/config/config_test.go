package config

import (
	"os"
	"path/filepath"
	"testing"

	"lectern/internal/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lectern.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.Provider != "localfs" {
		t.Errorf("expected localfs provider, got %q", cfg.Storage.Provider)
	}
	if cfg.Ledger.Driver != "none" {
		t.Errorf("expected ledger disabled, got %q", cfg.Ledger.Driver)
	}
	if cfg.TTS.MinAudioBytes != DefaultMinAudioBytes {
		t.Errorf("expected default min audio bytes, got %d", cfg.TTS.MinAudioBytes)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[storage]
provider = "NATSOBJ"
nats_url = "nats://127.0.0.1:4222"
public_base_url = "https://media.example.com/"

[render]
service_url = "https://render.example.com"
region = "us-east-1"
function = "render-fn"
bucket = "my-bucket"

[ledger]
driver = "sqlite"
dsn = "/var/lib/lectern/ledger.db"

[cors]
allowed_origins = ["https://app.example.com"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.Provider != "natsobj" {
		t.Errorf("expected normalized provider natsobj, got %q", cfg.Storage.Provider)
	}
	if cfg.Storage.PublicBaseURL != "https://media.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.Storage.PublicBaseURL)
	}
	if cfg.Render.Bucket != "my-bucket" || cfg.Render.Region != "us-east-1" {
		t.Errorf("unexpected render section %+v", cfg.Render)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("unexpected cors origins %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected untouched default addr, got %q", cfg.HTTP.Addr)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[tts]
api_key = "from-file"
voice_id = "voice-file"
`)
	t.Setenv("TTS_API_KEY", "from-env")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATELIMIT_PREVIEWS_PER_MINUTE", "5")
	t.Setenv("PROXY_ALLOWED_HOSTS", "media.example.com,drive.google.com")
	t.Setenv("API_TOKEN", "s3cret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TTS.APIKey != "from-env" {
		t.Errorf("expected env to win, got %q", cfg.TTS.APIKey)
	}
	if cfg.TTS.VoiceID != "voice-file" {
		t.Errorf("expected file value to survive, got %q", cfg.TTS.VoiceID)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Errorf("expected 2 origins, got %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.HTTP.APIToken != "s3cret" {
		t.Errorf("expected api token from env, got %q", cfg.HTTP.APIToken)
	}
	if len(cfg.Proxy.AllowedHosts) != 2 || cfg.Proxy.AllowedHosts[1] != "drive.google.com" {
		t.Errorf("unexpected proxy hosts %v", cfg.Proxy.AllowedHosts)
	}
	if cfg.RateLimit.PreviewsPerMinute != 5 {
		t.Errorf("expected 5 previews per minute, got %d", cfg.RateLimit.PreviewsPerMinute)
	}
}

func TestLoadUsesPathEnv(t *testing.T) {
	path := writeConfig(t, "[http]\naddr = \":9999\"\n")
	t.Setenv(PathEnv, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Errorf("expected addr from LECTERN_CONFIG file, got %q", cfg.HTTP.Addr)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, "[storage\nprovider = ")

	_, err := Load(path)
	if !errors.IsCode(err, errors.CodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		setting string
	}{
		{"unknown provider", func(c *Config) { c.Storage.Provider = "s3" }, "storage.provider"},
		{"localfs without root", func(c *Config) { c.Storage.LocalRoot = "" }, "storage.local_root"},
		{"natsobj without url", func(c *Config) { c.Storage.Provider = "natsobj" }, "storage.nats_url"},
		{"gdrive without token", func(c *Config) {
			c.Storage.Provider = "gdrive"
			c.Storage.GDrive = GDrive{ClientID: "id", ClientSecret: "secret"}
		}, "storage.gdrive"},
		{"unknown ledger", func(c *Config) { c.Ledger.Driver = "mysql" }, "ledger.driver"},
		{"ledger without dsn", func(c *Config) { c.Ledger.Driver = "postgres" }, "ledger.dsn"},
		{"negative rate", func(c *Config) { c.RateLimit.PreviewsPerMinute = -1 }, "ratelimit.previews_per_minute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if !errors.IsCode(err, errors.CodeConfig) {
				t.Fatalf("expected config error, got %v", err)
			}
			if got := errors.GetFields(err)["setting"]; got != tt.setting {
				t.Errorf("expected setting %q, got %v", tt.setting, got)
			}
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		cfg := Default()
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("LECTERN_TEST_BOOL", "nope")
	t.Setenv("LECTERN_TEST_INT", "12")

	if BoolEnv("LECTERN_TEST_BOOL", true) != true {
		t.Error("expected invalid bool to fall back to default")
	}
	if IntEnv("LECTERN_TEST_INT", 0) != 12 {
		t.Error("expected int to parse")
	}
	if Env("LECTERN_TEST_UNSET", "def") != "def" {
		t.Error("expected default for unset var")
	}
}
