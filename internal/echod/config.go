package echod

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config controls the echo worker server.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Echo   EchoConfig   `yaml:"echo"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type EchoConfig struct {
	// Greeting is sent to every client right after the upgrade.
	Greeting string `yaml:"greeting"`
	// Uppercase echoes payloads upper-cased, to make the round trip
	// visible in demos.
	Uppercase bool `yaml:"uppercase"`
	// TickInterval, when non-zero, pushes a status note at that cadence.
	TickInterval Duration `yaml:"tick_interval"`
}

// Duration accepts time.ParseDuration strings in YAML ("250ms", "5s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8091,
		},
		Echo: EchoConfig{
			Greeting:  "ready",
			Uppercase: true,
		},
	}
}

// Load reads a YAML config file over the defaults. The TEAWORKER_AUTH_TOKEN
// environment variable, when set, overrides the file's auth token.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if token := os.Getenv("TEAWORKER_AUTH_TOKEN"); token != "" {
		cfg.Server.AuthToken = token
	}

	return cfg, nil
}
