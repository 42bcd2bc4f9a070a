package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Backends   Backends   `yaml:"backends"`
	Generation Generation `yaml:"generation"`
	Sources    Sources    `yaml:"sources"`
	Feeds      []Feed     `yaml:"feeds"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
}

type Backends struct {
	Google Google `yaml:"google"`
	Pexels Pexels `yaml:"pexels"`
}

type Google struct {
	APIKeyEnv   string `yaml:"api_key_env"`
	TextModel   string `yaml:"text_model"`
	ImageModel  string `yaml:"image_model"`
	SpeechModel string `yaml:"speech_model"`
}

type Pexels struct {
	APIKeyEnv string `yaml:"api_key_env"`
}

type Generation struct {
	Language string `yaml:"language"`
	Length   string `yaml:"length"`
	Tone     string `yaml:"tone"`
	Audience string `yaml:"audience"`
	Focus    string `yaml:"focus"`
}

// Sources configures the citation heuristics. Both lists are pattern
// fragments matched against candidate URLs; empty lists use built-in
// defaults.
type Sources struct {
	NoisePatterns []string `yaml:"noise_patterns"`
	RedirectHosts []string `yaml:"redirect_hosts"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for newsforge.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsforge")
}

// DataDir returns the XDG data directory for newsforge.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsforge")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsforge/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsforge init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Backends: Backends{
			Google: Google{
				APIKeyEnv:   "GEMINI_API_KEY",
				TextModel:   "gemini-2.5-flash",
				ImageModel:  "imagen-3.0-generate-002",
				SpeechModel: "gemini-2.5-flash-preview-tts",
			},
			Pexels: Pexels{APIKeyEnv: "PEXELS_API_KEY"},
		},
		Generation: Generation{
			Language: "en",
			Length:   "medium",
			Tone:     "neutral",
		},
		Server: Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
