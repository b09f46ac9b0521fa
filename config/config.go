package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server Server `yaml:"server"`
	Google Google `yaml:"google"`
	Gemini Gemini `yaml:"gemini"`
	Log    Log    `yaml:"log"`
}

type Server struct {
	Addr        string `yaml:"addr"`
	AuthToken   string `yaml:"auth_token"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
	TempDir     string `yaml:"temp_dir"`
}

type Google struct {
	// Either a path to a service-account JSON file or an inline
	// service_account block. The inline form matches the secrets
	// payload used on hosted platforms.
	CredentialsFile string          `yaml:"credentials_file"`
	ServiceAccount  *ServiceAccount `yaml:"service_account"`

	Language     string   `yaml:"language"`
	Model        string   `yaml:"model"`
	SampleRate   int      `yaml:"sample_rate"`
	PhraseHints  []string `yaml:"phrase_hints"`
	PhraseBoost  float64  `yaml:"phrase_boost"`
	ChunkSeconds int      `yaml:"chunk_seconds"`
	MaxInlineMB  int64    `yaml:"max_inline_mb"`
}

type Gemini struct {
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	MaxInlineMB int64  `yaml:"max_inline_mb"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServiceAccount mirrors a Google Cloud service-account key file.
type ServiceAccount struct {
	Type                    string `yaml:"type" json:"type"`
	ProjectID               string `yaml:"project_id" json:"project_id"`
	PrivateKeyID            string `yaml:"private_key_id" json:"private_key_id"`
	PrivateKey              string `yaml:"private_key" json:"private_key"`
	ClientEmail             string `yaml:"client_email" json:"client_email"`
	ClientID                string `yaml:"client_id" json:"client_id"`
	AuthURI                 string `yaml:"auth_uri" json:"auth_uri"`
	TokenURI                string `yaml:"token_uri" json:"token_uri"`
	AuthProviderX509CertURL string `yaml:"auth_provider_x509_cert_url" json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `yaml:"client_x509_cert_url" json:"client_x509_cert_url"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 200
	}
	if c.Google.Language == "" {
		c.Google.Language = "cmn-Hant-TW"
	}
	if c.Google.Model == "" {
		c.Google.Model = "latest_long"
	}
	if c.Google.SampleRate == 0 {
		c.Google.SampleRate = 16000
	}
	if len(c.Google.PhraseHints) == 0 {
		c.Google.PhraseHints = DefaultPhraseHints()
	}
	if c.Google.PhraseBoost == 0 {
		c.Google.PhraseBoost = 15
	}
	if c.Google.ChunkSeconds == 0 {
		c.Google.ChunkSeconds = 50
	}
	if c.Google.MaxInlineMB == 0 {
		c.Google.MaxInlineMB = 8
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Gemini.MaxInlineMB == 0 {
		c.Gemini.MaxInlineMB = 15
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// CredentialsJSON returns the service-account key as JSON bytes, from
// either the inline block or the configured file.
func (c *Config) CredentialsJSON() ([]byte, error) {
	if c.Google.ServiceAccount != nil && c.Google.ServiceAccount.ProjectID != "" {
		data, err := json.Marshal(c.Google.ServiceAccount)
		if err != nil {
			return nil, fmt.Errorf("encoding service account: %w", err)
		}
		return data, nil
	}
	if c.Google.CredentialsFile != "" {
		data, err := os.ReadFile(c.Google.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("google credentials not configured: set google.service_account or google.credentials_file")
}

// DefaultPhraseHints is the metro radio vocabulary boosted during
// recognition. Control-room traffic is full of these.
func DefaultPhraseHints() []string {
	return []string{
		"OCC", "行控中心", "呼叫", "軌道", "月台",
		"Bypass", "VVVF", "異物", "車門", "號車",
		"緊急", "停車", "淨空", "方形鑰匙",
	}
}
