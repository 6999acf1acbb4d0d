package config

import (
	"context"
	"fmt"
	"os"

	"shelflife/internal/artifact"
	"shelflife/internal/estimator"
	"shelflife/internal/inference"
	"shelflife/internal/llm"
	"shelflife/internal/voice"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Artifact store backends
const (
	BackendFile  = "file"
	BackendAzure = "azblob"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Auth struct {
		// Empty disables bearer token checks.
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	Artifacts struct {
		Backend string                 `yaml:"backend"` // "file" or "azblob"
		Dir     string                 `yaml:"dir"`
		Keys    inference.ArtifactKeys `yaml:"keys"`
		Azure   artifact.BlobConfig    `yaml:"azure"`
	} `yaml:"artifacts"`

	Database struct {
		Path string `yaml:"path"` // SQLite path or PostgreSQL URL
		Type string `yaml:"type"` // "sqlite" or "postgres"
	} `yaml:"database"`

	Inference inference.Config `yaml:"inference"`

	// Chat providers, tried in order. None disables the chat endpoints.
	Providers               []llm.ProviderConfig `yaml:"providers"`
	MaxFailuresBeforeSwitch int                  `yaml:"max_failures_before_switch"`

	// Voice narration is off unless an API key is set.
	Voice voice.Config `yaml:"voice"`

	Training Training `yaml:"training"`
}

// Training configures cmd/train.
type Training struct {
	DataPath        string                `yaml:"data_path"` // empty generates synthetic data
	GenerateSamples int                   `yaml:"generate_samples"`
	Seed            int64                 `yaml:"seed"`
	TestFraction    float64               `yaml:"test_fraction"`
	CVFolds         int                   `yaml:"cv_folds"`
	Tune            bool                  `yaml:"tune"`
	Search          estimator.SearchSpace `yaml:"search"`
	Params          estimator.Params      `yaml:"params"`
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()
	config.expandEnv()

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}

	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = BackendFile
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "./models"
	}
	defaults := inference.DefaultArtifactKeys()
	if c.Artifacts.Keys.Preprocessor == "" {
		c.Artifacts.Keys.Preprocessor = defaults.Preprocessor
	}
	if c.Artifacts.Keys.Estimator == "" {
		c.Artifacts.Keys.Estimator = defaults.Estimator
	}
	if c.Artifacts.Azure.ContainerName == "" {
		c.Artifacts.Azure.ContainerName = "shelf-life-models"
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/shelflife.db"
	}

	if c.Inference.ImportanceTopK == 0 {
		c.Inference.ImportanceTopK = inference.DefaultImportanceTopK
	}

	if c.MaxFailuresBeforeSwitch == 0 {
		c.MaxFailuresBeforeSwitch = 3
	}

	t := &c.Training
	if t.GenerateSamples == 0 {
		t.GenerateSamples = 2000
	}
	if t.Seed == 0 {
		t.Seed = 42
	}
	if t.TestFraction == 0 {
		t.TestFraction = 0.2
	}
	if t.CVFolds == 0 {
		t.CVFolds = 5
	}
	if len(t.Search.NTrees) == 0 && len(t.Search.MaxDepth) == 0 && len(t.Search.MinSamplesSplit) == 0 {
		t.Search = estimator.DefaultSearchSpace()
	}
	if t.Params.NTrees == 0 {
		seed := t.Seed
		t.Params = estimator.DefaultParams()
		t.Params.Seed = seed
	}
}

// expandEnv resolves ${VAR} references in secrets.
func (c *Config) expandEnv() {
	for i := range c.Providers {
		c.Providers[i].APIKey = os.ExpandEnv(c.Providers[i].APIKey)
	}
	c.Voice.APIKey = os.ExpandEnv(c.Voice.APIKey)
	c.Auth.JWTSecret = os.ExpandEnv(c.Auth.JWTSecret)
	c.Artifacts.Azure.ConnectionString = os.ExpandEnv(c.Artifacts.Azure.ConnectionString)
	c.Database.Path = os.ExpandEnv(c.Database.Path)
}

func (c *Config) validate() error {
	switch c.Artifacts.Backend {
	case BackendFile:
	case BackendAzure:
		if c.Artifacts.Azure.ConnectionString == "" {
			return fmt.Errorf("artifacts.azure.connection_string is required for the azblob backend")
		}
	default:
		return fmt.Errorf("unknown artifacts backend %q", c.Artifacts.Backend)
	}

	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database type %q", c.Database.Type)
	}

	if c.Training.TestFraction <= 0 || c.Training.TestFraction >= 1 {
		return fmt.Errorf("training.test_fraction must be in (0, 1), got %g", c.Training.TestFraction)
	}
	if c.Training.CVFolds < 2 {
		return fmt.Errorf("training.cv_folds must be at least 2, got %d", c.Training.CVFolds)
	}
	return nil
}

// ArtifactStore opens the configured artifact backend.
func (c *Config) ArtifactStore(ctx context.Context, logger *zap.Logger) (artifact.Store, error) {
	if c.Artifacts.Backend == BackendAzure {
		return artifact.NewBlobStore(ctx, c.Artifacts.Azure, logger)
	}
	return artifact.NewFileStore(c.Artifacts.Dir, logger)
}
