// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// legacyConfigPath is the path to the configuration file used in previous versions.
	legacyConfigPath = "config.json"
	// DefaultCatalogPath is the default path to the model catalog.
	DefaultCatalogPath = "config/models.yaml"
	// DefaultDeployPort is the port the serving front end binds when the config omits one.
	DefaultDeployPort = 8000
	// defaultRequestTimeout is the default timeout for engine and HTTP operations.
	defaultRequestTimeout = 600 * time.Second
	// defaultDeployHost is the interface the serving front end binds by default.
	defaultDeployHost = "localhost"
	// defaultCheckpointDir is where converted checkpoints are looked up by default.
	defaultCheckpointDir = "checkpoints"
	// defaultResultsDir is where accuracy reports and detail files are written.
	defaultResultsDir = "results"
	// defaultTestDataPath is the bundled last-word prediction fixture.
	defaultTestDataPath = "testdata/lambada.json"
)

// Config represents the top-level application configuration.
type Config struct {
	Debug           bool           `json:"debug"`
	TimeoutSeconds  int            `json:"timeout,omitempty"`
	Catalog         string         `json:"catalog,omitempty"`
	CheckpointDir   string         `json:"checkpointDir,omitempty"`
	EngineDir       string         `json:"engineDir,omitempty"`
	ResultsDir      string         `json:"resultsDir,omitempty"`
	TestDataPath    string         `json:"testDataPath,omitempty"`
	DeployHost      string         `json:"deployHost,omitempty"`
	DeployPort      int            `json:"deployPort,omitempty"`
	LogFile         string         `json:"logFile,omitempty"`
	GPUCount        int            `json:"gpuCount,omitempty"`
	SamplingProfile string         `json:"samplingProfile,omitempty"`
	Sampling        SamplingParams `json:"sampling,omitempty"`
	ConfigPath      string         `json:"-"`
}

// RequestTimeout returns the timeout duration for engine and HTTP operations,
// falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CatalogFile returns the path to the model catalog, applying a default if not set.
func (c Config) CatalogFile() string {
	if c.Catalog != "" {
		return c.Catalog
	}
	return DefaultCatalogPath
}

// CheckpointRoot returns the directory converted checkpoints are read from.
func (c Config) CheckpointRoot() string {
	if c.CheckpointDir != "" {
		return c.CheckpointDir
	}
	return defaultCheckpointDir
}

// EngineRoot returns the directory exported engines are written to. Engines
// are rebuilt from checkpoints on demand, so the default lives under the
// system temp directory.
func (c Config) EngineRoot() string {
	if c.EngineDir != "" {
		return c.EngineDir
	}
	return filepath.Join(os.TempDir(), "paragon", "engines")
}

// ResultsRoot returns the directory accuracy reports are written to.
func (c Config) ResultsRoot() string {
	if c.ResultsDir != "" {
		return c.ResultsDir
	}
	return defaultResultsDir
}

// TestData returns the path to the last-word prediction fixture.
func (c Config) TestData() string {
	if c.TestDataPath != "" {
		return c.TestDataPath
	}
	return defaultTestDataPath
}

// DeployAddress returns the host:port the serving front end binds.
func (c Config) DeployAddress() string {
	host := c.DeployHost
	if host == "" {
		host = defaultDeployHost
	}
	port := c.DeployPort
	if port == 0 {
		port = DefaultDeployPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return "paragon.log"
}

// ResolvedSampling returns the sampling parameters for this configuration:
// the named profile's preset merged with any explicit overrides.
func (c Config) ResolvedSampling() SamplingParams {
	return MergeSampling(ParamsForProfile(c.SamplingProfile), c.Sampling)
}

// Load reads the application configuration from the specified path, with fallback to a legacy path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err == nil {
		if config.DeployPort < 0 || config.DeployPort > 65535 {
			return Config{}, fmt.Errorf("config deployPort %d is out of range", config.DeployPort)
		}
		config.ConfigPath = path
		return config, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		if path == DefaultConfigPath {
			config, legacyErr := loadFromPath(legacyConfigPath)
			if legacyErr == nil {
				return config, nil
			}
			if errors.Is(legacyErr, os.ErrNotExist) {
				return Config{}, fmt.Errorf("no configuration file found (searched %q and %q)", DefaultConfigPath, legacyConfigPath)
			}
			return Config{}, fmt.Errorf("could not read config file %q: %w", legacyConfigPath, legacyErr)
		}
		return Config{}, fmt.Errorf("no configuration file found at %q", path)
	}

	return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
}

// loadFromPath is a helper function that loads the configuration from a specific file path.
func loadFromPath(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return Config{}, err
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}

	return config, nil
}
