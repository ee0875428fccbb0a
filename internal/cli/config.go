package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/tome/internal/open5e"
	"github.com/mesh-intelligence/tome/internal/srdsync"
	"github.com/mesh-intelligence/tome/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend        = "backend"
	cfgKeyDataDir        = "data_dir"
	cfgKeyMaxAgeHours    = "sync.max_age_hours"
	cfgKeyMaxPages       = "sync.max_pages"
	cfgKeyRequestDelayMS = "sync.request_delay_ms"
	cfgKeyTimeoutSeconds = "sync.timeout_seconds"
	cfgKeyBaseURL        = "api.base_url"
	cfgKeyAPIVersion     = "api.version"
	cfgKeyServerAddr     = "server.addr"
	cfgKeyLogLevel       = "log.level"
	cfgKeyLogFormat      = "log.format"

	defaultServerAddr = ":8080"

	configHeader = "# tome configuration\n"
)

// configFile is the structure written to config.yaml by init.
type configFile struct {
	Backend string        `yaml:"backend"`
	DataDir string        `yaml:"data_dir,omitempty"`
	Sync    syncSection   `yaml:"sync"`
	API     apiSection    `yaml:"api"`
	Server  serverSection `yaml:"server"`
	Log     logSection    `yaml:"log"`
}

type syncSection struct {
	MaxAgeHours    int `yaml:"max_age_hours"`
	MaxPages       int `yaml:"max_pages"`
	RequestDelayMS int `yaml:"request_delay_ms"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type apiSection struct {
	BaseURL string `yaml:"base_url"`
	Version string `yaml:"version"`
}

type serverSection struct {
	Addr string `yaml:"addr"`
}

type logSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// settings is the resolved configuration of one invocation.
type settings struct {
	DataDir      string
	MaxAge       time.Duration
	MaxPages     int
	RequestDelay time.Duration
	Timeout      time.Duration
	BaseURL      string
	APIVersion   string
	ServerAddr   string
	LogLevel     string
	LogFormat    string
}

// defaultConfig returns config.yaml as written on first run.
func defaultConfig(dataDir string) configFile {
	return configFile{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
		Sync: syncSection{
			MaxAgeHours:    int(srdsync.DefaultMaxAge / time.Hour),
			MaxPages:       srdsync.DefaultMaxPages,
			RequestDelayMS: int(open5e.DefaultDelay / time.Millisecond),
			TimeoutSeconds: int(open5e.DefaultTimeout / time.Second),
		},
		API: apiSection{
			BaseURL: open5e.DefaultBaseURL,
			Version: open5e.DefaultAPIVersion,
		},
		Server: serverSection{Addr: defaultServerAddr},
		Log:    logSection{Level: "info", Format: "console"},
	}
}

// setDefaults registers every key with its default value.
func setDefaults(v *viper.Viper) {
	d := defaultConfig("")
	v.SetDefault(cfgKeyBackend, d.Backend)
	v.SetDefault(cfgKeyMaxAgeHours, d.Sync.MaxAgeHours)
	v.SetDefault(cfgKeyMaxPages, d.Sync.MaxPages)
	v.SetDefault(cfgKeyRequestDelayMS, d.Sync.RequestDelayMS)
	v.SetDefault(cfgKeyTimeoutSeconds, d.Sync.TimeoutSeconds)
	v.SetDefault(cfgKeyBaseURL, d.API.BaseURL)
	v.SetDefault(cfgKeyAPIVersion, d.API.Version)
	v.SetDefault(cfgKeyServerAddr, d.Server.Addr)
	v.SetDefault(cfgKeyLogLevel, d.Log.Level)
	v.SetDefault(cfgKeyLogFormat, d.Log.Format)
}

// loadConfig reads config.yaml from configDir using Viper. It creates the
// config directory and a default config.yaml on first run. A config.yaml
// that disappears before it is read is not an error; every key has a default.
func loadConfig(configDir string) (*viper.Viper, error) {
	if _, err := writeConfigIfMissing(filepath.Join(configDir, configFileExt), ""); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// loadSettings validates and converts the configuration values.
func loadSettings(v *viper.Viper) (settings, error) {
	if b := v.GetString(cfgKeyBackend); b != types.BackendSQLite {
		return settings{}, fmt.Errorf("%w: %q", types.ErrBackendUnknown, b)
	}
	s := settings{
		DataDir:      v.GetString(cfgKeyDataDir),
		MaxAge:       time.Duration(v.GetInt(cfgKeyMaxAgeHours)) * time.Hour,
		MaxPages:     v.GetInt(cfgKeyMaxPages),
		RequestDelay: time.Duration(v.GetInt(cfgKeyRequestDelayMS)) * time.Millisecond,
		Timeout:      time.Duration(v.GetInt(cfgKeyTimeoutSeconds)) * time.Second,
		BaseURL:      v.GetString(cfgKeyBaseURL),
		APIVersion:   v.GetString(cfgKeyAPIVersion),
		ServerAddr:   v.GetString(cfgKeyServerAddr),
		LogLevel:     v.GetString(cfgKeyLogLevel),
		LogFormat:    v.GetString(cfgKeyLogFormat),
	}
	if s.MaxAge <= 0 {
		return settings{}, fmt.Errorf("%s must be positive", cfgKeyMaxAgeHours)
	}
	if s.MaxPages <= 0 {
		return settings{}, fmt.Errorf("%s must be positive", cfgKeyMaxPages)
	}
	if s.RequestDelay < 0 {
		return settings{}, fmt.Errorf("%s must not be negative", cfgKeyRequestDelayMS)
	}
	return s, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist and reports whether it wrote one. An existing file is left
// alone.
func writeConfigIfMissing(path, dataDir string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	cfg := defaultConfig(dataDir)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
