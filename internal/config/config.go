package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	Dir        = ".drydock"
	ConfigFile = "config.yaml"
	StateFile  = "state.json"
	LogDir     = "logs"
	EnvPrefix  = "DRYDOCK"
)

type Config struct {
	Version     string       `yaml:"version" mapstructure:"version"`
	Project     string       `yaml:"project" mapstructure:"project"`
	Binary      string       `yaml:"binary,omitempty" mapstructure:"binary"`
	Engine      string       `yaml:"engine,omitempty" mapstructure:"engine"`
	DockerHost  string       `yaml:"docker_host,omitempty" mapstructure:"docker_host"`
	Runtime     Runtime      `yaml:"runtime" mapstructure:"runtime"`
	Logging     Logging      `yaml:"logging" mapstructure:"logging"`
	Debug       Debug        `yaml:"debug" mapstructure:"debug"`
	Metrics     Metrics      `yaml:"metrics" mapstructure:"metrics"`
	Deployments []Deployment `yaml:"deployments" mapstructure:"deployments"`
}

type Runtime struct {
	PollIntervalMs          int `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	OperationTimeoutSeconds int `yaml:"operation_timeout_seconds" mapstructure:"operation_timeout_seconds"`
	HealthTimeoutSeconds    int `yaml:"health_timeout_seconds" mapstructure:"health_timeout_seconds"`
	ProgressIntervalMs      int `yaml:"progress_interval_ms" mapstructure:"progress_interval_ms"`
}

func (r Runtime) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalMs) * time.Millisecond
}

func (r Runtime) OperationTimeout() time.Duration {
	return time.Duration(r.OperationTimeoutSeconds) * time.Second
}

func (r Runtime) HealthTimeout() time.Duration {
	return time.Duration(r.HealthTimeoutSeconds) * time.Second
}

func (r Runtime) ProgressInterval() time.Duration {
	return time.Duration(r.ProgressIntervalMs) * time.Millisecond
}

type Logging struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" mapstructure:"level"`
}

type Debug struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

type Metrics struct {
	Addr string `yaml:"addr,omitempty" mapstructure:"addr"`
}

// Deployment registers one compose deployment under an id. Exactly one of
// File, Container or Project names its source.
type Deployment struct {
	ID          string   `yaml:"id" mapstructure:"id"`
	File        string   `yaml:"file,omitempty" mapstructure:"file"`
	Container   string   `yaml:"container,omitempty" mapstructure:"container"`
	Project     string   `yaml:"project,omitempty" mapstructure:"project"`
	ProjectName string   `yaml:"project_name,omitempty" mapstructure:"project_name"`
	Env         []string `yaml:"env,omitempty" mapstructure:"env"`
}

// EnvMap splits Env's KEY=VALUE entries. Env is a list rather than a map
// because viper lowercases map keys.
func (d Deployment) EnvMap() map[string]string {
	out := make(map[string]string, len(d.Env))
	for _, kv := range d.Env {
		k, v, _ := strings.Cut(kv, "=")
		if k != "" {
			out[k] = v
		}
	}
	return out
}

// Engines accepted for status inspection.
const (
	EngineCLI = "cli"
	EngineAPI = "api"
)

// Default returns a config with every default filled in.
func Default() *Config {
	return &Config{
		Version: "1",
		Engine:  EngineCLI,
		Runtime: Runtime{
			PollIntervalMs:          250,
			OperationTimeoutSeconds: 600,
			HealthTimeoutSeconds:    120,
			ProgressIntervalMs:      1000,
		},
		Logging: Logging{Enabled: true, Level: "info"},
		Debug:   Debug{Enabled: false, Dir: filepath.Join(Dir, "debug")},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("version", d.Version)
	v.SetDefault("engine", d.Engine)
	v.SetDefault("binary", "")
	v.SetDefault("docker_host", "")
	v.SetDefault("runtime.poll_interval_ms", d.Runtime.PollIntervalMs)
	v.SetDefault("runtime.operation_timeout_seconds", d.Runtime.OperationTimeoutSeconds)
	v.SetDefault("runtime.health_timeout_seconds", d.Runtime.HealthTimeoutSeconds)
	v.SetDefault("runtime.progress_interval_ms", d.Runtime.ProgressIntervalMs)
	v.SetDefault("logging.enabled", d.Logging.Enabled)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("debug.enabled", d.Debug.Enabled)
	v.SetDefault("debug.dir", d.Debug.Dir)
	v.SetDefault("metrics.addr", "")
}

// NewViper returns a viper instance bound to .drydock/config.yaml under
// projectDir with DRYDOCK_ environment overrides.
func NewViper(projectDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(Path(projectDir))
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads config from .drydock/config.yaml relative to projectDir.
func Load(projectDir string) (*Config, error) {
	v := NewViper(projectDir)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Decode(v)
}

// Decode unmarshals the current contents of v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes config to .drydock/config.yaml relative to projectDir.
func Save(projectDir string, cfg *Config) error {
	dir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(Path(projectDir), data, 0o644)
}

// Path returns the config file path.
func Path(projectDir string) string {
	return filepath.Join(projectDir, Dir, ConfigFile)
}

// ConfigPath returns the path to the config directory.
func ConfigPath(projectDir string) string {
	return filepath.Join(projectDir, Dir)
}

// Exists returns true if .drydock/config.yaml exists.
func Exists(projectDir string) bool {
	_, err := os.Stat(Path(projectDir))
	return err == nil
}

// Find returns the deployment registered under id.
func (c *Config) Find(id string) (Deployment, bool) {
	for _, d := range c.Deployments {
		if d.ID == id {
			return d, true
		}
	}
	return Deployment{}, false
}

// IDs returns the configured deployment ids in file order.
func (c *Config) IDs() []string {
	ids := make([]string, 0, len(c.Deployments))
	for _, d := range c.Deployments {
		ids = append(ids, d.ID)
	}
	return ids
}

// ResolvePath makes p absolute relative to projectDir.
func ResolvePath(projectDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(projectDir, p)
}
