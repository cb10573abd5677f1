package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Workspace root, used as the solution search root for cold discovery
	ProjectPath string

	// Toolchain settings
	DotnetPath string
	SDKPath    string
	SDKRoots   []string

	// Runner settings
	RunnerScript string
	ScriptPaths  []string
	ScratchDir   string

	// Output settings
	OutputJSONFile string
	OutputJSONDir  string

	// Execution settings
	Processors       int
	PollInterval     time.Duration
	DiscoveryTimeout time.Duration
	DebugTimeout     time.Duration
	RunnerGrace      time.Duration

	// Diagnostic log settings
	LogLevel string
	LogFile  string

	// Paths to ignore when scanning
	PathsToIgnore []string

	// Command flags
	Flags Flags
}

// Flags holds command-line flags
type Flags struct {
	Processors        int
	ProjectPath       string
	TestPath          string
	NameFilter        string
	FailFast          bool
	Project           string
	Save              bool
	StreamPath        string
	OutputPath        string
	ProcessOutputPath string
	AttachedPath      string
	NoWait            bool
	Timeout           time.Duration
	MetricsAddr       string
	LogLevel          string
}

// fileConfig mirrors the optional YAML configuration file
type fileConfig struct {
	Dotnet           string        `yaml:"dotnet"`
	SDKPath          string        `yaml:"sdk_path"`
	RunnerScript     string        `yaml:"runner_script"`
	ScriptPaths      []string      `yaml:"script_paths"`
	ScratchDir       string        `yaml:"scratch_dir"`
	Processors       int           `yaml:"processors"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
	DebugTimeout     time.Duration `yaml:"debug_timeout"`
	RunnerGrace      time.Duration `yaml:"runner_grace"`
	LogLevel         string        `yaml:"log_level"`
	LogFile          string        `yaml:"log_file"`
	PathsToIgnore    []string      `yaml:"paths_to_ignore"`
}

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		ProjectPath:      DefaultProjectPath,
		DotnetPath:       DefaultDotnetPath,
		OutputJSONFile:   DefaultOutputJSONFile,
		OutputJSONDir:    DefaultOutputJSONDir,
		Processors:       DefaultProcessors,
		PollInterval:     DefaultPollInterval,
		DiscoveryTimeout: DefaultDiscoveryTimeout,
		DebugTimeout:     DefaultDebugTimeout,
		RunnerGrace:      DefaultRunnerGrace,
		LogLevel:         DefaultLogLevel,
		Flags:            Flags{Processors: DefaultProcessors},
	}
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	cfg.SDKRoots = make([]string, len(DefaultSDKRoots))
	copy(cfg.SDKRoots, DefaultSDKRoots)
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		cfg.ScriptPaths = []string{filepath.Join(dir, "scripts"), filepath.Join(dir, "..", "share", "dtp")}
	}
	return cfg
}

// Load creates a config, reads the environment and config file of the
// project path, then applies flags
func Load(flags Flags) (*Config, error) {
	cfg := New()
	if flags.ProjectPath != "" {
		cfg.ProjectPath = flags.ProjectPath
	}
	if err := cfg.LoadEnvironment(); err != nil {
		return nil, err
	}
	cfg.ApplyFlags(flags)
	return cfg, nil
}

// ApplyFlags stores flags and applies their overrides
func (c *Config) ApplyFlags(flags Flags) {
	c.Flags = flags
	if flags.ProjectPath != "" {
		c.ProjectPath = flags.ProjectPath
	}
	if flags.Processors > 0 {
		c.Processors = flags.Processors
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
}

// LoadEnvironment applies the YAML config file, then the .env file and
// DTP_* environment variables on top of it.
func (c *Config) LoadEnvironment() error {
	if err := c.loadFile(c.GetConfigPath()); err != nil {
		return err
	}

	// .env is optional; variables already set in the environment win
	envPath := filepath.Join(c.ProjectPath, ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envPath, err)
	}

	if v := os.Getenv("DTP_DOTNET"); v != "" {
		c.DotnetPath = v
	}
	if v := os.Getenv("DOTNET_ROOT"); v != "" && c.SDKPath == "" {
		c.SDKRoots = append([]string{filepath.Join(v, "sdk")}, c.SDKRoots...)
	}
	if v := os.Getenv("DTP_SDK_PATH"); v != "" {
		c.SDKPath = v
	}
	if v := os.Getenv("DTP_RUNNER_SCRIPT"); v != "" {
		c.RunnerScript = v
	}
	if v := os.Getenv("DTP_SCRATCH_DIR"); v != "" {
		c.ScratchDir = v
	}
	if v := os.Getenv("DTP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DTP_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("DTP_PROCESSORS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DTP_PROCESSORS %q: %w", v, err)
		}
		c.Processors = n
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Dotnet != "" {
		c.DotnetPath = fc.Dotnet
	}
	if fc.SDKPath != "" {
		c.SDKPath = fc.SDKPath
	}
	if fc.RunnerScript != "" {
		c.RunnerScript = fc.RunnerScript
	}
	if len(fc.ScriptPaths) > 0 {
		c.ScriptPaths = append(fc.ScriptPaths, c.ScriptPaths...)
	}
	if fc.ScratchDir != "" {
		c.ScratchDir = fc.ScratchDir
	}
	if fc.Processors > 0 {
		c.Processors = fc.Processors
	}
	if fc.PollInterval > 0 {
		c.PollInterval = fc.PollInterval
	}
	if fc.DiscoveryTimeout > 0 {
		c.DiscoveryTimeout = fc.DiscoveryTimeout
	}
	if fc.DebugTimeout > 0 {
		c.DebugTimeout = fc.DebugTimeout
	}
	if fc.RunnerGrace > 0 {
		c.RunnerGrace = fc.RunnerGrace
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.LogFile != "" {
		c.LogFile = fc.LogFile
	}
	if len(fc.PathsToIgnore) > 0 {
		c.PathsToIgnore = fc.PathsToIgnore
	}
	return nil
}

// GetConfigPath returns the path of the optional YAML config file
func (c *Config) GetConfigPath() string {
	return filepath.Join(c.ProjectPath, DefaultConfigFile)
}

// GetRootPath returns the absolute workspace root
func (c *Config) GetRootPath() string {
	if abs, err := filepath.Abs(c.ProjectPath); err == nil {
		return abs
	}
	return c.ProjectPath
}

// GetTestPath returns the directory scanned for source files
func (c *Config) GetTestPath() string {
	if c.Flags.TestPath != "" {
		return c.Flags.TestPath
	}
	return c.ProjectPath
}

// GetOutputPath returns the full path to the discovery report file.
// Resolves to an absolute path so every command reads/writes the same file regardless of cwd.
func (c *Config) GetOutputPath() string {
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, c.OutputJSONFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetScratchDir returns the directory scratch files are created in
func (c *Config) GetScratchDir() string {
	if c.ScratchDir != "" {
		return c.ScratchDir
	}
	return os.TempDir()
}

// GetSDKRoots returns the SDK directories to search, with "~" expanded.
// A configured SDKPath replaces the known install locations.
func (c *Config) GetSDKRoots() []string {
	roots := c.SDKRoots
	if c.SDKPath != "" {
		roots = []string{c.SDKPath}
	}
	home, _ := os.UserHomeDir()
	expanded := make([]string, 0, len(roots))
	for _, root := range roots {
		if strings.HasPrefix(root, "~") && home != "" {
			root = filepath.Join(home, strings.TrimPrefix(root, "~"))
		}
		expanded = append(expanded, root)
	}
	return expanded
}
