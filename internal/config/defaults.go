package config

import "time"

const (
	// DefaultProjectPath is the default workspace root
	DefaultProjectPath = "."
	// DefaultDotnetPath is the toolchain executable looked up on PATH
	DefaultDotnetPath = "dotnet"
	// DefaultOutputJSONFile is the default discovery report file name
	DefaultOutputJSONFile = "discovered-tests.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = ".dtp"
	// DefaultConfigFile is the optional YAML file read from the project path
	DefaultConfigFile = ".dtp.yaml"
	// DefaultRunnerScript is the driver script file name searched for on the script path
	DefaultRunnerScript = "run_tests.fsx"
	// DefaultTestHost is the test-host library searched for in SDK directories
	DefaultTestHost = "vstest.console.dll"
	// DefaultProcessors is the default number of discovery workers
	DefaultProcessors = 4
	// DefaultLogLevel is the default diagnostic log level
	DefaultLogLevel = "info"

	// DefaultPollInterval is the sleep between two checks of a scratch file
	DefaultPollInterval = 20 * time.Millisecond
	// DefaultDiscoveryTimeout bounds the wait for discovery signal and output files
	DefaultDiscoveryTimeout = 60 * time.Second
	// DefaultDebugTimeout bounds the wait for the debuggee pid file
	DefaultDebugTimeout = 30 * time.Second
	// DefaultRunnerGrace bounds the wait for commands still running in the
	// runner when dtp exits
	DefaultRunnerGrace = 30 * time.Minute
)

// DefaultPathsToIgnore are the directories skipped when scanning for manifests
var DefaultPathsToIgnore = []string{
	"bin",
	"obj",
	"node_modules",
	"packages",
	"TestResults",
}

// DefaultSDKRoots are the known SDK install locations
var DefaultSDKRoots = []string{
	"/usr/share/dotnet/sdk",
	"/usr/lib/dotnet/sdk",
	"/usr/local/share/dotnet/sdk",
	"/opt/homebrew/share/dotnet/sdk",
	"~/.dotnet/sdk",
	`C:\Program Files\dotnet\sdk`,
}
