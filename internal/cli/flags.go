package cli

import (
	"time"

	"dtp/internal/config"
)

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

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		Processors:        f.Processors,
		ProjectPath:       f.ProjectPath,
		TestPath:          f.TestPath,
		NameFilter:        f.NameFilter,
		FailFast:          f.FailFast,
		Project:           f.Project,
		Save:              f.Save,
		StreamPath:        f.StreamPath,
		OutputPath:        f.OutputPath,
		ProcessOutputPath: f.ProcessOutputPath,
		AttachedPath:      f.AttachedPath,
		NoWait:            f.NoWait,
		Timeout:           f.Timeout,
		MetricsAddr:       f.MetricsAddr,
		LogLevel:          f.LogLevel,
	}
}
