package domain

// ProjectInfo holds the build properties of one project manifest
type ProjectInfo struct {
	ProjectFile     string // Absolute path to the project manifest
	OutputPath      string // Build artifact (TargetPath), empty when unknown
	ProjectDir      string // Project directory
	TargetFramework string // Framework the properties were evaluated for
	IsTestProject   bool
}
