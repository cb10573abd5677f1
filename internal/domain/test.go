package domain

// TestCase is a single test reported by the runner's discovery round.
// Field names match the runner's discovery output.
type TestCase struct {
	DisplayName        string `json:"DisplayName"`
	FullyQualifiedName string `json:"FullyQualifiedName"`
	CodeFilePath       string `json:"CodeFilePath"`
	LineNumber         int    `json:"LineNumber"`
}

// TestCases maps test ids to test cases of one source file
type TestCases map[string]TestCase

// DiscoveryOutput is the runner's discovery output: source file -> test id -> test case
type DiscoveryOutput map[string]TestCases
