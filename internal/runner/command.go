package runner

import "strings"

// Verbs understood by the runner driver
const (
	VerbDiscover   = "discover"
	VerbRunTests   = "run-tests"
	VerbDebugTests = "debug-tests"
)

// Command is one line of the runner protocol: a verb followed by
// space-separated arguments.
type Command struct {
	Verb string
	Args []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Verb}, c.Args...), " ")
}

// Discover asks the runner to discover the tests of the given assemblies,
// write them to outputFile and then touch signalFile.
func Discover(outputFile, signalFile string, assemblies []string) Command {
	return Command{Verb: VerbDiscover, Args: append([]string{outputFile, signalFile}, assemblies...)}
}

// RunTests asks the runner to run tests, streaming results to streamPath
// and writing the final results to outputPath.
func RunTests(streamPath, outputPath, processOutputPath string, ids []string) Command {
	return Command{Verb: VerbRunTests, Args: append([]string{streamPath, outputPath, processOutputPath}, ids...)}
}

// DebugTests asks the runner to start tests suspended, write the test host
// pid to pidFile and wait for attachedPath before continuing.
func DebugTests(pidFile, attachedPath, streamPath, outputPath, processOutputPath string, ids []string) Command {
	return Command{Verb: VerbDebugTests, Args: append([]string{pidFile, attachedPath, streamPath, outputPath, processOutputPath}, ids...)}
}
