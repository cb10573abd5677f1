package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"dtp/internal/metrics"
)

// Process is a live runner subprocess. Writes go to its standard input.
type Process interface {
	io.Writer
	// Done is closed once the process has exited
	Done() <-chan struct{}
	// CloseInput closes standard input, which asks the process to exit
	// once its pending commands are done
	CloseInput() error
	Kill() error
}

// Launcher starts runner subprocesses
type Launcher interface {
	Launch() (Process, error)
}

// ArgsFunc resolves the arguments of a launch. It runs on every launch so
// a restart picks up a newly installed SDK or script.
type ArgsFunc func() ([]string, error)

const defaultTailLines = 50

// ExecLauncher launches a subprocess with a piped standard input. Output
// lines are logged at debug level and the last lines are kept so the exit
// can be reported with context.
type ExecLauncher struct {
	path      string
	args      ArgsFunc
	log       *slog.Logger
	metrics   *metrics.Metrics
	tailLines int
}

// NewExecLauncher creates a launcher for the executable at path
func NewExecLauncher(path string, args ArgsFunc, log *slog.Logger, m *metrics.Metrics) *ExecLauncher {
	return &ExecLauncher{path: path, args: args, log: log, metrics: m, tailLines: defaultTailLines}
}

// NewDotnetLauncher creates a launcher for `dotnet fsi <script> <testhost>`
func NewDotnetLauncher(dotnet string, loc *Locator, log *slog.Logger, m *metrics.Metrics) *ExecLauncher {
	return NewExecLauncher(dotnet, func() ([]string, error) {
		script, err := loc.FindScript()
		if err != nil {
			return nil, err
		}
		testHost, err := loc.FindTestHost()
		if err != nil {
			return nil, err
		}
		return []string{"fsi", script, testHost}, nil
	}, log, m)
}

// Launch starts the subprocess
func (l *ExecLauncher) Launch() (Process, error) {
	var args []string
	if l.args != nil {
		var err error
		if args, err = l.args(); err != nil {
			return nil, err
		}
	}

	cmd := exec.Command(l.path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", l.path, err)
	}

	p := &execProcess{
		cmd:   cmd,
		stdin: stdin,
		done:  make(chan struct{}),
		tail:  newTail(l.tailLines),
	}
	log := l.log.With("pid", cmd.Process.Pid)
	log.Info("runner started", "command", strings.Join(cmd.Args, " "))

	var readers sync.WaitGroup
	readers.Add(2)
	go p.consume(&readers, log, "stdout", stdout)
	go p.consume(&readers, log, "stderr", stderr)

	go func() {
		// Wait closes the pipes, so all output must be read first
		readers.Wait()
		err := cmd.Wait()
		l.metrics.RunnerExited()
		if err != nil {
			log.Error("runner exited", "status", cmd.ProcessState.String(), "output", p.tail.String())
		} else {
			log.Warn("runner exited", "status", cmd.ProcessState.String(), "output", p.tail.String())
		}
		close(p.done)
	}()

	return p, nil
}

type execProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}
	tail  *tail
}

func (p *execProcess) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) CloseInput() error {
	return p.stdin.Close()
}

func (p *execProcess) Kill() error {
	p.stdin.Close()
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *execProcess) consume(wg *sync.WaitGroup, log *slog.Logger, stream string, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		p.tail.add(line)
		log.Debug("runner output", "stream", stream, "line", line)
	}
}

// tail keeps the last n lines written to it
type tail struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func newTail(n int) *tail {
	return &tail{n: n}
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
