package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/ambilight/internal/logging"
)

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// StdoutHandler consumes the raw stdout stream until it ends.
type StdoutHandler func(r io.Reader) error

// LogParser parses a log line and returns the log level and message.
type LogParser func(line string) (level, msg string)

// ErrEmptyCommand is returned when there is nothing to execute.
var ErrEmptyCommand = errors.New("empty command")

// Process manages the lifecycle of one subprocess.
type Process struct {
	id              string
	args            []string
	logger          logging.Logger
	processLogger   logging.Logger // logger for process output (nil = use logger)
	logParser       LogParser      // parses process output for log level (nil = no parsing)
	outputHandler   OutputHandler
	stdoutHandler   StdoutHandler
	gracefulTimeout time.Duration
	killTimeout     time.Duration

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewProcess creates a process for the given argument vector.
func NewProcess(id string, args []string, logger logging.Logger) *Process {
	return &Process{
		id:              id,
		args:            args,
		logger:          logger,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}
}

// Args returns the argument vector.
func (p *Process) Args() []string {
	return p.args
}

// SetLogParser sets the logger and level parser used for process output.
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetOutputHandler receives every stderr line, and stdout lines when no
// stdout handler is set.
func (p *Process) SetOutputHandler(handler OutputHandler) {
	p.outputHandler = handler
}

// SetStdoutHandler hands the stdout stream to h instead of logging it.
func (p *Process) SetStdoutHandler(h StdoutHandler) {
	p.stdoutHandler = h
}

// SetTimeouts overrides the grace period before SIGKILL and how long to
// wait after it.
func (p *Process) SetTimeouts(graceful, kill time.Duration) {
	p.gracefulTimeout = graceful
	p.killTimeout = kill
}

// Run starts the subprocess and blocks until it exits or ctx is cancelled.
// It returns the exit code; a process killed after the grace period
// reports 137.
func (p *Process) Run(ctx context.Context) int {
	processDone, outputDone, err := p.start()
	if err != nil {
		return 1
	}
	defer func() {
		for range 2 {
			select {
			case <-outputDone:
			case <-time.After(p.killTimeout):
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		p.logger.Debug("Context cancelled, stopping process", "id", p.id)
		p.sendStopSignal()
		return p.waitForExit(processDone)
	case processErr := <-processDone:
		exitCode := exitCodeFromError(processErr)
		if processErr != nil && exitCode == 1 {
			p.logger.Error("Process exited with error", "id", p.id, "error", processErr)
		}
		p.logger.Info("Process exited", "id", p.id, "exit_code", exitCode)
		return exitCode
	}
}

func (p *Process) start() (<-chan error, <-chan struct{}, error) {
	if len(p.args) == 0 {
		p.logger.Error("Empty command", "id", p.id)
		return nil, nil, ErrEmptyCommand
	}

	cmd := exec.Command(p.args[0], p.args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.logger.Error("Failed to create stdout pipe", "id", p.id, "error", err)
		return nil, nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.logger.Error("Failed to create stderr pipe", "id", p.id, "error", err)
		return nil, nil, err
	}

	if err := cmd.Start(); err != nil {
		p.logger.Error("Failed to start process", "id", p.id, "error", err, "command", strings.Join(p.args, " "))
		return nil, nil, err
	}

	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()
	p.logger.Info("Process started", "id", p.id, "pid", cmd.Process.Pid, "command", strings.Join(p.args, " "))

	outputDone := make(chan struct{}, 2)
	go func() {
		if p.stdoutHandler != nil {
			if err := p.stdoutHandler(stdout); err != nil && !errors.Is(err, os.ErrClosed) {
				p.logger.Debug("Stdout consumer stopped", "id", p.id, "error", err)
			}
			// drain so the process never blocks on a full pipe
			_, _ = io.Copy(io.Discard, stdout)
		} else {
			p.streamOutput(stdout, "stdout")
		}
		outputDone <- struct{}{}
	}()
	go func() {
		p.streamOutput(stderr, "stderr")
		outputDone <- struct{}{}
	}()

	processDone := make(chan error, 1)
	go func() {
		processDone <- cmd.Wait()
	}()

	return processDone, outputDone, nil
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Process) sendStopSignal() {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "id", p.id, "error", err)
	}
}

// waitForExit waits for the process to exit, force-killing it once the
// grace period is over.
func (p *Process) waitForExit(processDone <-chan error) int {
	select {
	case err := <-processDone:
		return exitCodeFromError(err)
	case <-time.After(p.gracefulTimeout):
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "id", p.id, "timeout", p.gracefulTimeout)
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Error("Failed to kill process", "id", p.id, "error", err)
	}

	select {
	case <-processDone:
	case <-time.After(p.killTimeout):
		p.logger.Error("Process did not exit after kill signal", "id", p.id)
	}
	return 137
}

// streamOutput logs output lines at the level the parser extracts.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "panic", "fatal", "error":
			logger.Error(msg, "id", p.id)
		case "warning":
			logger.Warn(msg, "id", p.id)
		case "verbose", "debug", "trace":
			logger.Debug(msg, "id", p.id)
		case "quiet":
		default:
			logger.Info(msg, "id", p.id)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		p.logger.Warn("Error reading output", "id", p.id, "source", source, "error", err)
	}
}

// SplitCommand splits a command line into arguments. Single and double
// quotes group words and a backslash escapes the next character.
func SplitCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)
	inArg := false

	runes := []rune(strings.TrimSpace(command))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote, quoteChar, inArg = true, r, true
			case r == quoteChar:
				inQuote, quoteChar = false, 0
			default:
				current.WriteRune(r)
			}
		case (r == ' ' || r == '\t') && !inQuote:
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
			inArg = true
		default:
			current.WriteRune(r)
			inArg = true
		}
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command %q", command)
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}
