package mcpgateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

const (
	// maxStderrLine caps the bytes buffered for one stderr line.
	maxStderrLine = 64 * 1024
	// stderrDrainTimeout bounds the wait for buffered stderr after exit.
	// Descendants that inherited the pipe may keep it open indefinitely.
	stderrDrainTimeout = 500 * time.Millisecond
)

// serverProcess is one spawned MCP server together with its stderr drain.
// The parent ends of stdout and stderr are plain pipes owned here, closed by
// Stop once the process has exited and its output has been read.
type serverProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	stderr *os.File

	exited    chan struct{}
	waitErr   error
	drainDone chan struct{}
	logger    zerolog.Logger
	onStderr  func(line string)
}

// startServerProcess spawns the server. Its stderr is drained line by line
// until the pipe reaches EOF.
func startServerProcess(ctx context.Context, spec ServerSpec, launch launchEnvironment, logger zerolog.Logger, onStderr func(string)) (*serverProcess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// #nosec G204
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Env = launch.env
	cmd.Dir = launch.dir
	configureProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdoutRead, stdoutWrite, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrRead, stderrWrite, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		closeFiles(stdoutRead, stdoutWrite)
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutWrite
	cmd.Stderr = stderrWrite

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		closeFiles(stdoutRead, stdoutWrite, stderrRead, stderrWrite)
		return nil, fmt.Errorf("failed to start %s: %w", spec.Command, err)
	}
	// The child holds its own copies of the write ends.
	closeFiles(stdoutWrite, stderrWrite)

	p := &serverProcess{
		cmd:       cmd,
		stdin:     stdin,
		stdout:    stdoutRead,
		stderr:    stderrRead,
		exited:    make(chan struct{}),
		drainDone: make(chan struct{}),
		logger:    logger.With().Int("pid", cmd.Process.Pid).Logger(),
		onStderr:  onStderr,
	}
	go p.drainStderr()
	go p.waitExit()

	p.logger.Debug().Str("command", spec.Command).Strs("args", spec.Args).Msg("Server process started")
	return p, nil
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func (p *serverProcess) waitExit() {
	p.waitErr = p.cmd.Wait()
	close(p.exited)
}

func (p *serverProcess) drainStderr() {
	defer close(p.drainDone)

	reader := bufio.NewReaderSize(p.stderr, maxStderrLine)
	discarding := false
	for {
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed):
			case errors.Is(err, os.ErrDeadlineExceeded):
				p.logger.Debug().Msg("Server stderr still open after exit, stopping drain")
			default:
				p.logger.Debug().Err(err).Msg("Server stderr reader stopped")
			}
			return
		}
		if isPrefix || discarding {
			if !discarding {
				p.logger.Warn().Int("limit", maxStderrLine).Msg("Server stderr line too long, discarding it")
			}
			discarding = isPrefix
			continue
		}
		if len(line) == 0 {
			continue
		}
		text := string(line)
		p.logger.Debug().Str("stream", "stderr").Msg(text)
		if p.onStderr != nil {
			p.onStderr(text)
		}
	}
}

// finishOutput waits for the stderr drain to reach EOF, bounded by
// stderrDrainTimeout, and releases the parent ends of stdout and stderr.
func (p *serverProcess) finishOutput() {
	_ = p.stderr.SetReadDeadline(time.Now().Add(stderrDrainTimeout))
	timer := time.NewTimer(2 * stderrDrainTimeout)
	select {
	case <-p.drainDone:
		timer.Stop()
	case <-timer.C:
	}
	closeFiles(p.stderr, p.stdout)
}

// Alive reports whether the process has not exited yet.
func (p *serverProcess) Alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Pid returns the OS process id.
func (p *serverProcess) Pid() int {
	return p.cmd.Process.Pid
}

// Stop asks the process to terminate, kills it when it outlives grace, waits
// for it to exit and for the remaining stderr to be surfaced. Stop is
// idempotent.
func (p *serverProcess) Stop(grace time.Duration) error {
	if p.Alive() {
		if err := terminateProcess(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Warn().Err(err).Msg("Failed to request server termination")
		}

		timer := time.NewTimer(grace)
		select {
		case <-p.exited:
			timer.Stop()
		case <-timer.C:
			p.logger.Warn().Dur("grace", grace).Msg("Server did not exit in time, killing")
			if err := killProcess(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
				p.logger.Error().Err(err).Msg("Failed to kill server process")
			}
		}
	}

	<-p.exited
	p.finishOutput()
	return p.waitErr
}

// ExitCode returns the exit code after the process has exited, or -1.
func (p *serverProcess) ExitCode() int {
	if p.Alive() || p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// ExitStatus describes how the process ended, e.g. "exit status 0" or
// "signal: terminated".
func (p *serverProcess) ExitStatus() string {
	if p.Alive() || p.cmd.ProcessState == nil {
		return "running"
	}
	return p.cmd.ProcessState.String()
}
