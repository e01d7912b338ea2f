package mcpgateway

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestProcess(t *testing.T, spec ServerSpec, onStderr func(string)) *serverProcess {
	t.Helper()
	launch := resolveLaunchEnvironment(spec, nil, zerolog.Nop())
	proc, err := startServerProcess(context.Background(), spec, launch, zerolog.Nop(), onStderr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = proc.Stop(100 * time.Millisecond) })
	return proc
}

func TestServerProcessExit(t *testing.T) {
	requireUnix(t)

	proc := startTestProcess(t, ServerSpec{Name: "s", Command: "sh", Args: []string{"-c", "exit 3"}}, nil)
	require.Eventually(t, func() bool { return !proc.Alive() }, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 3, proc.ExitCode())
	assert.Equal(t, "exit status 3", proc.ExitStatus())
	assert.Error(t, proc.Stop(time.Second))
}

func TestServerProcessStopTerminates(t *testing.T) {
	requireUnix(t)

	proc := startTestProcess(t, ServerSpec{Name: "s", Command: "sleep", Args: []string{"30"}}, nil)
	assert.True(t, proc.Alive())
	assert.Equal(t, -1, proc.ExitCode())
	assert.Equal(t, "running", proc.ExitStatus())

	start := time.Now()
	_ = proc.Stop(5 * time.Second)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, proc.Alive())
	assert.Equal(t, "signal: terminated", proc.ExitStatus())
}

func TestServerProcessDiscardsOversizedStderr(t *testing.T) {
	requireUnix(t)

	var (
		mu    sync.Mutex
		lines []string
	)
	onStderr := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, line)
	}

	script := `echo before >&2; head -c 70000 /dev/zero | tr '\0' 'x' >&2; echo >&2; echo after >&2`
	proc := startTestProcess(t, ServerSpec{Name: "s", Command: "sh", Args: []string{"-c", script}}, onStderr)

	select {
	case <-proc.drainDone:
	case <-time.After(5 * time.Second):
		t.Fatal("stderr drain did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"before", "after"}, lines)
}

func TestServerProcessSurfacesStderrOfExitedServer(t *testing.T) {
	requireUnix(t)

	script := `for i in 1 2 3 4 5 6 7 8 9 10; do echo "line $i" >&2; done; echo fatal >&2; exit 1`
	want := []string{"line 1", "line 2", "line 3", "line 4", "line 5", "line 6", "line 7", "line 8", "line 9", "line 10", "fatal"}

	for run := 0; run < 20; run++ {
		var (
			mu    sync.Mutex
			lines []string
		)
		onStderr := func(line string) {
			mu.Lock()
			defer mu.Unlock()
			lines = append(lines, line)
		}

		proc := startTestProcess(t, ServerSpec{Name: "s", Command: "sh", Args: []string{"-c", script}}, onStderr)
		<-proc.exited
		assert.Error(t, proc.Stop(time.Second))

		mu.Lock()
		assert.Equal(t, want, lines, "run %d", run)
		mu.Unlock()
	}
}

func TestServerProcessStopWithDescendantHoldingStderr(t *testing.T) {
	requireUnix(t)

	var (
		mu    sync.Mutex
		lines []string
	)
	onStderr := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, line)
	}

	script := `sleep 30 & echo done >&2; exit 0`
	proc := startTestProcess(t, ServerSpec{Name: "s", Command: "sh", Args: []string{"-c", script}}, onStderr)
	t.Cleanup(func() { _ = killProcess(proc.cmd.Process) })
	<-proc.exited

	start := time.Now()
	require.NoError(t, proc.Stop(time.Second))
	assert.Less(t, time.Since(start), 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"done"}, lines)
}

func TestServerProcessStdoutReadableAfterExit(t *testing.T) {
	requireUnix(t)

	proc := startTestProcess(t, ServerSpec{Name: "s", Command: "sh", Args: []string{"-c", "echo reply"}}, nil)
	<-proc.exited

	out, err := io.ReadAll(proc.stdout)
	require.NoError(t, err)
	assert.Equal(t, "reply\n", string(out))
}

func TestStartServerProcessCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := startServerProcess(ctx, ServerSpec{Name: "s", Command: "cat"}, launchEnvironment{}, zerolog.Nop(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
