//go:build !windows

package mcpgateway

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// configureProcAttr starts the server in its own process group so that
// termination reaches the helpers it spawns.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcess(p *os.Process) error {
	return signalGroup(p, syscall.SIGTERM)
}

func killProcess(p *os.Process) error {
	return signalGroup(p, syscall.SIGKILL)
}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	if p.Pid <= 0 {
		return os.ErrProcessDone
	}
	if err := syscall.Kill(-p.Pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return p.Signal(sig)
		}
		return err
	}
	return nil
}
