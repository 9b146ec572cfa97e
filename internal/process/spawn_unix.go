//go:build !windows

package process

import (
	"os/exec"
	"runtime"
	"syscall"
)

// buildCommand constructs the exec.Cmd for a spec. Shell commands run
// through bash: a login shell on macOS so the user's expected
// environment is set up, a plain shell on Linux where that is not
// required. Literal argument vectors run directly.
func buildCommand(spec Spec) *exec.Cmd {
	if spec.ShellCmd != "" {
		if runtime.GOOS == "darwin" {
			return exec.Command("/usr/bin/env", "bash", "-l", "-c", spec.ShellCmd)
		}
		return exec.Command("/usr/bin/env", "bash", "-c", spec.ShellCmd)
	}
	return exec.Command(spec.Cmd[0], spec.Cmd[1:]...)
}

// setProcessGroup puts the child in its own process group so the whole
// subtree can be signalled at once. Shell wrappers would otherwise leave
// orphaned grandchildren behind a kill.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// procGroup tracks the child's process group for subtree termination.
type procGroup struct {
	pid int
}

func (g *procGroup) capture(cmd *exec.Cmd) error {
	if cmd.Process != nil {
		g.pid = cmd.Process.Pid
	}
	return nil
}

// kill signals the whole group, then the immediate child in case it
// escaped its group before the signal landed.
func (g *procGroup) kill(cmd *exec.Cmd) {
	if g.pid > 0 {
		_ = syscall.Kill(-g.pid, syscall.SIGTERM)
	}
	if cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
}

func (g *procGroup) release() {}
