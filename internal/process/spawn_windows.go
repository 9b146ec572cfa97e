//go:build windows

package process

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// buildCommand constructs the exec.Cmd for a spec. Shell commands are
// passed to cmd.exe so they get the shell's own escaping rules; literal
// argument vectors run directly.
func buildCommand(spec Spec) *exec.Cmd {
	if spec.ShellCmd != "" {
		cmd := exec.Command("cmd.exe")
		cmd.SysProcAttr = &syscall.SysProcAttr{
			CmdLine:    "cmd.exe /C " + spec.ShellCmd,
			HideWindow: true,
		}
		return cmd
	}
	return exec.Command(spec.Cmd[0], spec.Cmd[1:]...)
}

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP
}

// procGroup owns a job object covering the child and everything it
// spawns. Terminating the job kills the whole tree; terminating only the
// immediate child would leave cmd.exe's children running.
type procGroup struct {
	job windows.Handle
}

func (g *procGroup) capture(cmd *exec.Cmd) error {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return err
	}

	proc, err := windows.OpenProcess(
		windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE,
		false, uint32(cmd.Process.Pid))
	if err != nil {
		_ = windows.CloseHandle(job)
		return err
	}
	defer windows.CloseHandle(proc)

	if err := windows.AssignProcessToJobObject(job, proc); err != nil {
		_ = windows.CloseHandle(job)
		return err
	}

	g.job = job
	return nil
}

func (g *procGroup) kill(cmd *exec.Cmd) {
	if g.job != 0 {
		_ = windows.TerminateJobObject(g.job, 1)
		return
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func (g *procGroup) release() {
	if g.job != 0 {
		_ = windows.CloseHandle(g.job)
		g.job = 0
	}
}
