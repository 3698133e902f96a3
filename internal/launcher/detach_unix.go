//go:build !windows

package launcher

import (
	"os/exec"
	"syscall"
)

// detach starts cmd in a new session so it survives the host.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
