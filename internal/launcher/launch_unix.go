//go:build unix

package launcher

import (
	"os/exec"
	"syscall"
)

const defaultCommand = "xfreerdp"

// detach starts the client in its own session so it survives the
// controlling terminal closing.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
