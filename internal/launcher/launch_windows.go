//go:build windows

package launcher

import (
	"os/exec"
	"syscall"
)

const defaultCommand = "mstsc.exe"

// detachedProcess is the DETACHED_PROCESS creation flag.
const detachedProcess = 0x00000008

func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
}
