//go:build linux

package fetcher

import (
	"os/exec"
	"syscall"
)

// detachBrowser starts the browser in its own process group so a terminal
// Ctrl-C does not kill it mid-fetch. Pdeathsig still reaps it if we exit.
func detachBrowser(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = new(syscall.SysProcAttr)
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.SysProcAttr.Pdeathsig = syscall.SIGKILL
}
