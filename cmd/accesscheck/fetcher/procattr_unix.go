//go:build unix && !linux

package fetcher

import (
	"os/exec"
	"syscall"
)

// detachBrowser starts the browser in its own process group so a terminal
// Ctrl-C does not kill it mid-fetch.
func detachBrowser(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = new(syscall.SysProcAttr)
	}
	cmd.SysProcAttr.Setpgid = true
}
