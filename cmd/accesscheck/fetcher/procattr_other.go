//go:build !unix

package fetcher

import "os/exec"

func detachBrowser(*exec.Cmd) {}
