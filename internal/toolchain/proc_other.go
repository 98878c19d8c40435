//go:build !unix

package toolchain

import (
	"os"
	"syscall"
)

// sysProcAttr returns nil where process groups are not available. The
// direct child is still killed on timeout.
func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	if proc, err := os.FindProcess(pid); err == nil {
		_ = proc.Kill()
	}
}
