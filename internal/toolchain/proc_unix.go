//go:build unix

package toolchain

import "syscall"

// sysProcAttr puts the child in its own process group so the whole
// process tree can be killed on timeout.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
