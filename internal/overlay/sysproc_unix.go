//go:build unix

package overlay

import "syscall"

// Detached children get their own process group so a terminal interrupt
// aimed at the CLI does not reach them.
func hiddenProcAttr(detached bool) *syscall.SysProcAttr {
	if !detached {
		return nil
	}
	return &syscall.SysProcAttr{Setpgid: true}
}
