//go:build !windows && !unix

package overlay

import "syscall"

func hiddenProcAttr(bool) *syscall.SysProcAttr {
	return nil
}
