//go:build windows

package overlay

import (
	"syscall"

	"golang.org/x/sys/windows"
)

func hiddenProcAttr(detached bool) *syscall.SysProcAttr {
	flags := uint32(windows.CREATE_NO_WINDOW)
	if detached {
		flags |= windows.CREATE_NEW_PROCESS_GROUP
	}
	return &syscall.SysProcAttr{HideWindow: true, CreationFlags: flags}
}
