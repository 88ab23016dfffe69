//go:build windows

package gpu

import (
	"os/exec"
	"strings"
	"syscall"
)

// setCommandLine passes cmd /C scripts through verbatim. cmd.exe does not
// understand the backslash escaping os/exec applies to embedded quotes.
func setCommandLine(cmd *exec.Cmd, name string, args []string) {
	if !strings.EqualFold(name, "cmd") {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine: name + " " + strings.Join(args, " "),
	}
}
