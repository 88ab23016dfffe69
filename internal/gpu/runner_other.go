//go:build !windows

package gpu

import "os/exec"

func setCommandLine(*exec.Cmd, string, []string) {}
